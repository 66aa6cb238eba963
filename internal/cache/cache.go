// Package cache is the client-side durable document cache.
//
// Entries are keyed by (scope, path) and stored under the key
// qw_cache:{scope}:{path}. A value that cannot be decoded as a JSON object is
// treated as absent rather than as an error, so a corrupted entry never stops
// a binder from painting defaults.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/store"
)

// Entry is a decoded view of one cache row.
type Entry struct {
	Scope string `json:"scope"`
	Path  string `json:"path"`
	Raw   string `json:"raw"`
}

// Store reads and writes cached documents.
type Store struct {
	db      *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for malformed-entry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics records cache reads and writes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New wraps an opened store.Store.
func New(db *store.Store, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the document cached for (scope, path).
// The boolean is false if nothing was written, the entry is malformed, or the
// database could not be read; the latter two are logged.
func (s *Store) Read(ctx context.Context, scope, path string) (doc.Document, bool) {
	raw, ok, err := s.ReadRaw(ctx, scope, path)
	if err != nil {
		s.logger.Warn("cache read failed", "key", doc.CacheKey(scope, path), "error", err)
		s.metrics.CacheRead(metrics.ResultError)
		return nil, false
	}
	if !ok {
		s.metrics.CacheRead(metrics.ResultMiss)
		return nil, false
	}

	d, err := doc.Decode([]byte(raw))
	if err != nil {
		s.logger.Debug("ignoring malformed cache entry", "key", doc.CacheKey(scope, path), "error", err)
		s.metrics.CacheRead(metrics.ResultMiss)
		return nil, false
	}
	s.metrics.CacheRead(metrics.ResultHit)
	return d, true
}

// ReadRaw returns the serialized entry without decoding it.
func (s *Store) ReadRaw(ctx context.Context, scope, path string) (string, bool, error) {
	raw, ok, err := s.db.GetEntry(ctx, doc.CacheKey(scope, path))
	if err != nil {
		return "", false, fmt.Errorf("cache read %s: %w", doc.CacheKey(scope, path), err)
	}
	return raw, ok, nil
}

// Write overwrites the entry for (scope, path).
// On an encoding or storage failure the previous value is left in place and
// the error is returned for the caller to log.
func (s *Store) Write(ctx context.Context, scope, path string, d doc.Document) error {
	data, err := doc.Encode(d)
	if err != nil {
		s.metrics.CacheWrite(metrics.ResultError)
		return fmt.Errorf("cache write %s: %w", doc.CacheKey(scope, path), err)
	}
	if err := s.db.PutEntry(ctx, doc.CacheKey(scope, path), string(data)); err != nil {
		s.metrics.CacheWrite(metrics.ResultError)
		return fmt.Errorf("cache write %s: %w", doc.CacheKey(scope, path), err)
	}
	s.metrics.CacheWrite(metrics.ResultOK)
	return nil
}

// Remove deletes the entry for (scope, path). Removing a missing entry is not
// an error.
func (s *Store) Remove(ctx context.Context, scope, path string) error {
	if err := s.db.DeleteEntry(ctx, doc.CacheKey(scope, path)); err != nil {
		return fmt.Errorf("cache remove %s: %w", doc.CacheKey(scope, path), err)
	}
	return nil
}

// List returns every entry cached under scope, ordered by path.
func (s *Store) List(ctx context.Context, scope string) ([]Entry, error) {
	prefix := doc.CacheKeyPrefix + ":" + scope + ":"
	rows, err := s.db.ListEntries(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("cache list %s: %w", scope, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Scope: scope,
			Path:  strings.TrimPrefix(row.Key, prefix),
			Raw:   row.Value,
		})
	}
	return entries, nil
}
