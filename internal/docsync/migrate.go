package docsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/remote"
)

// MigrationOutcome is the per-path result of a migration.
type MigrationOutcome string

const (
	// OutcomeMigrated: merged into the remote store, anonymous entry removed.
	OutcomeMigrated MigrationOutcome = "migrated"
	// OutcomeSkipped: no anonymous entry existed.
	OutcomeSkipped MigrationOutcome = "skipped"
	// OutcomeFailed: entry unreadable or remote write failed; entry kept.
	OutcomeFailed MigrationOutcome = "failed"
)

// ErrNoRemote is reported when migration runs without a remote store.
var ErrNoRemote = errors.New("no remote store configured")

// MigrationResult describes one migrated path.
type MigrationResult struct {
	Path    string           `json:"path"`
	Outcome MigrationOutcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

// MigrationReport summarizes a migration run.
type MigrationReport struct {
	UserID  string            `json:"uid"`
	Results []MigrationResult `json:"results"`
}

// Count returns how many paths ended with outcome.
func (r MigrationReport) Count(outcome MigrationOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Migrator moves anonymous cache entries into a user's remote namespace.
//
// Migration is at-least-once: a failed path keeps its anonymous entry and is
// retried on the next login. Replaying a path is safe because the remote
// write is a merge.
type Migrator struct {
	cache   *cache.Store
	remote  remote.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewMigrator creates a migrator.
func NewMigrator(c *cache.Store, r remote.Store, cfg Config) *Migrator {
	cfg = cfg.withDefaults()
	return &Migrator{cache: c, remote: r, logger: cfg.Logger, metrics: cfg.Metrics}
}

// Migrate processes each path in order. Failures are logged and reported,
// never returned.
func (m *Migrator) Migrate(ctx context.Context, uid string, paths []string) MigrationReport {
	report := MigrationReport{UserID: uid, Results: make([]MigrationResult, 0, len(paths))}
	for _, p := range paths {
		res := m.migratePath(ctx, uid, doc.SanitizePath(p))
		m.metrics.Migration(string(res.Outcome))
		report.Results = append(report.Results, res)
	}
	return report
}

// MigrateAll migrates every path currently cached under the anonymous scope.
// The error reports only a failure to list the cache.
func (m *Migrator) MigrateAll(ctx context.Context, uid string) (MigrationReport, error) {
	entries, err := m.cache.List(ctx, doc.AnonymousScope)
	if err != nil {
		return MigrationReport{UserID: uid}, fmt.Errorf("migrate all: %w", err)
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return m.Migrate(ctx, uid, paths), nil
}

func (m *Migrator) migratePath(ctx context.Context, uid, path string) MigrationResult {
	failed := func(err error) MigrationResult {
		m.logger.Warn("migration failed; keeping anonymous entry", "uid", uid, "path", path, "error", err)
		return MigrationResult{Path: path, Outcome: OutcomeFailed, Error: err.Error()}
	}

	raw, ok, err := m.cache.ReadRaw(ctx, doc.AnonymousScope, path)
	if err != nil {
		return failed(err)
	}
	if !ok {
		return MigrationResult{Path: path, Outcome: OutcomeSkipped}
	}

	d, err := doc.Decode([]byte(raw))
	if err != nil {
		return failed(err)
	}
	if m.remote == nil {
		return failed(ErrNoRemote)
	}
	if err := m.remote.MergeWrite(ctx, uid, path, d); err != nil {
		return failed(err)
	}

	if err := m.cache.Remove(ctx, doc.AnonymousScope, path); err != nil {
		// The remote already holds the data; a leftover entry is merged
		// again on the next login.
		m.logger.Warn("migrated entry could not be removed", "uid", uid, "path", path, "error", err)
	}
	m.logger.Info("migrated anonymous document", "uid", uid, "path", path)
	return MigrationResult{Path: path, Outcome: OutcomeMigrated}
}
