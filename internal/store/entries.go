package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is one row of the client cache.
type Entry struct {
	Key   string
	Value string
	Seq   int64
}

// GetEntry returns the raw value stored under key.
// The boolean is false when no entry exists.
func (s *Store) GetEntry(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM cache_entries WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get entry: %w", err)
	}
	return value, true, nil
}

// PutEntry overwrites the value stored under key. Last write wins.
func (s *Store) PutEntry(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cache_entries))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			seq = excluded.seq
	`, key, value)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry under key. Deleting a missing key is not an
// error.
func (s *Store) DeleteEntry(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ListEntries returns every entry whose key starts with prefix, ordered by
// key. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListEntries(ctx context.Context, prefix string) ([]Entry, error) {
	// substr avoids LIKE, where '_' in keys would act as a wildcard. Both
	// substr and length count characters, not bytes.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, seq FROM cache_entries
		WHERE substr(key, 1, length(?1)) = ?1
		ORDER BY key COLLATE BINARY ASC
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Seq); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
