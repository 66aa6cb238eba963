package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/qwsync/internal/doc"
)

// ErrDocumentNotFound is returned by GetDocument when no row exists.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRecord is a stored remote document with its version counter.
type DocumentRecord struct {
	UserID  string
	Path    string
	Body    doc.Document
	Version int64
}

// GetDocument returns the document stored at (uid, path).
// Returns ErrDocumentNotFound if absent.
func (s *Store) GetDocument(ctx context.Context, uid, path string) (DocumentRecord, error) {
	var body string
	var version int64
	err := s.db.QueryRowContext(ctx, `
		SELECT body, version FROM documents WHERE uid = ? AND path = ?
	`, uid, path).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, ErrDocumentNotFound
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("get document: %w", err)
	}

	d, err := doc.Decode([]byte(body))
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("get document %s: %w", doc.RemotePath(uid, path), err)
	}
	return DocumentRecord{UserID: uid, Path: path, Body: d, Version: version}, nil
}

// MergeDocument shallow-merges patch into the document at (uid, path),
// creating it if absent, and returns the stored result. Fields missing from
// patch are preserved.
//
// The read-modify-write runs in one transaction.
func (s *Store) MergeDocument(ctx context.Context, uid, path string, patch doc.Document) (DocumentRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("merge document: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var body string
	var version int64
	existing := doc.Document{}
	err = tx.QueryRowContext(ctx, `
		SELECT body, version FROM documents WHERE uid = ? AND path = ?
	`, uid, path).Scan(&body, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return DocumentRecord{}, fmt.Errorf("merge document: select: %w", err)
	default:
		existing, err = doc.Decode([]byte(body))
		if err != nil {
			return DocumentRecord{}, fmt.Errorf("merge document: %w", err)
		}
	}

	merged := doc.Merge(existing, patch)
	encoded, err := doc.Encode(merged)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("merge document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (uid, path, body, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(uid, path) DO UPDATE SET
			body = excluded.body,
			version = documents.version + 1
	`, uid, path, string(encoded))
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("merge document: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DocumentRecord{}, fmt.Errorf("merge document: commit: %w", err)
	}

	stored, err := doc.Decode(encoded)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("merge document: %w", err)
	}
	return DocumentRecord{UserID: uid, Path: path, Body: stored, Version: version + 1}, nil
}

// ListDocuments returns every document path stored for uid, ordered by path.
func (s *Store) ListDocuments(ctx context.Context, uid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM documents WHERE uid = ? ORDER BY path COLLATE BINARY ASC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return paths, nil
}
