package remote

import (
	"context"
	"errors"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/store"
)

// Local serves the document hierarchy from a SQLite store in the same
// process. The document server uses it as its backend.
type Local struct {
	db *store.Store
}

// NewLocal wraps an opened store.
func NewLocal(db *store.Store) *Local {
	return &Local{db: db}
}

// Get implements Store.
func (l *Local) Get(ctx context.Context, uid, path string) (doc.Document, error) {
	rec, err := l.db.GetDocument(ctx, uid, doc.SanitizePath(path))
	if errors.Is(err, store.ErrDocumentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &NetworkError{Op: "get", Path: doc.RemotePath(uid, path), Err: err}
	}
	return rec.Body, nil
}

// MergeWrite implements Store.
func (l *Local) MergeWrite(ctx context.Context, uid, path string, d doc.Document) error {
	_, err := l.Merge(ctx, uid, path, d)
	return err
}

// Merge is MergeWrite returning the stored result.
func (l *Local) Merge(ctx context.Context, uid, path string, d doc.Document) (doc.Document, error) {
	rec, err := l.db.MergeDocument(ctx, uid, doc.SanitizePath(path), d)
	if err != nil {
		return nil, &NetworkError{Op: "merge", Path: doc.RemotePath(uid, path), Err: err}
	}
	return rec.Body, nil
}
