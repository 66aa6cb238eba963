package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/doc"
)

func TestGetDocument_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetDocument(context.Background(), "u1", "quiz:abc")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMergeDocument_Creates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec, err := s.MergeDocument(ctx, "u1", "quiz:abc", doc.Document{"score": 5})
	require.NoError(t, err)
	assert.Equal(t, doc.Document{"score": int64(5)}, rec.Body)
	assert.Equal(t, int64(1), rec.Version)

	got, err := s.GetDocument(ctx, "u1", "quiz:abc")
	require.NoError(t, err)
	assert.Equal(t, doc.Document{"score": int64(5)}, got.Body)
	assert.Equal(t, int64(1), got.Version)
}

func TestMergeDocument_PreservesExistingFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.MergeDocument(ctx, "u1", "p", doc.Document{"a": 1})
	require.NoError(t, err)
	rec, err := s.MergeDocument(ctx, "u1", "p", doc.Document{"b": 2})
	require.NoError(t, err)

	assert.Equal(t, doc.Document{"a": int64(1), "b": int64(2)}, rec.Body)
	assert.Equal(t, int64(2), rec.Version)
}

func TestMergeDocument_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.MergeDocument(ctx, "u1", "p", doc.Document{"a": 1})
	require.NoError(t, err)
	second, err := s.MergeDocument(ctx, "u1", "p", doc.Document{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body)
}

func TestMergeDocument_UsersIsolated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.MergeDocument(ctx, "u1", "p", doc.Document{"owner": "u1"})
	require.NoError(t, err)
	_, err = s.MergeDocument(ctx, "u2", "p", doc.Document{"owner": "u2"})
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "u1", "p")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.Body["owner"])
}

func TestGetDocument_CorruptBody(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO documents (uid, path, body) VALUES ('u1', 'p', 'not json')`)
	require.NoError(t, err)

	_, err = s.GetDocument(ctx, "u1", "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDocumentNotFound)

	_, err = s.MergeDocument(ctx, "u1", "p", doc.Document{"a": 1})
	require.Error(t, err, "merge must not clobber an unreadable document")
}

func TestListDocuments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"settings", "flashcards", "quiz:abc"} {
		_, err := s.MergeDocument(ctx, "u1", p, doc.Document{})
		require.NoError(t, err)
	}
	_, err := s.MergeDocument(ctx, "u2", "other", doc.Document{})
	require.NoError(t, err)

	paths, err := s.ListDocuments(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"flashcards", "quiz:abc", "settings"}, paths)
}
