package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/store"
)

func newTestCache(t *testing.T, opts ...Option) (*Store, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, opts...), db
}

func TestWriteRead_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	cases := []struct {
		scope string
		path  string
		d     doc.Document
	}{
		{doc.AnonymousScope, "quiz:abc", doc.Document{"score": int64(5)}},
		{"u1", "settings", doc.Document{"duration": int64(15), "theme": "dark"}},
		{"u1", "flashcards", doc.Document{"cards": []any{map[string]any{"q": "2+2", "a": "4"}}}},
		{doc.AnonymousScope, "empty", doc.Document{}},
	}

	for _, tc := range cases {
		require.NoError(t, c.Write(ctx, tc.scope, tc.path, tc.d))
		got, ok := c.Read(ctx, tc.scope, tc.path)
		require.True(t, ok, "%s/%s", tc.scope, tc.path)
		assert.Equal(t, tc.d, got)
	}
}

func TestRead_Absent(t *testing.T) {
	c, _ := newTestCache(t)

	got, ok := c.Read(context.Background(), doc.AnonymousScope, "missing")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRead_MalformedIsAbsent(t *testing.T) {
	c, db := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, db.PutEntry(ctx, doc.CacheKey(doc.AnonymousScope, "p"), "{not json"))

	_, ok := c.Read(ctx, doc.AnonymousScope, "p")
	assert.False(t, ok)

	raw, ok, err := c.ReadRaw(ctx, doc.AnonymousScope, "p")
	require.NoError(t, err)
	assert.True(t, ok, "raw entry is still present")
	assert.Equal(t, "{not json", raw)
}

func TestWrite_ScopesAreIsolated(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, doc.AnonymousScope, "p", doc.Document{"who": "anon"}))
	require.NoError(t, c.Write(ctx, "u1", "p", doc.Document{"who": "u1"}))

	anon, _ := c.Read(ctx, doc.AnonymousScope, "p")
	user, _ := c.Read(ctx, "u1", "p")
	assert.Equal(t, "anon", anon["who"])
	assert.Equal(t, "u1", user["who"])
}

func TestWrite_UsesSanitizedKey(t *testing.T) {
	c, db := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "u1", "my deck", doc.Document{"a": int64(1)}))

	_, ok, err := db.GetEntry(ctx, "qw_cache:u1:my_deck")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWrite_EncodeFailureKeepsPrevious(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "u1", "p", doc.Document{"v": int64(1)}))
	err := c.Write(ctx, "u1", "p", doc.Document{"bad": func() {}})
	require.Error(t, err)

	got, ok := c.Read(ctx, "u1", "p")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"v": int64(1)}, got)
}

func TestRemove_Idempotent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, doc.AnonymousScope, "p", doc.Document{}))
	require.NoError(t, c.Remove(ctx, doc.AnonymousScope, "p"))
	require.NoError(t, c.Remove(ctx, doc.AnonymousScope, "p"))

	_, ok := c.Read(ctx, doc.AnonymousScope, "p")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, doc.AnonymousScope, "settings", doc.Document{}))
	require.NoError(t, c.Write(ctx, doc.AnonymousScope, "quiz:abc", doc.Document{"score": int64(5)}))
	require.NoError(t, c.Write(ctx, "u1", "settings", doc.Document{}))

	entries, err := c.List(ctx, doc.AnonymousScope)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Scope: doc.AnonymousScope, Path: "quiz:abc", Raw: `{"score":5}`}, entries[0])
	assert.Equal(t, "settings", entries[1].Path)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	c, _ := newTestCache(t, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "u1", "p", doc.Document{}))
	c.Read(ctx, "u1", "p")
	c.Read(ctx, "u1", "missing")

	reads, err := testutil.GatherAndCount(reg, "qwsync_cache_reads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, reads, "one hit series and one miss series")

	writes, err := testutil.GatherAndCount(reg, "qwsync_cache_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
}
