package docsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/remote"
)

func TestWriter_CoalescesBurst(t *testing.T) {
	env := newSyncEnv(t)
	env.login(t, "u1")
	w := env.binder.Writer()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		w.Write("quiz", doc.Document{"score": int64(i)})
		env.clock.Advance(50 * time.Millisecond)
	}
	assert.True(t, w.Pending("quiz"))

	env.clock.Advance(DefaultCacheWindow)
	got, ok := env.cache.Read(ctx, "u1", "quiz")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"score": int64(3)}, got)

	_, writes := env.remote.Calls()
	assert.Equal(t, 0, writes, "remote window still open")

	env.clock.Advance(DefaultRemoteWindow)
	_, writes = env.remote.Calls()
	assert.Equal(t, 1, writes)

	remoteDoc, ok := env.remote.Document("u1", "quiz")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"score": int64(3)}, remoteDoc)
	assert.False(t, w.Pending("quiz"))
}

func TestWriter_AnonymousSkipsRemote(t *testing.T) {
	env := newSyncEnv(t)
	w := env.binder.Writer()

	w.Write("settings", doc.Document{"duration": int64(30)})
	env.clock.Advance(DefaultRemoteWindow)

	got, ok := env.cache.Read(context.Background(), doc.AnonymousScope, "settings")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"duration": int64(30)}, got)

	_, writes := env.remote.Calls()
	assert.Equal(t, 0, writes)
}

func TestWriter_LateLoginReachesRemote(t *testing.T) {
	env := newSyncEnv(t)
	w := env.binder.Writer()
	ctx := context.Background()

	w.Write("quiz", doc.Document{"score": int64(7)})
	env.clock.Advance(100 * time.Millisecond)
	env.login(t, "u1")
	env.clock.Advance(DefaultRemoteWindow)

	// Cache scope was fixed when the write was requested.
	anon, ok := env.cache.Read(ctx, doc.AnonymousScope, "quiz")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"score": int64(7)}, anon)
	_, ok = env.cache.Read(ctx, "u1", "quiz")
	assert.False(t, ok)

	// Remote target was resolved when the timer fired.
	remoteDoc, ok := env.remote.Document("u1", "quiz")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"score": int64(7)}, remoteDoc)
}

func TestWriter_RemoteFailureFallsBackToUserCache(t *testing.T) {
	env := newSyncEnv(t)
	env.login(t, "u1")
	env.remote.FailWrites(remote.ErrOffline)
	w := env.binder.Writer()

	w.Write("quiz", doc.Document{"score": int64(2)})
	env.clock.Advance(DefaultCacheWindow)
	w.Write("quiz", doc.Document{"score": int64(4)})
	env.clock.Advance(DefaultRemoteWindow)

	got, ok := env.cache.Read(context.Background(), "u1", "quiz")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"score": int64(4)}, got)

	_, ok = env.remote.Document("u1", "quiz")
	assert.False(t, ok)
}

func TestWriter_MergeWriteKeepsExistingFields(t *testing.T) {
	env := newSyncEnv(t)
	env.login(t, "u1")
	require.NoError(t, env.remote.Put("u1", "settings", doc.Document{"a": int64(1)}))

	w := env.binder.Writer()
	w.Write("settings", doc.Document{"b": int64(2)})
	env.clock.Advance(DefaultRemoteWindow)

	got, ok := env.remote.Document("u1", "settings")
	require.True(t, ok)
	assert.Equal(t, doc.Document{"a": int64(1), "b": int64(2)}, got)
}

func TestWriter_SanitizesPath(t *testing.T) {
	env := newSyncEnv(t)
	w := env.binder.Writer()

	w.Write("quiz/1 results", doc.Document{"ok": true})
	assert.True(t, w.Pending("quiz_1_results"))
	env.clock.Advance(DefaultCacheWindow)

	_, ok := env.cache.Read(context.Background(), doc.AnonymousScope, "quiz_1_results")
	assert.True(t, ok)
}

func TestWriter_FlushWritesImmediately(t *testing.T) {
	env := newSyncEnv(t)
	env.login(t, "u1")
	w := env.binder.Writer()

	w.Write("quiz", doc.Document{"score": int64(1)})
	w.Flush()

	_, ok := env.cache.Read(context.Background(), "u1", "quiz")
	assert.True(t, ok)
	_, ok = env.remote.Document("u1", "quiz")
	assert.True(t, ok)
	assert.Equal(t, 0, env.clock.Pending())
}

func TestWriter_CloseDropsPending(t *testing.T) {
	env := newSyncEnv(t)
	w := env.binder.Writer()

	w.Write("quiz", doc.Document{"score": int64(1)})
	w.Close()
	env.clock.Advance(DefaultRemoteWindow)

	_, ok := env.cache.Read(context.Background(), doc.AnonymousScope, "quiz")
	assert.False(t, ok)
}

func TestWriter_CacheOnlyWithoutRemote(t *testing.T) {
	env := newSyncEnv(t)
	w := NewWriter(env.cache, nil, env.notifier, Config{Clock: env.clock})
	t.Cleanup(w.Close)
	env.login(t, "u1")

	w.Write("quiz", doc.Document{"score": int64(1)})
	env.clock.Advance(DefaultRemoteWindow)

	_, ok := env.cache.Read(context.Background(), "u1", "quiz")
	assert.True(t, ok)
	gets, writes := env.remote.Calls()
	assert.Zero(t, gets+writes)
}
