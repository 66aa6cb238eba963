package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/docsync"
	"github.com/roach88/qwsync/internal/remote"
)

func TestLogin_MigratesAnonymousCache(t *testing.T) {
	srv := newDocServer(t)
	db := tempCacheDB(t)

	_, _, err := execute(t, "put", "quiz", `{"score":5}`, "--cache-db", db)
	require.NoError(t, err)
	_, _, err = execute(t, "put", "settings", `{"duration":30}`, "--cache-db", db)
	require.NoError(t, err)

	// Remote fields not in the anonymous document survive the merge.
	_, err = remote.NewLocal(srv.db).Merge(context.Background(), "u1", "quiz", doc.Document{"best": int64(9)})
	require.NoError(t, err)

	out, _, err := execute(t, "login", "--cache-db", db, "--remote", srv.URL,
		"--uid", "u1", "--token", srv.token(t, "u1"), "--format", "json")
	require.NoError(t, err)

	var report docsync.MigrationReport
	decodeData(t, out, &report)
	assert.Equal(t, "u1", report.UserID)
	assert.Equal(t, 2, report.Count(docsync.OutcomeMigrated))

	got, err := remote.NewLocal(srv.db).Get(context.Background(), "u1", "quiz")
	require.NoError(t, err)
	assert.Equal(t, doc.Document{"score": int64(5), "best": int64(9)}, got)

	out, _, err = execute(t, "cache", "ls", "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No documents cached")
}

func TestLogin_NothingToMigrate(t *testing.T) {
	srv := newDocServer(t)

	out, _, err := execute(t, "login", "--cache-db", tempCacheDB(t), "--remote", srv.URL,
		"--uid", "u1", "--token", srv.token(t, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "Nothing to migrate.\n", out)
}

func TestLogin_RejectedTokenKeepsEntries(t *testing.T) {
	srv := newDocServer(t)
	db := tempCacheDB(t)

	_, _, err := execute(t, "put", "quiz", `{"score":5}`, "--cache-db", db)
	require.NoError(t, err)

	// A token for another user is refused by the server.
	out, _, err := execute(t, "login", "--cache-db", db, "--remote", srv.URL,
		"--uid", "u1", "--token", srv.token(t, "u2"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ quiz failed")

	out, _, err = execute(t, "cache", "ls", "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "quiz\t")
}

func TestLogin_RequiresUIDAndRemote(t *testing.T) {
	_, stderr, err := execute(t, "login", "--cache-db", tempCacheDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeInvalidArgs)

	_, stderr, err = execute(t, "login", "--cache-db", tempCacheDB(t), "--uid", "u1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeRemote)
}
