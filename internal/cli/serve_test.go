package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve",
		"--db", filepath.Join(t.TempDir(), "server.db"),
		"--listen", "127.0.0.1:0",
		"--secret", testSecret,
	})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_RequiresSecret(t *testing.T) {
	_, _, err := execute(t, "serve", "--db", filepath.Join(t.TempDir(), "server.db"), "--listen", "127.0.0.1:0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "server secret")
}
