package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/server"
	"github.com/roach88/qwsync/internal/store"
)

const testSecret = "cli-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into out.
func decodeData(t *testing.T, output string, out any) {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	require.Equal(t, "ok", resp.Status, output)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func tempCacheDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache.db")
}

// docServer is a document server on httptest with its own database.
type docServer struct {
	*httptest.Server
	db     *store.Store
	issuer *auth.Issuer
}

func newDocServer(t *testing.T) *docServer {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)

	srv, err := server.New(server.Options{Addr: "127.0.0.1:0", Store: db, Issuer: issuer})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &docServer{Server: ts, db: db, issuer: issuer}
}

func (s *docServer) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := s.issuer.Issue(uid, time.Hour)
	require.NoError(t, err)
	return tok
}
