package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qwsync/internal/auth"
)

func TestToken(t *testing.T) {
	out, _, err := execute(t, "token", "--uid", "u1", "--secret", testSecret)
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)
	uid, err := issuer.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestToken_JSON(t *testing.T) {
	out, _, err := execute(t, "token", "--uid", "u1", "--secret", testSecret, "--format", "json")
	require.NoError(t, err)

	var res map[string]string
	decodeData(t, out, &res)
	assert.Equal(t, "u1", res["uid"])
	assert.NotEmpty(t, res["token"])
}

func TestToken_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no uid", []string{"token", "--secret", testSecret}, "requires --uid"},
		{"no secret", []string{"token", "--uid", "u1"}, "token secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestToken_AcceptedByServer(t *testing.T) {
	srv := newDocServer(t)
	out, _, err := execute(t, "token", "--uid", "u1", "--secret", testSecret)
	require.NoError(t, err)
	tok := strings.TrimSpace(out)

	_, _, err = execute(t, "put", "quiz", `{"score":1}`, "--cache-db", tempCacheDB(t),
		"--remote", srv.URL, "--uid", "u1", "--token", tok)
	require.NoError(t, err)

	out, _, err = execute(t, "get", "quiz", "--cache-db", tempCacheDB(t),
		"--remote", srv.URL, "--uid", "u1", "--token", tok)
	require.NoError(t, err)
	assert.Equal(t, "{\"score\":1}\n", out)
}
