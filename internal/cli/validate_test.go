package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quizSchema = `package pages

pages: quiz: {
	score: int & >=0 & <=10
}
`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.cue")
	require.NoError(t, os.WriteFile(path, []byte(quizSchema), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	db := tempCacheDB(t)
	_, _, err := execute(t, "put", "quiz", `{"score":5}`, "--cache-db", db)
	require.NoError(t, err)
	_, _, err = execute(t, "put", "settings", `{"duration":15}`, "--cache-db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "validate", "--schema", writeSchema(t), "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 checked, 0 violation(s) in scope anon")
}

func TestValidate_Violation(t *testing.T) {
	db := tempCacheDB(t)
	_, _, err := execute(t, "put", "quiz", `{"score":50}`, "--cache-db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "validate", "--schema", writeSchema(t), "--cache-db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res ValidateResult
	decodeData(t, out, &res)
	assert.Equal(t, []string{"quiz"}, res.Checked)
	require.NotEmpty(t, res.Violations)
	assert.Equal(t, "quiz", res.Violations[0].Path)
}

func TestValidate_NamedPaths(t *testing.T) {
	db := tempCacheDB(t)
	_, _, err := execute(t, "put", "quiz", `{"score":50}`, "--cache-db", db)
	require.NoError(t, err)
	_, _, err = execute(t, "put", "settings", `{"duration":15}`, "--cache-db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "validate", "settings", "--schema", writeSchema(t), "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 checked")

	out, _, err = execute(t, "validate", "missing", "--schema", writeSchema(t), "--cache-db", db)
	require.Error(t, err)
	assert.Contains(t, out, "✗ missing: not cached")
}

func TestValidate_BadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("pages: {"), 0o644))

	_, _, err := execute(t, "validate", "--schema", path, "--cache-db", tempCacheDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "load schema")
}

func TestValidate_SchemaRequired(t *testing.T) {
	_, _, err := execute(t, "validate", "--cache-db", tempCacheDB(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}
