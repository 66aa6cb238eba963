package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Files(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		s, err := LoadScenario(file)
		require.NoError(t, err, file)
		assert.NotEmpty(t, s.Name)
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: bind and write
setup:
  session: u1
  cache:
    - {scope: anon, path: quiz, raw: "{bad"}
  remote:
    - {uid: u1, path: quiz, doc: {best: 3}}
steps:
  - bind: {path: quiz, defaults: {score: 0}}
  - write: {path: quiz, doc: {score: 1}}
  - advance: 200ms
  - fail_remote: writes
  - flush: true
  - logout: true
  - login: u2
assertions:
  - {type: state, query: cache.u1.quiz.score, equals: 1}
  - {type: trace_count, event: load, count: 1}
  - {type: trace_order, events: [bind, write]}
`))
	require.NoError(t, err)

	assert.Equal(t, "u1", s.Setup.Session)
	require.Len(t, s.Steps, 7)
	assert.Equal(t, "quiz", s.Steps[0].Bind.Path)
	assert.Equal(t, map[string]any{"score": 0}, s.Steps[0].Bind.Defaults)
	assert.Equal(t, "200ms", s.Steps[2].Advance)
	assert.Equal(t, FailWrites, s.Steps[3].FailRemote)
	assert.True(t, s.Steps[5].Logout)
	assert.Equal(t, "u2", s.Steps[6].Login)
	assert.Equal(t, 1, s.Assertions[0].Equals)
}

func TestParseScenario_Invalid(t *testing.T) {
	base := "name: n\ndescription: d\n"
	steps := "steps:\n  - bind: {path: quiz}\n"
	asserts := "assertions:\n  - {type: trace_count, event: load, count: 1}\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", base + steps + asserts + "extra: 1\n", "extra"},
		{"missing name", "description: d\n" + steps + asserts, "name is required"},
		{"missing description", "name: n\n" + steps + asserts, "description is required"},
		{"no steps", base + asserts, "steps list is required"},
		{"no assertions", base + steps, "assertions list is required"},
		{"two actions", base + "steps:\n  - {login: u1, logout: true}\n" + asserts, "exactly one action"},
		{"empty step", base + "steps:\n  - {}\n" + asserts, "exactly one action"},
		{"bad duration", base + "steps:\n  - advance: soon\n" + asserts, "advance"},
		{"bad fail mode", base + "steps:\n  - fail_remote: sometimes\n" + asserts, "fail_remote"},
		{"empty bind path", base + "steps:\n  - bind: {path: \"\"}\n" + asserts, "bind.path"},
		{"seed without doc", base + "setup:\n  cache:\n    - {scope: anon, path: p}\n" + steps + asserts, "doc or raw"},
		{"unknown assertion", base + steps + "assertions:\n  - {type: magic}\n", "unknown assertion type"},
		{"state without query", base + steps + "assertions:\n  - {type: state, equals: 1}\n", "query is required"},
		{"state without expectation", base + steps + "assertions:\n  - {type: state, query: a}\n", "equals or absent"},
		{"state with both", base + steps + "assertions:\n  - {type: state, query: a, equals: 1, absent: true}\n", "mutually exclusive"},
		{"count without event", base + steps + "assertions:\n  - {type: trace_count, count: 1}\n", "event is required"},
		{"order without events", base + steps + "assertions:\n  - {type: trace_order}\n", "events list is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
