package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "flashcards", "flashcards"},
		{"quiz code", "quiz:ABC123", "quiz:ABC123"},
		{"allowed punctuation", "a_b-c:d", "a_b-c:d"},
		{"spaces and slashes", "my deck/1", "my_deck_1"},
		{"dots", "settings.v2", "settings_v2"},
		{"multibyte rune maps to one underscore", "café", "caf_"},
		{"decomposed accent normalizes first", "cafe\u0301", "caf_"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePath(tt.in))
		})
	}
}

func TestSanitizePath_Idempotent(t *testing.T) {
	for _, in := range []string{"quiz:abc", "a b c", "ü/ö", "x..y"} {
		once := SanitizePath(in)
		assert.Equal(t, once, SanitizePath(once), "input %q", in)
	}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "qw_cache:anon:quiz:abc", CacheKey(AnonymousScope, "quiz:abc"))
	assert.Equal(t, "qw_cache:u1:my_deck", CacheKey("u1", "my deck"))
}

func TestRemotePath(t *testing.T) {
	assert.Equal(t, "users/u1/pages/quiz:abc", RemotePath("u1", "quiz:abc"))
	assert.Equal(t, "users/u1/pages/a_b", RemotePath("u1", "a/b"))
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, AnonymousScope, ScopeFor(""))
	assert.Equal(t, "u1", ScopeFor("u1"))
}
