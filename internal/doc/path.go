package doc

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AnonymousScope is the cache scope used while no user is signed in.
const AnonymousScope = "anon"

// CacheKeyPrefix prefixes every cache key.
const CacheKeyPrefix = "qw_cache"

// PagesCollection is the fixed collection segment of remote paths.
const PagesCollection = "pages"

// SanitizePath maps a logical path onto the [a-zA-Z0-9:_-] alphabet.
// The input is NFC normalized first, then each rune outside the alphabet is
// replaced with a single underscore.
//
// SanitizePath is idempotent.
func SanitizePath(path string) string {
	path = norm.NFC.String(path)
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		if isPathRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isPathRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ':', r == '_', r == '-':
		return true
	}
	return false
}

// ScopeFor returns the cache scope for a user id, or AnonymousScope when the
// id is empty.
func ScopeFor(userID string) string {
	if userID == "" {
		return AnonymousScope
	}
	return userID
}

// CacheKey formats the cache key for a (scope, path) pair.
// The path is sanitized; the scope is used verbatim.
func CacheKey(scope, path string) string {
	return CacheKeyPrefix + ":" + scope + ":" + SanitizePath(path)
}

// RemotePath formats the hierarchical remote resource name for a document.
func RemotePath(userID, path string) string {
	return "users/" + userID + "/" + PagesCollection + "/" + SanitizePath(path)
}
