// Package doc defines the logical document model shared by the cache, the
// remote store and the binder.
//
// A logical document is a JSON object identified by a sanitized path such as
// "flashcards", "settings" or "quiz:ABC123". Documents are stored under two
// derived names:
//
//   - cache key:   qw_cache:{scope}:{path}
//   - remote path: users/{uid}/pages/{path}
//
// where scope is either a user id or the literal anonymous scope "anon".
//
// # Encoding
//
// Encode produces compact JSON with sorted keys, no HTML escaping and NFC
// normalized strings, so the same logical value always yields the same bytes.
// Decode maps integral numbers to int64 and everything else to float64.
package doc
