// Package docsync keeps logical documents in step between the local cache
// and the remote document store.
//
// ARCHITECTURE:
//
//   - Writer: two trailing debouncers per path. The cache write (short
//     window) always runs under the scope captured at request time. The
//     remote merge-write (longer window) resolves the session when it fires
//     and is skipped while anonymous; if it fails, the value is cached under
//     the signed-in user's scope instead.
//   - Migrator: on login, copies anonymous cache entries into the user's
//     remote namespace and removes each entry once its merge-write succeeds.
//   - Binder: runs the load → hydrate → listen lifecycle for one path and
//     delivers every state change through a caller-supplied onLoad callback.
//
// Single-Writer Event Loop:
// Each Binding owns one goroutine that processes hydration, auth transitions
// and barriers in FIFO order. The first onLoad call happens inside Bind,
// before the loop starts; every later call happens on the loop goroutine, so
// callbacks never run concurrently for one binding.
//
// ERROR HANDLING:
// Nothing in this package surfaces storage or network failures to onLoad
// callers. Malformed cache entries read as absent, remote failures leave the
// cached value in place, and every absorbed failure is logged.
package docsync
