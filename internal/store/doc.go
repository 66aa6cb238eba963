// Package store provides SQLite-backed durable storage for qwsync.
//
// One database file holds two tables:
//   - cache_entries: the client-side key-value cache (key → serialized document)
//   - documents: the server-side per-user document hierarchy (uid, path → body)
//
// Clients use cache_entries through internal/cache; the document server and
// remote.Local use documents. A single binary may use both in one file.
//
// # Ordering
//
// cache_entries.seq and documents.version are logical counters bumped on
// every write. They are never wall-clock timestamps and exist for listing
// and diagnostics only; last write wins.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema migrations are tracked with PRAGMA user_version.
package store
