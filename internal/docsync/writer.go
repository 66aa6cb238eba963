package docsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/debounce"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/remote"
)

// Writer debounces document writes per path into the cache and the remote
// store.
//
// Thread-safety: Write, Flush and Close are safe for concurrent use.
type Writer struct {
	cache    *cache.Store
	remote   remote.Store
	sessions Sessions
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	cacheDebounce  *debounce.Debouncer[string]
	remoteDebounce *debounce.Debouncer[string]

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWriter creates a writer. A nil remote disables remote writes; values are
// then only cached.
func NewWriter(c *cache.Store, r remote.Store, sessions Sessions, cfg Config) *Writer {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		cache:          c,
		remote:         r,
		sessions:       sessions,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		timeout:        cfg.RemoteTimeout,
		cacheDebounce:  debounce.New[string](cfg.Clock, cfg.CacheWindow),
		remoteDebounce: debounce.New[string](cfg.Clock, cfg.RemoteWindow),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Write requests that d be persisted for path.
//
// The cache scope is fixed now, from the session active at call time. The
// remote target is resolved when the remote window elapses, so a login that
// lands before then still reaches the remote store.
func (w *Writer) Write(path string, d doc.Document) {
	path = doc.SanitizePath(path)
	value := d.Clone()
	scope := doc.ScopeFor(w.sessions.UserID())

	w.cacheDebounce.Trigger(path, func() {
		w.writeCache(scope, path, value)
	})
	if w.remote != nil {
		w.remoteDebounce.Trigger(path, func() {
			w.writeRemote(path, value)
		})
	}
}

// Pending reports whether path has a cache or remote write waiting.
func (w *Writer) Pending(path string) bool {
	path = doc.SanitizePath(path)
	return w.cacheDebounce.Pending(path) || w.remoteDebounce.Pending(path)
}

// Flush performs every pending write now. Cache writes run before remote
// writes so a failed remote fallback is not overwritten by a stale cache
// write.
func (w *Writer) Flush() {
	w.cacheDebounce.Flush()
	w.remoteDebounce.Flush()
}

// Close drops pending writes and waits for in-flight writes to finish.
// Call Flush first to keep them.
func (w *Writer) Close() {
	w.cacheDebounce.Close()
	w.remoteDebounce.Close()
	w.cancel()
}

func (w *Writer) writeCache(scope, path string, d doc.Document) {
	if err := w.cache.Write(w.ctx, scope, path, d); err != nil {
		w.logger.Warn("cache write failed; keeping previous value",
			"scope", scope, "path", path, "error", err)
		return
	}
	w.logger.Debug("cache write", "scope", scope, "path", path)
}

func (w *Writer) writeRemote(path string, d doc.Document) {
	uid := w.sessions.UserID()
	if uid == "" {
		w.metrics.RemoteWrite(metrics.ResultSkipped)
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	err := w.remote.MergeWrite(ctx, uid, path, d)
	if err == nil {
		w.metrics.RemoteWrite(metrics.ResultOK)
		w.logger.Debug("remote write", "uid", uid, "path", path)
		return
	}

	w.metrics.RemoteWrite(metrics.ResultFallback)
	w.logger.Warn("remote write failed; caching under user scope",
		"uid", uid, "path", path, "error", err)
	if err := w.cache.Write(w.ctx, uid, path, d); err != nil {
		w.logger.Warn("fallback cache write failed", "uid", uid, "path", path, "error", err)
	}
}
