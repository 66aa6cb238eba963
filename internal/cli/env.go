package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/docsync"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/remote"
	"github.com/roach88/qwsync/internal/store"
)

// syncEnv is the client side of the sync layer assembled from settings.
type syncEnv struct {
	db       *store.Store
	cache    *cache.Store
	notifier *auth.Notifier
	remote   remote.Store // nil when running cache-only
	gate     *docsync.Gate
	binder   *docsync.Binder
	registry *prometheus.Registry
	logger   *slog.Logger

	cancel context.CancelFunc
	probed chan struct{}
}

// openEnv opens the cache, signs in the configured session and, when a
// remote URL is set, starts probing the server. The readiness gate opens
// once the server answers; Bind waits for it up to remote.ready_timeout.
func openEnv(ctx context.Context, opts *RootOptions) (*syncEnv, error) {
	cfg := opts.Config
	logger := opts.Logger

	db, err := store.Open(cfg.CacheDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open cache", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "register metrics", err)
	}

	env := &syncEnv{
		db:       db,
		cache:    cache.New(db, cache.WithLogger(logger), cache.WithMetrics(m)),
		notifier: auth.NewNotifier(),
		registry: registry,
		logger:   logger,
		probed:   make(chan struct{}),
	}
	if cfg.Session.UID != "" {
		if err := env.notifier.Login(auth.Session{UserID: cfg.Session.UID, Token: cfg.Session.Token}); err != nil {
			db.Close()
			return nil, WrapExitError(ExitCommandError, "sign in", err)
		}
	}

	probeCtx, cancel := context.WithCancel(ctx)
	env.cancel = cancel

	syncCfg := docsync.Config{
		CacheWindow:   cfg.Sync.CacheWindow,
		RemoteWindow:  cfg.Sync.RemoteWindow,
		ReadyTimeout:  cfg.Remote.ReadyTimeout,
		RemoteTimeout: cfg.Remote.Timeout,
		Logger:        logger,
		Metrics:       m,
	}

	if cfg.Remote.URL != "" {
		client, err := remote.NewHTTPClient(cfg.Remote.URL, env.notifier, remote.HTTPOptions{
			RetryMax: cfg.Remote.RetryMax,
			Timeout:  cfg.Remote.Timeout,
			Logger:   logger,
		})
		if err != nil {
			cancel()
			db.Close()
			return nil, WrapExitError(ExitCommandError, "configure remote", err)
		}
		env.remote = client
		env.gate = docsync.NewGate()
		syncCfg.Gate = env.gate

		go func() {
			defer close(env.probed)
			if err := client.WaitReady(probeCtx, cfg.Remote.ReadyTimeout); err != nil {
				logger.Warn("document server not reachable", "url", cfg.Remote.URL, "error", err)
				return
			}
			env.gate.Open()
		}()
	} else {
		close(env.probed)
	}

	env.binder = docsync.NewBinder(env.cache, env.remote, env.notifier, syncCfg)
	return env, nil
}

// remoteReady reports whether the server answered the readiness probe.
func (e *syncEnv) remoteReady() bool {
	return e.remote != nil && e.gate.IsOpen()
}

// Close flushes pending writes and releases resources.
func (e *syncEnv) Close() error {
	e.binder.Writer().Flush()
	e.binder.Close()
	e.cancel()
	<-e.probed
	e.logCounters()
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}

// logCounters writes every non-zero sync counter at debug level.
func (e *syncEnv) logCounters() {
	families, err := e.registry.Gather()
	if err != nil {
		e.logger.Debug("gather sync counters", "error", err)
		return
	}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			attrs := []any{"metric", fam.GetName(), "value", value}
			for _, l := range m.GetLabel() {
				attrs = append(attrs, l.GetName(), l.GetValue())
			}
			e.logger.Debug("sync counter", attrs...)
		}
	}
}
