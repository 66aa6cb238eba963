package docsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/metrics"
	"github.com/roach88/qwsync/internal/remote"
)

// ErrInvalidPath is returned by Bind for a path that sanitizes to "".
var ErrInvalidPath = errors.New("invalid document path")

// ErrBindingClosed is returned by operations on a closed Binding.
var ErrBindingClosed = errors.New("binding closed")

// State is the lifecycle state of a Binding.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapping
	StateAnonymous
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Binder creates Bindings sharing one cache, remote store, auth source,
// writer and migrator.
type Binder struct {
	cache    *cache.Store
	remote   remote.Store
	auth     AuthSource
	writer   *Writer
	migrator *Migrator
	cfg      Config
}

// NewBinder creates a binder. A nil remote runs in cache-only mode: no
// hydration, no migration, no remote writes.
func NewBinder(c *cache.Store, r remote.Store, a AuthSource, cfg Config) *Binder {
	cfg = cfg.withDefaults()
	return &Binder{
		cache:    c,
		remote:   r,
		auth:     a,
		writer:   NewWriter(c, r, a, cfg),
		migrator: NewMigrator(c, r, cfg),
		cfg:      cfg,
	}
}

// Writer returns the shared debounced writer.
func (b *Binder) Writer() *Writer {
	return b.writer
}

// Migrator returns the shared migrator.
func (b *Binder) Migrator() *Migrator {
	return b.migrator
}

// Close drops pending writes. Call Writer().Flush() first to keep them.
func (b *Binder) Close() {
	b.writer.Close()
}

// Bind starts the lifecycle of one logical document.
//
// Before returning, Bind waits for the readiness gate (bounded by
// Config.ReadyTimeout), reads the cache for the current scope, merges it over
// defaults and calls onLoad with the result. When a user is signed in, a
// remote read is then queued; its result is merged over the last loaded
// value and delivered through onLoad. Later logins migrate this path and
// reload from the remote; logouts reload the anonymous cache.
//
// Bind returns an error only for an invalid path or a done ctx. Storage and
// network failures are logged and never reach the caller.
func (b *Binder) Bind(ctx context.Context, path string, onLoad func(doc.Document), defaults doc.Document) (*Binding, error) {
	sanitized := doc.SanitizePath(path)
	if sanitized == "" {
		return nil, fmt.Errorf("bind %q: %w", path, ErrInvalidPath)
	}
	if onLoad == nil {
		onLoad = func(doc.Document) {}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	bd := &Binding{
		id:       b.cfg.IDs.Generate(),
		path:     sanitized,
		binder:   b,
		onLoad:   onLoad,
		defaults: defaults.Clone(),
		queue:    newEventQueue(),
		state:    StateBootstrapping,
		ctx:      loopCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	bd.logger = b.cfg.Logger.With("binding", bd.id, "path", sanitized)

	if err := b.cfg.Gate.WaitClock(ctx, b.cfg.Clock, b.cfg.gateTimeout()); err != nil {
		if !errors.Is(err, ErrGateTimeout) {
			cancel()
			return nil, fmt.Errorf("bind %q: %w", sanitized, err)
		}
		bd.logger.Warn("remote not ready; continuing with cached data", "timeout", b.cfg.ReadyTimeout)
	}

	// Subscribe before reading the session so no transition is missed.
	bd.sub = b.auth.Subscribe(bd.onAuth)

	uid := b.auth.UserID()
	cached, _ := b.cache.Read(ctx, doc.ScopeFor(uid), sanitized)
	bd.deliver(doc.Merge(bd.defaults, cached), uid)

	if uid != "" && b.remote != nil {
		bd.queue.Enqueue(event{kind: eventHydrate, uid: uid})
	}

	go bd.run()
	return bd, nil
}

// Binding is one bound logical document.
type Binding struct {
	id       string
	path     string
	binder   *Binder
	onLoad   func(doc.Document)
	defaults doc.Document
	logger   *slog.Logger

	queue *eventQueue
	sub   *auth.Subscription

	mu    sync.Mutex
	state State
	last  doc.Document
	uid   string

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the binding id used in log records.
func (bd *Binding) ID() string {
	return bd.id
}

// Path returns the sanitized path.
func (bd *Binding) Path() string {
	return bd.path
}

// State returns the current lifecycle state.
func (bd *Binding) State() State {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	return bd.state
}

// Value returns a copy of the value most recently passed to onLoad.
func (bd *Binding) Value() doc.Document {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	return bd.last.Clone()
}

// Write is the write source for this document: it forwards d to the
// debounced writer. Callers need not debounce.
func (bd *Binding) Write(d doc.Document) error {
	if bd.State() == StateClosed {
		return ErrBindingClosed
	}
	bd.binder.writer.Write(bd.path, d)
	return nil
}

// Sync blocks until every event queued before the call has been processed.
func (bd *Binding) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !bd.queue.Enqueue(event{kind: eventBarrier, done: done}) {
		return ErrBindingClosed
	}
	select {
	case <-done:
		return nil
	case <-bd.done:
		return ErrBindingClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes from auth transitions and stops the event loop.
// Pending debounced writes are not affected. Safe to call more than once.
func (bd *Binding) Close() {
	bd.closeOnce.Do(func() {
		bd.sub.Unsubscribe()
		bd.queue.Close()
		bd.cancel()
		<-bd.done

		bd.mu.Lock()
		bd.state = StateClosed
		bd.mu.Unlock()
	})
}

func (bd *Binding) onAuth(ev auth.Event) {
	bd.queue.Enqueue(event{kind: eventAuth, uid: ev.UserID()})
}

// run is the binding's single-writer loop.
func (bd *Binding) run() {
	defer close(bd.done)

	for {
		if ev, ok := bd.queue.TryDequeue(); ok {
			bd.process(ev)
			continue
		}

		select {
		case <-bd.ctx.Done():
			return
		case _, open := <-bd.queue.Wait():
			if !open && bd.queue.Len() == 0 {
				return
			}
		}
	}
}

func (bd *Binding) process(ev event) {
	switch ev.kind {
	case eventHydrate:
		bd.hydrate(ev.uid)
	case eventAuth:
		if ev.uid != "" {
			bd.login(ev.uid)
		} else {
			bd.logout()
		}
	case eventBarrier:
		close(ev.done)
	}
}

// hydrate merges the remote document over the last loaded value.
func (bd *Binding) hydrate(uid string) {
	bd.mu.Lock()
	current := bd.uid
	bd.mu.Unlock()
	if current != uid {
		// A later auth transition superseded this bootstrap read.
		return
	}

	remoteDoc, ok := bd.fetch(uid)
	if !ok {
		return
	}

	bd.mu.Lock()
	next := doc.Merge(bd.last, remoteDoc)
	bd.mu.Unlock()
	bd.deliver(next, uid)
}

// login migrates this path's anonymous entry, then loads the remote document
// as authoritative.
func (bd *Binding) login(uid string) {
	bd.setUser(uid)
	if bd.binder.remote == nil {
		return
	}

	ctx, cancel := bd.remoteContext()
	bd.binder.migrator.Migrate(ctx, uid, []string{bd.path})
	cancel()

	remoteDoc, ok := bd.fetch(uid)
	if !ok {
		return
	}
	bd.deliver(remoteDoc, uid)
}

// logout reverts to the anonymous cache.
func (bd *Binding) logout() {
	cached, _ := bd.binder.cache.Read(bd.ctx, doc.AnonymousScope, bd.path)
	bd.deliver(doc.Merge(bd.defaults, cached), "")
}

func (bd *Binding) fetch(uid string) (doc.Document, bool) {
	ctx, cancel := bd.remoteContext()
	defer cancel()

	m := bd.binder.cfg.Metrics
	d, err := bd.binder.remote.Get(ctx, uid, bd.path)
	switch {
	case err == nil:
		m.RemoteRead(metrics.ResultOK)
		return d, true
	case remote.IsNotFound(err):
		m.RemoteRead(metrics.ResultNotFound)
		bd.logger.Debug("no remote document", "uid", uid)
	default:
		m.RemoteRead(metrics.ResultError)
		bd.logger.Warn("remote read failed; keeping cached data", "uid", uid, "error", err)
	}
	return nil, false
}

func (bd *Binding) remoteContext() (context.Context, context.CancelFunc) {
	timeout := bd.binder.cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return context.WithTimeout(bd.ctx, timeout)
}

func (bd *Binding) setUser(uid string) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	bd.uid = uid
	if uid == "" {
		bd.state = StateAnonymous
	} else {
		bd.state = StateAuthenticated
	}
}

// deliver records d as the latest value for uid's scope and calls onLoad.
func (bd *Binding) deliver(d doc.Document, uid string) {
	bd.setUser(uid)
	bd.mu.Lock()
	bd.last = d
	bd.mu.Unlock()

	bd.onLoad(d.Clone())
}
