package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/cache"
	"github.com/roach88/qwsync/internal/doc"
	"github.com/roach88/qwsync/internal/docsync"
	"github.com/roach88/qwsync/internal/remote"
	"github.com/roach88/qwsync/internal/store"
	"github.com/roach88/qwsync/internal/testutil"
)

// settleTimeout bounds the wait for bound documents after each step.
const settleTimeout = 5 * time.Second

// Harness is the scenario execution environment.
type Harness struct {
	store    *store.Store
	cache    *cache.Store
	remote   *remote.Memory
	notifier *auth.Notifier
	clock    *testutil.FakeClock
	binder   *docsync.Binder
	trace    *tracer

	bindings []*docsync.Binding
	byPath   map[string]*docsync.Binding

	mu    sync.Mutex
	loads map[string][]doc.Document
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fake clock
// starting at a fixed instant, so results are reproducible.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	h := &Harness{
		store:    st,
		cache:    cache.New(st, cache.WithLogger(logger)),
		remote:   remote.NewMemory(),
		notifier: auth.NewNotifier(),
		clock:    testutil.NewFakeClock(),
		trace:    &tracer{},
		byPath:   make(map[string]*docsync.Binding),
		loads:    make(map[string][]doc.Document),
	}
	h.binder = docsync.NewBinder(h.cache, &recordingRemote{inner: h.remote, trace: h.trace}, h.notifier, docsync.Config{
		Clock:  h.clock,
		Logger: logger,
		IDs:    testutil.NewSequentialIDGenerator("binding"),
	})
	defer h.close()

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	state, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}

	result := NewResult()
	result.Trace = h.trace.events()
	result.State = state
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) close() {
	for _, b := range h.bindings {
		b.Close()
	}
	h.binder.Close()
}

// seed writes the initial state without tracing it.
func (h *Harness) seed(ctx context.Context, setup Setup) error {
	for i, seed := range setup.Cache {
		path := doc.SanitizePath(seed.Path)
		if seed.Raw != "" {
			if err := h.store.PutEntry(ctx, doc.CacheKey(seed.Scope, path), seed.Raw); err != nil {
				return fmt.Errorf("cache[%d]: %w", i, err)
			}
			continue
		}
		d, err := doc.Normalize(seed.Doc)
		if err != nil {
			return fmt.Errorf("cache[%d]: %w", i, err)
		}
		if err := h.cache.Write(ctx, seed.Scope, path, d); err != nil {
			return fmt.Errorf("cache[%d]: %w", i, err)
		}
	}

	for i, seed := range setup.Remote {
		if err := h.remote.Put(seed.UID, doc.SanitizePath(seed.Path), seed.Doc); err != nil {
			return fmt.Errorf("remote[%d]: %w", i, err)
		}
	}

	if setup.Session != "" {
		return h.notifier.Login(session(setup.Session))
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.Bind != nil:
		return h.bind(ctx, step.Bind)

	case step.Write != nil:
		path := doc.SanitizePath(step.Write.Path)
		b, ok := h.byPath[path]
		if !ok {
			return fmt.Errorf("write: %q is not bound", path)
		}
		d, err := doc.Normalize(step.Write.Doc)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		h.trace.record(TraceEvent{Type: EventWrite, Path: path, Doc: encode(d)})
		return b.Write(d)

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		h.trace.record(TraceEvent{Type: EventAdvance, Detail: d.String()})
		h.clock.Advance(d)
		return nil

	case step.Login != "":
		h.trace.record(TraceEvent{Type: EventLogin, UID: step.Login})
		return h.notifier.Login(session(step.Login))

	case step.Logout:
		h.trace.record(TraceEvent{Type: EventLogout})
		h.notifier.Logout()
		return nil

	case step.FailRemote != "":
		h.trace.record(TraceEvent{Type: EventFailRemote, Detail: step.FailRemote})
		var gets, writes error
		switch step.FailRemote {
		case FailGets:
			gets = remote.ErrOffline
		case FailWrites:
			writes = remote.ErrOffline
		case FailAll:
			gets, writes = remote.ErrOffline, remote.ErrOffline
		}
		h.remote.FailGets(gets)
		h.remote.FailWrites(writes)
		return nil

	case step.Flush:
		h.trace.record(TraceEvent{Type: EventFlush})
		h.binder.Writer().Flush()
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) bind(ctx context.Context, step *BindStep) error {
	path := doc.SanitizePath(step.Path)
	if _, ok := h.byPath[path]; ok {
		return fmt.Errorf("bind: %q is already bound", path)
	}

	var defaults doc.Document
	if step.Defaults != nil {
		var err error
		if defaults, err = doc.Normalize(step.Defaults); err != nil {
			return fmt.Errorf("bind: %w", err)
		}
	}

	h.trace.record(TraceEvent{Type: EventBind, Path: path, Doc: encode(defaults)})
	b, err := h.binder.Bind(ctx, path, func(d doc.Document) { h.onLoad(path, d) }, defaults)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	h.bindings = append(h.bindings, b)
	h.byPath[path] = b
	return nil
}

func (h *Harness) onLoad(path string, d doc.Document) {
	h.mu.Lock()
	h.loads[path] = append(h.loads[path], d)
	h.mu.Unlock()
	h.trace.record(TraceEvent{Type: EventLoad, Path: path, Doc: encode(d)})
}

// settle waits until every binding has processed its queued events.
func (h *Harness) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	for _, b := range h.bindings {
		if err := b.Sync(ctx); err != nil {
			return fmt.Errorf("settle %s: %w", b.Path(), err)
		}
	}
	return nil
}

// snapshot renders the final state queried by state assertions.
func (h *Harness) snapshot(ctx context.Context) (json.RawMessage, error) {
	cached := map[string]map[string]any{}
	entries, err := h.store.ListEntries(ctx, doc.CacheKeyPrefix+":")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		scope, path, ok := strings.Cut(strings.TrimPrefix(e.Key, doc.CacheKeyPrefix+":"), ":")
		if !ok {
			continue
		}
		if cached[scope] == nil {
			cached[scope] = map[string]any{}
		}
		if d, err := doc.Decode([]byte(e.Value)); err == nil {
			cached[scope][path] = d
		} else {
			cached[scope][path] = e.Value
		}
	}

	remoteDocs := map[string]map[string]any{}
	for name, d := range h.remote.Snapshot() {
		// users/{uid}/pages/{path}
		parts := strings.Split(name, "/")
		if len(parts) != 4 {
			continue
		}
		uid, path := parts[1], parts[3]
		if remoteDocs[uid] == nil {
			remoteDocs[uid] = map[string]any{}
		}
		remoteDocs[uid][path] = d
	}

	h.mu.Lock()
	loads := make(map[string][]doc.Document, len(h.loads))
	for path, ds := range h.loads {
		loads[path] = append([]doc.Document(nil), ds...)
	}
	h.mu.Unlock()

	return json.Marshal(map[string]any{
		"cache":  cached,
		"remote": remoteDocs,
		"loads":  loads,
	})
}

func session(uid string) auth.Session {
	return auth.Session{UserID: uid, Token: "token-" + uid}
}

// encode returns the canonical encoding of d, or nil for a nil document.
func encode(d doc.Document) json.RawMessage {
	if d == nil {
		return nil
	}
	data, err := doc.Encode(d)
	if err != nil {
		return nil
	}
	return data
}

// tracer collects trace events from the harness goroutine and from binding
// loops.
type tracer struct {
	mu   sync.Mutex
	list []TraceEvent
}

func (t *tracer) record(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev.Seq = len(t.list) + 1
	t.list = append(t.list, ev)
}

func (t *tracer) events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEvent{}, t.list...)
}

// recordingRemote traces every call reaching the remote store.
type recordingRemote struct {
	inner remote.Store
	trace *tracer
}

func (r *recordingRemote) Get(ctx context.Context, uid, path string) (doc.Document, error) {
	d, err := r.inner.Get(ctx, uid, path)
	ev := TraceEvent{Type: EventRemoteGet, UID: uid, Path: path, Outcome: outcome(err)}
	if err == nil {
		ev.Doc = encode(d)
	}
	r.trace.record(ev)
	return d, err
}

func (r *recordingRemote) MergeWrite(ctx context.Context, uid, path string, d doc.Document) error {
	err := r.inner.MergeWrite(ctx, uid, path, d)
	r.trace.record(TraceEvent{Type: EventRemoteMerge, UID: uid, Path: path, Doc: encode(d), Outcome: outcome(err)})
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case remote.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
