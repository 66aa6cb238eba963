package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/qwsync/internal/doc"
)

// Memory is an in-process Store. Documents are kept encoded, so values read
// back look exactly like values from a real backend.
//
// Failures can be injected with FailGets and FailWrites.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Memory struct {
	mu        sync.Mutex
	docs      map[string][]byte
	getErr    error
	writeErr  error
	getCalls  int
	writeCall int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, uid, path string) (doc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{Op: "get", Path: doc.RemotePath(uid, path), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	name := doc.RemotePath(uid, path)
	if m.getErr != nil {
		return nil, &NetworkError{Op: "get", Path: name, Err: m.getErr}
	}
	data, ok := m.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Decode(data)
}

// MergeWrite implements Store.
func (m *Memory) MergeWrite(ctx context.Context, uid, path string, d doc.Document) error {
	name := doc.RemotePath(uid, path)
	if err := ctx.Err(); err != nil {
		return &NetworkError{Op: "merge", Path: name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCall++

	if m.writeErr != nil {
		return &NetworkError{Op: "merge", Path: name, Err: m.writeErr}
	}

	existing := doc.Document{}
	if data, ok := m.docs[name]; ok {
		var err error
		if existing, err = doc.Decode(data); err != nil {
			return err
		}
	}
	data, err := doc.Encode(doc.Merge(existing, d))
	if err != nil {
		return err
	}
	m.docs[name] = data
	return nil
}

// Put replaces a document wholesale. Used to seed test fixtures.
func (m *Memory) Put(uid, path string, d doc.Document) error {
	data, err := doc.Encode(d)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.RemotePath(uid, path)] = data
	return nil
}

// Document returns the stored document without counting a Get call.
func (m *Memory) Document(uid, path string) (doc.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[doc.RemotePath(uid, path)]
	if !ok {
		return nil, false
	}
	d, err := doc.Decode(data)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Snapshot returns every stored document keyed by remote path.
func (m *Memory) Snapshot() map[string]doc.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]doc.Document, len(m.docs))
	for name, data := range m.docs {
		if d, err := doc.Decode(data); err == nil {
			out[name] = d
		}
	}
	return out
}

// FailGets makes every subsequent Get fail with a NetworkError wrapping err.
// Passing nil restores normal behavior.
func (m *Memory) FailGets(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailWrites makes every subsequent MergeWrite fail with a NetworkError
// wrapping err. Passing nil restores normal behavior.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Calls returns the number of Get and MergeWrite calls so far.
func (m *Memory) Calls() (gets, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls, m.writeCall
}

// ErrOffline is a convenient error for FailGets/FailWrites.
var ErrOffline = errors.New("offline")
