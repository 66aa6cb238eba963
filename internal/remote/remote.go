// Package remote is the client side of the per-user document hierarchy
// users/{uid}/pages/{path}.
//
// Every implementation of Store reports failures with the same taxonomy:
//   - ErrNotFound: the document does not exist (callers treat it as empty)
//   - *NetworkError: the backend could not be reached or refused the request
//     (callers fall back to the local cache)
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/qwsync/internal/doc"
)

// Store reads and merge-writes remote documents.
type Store interface {
	// Get returns the document at users/{uid}/pages/{path}.
	Get(ctx context.Context, uid, path string) (doc.Document, error)

	// MergeWrite shallow-merges d into the stored document, creating it if
	// needed. Fields absent from d are preserved.
	MergeWrite(ctx context.Context, uid, path string, d doc.Document) error
}

// ErrNotFound reports a missing remote document.
var ErrNotFound = errors.New("remote document not found")

// NetworkError reports a remote operation that did not complete.
type NetworkError struct {
	// Op is "get" or "merge".
	Op string

	// Path is the remote resource name.
	Path string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	Err error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s %s: status %d: %v", e.Op, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNetwork reports whether err is or wraps a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
