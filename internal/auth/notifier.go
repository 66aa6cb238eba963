// Package auth tracks the signed-in session and notifies subscribers of
// login and logout transitions.
//
// Sessions are owned by the caller: qwsync never authenticates a user itself,
// it only reacts to Login and Logout. Tokens are HS256 JWTs whose subject is
// the user id (see Issuer).
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/qwsync/internal/doc"
)

// Session is an authenticated user.
type Session struct {
	UserID string
	Token  string
}

// Event is delivered to subscribers on every auth transition.
// A nil Session means the user logged out.
type Event struct {
	Session *Session
}

// UserID returns the signed-in user id, or "" for a logout event.
func (e Event) UserID() string {
	if e.Session == nil {
		return ""
	}
	return e.Session.UserID
}

// ErrNoSession is returned by Token when no session matches.
var ErrNoSession = errors.New("no active session")

// ErrInvalidUserID is returned by Login for a user id that cannot name a
// cache scope.
var ErrInvalidUserID = errors.New("invalid user id")

// ValidateUserID checks that uid is usable as a cache scope. Scopes are
// joined into keys with ':' and "anon" is reserved for signed-out data.
func ValidateUserID(uid string) error {
	switch {
	case uid == "":
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	case uid == doc.AnonymousScope:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidUserID, uid)
	case strings.Contains(uid, ":"):
		return fmt.Errorf("%w: %q contains ':'", ErrInvalidUserID, uid)
	}
	return nil
}

// Notifier holds the current session and fans transitions out to
// subscribers.
//
// Subscribers are called synchronously, in subscription order, on the
// goroutine that called Login or Logout. They must not block; binders hand
// the event to their own event loop.
//
// Thread-safety: safe for concurrent use.
type Notifier struct {
	mu      sync.Mutex
	session *Session
	nextID  int
	subs    map[int]func(Event)
	order   []int
}

// NewNotifier creates a notifier with no active session.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Current returns the active session.
func (n *Notifier) Current() (Session, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session == nil {
		return Session{}, false
	}
	return *n.session, true
}

// UserID returns the active user id, or "" when anonymous.
func (n *Notifier) UserID() string {
	s, _ := n.Current()
	return s.UserID
}

// Login makes s the active session and notifies subscribers.
// Logging in again, even as the same user, notifies again.
func (n *Notifier) Login(s Session) error {
	if err := ValidateUserID(s.UserID); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	n.mu.Lock()
	n.session = &s
	n.mu.Unlock()

	copied := s
	n.publish(Event{Session: &copied})
	return nil
}

// Logout clears the active session and notifies subscribers.
func (n *Notifier) Logout() {
	n.mu.Lock()
	n.session = nil
	n.mu.Unlock()

	n.publish(Event{})
}

// Subscribe registers fn for every subsequent transition.
func (n *Notifier) Subscribe(fn func(Event)) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs[id] = fn
	n.order = append(n.order, id)
	return &Subscription{notifier: n, id: id}
}

// Subscribers returns the number of live subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Token implements remote.TokenSource. It returns the active session's token
// when the session belongs to uid.
func (n *Notifier) Token(uid string) (string, error) {
	s, ok := n.Current()
	if !ok || s.UserID != uid {
		return "", fmt.Errorf("token for %q: %w", uid, ErrNoSession)
	}
	return s.Token, nil
}

func (n *Notifier) publish(ev Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.order))
	for _, id := range n.order {
		if fn, ok := n.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (n *Notifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[id]; !ok {
		return
	}
	delete(n.subs, id)
	for i, other := range n.order {
		if other == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	notifier *Notifier
	id       int
	once     sync.Once
}

// Unsubscribe stops delivery to this subscriber. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.notifier.unsubscribe(s.id)
	})
}
