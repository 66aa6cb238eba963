package docsync

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qwsync/internal/auth"
	"github.com/roach88/qwsync/internal/clock"
	"github.com/roach88/qwsync/internal/metrics"
)

// Default windows and timeouts.
const (
	DefaultCacheWindow   = 200 * time.Millisecond
	DefaultRemoteWindow  = 400 * time.Millisecond
	DefaultReadyTimeout  = 10 * time.Second
	DefaultRemoteTimeout = 30 * time.Second
)

// Config tunes the sync layer. Zero values select defaults.
type Config struct {
	// CacheWindow is the quiescence window before a cache write.
	CacheWindow time.Duration

	// RemoteWindow is the quiescence window before a remote merge-write.
	RemoteWindow time.Duration

	// Gate, when set, must open before Bind reads anything.
	Gate *Gate

	// ReadyTimeout bounds the wait for Gate. When it elapses Bind proceeds
	// with cache-only data and logs a warning. Negative waits forever.
	ReadyTimeout time.Duration

	// RemoteTimeout bounds each remote call made off the caller's context.
	RemoteTimeout time.Duration

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// IDs names bindings in log records. Default UUIDv7Generator.
	IDs IDGenerator
}

func (c Config) withDefaults() Config {
	if c.CacheWindow <= 0 {
		c.CacheWindow = DefaultCacheWindow
	}
	if c.RemoteWindow <= 0 {
		c.RemoteWindow = DefaultRemoteWindow
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IDs == nil {
		c.IDs = UUIDv7Generator{}
	}
	return c
}

// gateTimeout is the timeout passed to Gate.WaitClock, where zero means no
// limit.
func (c Config) gateTimeout() time.Duration {
	if c.ReadyTimeout < 0 {
		return 0
	}
	return c.ReadyTimeout
}

// Sessions reports the signed-in user. *auth.Notifier implements it.
type Sessions interface {
	UserID() string
}

// AuthSource is a Sessions that also publishes transitions.
// *auth.Notifier implements it.
type AuthSource interface {
	Sessions
	Subscribe(fn func(auth.Event)) *auth.Subscription
}

// IDGenerator generates binding ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
