package docsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultCacheWindow, cfg.CacheWindow)
	assert.Equal(t, DefaultRemoteWindow, cfg.RemoteWindow)
	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout)
	assert.Equal(t, DefaultRemoteTimeout, cfg.RemoteTimeout)
	assert.NotNil(t, cfg.Clock)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.IDs)
}

func TestConfig_DefaultsAreIdempotent(t *testing.T) {
	tests := []struct {
		name  string
		ready time.Duration
		gate  time.Duration
	}{
		{"unset", 0, DefaultReadyTimeout},
		{"wait forever", -1, 0},
		{"explicit", 3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Config{ReadyTimeout: tt.ready}.withDefaults()
			twice := once.withDefaults()

			assert.Equal(t, once.ReadyTimeout, twice.ReadyTimeout)
			assert.Equal(t, tt.gate, once.gateTimeout())
			assert.Equal(t, tt.gate, twice.gateTimeout())
		})
	}
}
