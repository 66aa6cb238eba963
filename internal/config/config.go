// Package config loads the qwsync YAML configuration file.
//
// Every field is optional; Load fills gaps from Default and command-line
// flags override the result.
//
//	cache_db: ~/.qwsync/cache.db
//	session:
//	  uid: u1
//	  token: eyJ...
//	remote:
//	  url: http://localhost:8080
//	  retry_max: 3
//	  timeout: 10s
//	  ready_timeout: 10s
//	sync:
//	  cache_window: 200ms
//	  remote_window: 400ms
//	server:
//	  db: server.db
//	  listen: :8080
//	  secret: change-me
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qwsync/internal/auth"
)

// Config is the file format.
type Config struct {
	CacheDB string        `yaml:"cache_db"`
	Session SessionConfig `yaml:"session"`
	Remote  RemoteConfig  `yaml:"remote"`
	Sync    SyncConfig    `yaml:"sync"`
	Server  ServerConfig  `yaml:"server"`
}

// SessionConfig is the signed-in user, if any.
type SessionConfig struct {
	UID   string `yaml:"uid"`
	Token string `yaml:"token"`
}

// RemoteConfig locates the document server. An empty URL runs cache-only.
type RemoteConfig struct {
	URL          string        `yaml:"url"`
	RetryMax     int           `yaml:"retry_max"`
	Timeout      time.Duration `yaml:"timeout"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// SyncConfig holds the debounce windows.
type SyncConfig struct {
	CacheWindow  time.Duration `yaml:"cache_window"`
	RemoteWindow time.Duration `yaml:"remote_window"`
}

// ServerConfig configures `qwsync serve`.
type ServerConfig struct {
	DB     string `yaml:"db"`
	Listen string `yaml:"listen"`
	Secret string `yaml:"secret"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CacheDB: "qwsync.db",
		Remote: RemoteConfig{
			RetryMax:     3,
			Timeout:      10 * time.Second,
			ReadyTimeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			CacheWindow:  200 * time.Millisecond,
			RemoteWindow: 400 * time.Millisecond,
		},
		Server: ServerConfig{
			DB:     "qwsync-server.db",
			Listen: ":8080",
		},
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document does not set.
// Unknown fields are rejected.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.CacheDB == "" {
		return errors.New("cache_db must not be empty")
	}
	if c.Sync.CacheWindow <= 0 {
		return fmt.Errorf("sync.cache_window must be positive, got %s", c.Sync.CacheWindow)
	}
	if c.Sync.RemoteWindow <= 0 {
		return fmt.Errorf("sync.remote_window must be positive, got %s", c.Sync.RemoteWindow)
	}
	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote.url %q must be an http(s) URL", c.Remote.URL)
		}
	}
	if c.Remote.RetryMax < -1 {
		return fmt.Errorf("remote.retry_max must be -1 (disabled) or more, got %d", c.Remote.RetryMax)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative, got %s", c.Remote.Timeout)
	}
	if c.Session.Token != "" && c.Session.UID == "" {
		return errors.New("session.token requires session.uid")
	}
	if c.Session.UID != "" {
		if err := auth.ValidateUserID(c.Session.UID); err != nil {
			return fmt.Errorf("session.uid: %w", err)
		}
	}
	return nil
}
