package config

import (
	"time"

	"github.com/haasonsaas/agentcore/internal/ratelimit"
)

// ServerConfig hosts the remote editor protocol listener.
type ServerConfig struct {
	// Addr is the listen address for the websocket transport.
	Addr string `yaml:"addr"`

	// Path is the HTTP path the websocket upgrades on.
	Path string `yaml:"path"`

	// MaxSessions caps concurrently open sessions per connection.
	MaxSessions int `yaml:"max_sessions"`

	// RateLimit bounds requests per session.
	RateLimit ratelimit.Config `yaml:"rate_limit"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures bearer-token authentication on initialize.
type AuthConfig struct {
	// Secret is the HMAC secret tokens are signed with. Empty disables
	// authentication (local use only).
	Secret string `yaml:"secret"`

	// TokenExpiry bounds issued token lifetime.
	TokenExpiry time.Duration `yaml:"token_expiry"`
}
