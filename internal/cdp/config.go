package cdp

import (
	"time"

	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds ExecuteCommand when no per-call timeout is
// given.
const DefaultCommandTimeout = 30 * time.Second

// DefaultPort is the conventional remote debugging port.
const DefaultPort = 9222

// DefaultEventQueueSize is the listener backlog at which a warning is
// logged.
const DefaultEventQueueSize = 1024

// Config holds handler configuration. Zero fields take their defaults.
type Config struct {
	Host     string
	Port     int
	TargetID string

	CommandTimeout time.Duration
	// EventQueueSize is the listener backlog that triggers a warning. The
	// backlog itself is unbounded so the receive loop never waits on
	// listeners.
	EventQueueSize int
	// ReadLimit caps inbound frame size for the default dialer.
	ReadLimit int64
	// PingInterval enables a websocket keepalive when positive. A failed
	// ping terminates the connection.
	PingInterval time.Duration

	Logger *zap.Logger

	// Resolver defaults to an HTTPResolver for Host.
	Resolver Resolver
	// Dialer defaults to WebSocketDialer(ReadLimit).
	Dialer Dialer
}

// DefaultConfig returns the default handler configuration.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		TargetID:       BrowserTarget,
		CommandTimeout: DefaultCommandTimeout,
		EventQueueSize: DefaultEventQueueSize,
		ReadLimit:      DefaultReadLimit,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.TargetID == "" {
		c.TargetID = def.TargetID
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = def.EventQueueSize
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Resolver == nil {
		c.Resolver = &HTTPResolver{Host: c.Host}
	}
	if c.Dialer == nil {
		c.Dialer = WebSocketDialer(c.ReadLimit)
	}
	return c
}
