package webclient

import "time"

const (
	DefaultTimeout      = 60 * time.Second
	DefaultMaxBodyBytes = 64 << 20
)

// Config controls the net/http backed client.
type Config struct {
	// Timeout bounds one whole request including reading the body.
	Timeout      time.Duration `mapstructure:"timeout"`
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// UserAgent is sent on every request when non-empty.
	UserAgent    string        `mapstructure:"user_agent"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}
