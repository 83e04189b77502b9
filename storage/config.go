package storage

import "time"

// DefaultDialTimeout bounds opening a session.
const DefaultDialTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// DialTimeout bounds each attempt to open a session. Zero disables it.
	DialTimeout time.Duration `toml:"dial-timeout"`
}

// NewConfig returns a Config with defaults.
func NewConfig() Config {
	return Config{
		DialTimeout: DefaultDialTimeout,
	}
}
