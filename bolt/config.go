package bolt

import (
	"path/filepath"
	"time"
)

// DefaultFilename is the database file created under a data directory.
const DefaultFilename = "kvquery.bolt"

// Config configures a boltdb backed store.
type Config struct {
	// Path is the database file.
	Path string `toml:"path"`
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration `toml:"timeout"`
	// NoSync skips fsync after each commit.
	NoSync bool `toml:"no-sync"`
}

// NewConfig returns a Config with defaults for a database under dir.
func NewConfig(dir string) Config {
	return Config{
		Path:    filepath.Join(dir, DefaultFilename),
		Timeout: time.Second,
	}
}
