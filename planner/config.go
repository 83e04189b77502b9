package planner

const (
	// DefaultMaxKeys caps the keys returned by a single scan.
	DefaultMaxKeys = 1000000
	// DefaultMaxColumns caps the columns returned per key.
	DefaultMaxColumns = 10000
)

// Config configures a Planner.
type Config struct {
	MaxKeys    int `toml:"max-keys"`
	MaxColumns int `toml:"max-columns"`
	// ParallelScans bounds how many pushdown scans of one compound run at
	// once. Values below 2 scan sequentially.
	ParallelScans int `toml:"parallel-scans"`
}

// NewConfig returns a Config with defaults.
func NewConfig() Config {
	return Config{
		MaxKeys:       DefaultMaxKeys,
		MaxColumns:    DefaultMaxColumns,
		ParallelScans: 1,
	}
}
