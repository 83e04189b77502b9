package kvquery

import "context"

// DefaultCompoundKeySeparator joins compound key field values.
const DefaultCompoundKeySeparator = "|"

// ColumnFamily describes a named collection of rows: which column holds the
// primary key and which columns carry a secondary index.
type ColumnFamily struct {
	Name     string   `toml:"name" yaml:"name"`
	PKColumn string   `toml:"pk-column" yaml:"pk-column"`
	Indexed  []string `toml:"indexed" yaml:"indexed"`
	// CompoundKey, when set, derives the primary key of inserted rows from
	// the values of several columns.
	CompoundKey *CompoundKey `toml:"compound-key" yaml:"compound-key"`
}

// IsIndexed reports whether column has a secondary index.
func (cf ColumnFamily) IsIndexed(column string) bool {
	for _, c := range cf.Indexed {
		if c == column {
			return true
		}
	}
	return false
}

// CompoundKey lists the fields joined, in order, to form a primary key.
type CompoundKey struct {
	Fields    []string `toml:"fields" yaml:"fields"`
	Separator string   `toml:"separator" yaml:"separator"`
}

// Sep returns the configured separator or the default one.
func (k *CompoundKey) Sep() string {
	if k.Separator == "" {
		return DefaultCompoundKeySeparator
	}
	return k.Separator
}

// KeyRange bounds a contiguous key scan. Both bounds are inclusive and a nil
// bound leaves that side open.
type KeyRange struct {
	Start *string
	End   *string
}

// ScanLimits caps the number of keys returned by a scan and the number of
// columns returned per key.
type ScanLimits struct {
	MaxKeys    int
	MaxColumns int
}

// Mutation is a batched upsert of named columns under a single key.
type Mutation struct {
	Key     string
	Columns Row
}

// Store is the set of primitive operations the engine plans against. Every
// scan returns key slices in no particular order; tombstoned keys may be
// returned with no columns.
type Store interface {
	// ScanRange returns the keys between r.Start and r.End inclusive.
	ScanRange(ctx context.Context, cf string, r KeyRange, limits ScanLimits) ([]KeySlice, error)
	// GetPoint fetches a single key. The bool result is false when the key
	// does not exist.
	GetPoint(ctx context.Context, cf string, key string, maxColumns int) (KeySlice, bool, error)
	// ScanIndex returns the keys whose indexed column equals value.
	ScanIndex(ctx context.Context, cf, column, value string, limits ScanLimits) ([]KeySlice, error)
	// ScanAll returns every key of the column family.
	ScanAll(ctx context.Context, cf string, limits ScanLimits) ([]KeySlice, error)
	// Write upserts the columns of every mutation at timestamp ts. The batch
	// either fully succeeds or is reported as failed.
	Write(ctx context.Context, cf string, mutations []Mutation, ts uint64) error
	// Delete removes every key at timestamp ts.
	Delete(ctx context.Context, cf string, keys []string, ts uint64) error
}
