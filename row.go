// Package kvquery plans and executes filter trees against a key/value store
// that can only scan contiguous key ranges, look up single keys and scan a
// single-column secondary index for equality.
package kvquery

import "sort"

// Null is the stored representation of an explicit null column value.
// Columns holding Null are dropped when rows are decoded, so they read back
// exactly like columns that were never written.
const Null = "\b"

// Row is a sparse mapping from column name to value. A missing column is
// null. Exactly one column holds the primary key; its name is supplied by
// the caller through ColumnFamily.PKColumn.
type Row map[string]string

// Get returns the value of column and whether it is present.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// Columns returns the column names of r in ascending order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// KeySlice is a single key together with the live columns stored under it,
// as returned by the store. A KeySlice with no columns is a tombstone.
type KeySlice struct {
	Key     string
	Columns Row
}

// IsTombstone reports whether the slice has no surviving columns.
func (s KeySlice) IsTombstone() bool {
	return len(s.Columns) == 0
}

// ToRow converts a key slice into a Row with the primary key column set.
// Explicit nulls are dropped. Tombstones yield (nil, false).
func (s KeySlice) ToRow(pkColumn string) (Row, bool) {
	if s.IsTombstone() {
		return nil, false
	}

	row := make(Row, len(s.Columns)+1)
	for c, v := range s.Columns {
		if v == Null {
			continue
		}
		row[c] = v
	}
	row[pkColumn] = s.Key
	return row, true
}

// RowsFromSlices converts key slices into rows, skipping tombstones and
// duplicate keys. The first occurrence of a key wins.
func RowsFromSlices(slices []KeySlice, pkColumn string) []Row {
	rows := make([]Row, 0, len(slices))
	seen := make(map[string]struct{}, len(slices))
	for _, s := range slices {
		if _, ok := seen[s.Key]; ok {
			continue
		}
		row, ok := s.ToRow(pkColumn)
		if !ok {
			continue
		}
		seen[s.Key] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}
