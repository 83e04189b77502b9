// Package ordering sorts rows in memory by several columns, each ascending
// or descending.
package ordering

import (
	"sort"
	"strconv"
	"strings"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
)

// Key is a single sort column.
type Key struct {
	Column     string
	Descending bool
}

func (k Key) String() string {
	if k.Descending {
		return "-" + k.Column
	}
	return k.Column
}

// Spec is an ordered list of sort keys. The first key whose values differ
// decides the order of two rows.
type Spec []Key

func (s Spec) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

// Validate returns an EInvalidSortSpec error for an empty spec or a key
// without a column.
func (s Spec) Validate() error {
	if len(s) == 0 {
		return &errors.Error{
			Code: errors.EInvalidSortSpec,
			Msg:  "sort spec must contain at least one key",
		}
	}
	for i, k := range s {
		if k.Column == "" {
			return &errors.Error{
				Code: errors.EInvalidSortSpec,
				Msg:  "sort key " + strconv.Itoa(i) + " has no column",
			}
		}
	}
	return nil
}

// Ascending returns a single-key ascending spec on column.
func Ascending(column string) Spec {
	return Spec{{Column: column}}
}

// ParseSpec converts field names into a Spec. A leading "-" sorts that field
// descending. aliases, which may be nil, maps field names to column names.
func ParseSpec(fields []string, aliases map[string]string) (Spec, error) {
	spec := make(Spec, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		var k Key
		if strings.HasPrefix(f, "-") {
			k.Descending = true
			f = f[1:]
		}
		if c, ok := aliases[f]; ok {
			f = c
		}
		k.Column = f
		spec = append(spec, k)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Compare orders a and b under spec. A missing value sorts before every
// present value.
func Compare(a, b kvquery.Row, spec Spec) int {
	for _, k := range spec {
		c := compareValues(a, b, k.Column)
		if c == 0 {
			continue
		}
		if k.Descending {
			return -c
		}
		return c
	}
	return 0
}

func compareValues(a, b kvquery.Row, column string) int {
	av, aok := a[column]
	bv, bok := b[column]
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return strings.Compare(av, bv)
}

// Sort stably sorts rows in place. Rows with equal keys keep their relative
// order.
func Sort(rows []kvquery.Row, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return Compare(rows[i], rows[j], spec) < 0
	})
	return nil
}
