package merge_test

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/merge"
)

func rowsOf(keys ...string) []kvquery.Row {
	rows := make([]kvquery.Row, len(keys))
	for i, k := range keys {
		rows[i] = kvquery.Row{"id": k, "src": strconv.Itoa(i)}
	}
	return rows
}

func keysOf(rows []kvquery.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		exp  []string
	}{
		{name: "overlap", a: []string{"3", "1", "2", "4"}, b: []string{"1", "3", "6"}, exp: []string{"1", "3"}},
		{name: "disjoint", a: []string{"1", "2"}, b: []string{"3", "4"}, exp: []string{}},
		{name: "empty left", a: nil, b: []string{"1"}, exp: []string{}},
		{name: "empty right", a: []string{"1"}, b: nil, exp: []string{}},
		{name: "identical", a: []string{"2", "1"}, b: []string{"1", "2"}, exp: []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge.Intersect(rowsOf(tt.a...), rowsOf(tt.b...), "id")
			assert.Equal(t, tt.exp, keysOf(got))
		})
	}
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		exp  []string
	}{
		{name: "overlap", a: []string{"3", "1", "2", "4"}, b: []string{"1", "3", "6"}, exp: []string{"1", "2", "3", "4", "6"}},
		{name: "disjoint", a: []string{"4", "2"}, b: []string{"3", "1"}, exp: []string{"1", "2", "3", "4"}},
		{name: "empty left sorted", a: nil, b: []string{"3", "1", "2"}, exp: []string{"1", "2", "3"}},
		{name: "empty right sorted", a: []string{"3", "1", "2"}, b: nil, exp: []string{"1", "2", "3"}},
		{name: "both empty", exp: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge.Union(rowsOf(tt.a...), rowsOf(tt.b...), "id")
			assert.Equal(t, tt.exp, keysOf(got))
		})
	}
}

func TestUnion_KeepsLeftRowOnTie(t *testing.T) {
	a := []kvquery.Row{{"id": "1", "from": "a"}}
	b := []kvquery.Row{{"id": "1", "from": "b"}}
	got := merge.Union(a, b, "id")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0]["from"])
}

func TestCombine_Invalid(t *testing.T) {
	_, err := merge.Combine(merge.Op(0), nil, nil, "id")
	assert.Error(t, err)
}

func TestFold(t *testing.T) {
	got, err := merge.Fold(merge.Intersection, [][]kvquery.Row{
		rowsOf("1", "2", "3", "4"),
		rowsOf("4", "2", "3"),
		rowsOf("3", "2", "9"),
	}, "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, keysOf(got))

	got, err = merge.Fold(merge.UnionOp, nil, "id")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = merge.Fold(merge.UnionOp, [][]kvquery.Row{rowsOf("b", "a")}, "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keysOf(got))
}

// TestSetSemantics checks intersect and union against a map based model and
// that folding order does not change the resulting key set.
func TestSetSemantics(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	randomKeys := func() []string {
		n := r.Intn(20)
		seen := map[string]bool{}
		var keys []string
		for len(keys) < n {
			k := strconv.Itoa(r.Intn(30))
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		return keys
	}

	for i := 0; i < 200; i++ {
		a, b, c := randomKeys(), randomKeys(), randomKeys()

		inA, inB := map[string]bool{}, map[string]bool{}
		for _, k := range a {
			inA[k] = true
		}
		for _, k := range b {
			inB[k] = true
		}
		var expInter, expUnion []string
		for k := range inA {
			expUnion = append(expUnion, k)
			if inB[k] {
				expInter = append(expInter, k)
			}
		}
		for k := range inB {
			if !inA[k] {
				expUnion = append(expUnion, k)
			}
		}
		sort.Strings(expInter)
		sort.Strings(expUnion)

		assert.Equal(t, nonNil(expInter), keysOf(merge.Intersect(rowsOf(a...), rowsOf(b...), "id")))
		assert.Equal(t, nonNil(expUnion), keysOf(merge.Union(rowsOf(a...), rowsOf(b...), "id")))

		// commutative
		assert.Equal(t,
			keysOf(merge.Intersect(rowsOf(a...), rowsOf(b...), "id")),
			keysOf(merge.Intersect(rowsOf(b...), rowsOf(a...), "id")))
		assert.Equal(t,
			keysOf(merge.Union(rowsOf(a...), rowsOf(b...), "id")),
			keysOf(merge.Union(rowsOf(b...), rowsOf(a...), "id")))

		// associative
		assert.Equal(t,
			keysOf(merge.Union(merge.Union(rowsOf(a...), rowsOf(b...), "id"), rowsOf(c...), "id")),
			keysOf(merge.Union(rowsOf(a...), merge.Union(rowsOf(b...), rowsOf(c...), "id"), "id")))
		assert.Equal(t,
			keysOf(merge.Intersect(merge.Intersect(rowsOf(a...), rowsOf(b...), "id"), rowsOf(c...), "id")),
			keysOf(merge.Intersect(rowsOf(a...), merge.Intersect(rowsOf(b...), rowsOf(c...), "id"), "id")))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
