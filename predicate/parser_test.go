package predicate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
)

func TestParse(t *testing.T) {
	cases := []struct {
		str  string
		node kvquery.Filter
		err  error
	}{
		{
			str:  ``,
			node: kvquery.AndOf(),
		},
		{
			str:  `abc=opq`,
			node: kvquery.Where("abc", kvquery.LookupExact, "opq"),
		},
		{
			str: `abc=opq and gender='male'`,
			node: kvquery.AndOf(
				kvquery.Where("abc", kvquery.LookupExact, "opq"),
				kvquery.Where("gender", kvquery.LookupExact, "male"),
			),
		},
		{
			str: `   id > 'key4' AND id <= 'key6' AND age >= 18`,
			node: kvquery.AndOf(
				kvquery.Where("id", kvquery.LookupGT, "key4"),
				kvquery.Where("id", kvquery.LookupLTE, "key6"),
				kvquery.Where("age", kvquery.LookupGTE, "18"),
			),
		},
		{
			str: `a=1 or b=2 and c=3`,
			node: kvquery.OrOf(
				kvquery.Where("a", kvquery.LookupExact, "1"),
				kvquery.AndOf(
					kvquery.Where("b", kvquery.LookupExact, "2"),
					kvquery.Where("c", kvquery.LookupExact, "3"),
				),
			),
		},
		{
			str: `(a=1 or b=2) and not (c != 3)`,
			node: kvquery.AndOf(
				kvquery.OrOf(
					kvquery.Where("a", kvquery.LookupExact, "1"),
					kvquery.Where("b", kvquery.LookupExact, "2"),
				),
				kvquery.Not(kvquery.Not(kvquery.Where("c", kvquery.LookupExact, "3"))),
			),
		},
		{
			str:  `ip startswith '10.'`,
			node: kvquery.Where("ip", kvquery.LookupStartsWith, "10."),
		},
		{
			str:  `host ICONTAINS "db"`,
			node: kvquery.Where("host", kvquery.LookupIContains, "db"),
		},
		{
			str:  `slice isnull true`,
			node: kvquery.Where("slice", kvquery.LookupIsNull, "true"),
		},
		{
			str:  `name exact 'x'`,
			node: kvquery.Where("name", kvquery.LookupExact, "x"),
		},
		{
			str:  `ip in ('10.0.0.1', '10.0.0.2')`,
			node: kvquery.Condition{Column: "ip", Lookup: kvquery.LookupIn, Values: []string{"10.0.0.1", "10.0.0.2"}},
		},
		{
			str:  `host =~/^db-[0-9]+/`,
			node: kvquery.Where("host", kvquery.LookupRegex, "^db-[0-9]+"),
		},
		{
			str:  `host !~/test/`,
			node: kvquery.Not(kvquery.Where("host", kvquery.LookupRegex, "test")),
		},
		{
			str: ` (t1='v1' and t2='v2'`,
			err: &errors.Error{
				Code: errors.EInvalid,
				Msg:  "extra ( seen",
			},
		},
		{
			str: ` (t1='v1' and t2='v2'))`,
			err: &errors.Error{
				Code: errors.EInvalid,
				Msg:  "extra ) seen",
			},
		},
		{
			str: `a near 'x'`,
			err: &errors.Error{
				Code: errors.EInvalidPredicateOp,
				Msg:  `unknown lookup "near" at position 2`,
			},
		},
	}
	for _, c := range cases {
		node, err := Parse(c.str)
		if diff := cmp.Diff(c.err, err); diff != "" {
			t.Errorf("%q: unexpected error -want/+got:\n%s", c.str, diff)
			continue
		}
		if c.err != nil {
			continue
		}
		if diff := cmp.Diff(c.node, node); diff != "" {
			t.Errorf("%q: unexpected node -want/+got:\n%s", c.str, diff)
		}
	}
}

func TestParse_InvalidCodes(t *testing.T) {
	cases := []struct {
		str  string
		code string
	}{
		{str: ` (t1='v1' and t2='v2') and (`, code: errors.EInvalid},
		{str: `a = `, code: errors.EInvalid},
		{str: `a = 1 b = 2`, code: errors.EInvalid},
		{str: `= 1`, code: errors.EInvalid},
		{str: `a in (1, `, code: errors.EInvalid},
		{str: `a in 1`, code: errors.EInvalid},
		{str: `a like 'x'`, code: errors.EInvalidPredicateOp},
	}
	for _, c := range cases {
		_, err := Parse(c.str)
		if err == nil {
			t.Errorf("%q: expected an error", c.str)
			continue
		}
		if got := errors.ErrorCode(err); got != c.code {
			t.Errorf("%q: unexpected code %q, exp %q", c.str, got, c.code)
		}
	}
}

func TestParse_BuildsPredicate(t *testing.T) {
	f, err := Parse(`id > 'key4' and id <= 'key6'`)
	if err != nil {
		t.Fatal(err)
	}
	root, err := Build(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected a single folded range, got %s", root)
	}
	if got, exp := root.String(), `(AND: (RANGE: "key4"<id<="key6"))`; got != exp {
		t.Fatalf("unexpected predicate: got %s, exp %s", got, exp)
	}
}
