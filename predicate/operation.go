package predicate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
)

// Operation is a comparison the store cannot push down. It is always
// evaluated in memory against fetched rows.
type Operation struct {
	Column string
	Lookup kvquery.Lookup
	Value  string
	Values []string

	re *regexp.Regexp
}

// NewOperation validates lookup and compiles regular expressions up front.
// Regular expressions are anchored at the start of the value.
func NewOperation(column string, lookup kvquery.Lookup, value string, values []string) (*Operation, error) {
	op := &Operation{Column: column, Lookup: lookup, Value: value, Values: values}
	switch lookup {
	case kvquery.LookupIn, kvquery.LookupIsNull,
		kvquery.LookupStartsWith, kvquery.LookupIStartsWith,
		kvquery.LookupEndsWith, kvquery.LookupIEndsWith,
		kvquery.LookupIExact, kvquery.LookupContains, kvquery.LookupIContains:
	case kvquery.LookupRegex, kvquery.LookupIRegex:
		expr := "^(?:" + value + ")"
		if lookup == kvquery.LookupIRegex {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  "invalid regular expression for " + column,
				Err:  err,
			}
		}
		op.re = re
	default:
		return nil, invalidOp("unsupported lookup " + strconv.Quote(string(lookup)))
	}
	if lookup == kvquery.LookupIsNull {
		if _, err := op.wantNull(); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// wantNull parses the isnull operand. An empty operand means true.
func (o *Operation) wantNull() (bool, error) {
	if o.Value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(o.Value)
	if err != nil {
		return false, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "isnull expects a boolean for " + o.Column,
			Err:  err,
		}
	}
	return b, nil
}

func (o *Operation) matches(row kvquery.Row) bool {
	v, ok := row[o.Column]
	if o.Lookup == kvquery.LookupIsNull {
		want, _ := o.wantNull()
		return want == !ok
	}
	if !ok {
		return false
	}

	switch o.Lookup {
	case kvquery.LookupIn:
		return contains(o.Values, v)
	case kvquery.LookupStartsWith:
		return strings.HasPrefix(v, o.Value)
	case kvquery.LookupIStartsWith:
		return strings.HasPrefix(strings.ToLower(v), strings.ToLower(o.Value))
	case kvquery.LookupEndsWith:
		return strings.HasSuffix(v, o.Value)
	case kvquery.LookupIEndsWith:
		return strings.HasSuffix(strings.ToLower(v), strings.ToLower(o.Value))
	case kvquery.LookupIExact:
		return strings.EqualFold(v, o.Value)
	case kvquery.LookupContains:
		return strings.Contains(v, o.Value)
	case kvquery.LookupIContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(o.Value))
	case kvquery.LookupRegex, kvquery.LookupIRegex:
		return o.re != nil && o.re.MatchString(v)
	}
	return false
}

func (o *Operation) String() string {
	if o.Lookup == kvquery.LookupIn {
		return "(OP: " + o.Column + " in (" + strings.Join(o.Values, ",") + "))"
	}
	return "(OP: " + o.Column + " " + string(o.Lookup) + " " + strconv.Quote(o.Value) + ")"
}
