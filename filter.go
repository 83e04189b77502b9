package kvquery

import "strings"

// Lookup is the comparison applied by a filter Condition.
type Lookup string

// Range capable lookups. These can be folded into a single column range and
// may be pushed down to the store.
const (
	LookupExact      Lookup = "exact"
	LookupLT         Lookup = "lt"
	LookupLTE        Lookup = "lte"
	LookupGT         Lookup = "gt"
	LookupGTE        Lookup = "gte"
	LookupStartsWith Lookup = "startswith"
)

// Lookups that are only ever evaluated in memory.
const (
	LookupIn          Lookup = "in"
	LookupIsNull      Lookup = "isnull"
	LookupIStartsWith Lookup = "istartswith"
	LookupEndsWith    Lookup = "endswith"
	LookupIEndsWith   Lookup = "iendswith"
	LookupIExact      Lookup = "iexact"
	LookupContains    Lookup = "contains"
	LookupIContains   Lookup = "icontains"
	LookupRegex       Lookup = "regex"
	LookupIRegex      Lookup = "iregex"
)

// IsRange reports whether l can be folded into a range predicate.
func (l Lookup) IsRange() bool {
	switch l {
	case LookupExact, LookupLT, LookupLTE, LookupGT, LookupGTE, LookupStartsWith:
		return true
	}
	return false
}

// IsOperation reports whether l is a recognised in-memory lookup.
func (l Lookup) IsOperation() bool {
	switch l {
	case LookupIn, LookupIsNull, LookupIStartsWith, LookupEndsWith, LookupIEndsWith,
		LookupIExact, LookupContains, LookupIContains, LookupRegex, LookupIRegex:
		return true
	}
	return false
}

// Connector joins the children of a Group.
type Connector int

const (
	And Connector = iota + 1
	Or
)

func (c Connector) String() string {
	switch c {
	case And:
		return "AND"
	case Or:
		return "OR"
	}
	return "UNKNOWN"
}

// Filter is a node of a caller supplied boolean filter tree. It is either a
// Condition leaf or a Group.
type Filter interface {
	filterNode()
	String() string
}

// Condition compares a single column against a value.
type Condition struct {
	Column string
	Lookup Lookup
	// Value is the comparison operand. For isnull it is parsed as a bool and
	// an empty value means true.
	Value string
	// Values holds the candidate set of an in lookup.
	Values []string
}

func (Condition) filterNode() {}

func (c Condition) String() string {
	if c.Lookup == LookupIn {
		return c.Column + "__in=(" + strings.Join(c.Values, ",") + ")"
	}
	return c.Column + "__" + string(c.Lookup) + "=" + c.Value
}

// Group combines its children with a connector and may be negated.
type Group struct {
	Connector Connector
	Negated   bool
	Children  []Filter
}

func (*Group) filterNode() {}

func (g *Group) String() string {
	var b strings.Builder
	if g.Negated {
		b.WriteString("NOT ")
	}
	b.WriteString("(")
	for i, c := range g.Children {
		if i > 0 {
			b.WriteString(" " + g.Connector.String() + " ")
		}
		b.WriteString(c.String())
	}
	b.WriteString(")")
	return b.String()
}

// AndOf returns a non-negated AND group of children.
func AndOf(children ...Filter) *Group {
	return &Group{Connector: And, Children: children}
}

// OrOf returns a non-negated OR group of children.
func OrOf(children ...Filter) *Group {
	return &Group{Connector: Or, Children: children}
}

// Not returns a negated AND group wrapping children.
func Not(children ...Filter) *Group {
	return &Group{Connector: And, Negated: true, Children: children}
}

// Where is shorthand for a Condition leaf.
func Where(column string, lookup Lookup, value string) Condition {
	return Condition{Column: column, Lookup: lookup, Value: value}
}
