package predicate

import (
	"fmt"
	"strings"

	"github.com/influxdata/influxql"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/platform/errors"
)

type buffer [3]struct {
	tok influxql.Token // last read token
	pos influxql.Pos   // last read pos
	lit string         // last read literal
}

// parser converts a statement such as
//
//	(ip startswith '10.' or slice = s1) and not (host =~/^db/)
//
// into a filter tree. Comparisons are `=`, `!=`, `<`, `<=`, `>`, `>=`,
// `=~`, `!~`, `in (...)` or any lookup name written as a word. AND binds
// tighter than OR. A regular expression literal must follow `=~` or `!~`
// without whitespace; word lookups take quoted patterns.
type parser struct {
	sc        *influxql.Scanner
	i         int // buffer index
	n         int // buffer size
	openParen int
	buf       buffer
}

// scan returns the next token from the underlying scanner.
// If a token has been unscanned then read that instead.
func (p *parser) scan() (tok influxql.Token, pos influxql.Pos, lit string) {
	if p.n > 0 {
		p.n--
		return p.curr()
	}

	p.i = (p.i + 1) % len(p.buf)
	buf := &p.buf[p.i]
	buf.tok, buf.pos, buf.lit = p.sc.Scan()

	return p.curr()
}

func (p *parser) unscan() {
	p.n++
}

// curr returns the last read token.
func (p *parser) curr() (tok influxql.Token, pos influxql.Pos, lit string) {
	buf := &p.buf[(p.i-p.n+len(p.buf))%len(p.buf)]
	return buf.tok, buf.pos, buf.lit
}

// scanIgnoreWhitespace scans the next non-whitespace token.
func (p *parser) scanIgnoreWhitespace() (tok influxql.Token, pos influxql.Pos, lit string) {
	tok, pos, lit = p.scan()
	if tok == influxql.WS {
		tok, pos, lit = p.scan()
	}
	return
}

// peekTok returns the next non-whitespace token without consuming it.
func (p *parser) peekTok() influxql.Token {
	tok, _, _ := p.scanIgnoreWhitespace()
	if tok != influxql.EOF {
		p.unscan()
	}
	return tok
}

// Parse parses a filter statement. An empty statement yields an empty AND
// group, which matches every row.
func Parse(sts string) (kvquery.Filter, error) {
	if strings.TrimSpace(sts) == "" {
		return kvquery.AndOf(), nil
	}
	p := new(parser)
	p.sc = influxql.NewScanner(strings.NewReader(sts))

	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	tok, pos, _ := p.scanIgnoreWhitespace()
	switch tok {
	case influxql.EOF:
		return f, nil
	case influxql.RPAREN:
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "extra ) seen",
		}
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("bad logical expression, at position %d", pos.Char),
	}
}

func (p *parser) parseOr() (kvquery.Filter, error) {
	return p.parseChain(influxql.OR, kvquery.Or, p.parseAnd)
}

func (p *parser) parseAnd() (kvquery.Filter, error) {
	return p.parseChain(influxql.AND, kvquery.And, p.parseUnary)
}

// parseChain parses operands joined by op into a single group.
func (p *parser) parseChain(op influxql.Token, conn kvquery.Connector, next func() (kvquery.Filter, error)) (kvquery.Filter, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	children := []kvquery.Filter{first}
	for p.peekTok() == op {
		p.scanIgnoreWhitespace()
		f, err := next()
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &kvquery.Group{Connector: conn, Children: children}, nil
}

func (p *parser) parseUnary() (kvquery.Filter, error) {
	tok, pos, lit := p.scanIgnoreWhitespace()
	if w, ok := word(tok, lit); ok && w == "not" {
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return kvquery.Not(f), nil
	}

	switch tok {
	case influxql.LPAREN:
		p.openParen++
		f, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok, _, _ := p.scanIgnoreWhitespace(); tok != influxql.RPAREN {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  "extra ( seen",
			}
		}
		p.openParen--
		return f, nil
	case influxql.RPAREN:
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "extra ) seen",
		}
	case influxql.EOF:
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("unexpected end of statement at position %d", pos.Char),
		}
	}
	p.unscan()
	return p.parseCondition()
}

func (p *parser) parseCondition() (kvquery.Filter, error) {
	tok, pos, lit := p.scanIgnoreWhitespace()
	column, ok := word(tok, lit)
	if !ok || tok == influxql.AND || tok == influxql.OR {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("bad column name, at position %d", pos.Char),
		}
	}
	if tok == influxql.IDENT {
		column = lit
	}

	cond := kvquery.Condition{Column: column}
	negate := false

	tok, pos, lit = p.scanIgnoreWhitespace()
	switch tok {
	case influxql.EQ:
		cond.Lookup = kvquery.LookupExact
	case influxql.NEQ:
		cond.Lookup, negate = kvquery.LookupExact, true
	case influxql.LT:
		cond.Lookup = kvquery.LookupLT
	case influxql.LTE:
		cond.Lookup = kvquery.LookupLTE
	case influxql.GT:
		cond.Lookup = kvquery.LookupGT
	case influxql.GTE:
		cond.Lookup = kvquery.LookupGTE
	case influxql.EQREGEX, influxql.NEQREGEX:
		cond.Lookup, negate = kvquery.LookupRegex, tok == influxql.NEQREGEX
		tok, pos, lit = p.sc.ScanRegex()
		switch tok {
		case influxql.BADREGEX, influxql.BADESCAPE:
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("bad regex at position: %d", pos.Char),
			}
		}
		cond.Value = lit
		return wrapNot(cond, negate), nil
	case influxql.IN:
		cond.Lookup = kvquery.LookupIn
	default:
		w, ok := word(tok, lit)
		if !ok {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("invalid operator %q at position %d", tok.String(), pos.Char),
			}
		}
		cond.Lookup = kvquery.Lookup(w)
		if !cond.Lookup.IsRange() && !cond.Lookup.IsOperation() {
			return nil, &errors.Error{
				Code: errors.EInvalidPredicateOp,
				Msg:  fmt.Sprintf("unknown lookup %q at position %d", w, pos.Char),
			}
		}
	}

	if cond.Lookup == kvquery.LookupIn {
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		cond.Values = values
		return cond, nil
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	cond.Value = value
	return wrapNot(cond, negate), nil
}

func (p *parser) parseValue() (string, error) {
	tok, pos, lit := p.scanIgnoreWhitespace()
	switch tok {
	case influxql.STRING, influxql.IDENT, influxql.NUMBER, influxql.INTEGER, influxql.DURATIONVAL:
		return lit, nil
	case influxql.TRUE:
		return "true", nil
	case influxql.FALSE:
		return "false", nil
	}
	return "", &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("bad value: %q, at position %d", lit, pos.Char),
	}
}

func (p *parser) parseList() ([]string, error) {
	if tok, pos, _ := p.scanIgnoreWhitespace(); tok != influxql.LPAREN {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("expected ( after in, at position %d", pos.Char),
		}
	}
	var values []string
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		tok, pos, _ := p.scanIgnoreWhitespace()
		switch tok {
		case influxql.COMMA:
			continue
		case influxql.RPAREN:
			return values, nil
		}
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("bad value list, at position %d", pos.Char),
		}
	}
}

// word returns the lower cased text of an identifier or keyword token.
// Keywords are scanned without a literal.
func word(tok influxql.Token, lit string) (string, bool) {
	if tok == influxql.IDENT {
		return strings.ToLower(lit), true
	}
	s := strings.ToLower(tok.String())
	if influxql.Lookup(s) == tok {
		return s, true
	}
	return "", false
}

func wrapNot(c kvquery.Condition, negate bool) kvquery.Filter {
	if negate {
		return kvquery.Not(c)
	}
	return c
}
