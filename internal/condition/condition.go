// Package condition implements the restricted alert-expression grammar.
//
// An expression compares the single free variable "price" against numeric
// literals, e.g. "price > 3000" or "price >= 100 and price < 200". The
// grammar is parsed into a small AST and walked by a pure evaluator; no
// general-purpose interpreter is involved, so a stored expression can never
// execute code. Anything outside the grammar yields a *ParseError.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// PriceVar is the only identifier an expression may reference.
const PriceVar = "price"

// ParseError is a typed parse/evaluation failure, distinct from a false
// verdict. Callers must surface it, never treat it as "condition not met".
type ParseError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition %q: %s (at offset %d)", e.Expr, e.Msg, e.Pos)
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpGT  CompareOp = ">"
	OpGTE CompareOp = ">="
	OpLT  CompareOp = "<"
	OpLTE CompareOp = "<="
	OpEQ  CompareOp = "=="
	OpNEQ CompareOp = "!="
)

// LogicOp combines two sub-expressions.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
)

// Expr is a parsed condition expression.
type Expr interface {
	// Eval returns the verdict for the given price. IEEE double comparison
	// semantics; no tolerance is applied.
	Eval(price float64) bool
}

// Comparison is a leaf node: price <op> threshold.
type Comparison struct {
	Op        CompareOp
	Threshold float64
}

func (c *Comparison) Eval(price float64) bool {
	switch c.Op {
	case OpGT:
		return price > c.Threshold
	case OpGTE:
		return price >= c.Threshold
	case OpLT:
		return price < c.Threshold
	case OpLTE:
		return price <= c.Threshold
	case OpEQ:
		return price == c.Threshold
	case OpNEQ:
		return price != c.Threshold
	default:
		return false
	}
}

// Logical is a combinator node: left and/or right.
type Logical struct {
	Op    LogicOp
	Left  Expr
	Right Expr
}

func (l *Logical) Eval(price float64) bool {
	if l.Op == OpAnd {
		return l.Left.Eval(price) && l.Right.Eval(price)
	}
	return l.Left.Eval(price) || l.Right.Eval(price)
}

// Evaluate parses expr and evaluates it against price in one step.
func Evaluate(expr string, price float64) (bool, error) {
	e, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return e.Eval(price), nil
}

// Parse compiles an expression string into an AST.
//
// Grammar:
//
//	expr       := term { "or" term }
//	term       := factor { "and" factor }
//	factor     := "(" expr ")" | comparison
//	comparison := "price" cmp number
//	cmp        := ">" | ">=" | "<" | "<=" | "==" | "!="
func Parse(expr string) (Expr, error) {
	toks, err := scan(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		t := p.peek()
		return nil, &ParseError{Expr: expr, Pos: t.pos, Msg: fmt.Sprintf("unexpected %q after expression", t.text)}
	}
	return e, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokCompare
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func scan(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < len(expr) && expr[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{tokCompare, op, i})
			i += len(op)
		case c == '=' || c == '!':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return nil, &ParseError{Expr: expr, Pos: i, Msg: fmt.Sprintf("malformed operator %q", string(c))}
			}
			toks = append(toks, token{tokCompare, string(c) + "=", i})
			i += 2
		case isDigit(c) || c == '.':
			start := i
			for i < len(expr) && (isDigit(expr[i]) || expr[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, expr[start:i], start})
		case isAlpha(c):
			start := i
			for i < len(expr) && (isAlpha(expr[i]) || isDigit(expr[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, expr[start:i], start})
		default:
			return nil, &ParseError{Expr: expr, Pos: i, Msg: fmt.Sprintf("disallowed character %q", string(c))}
		}
	}
	if len(toks) == 0 {
		return nil, &ParseError{Expr: expr, Pos: 0, Msg: "empty expression"}
	}
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

type parser struct {
	expr string
	toks []token
	i    int
}

func (p *parser) done() bool { return p.i >= len(p.toks) }

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	p.i++
	return t
}

func (p *parser) errAt(pos int, format string, a ...interface{}) error {
	return &ParseError{Expr: p.expr, Pos: pos, Msg: fmt.Sprintf(format, a...)}
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.isKeyword(string(OpOr)) {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.isKeyword(string(OpAnd)) {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	if p.done() {
		return nil, p.errAt(len(p.expr), "unexpected end of expression")
	}
	t := p.peek()
	if t.kind == tokLParen {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokRParen {
			return nil, p.errAt(t.pos, "unclosed parenthesis")
		}
		p.next()
		return e, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	t := p.next()
	if t.kind != tokIdent || !strings.EqualFold(t.text, PriceVar) {
		return nil, p.errAt(t.pos, "unknown identifier %q, only %q is allowed", t.text, PriceVar)
	}
	if p.done() {
		return nil, p.errAt(len(p.expr), "expected comparator after %q", PriceVar)
	}
	op := p.next()
	if op.kind != tokCompare {
		return nil, p.errAt(op.pos, "expected comparator, got %q", op.text)
	}
	if p.done() {
		return nil, p.errAt(len(p.expr), "expected number after %q", op.text)
	}
	num := p.next()
	if num.kind != tokNumber {
		return nil, p.errAt(num.pos, "expected number, got %q", num.text)
	}
	v, err := strconv.ParseFloat(num.text, 64)
	if err != nil {
		return nil, p.errAt(num.pos, "malformed number %q", num.text)
	}
	return &Comparison{Op: CompareOp(op.text), Threshold: v}, nil
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}
