// internal/permission/expression.go
//
// Package permission implements the boolean expression DSL that gates table
// operations. An expression is a tree of clauses joined by && and ||, where a
// clause compares two symbols with == or !=. Symbols resolve against the
// request context: the builtin @request.user yields the caller id, a bare
// identifier yields the named field of the row being authorized.
package permission

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Operator string

const (
	OperatorAnd Operator = "&&"
	OperatorOr  Operator = "||"
)

type Comparator string

const (
	ComparatorEq  Comparator = "=="
	ComparatorNeq Comparator = "!="
)

// BuiltinRequestUser is the only builtin symbol: the authenticated caller id.
const BuiltinRequestUser = "@request.user"

var identifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Context carries the values symbols resolve against during evaluation.
type Context struct {
	RequestUserID string
	Row           map[string]any
}

// Node is an evaluable expression tree node: either an Expression or a Clause.
type Node interface {
	Eval(ctx *Context) bool
}

// Symbol is one side of a clause.
type Symbol struct {
	Builtin bool
	Name    string // field name when not builtin
}

func (s Symbol) resolve(ctx *Context) string {
	if s.Builtin {
		return ctx.RequestUserID
	}
	value, ok := ctx.Row[s.Name]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// Clause compares two symbols.
type Clause struct {
	Op    Comparator
	Left  Symbol
	Right Symbol
}

func (c *Clause) Eval(ctx *Context) bool {
	left := c.Left.resolve(ctx)
	right := c.Right.resolve(ctx)
	if c.Op == ComparatorEq {
		return left == right
	}
	return left != right
}

// Expression combines two operands with a boolean operator.
type Expression struct {
	Op    Operator
	Left  Node
	Right Node
}

func (e *Expression) Eval(ctx *Context) bool {
	if e.Op == OperatorAnd {
		return e.Left.Eval(ctx) && e.Right.Eval(ctx)
	}
	return e.Left.Eval(ctx) || e.Right.Eval(ctx)
}

// Parse builds the expression tree for a rule string. Operators at the same
// depth fold left-associatively; parenthesized runs parse as one operand.
func Parse(input string) (Node, error) {
	stripped := stripWhitespace(input)
	if stripped == "" {
		return nil, errors.New("empty expression")
	}
	return parseExpression(stripped)
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// splitTopLevel cuts the input into operand segments and the operators
// between them, treating parenthesized runs as atomic.
func splitTopLevel(s string) (segments []string, operators []Operator, err error) {
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, nil, errors.New("unbalanced parentheses")
			}
		case '&', '|':
			if depth == 0 && i+1 < len(s) && s[i+1] == s[i] {
				segments = append(segments, s[start:i])
				if s[i] == '&' {
					operators = append(operators, OperatorAnd)
				} else {
					operators = append(operators, OperatorOr)
				}
				i++
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, nil, errors.New("unbalanced parentheses")
	}
	segments = append(segments, s[start:])
	return segments, operators, nil
}

func parseExpression(s string) (Node, error) {
	segments, operators, err := splitTopLevel(s)
	if err != nil {
		return nil, err
	}
	node, err := parseOperand(segments[0])
	if err != nil {
		return nil, err
	}
	// Fold left-to-right: the tree built so far becomes the left operand of
	// each subsequent operator.
	for i, op := range operators {
		right, err := parseOperand(segments[i+1])
		if err != nil {
			return nil, err
		}
		node = &Expression{Op: op, Left: node, Right: right}
	}
	return node, nil
}

func parseOperand(s string) (Node, error) {
	if s == "" {
		return nil, errors.New("empty operand")
	}
	if s[0] == '(' && s[len(s)-1] == ')' && wrapsWhole(s) {
		return parseExpression(s[1 : len(s)-1])
	}
	return parseClause(s)
}

// wrapsWhole reports whether the leading parenthesis closes at the very end.
func wrapsWhole(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}

func parseClause(s string) (Node, error) {
	idx := strings.Index(s, string(ComparatorEq))
	op := ComparatorEq
	if neq := strings.Index(s, string(ComparatorNeq)); neq >= 0 && (idx < 0 || neq < idx) {
		idx = neq
		op = ComparatorNeq
	}
	if idx < 0 {
		return nil, fmt.Errorf("clause %q is missing a comparison operator", s)
	}
	left, err := parseSymbol(s[:idx])
	if err != nil {
		return nil, err
	}
	right, err := parseSymbol(s[idx+2:])
	if err != nil {
		return nil, err
	}
	return &Clause{Op: op, Left: left, Right: right}, nil
}

func parseSymbol(s string) (Symbol, error) {
	if s == "" {
		return Symbol{}, errors.New("empty symbol")
	}
	if strings.HasPrefix(s, "@") {
		if s != BuiltinRequestUser {
			return Symbol{}, fmt.Errorf("unknown builtin symbol %q", s)
		}
		return Symbol{Builtin: true, Name: s}, nil
	}
	if !identifierRegex.MatchString(s) {
		return Symbol{}, fmt.Errorf("invalid field symbol %q", s)
	}
	return Symbol{Name: s}, nil
}

// Authorize evaluates an operation's rule against the request context.
// An absent (nil or empty) rule denies the operation: tables without a rule
// for an operation are closed until one is set or a sync provides one.
func Authorize(rule *string, requestUserID string, row map[string]any) (bool, error) {
	if rule == nil || strings.TrimSpace(*rule) == "" {
		return false, nil
	}
	node, err := Parse(*rule)
	if err != nil {
		return false, fmt.Errorf("invalid permission expression: %w", err)
	}
	return node.Eval(&Context{RequestUserID: requestUserID, Row: row}), nil
}
