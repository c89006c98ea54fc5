package kconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a Kconfig dependency expression.
type Expr interface {
	fmt.Stringer

	eval(values valuer) Tristate
	value(values valuer) string
	walk(positive bool, fn func(name string, positive bool))
}

// valuer resolves a symbol to its raw value. Undefined symbols report ok=false.
type valuer interface {
	lookup(name string) (val string, ok bool)
}

type symbolExpr struct{ name string }

type constExpr struct{ val string }

type notExpr struct{ x Expr }

type andExpr struct{ left, right Expr }

type orExpr struct{ left, right Expr }

type cmpExpr struct {
	left, right Expr
	op          string
}

func (e symbolExpr) eval(values valuer) Tristate {
	return triFromValue(e.value(values))
}

func (e symbolExpr) value(values valuer) string {
	if val, ok := values.lookup(e.name); ok {
		if val == "" {
			return "n"
		}

		return unquote(val)
	}

	switch e.name {
	case "y", "m", "n":
		return e.name
	}

	return "n"
}

func (e symbolExpr) walk(positive bool, fn func(string, bool)) {
	fn(e.name, positive)
}

func (e symbolExpr) String() string { return e.name }

// A macro call such as $(cc-option,...) cannot be evaluated without running the toolchain,
// it counts as y so nothing is ever turned off because of it.
func (e constExpr) eval(valuer) Tristate {
	switch {
	case IsMacro(e.val):
		return Yes
	case e.val == "y" || e.val == "m":
		return triFromValue(e.val)
	}

	return No
}

func (e constExpr) value(valuer) string { return e.val }

func (e constExpr) walk(bool, func(string, bool)) {}

func (e constExpr) String() string { return strconv.Quote(e.val) }

func (e notExpr) eval(values valuer) Tristate { return Yes - e.x.eval(values) }

func (e notExpr) value(values valuer) string { return e.eval(values).String() }

func (e notExpr) walk(positive bool, fn func(string, bool)) { e.x.walk(!positive, fn) }

func (e notExpr) String() string { return "!" + wrap(e.x) }

func (e andExpr) eval(values valuer) Tristate {
	return min(e.left.eval(values), e.right.eval(values))
}

func (e andExpr) value(values valuer) string { return e.eval(values).String() }

func (e andExpr) walk(positive bool, fn func(string, bool)) {
	e.left.walk(positive, fn)
	e.right.walk(positive, fn)
}

func (e andExpr) String() string { return wrap(e.left) + " && " + wrap(e.right) }

func (e orExpr) eval(values valuer) Tristate {
	return max(e.left.eval(values), e.right.eval(values))
}

func (e orExpr) value(values valuer) string { return e.eval(values).String() }

func (e orExpr) walk(positive bool, fn func(string, bool)) {
	e.left.walk(positive, fn)
	e.right.walk(positive, fn)
}

func (e orExpr) String() string { return wrap(e.left) + " || " + wrap(e.right) }

func (e cmpExpr) eval(values valuer) Tristate {
	left, right := e.left.value(values), e.right.value(values)

	var res bool

	switch e.op {
	case "=":
		res = compareValues(left, right) == 0
	case "!=":
		res = compareValues(left, right) != 0
	case "<":
		res = compareValues(left, right) < 0
	case "<=":
		res = compareValues(left, right) <= 0
	case ">":
		res = compareValues(left, right) > 0
	case ">=":
		res = compareValues(left, right) >= 0
	}

	if res {
		return Yes
	}

	return No
}

func (e cmpExpr) value(values valuer) string { return e.eval(values).String() }

// Both sides of a comparison can flip the result in either direction, so they count as positive references.
func (e cmpExpr) walk(_ bool, fn func(string, bool)) {
	e.left.walk(true, fn)
	e.right.walk(true, fn)
}

func (e cmpExpr) String() string { return e.left.String() + " " + e.op + " " + e.right.String() }

// IsMacro reports whether the text is a $(...) macro reference.
func IsMacro(str string) bool {
	return strings.HasPrefix(str, "$(") && strings.HasSuffix(str, ")")
}

// unquote strips the double quotes .config files put around string values.
func unquote(val string) string {
	if len(val) < 2 || val[0] != '"' || val[len(val)-1] != '"' {
		return val
	}

	if str, err := strconv.Unquote(val); err == nil {
		return str
	}

	return val[1 : len(val)-1]
}

func wrap(e Expr) string {
	switch e.(type) {
	case andExpr, orExpr, cmpExpr:
		return "(" + e.String() + ")"
	}

	return e.String()
}

func compareValues(left, right string) int {
	if l, err := strconv.ParseInt(left, 0, 64); err == nil {
		if r, err := strconv.ParseInt(right, 0, 64); err == nil {
			switch {
			case l < r:
				return -1
			case l > r:
				return 1
			}

			return 0
		}
	}

	return strings.Compare(left, right)
}

// And returns the conjunction of the non-nil expressions, nil if none.
func And(exprs ...Expr) Expr {
	var res Expr

	for _, e := range exprs {
		switch {
		case e == nil:
		case res == nil:
			res = e
		default:
			res = andExpr{left: res, right: e}
		}
	}

	return res
}

// Or returns the disjunction of the expressions. A nil operand means "always" and makes the result nil.
func Or(left, right Expr) Expr {
	if left == nil || right == nil {
		return nil
	}

	return orExpr{left: left, right: right}
}

// Conjuncts flattens the top-level `&&` chain of the expression.
func Conjuncts(e Expr) []Expr {
	if and, ok := e.(andExpr); ok {
		return append(Conjuncts(and.left), Conjuncts(and.right)...)
	}

	if e == nil {
		return nil
	}

	return []Expr{e}
}

// References calls fn for every symbol the expression refers to. positive is false when the
// symbol only appears under an odd number of negations, turning it off can then never
// turn the expression off.
func References(e Expr, fn func(name string, positive bool)) {
	if e != nil {
		e.walk(true, fn)
	}
}

// ParseExpr parses a standalone dependency expression.
func ParseExpr(str string) (Expr, error) {
	tokens, err := tokenize(str)
	if err != nil {
		return nil, err
	}

	return parseExprTokens(tokens)
}

func parseExprTokens(tokens []token) (Expr, error) {
	p := &exprParser{tokens: tokens}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected %q in expression", p.tokens[p.pos].text) //nolint:err113
	}

	return e, nil
}

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) peekOp(op string) bool {
	return p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokOp && p.tokens[p.pos].text == op
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peekOp("||") {
		p.pos++

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = orExpr{left: left, right: right}
	}

	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.peekOp("&&") {
		p.pos++

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = andExpr{left: left, right: right}
	}

	return left, nil
}

func (p *exprParser) parseNot() (Expr, error) {
	if p.peekOp("!") {
		p.pos++

		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return notExpr{x: x}, nil
	}

	return p.parseCmp()
}

func (p *exprParser) parseCmp() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for _, op := range []string{"=", "!=", "<", "<=", ">", ">="} {
		if p.peekOp(op) {
			p.pos++

			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}

			return cmpExpr{op: op, left: left, right: right}, nil
		}
	}

	return left, nil
}

func (p *exprParser) parsePrimary() (Expr, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression") //nolint:err113
	}

	tok := p.tokens[p.pos]
	p.pos++

	switch tok.kind {
	case tokString:
		return constExpr{val: tok.text}, nil
	case tokWord:
		if isNumber(tok.text) {
			return constExpr{val: tok.text}, nil
		}

		return symbolExpr{name: tok.text}, nil
	}

	if tok.text != "(" {
		return nil, fmt.Errorf("unexpected %q in expression", tok.text) //nolint:err113
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.peekOp(")") {
		return nil, fmt.Errorf("missing closing parenthesis") //nolint:err113
	}

	p.pos++

	return e, nil
}

func isNumber(str string) bool {
	_, err := strconv.ParseInt(str, 0, 64)
	return err == nil
}
