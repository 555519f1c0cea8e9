package calc

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"clinicdocs/internal/model"
)

var (
	fieldToken   = regexp.MustCompile(`\{([^{}]*)\}`)
	safeFormula  = regexp.MustCompile(`^[0-9+\-*/().\s]+$`)
	errSyntax    = errors.New("syntax error")
	errTooDeep   = errors.New("expression nested too deeply")
	maxNestDepth = 64
)

// FormulaFields lists the field names referenced by a formula, in order
func FormulaFields(formula string) []string {
	matches := fieldToken.FindAllStringSubmatch(formula, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// EvaluateFormula substitutes {field} tokens with their numeric values and
// evaluates the arithmetic that remains. Only numbers, + - * / and
// parentheses are accepted after substitution.
func EvaluateFormula(formula string, data model.FormData) Result {
	if strings.TrimSpace(formula) == "" {
		return Msg(MsgNoFormula)
	}

	var failure *Result
	expr := fieldToken.ReplaceAllStringFunc(formula, func(tok string) string {
		if failure != nil {
			return tok
		}
		name := strings.TrimSpace(tok[1 : len(tok)-1])
		n, present, ok := data.Number(name)
		switch {
		case !present:
			r := Msg("Missing: " + name)
			failure = &r
			return tok
		case !ok || math.IsInf(n, 0):
			r := Msg("Invalid: " + name)
			failure = &r
			return tok
		}
		s := strconv.FormatFloat(n, 'f', -1, 64)
		if n < 0 {
			return "(" + s + ")"
		}
		return s
	})
	if failure != nil {
		return *failure
	}

	if !safeFormula.MatchString(expr) {
		return Msg(MsgInvalidFormula)
	}

	v, err := parseArithmetic(expr)
	if err != nil {
		return Msg(MsgInvalidFormula)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Msg(MsgCalculationError)
	}
	return Num(round(v, 2))
}

// parser is a recursive-descent evaluator for
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | primary
//	primary = number | "(" expr ")"
type parser struct {
	src   string
	pos   int
	depth int
}

func parseArithmetic(src string) (float64, error) {
	p := &parser{src: src}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, errSyntax
	}
	return v, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			left /= right
		}
	}
}

func (p *parser) unary() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNestDepth {
		return 0, errTooDeep
	}

	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, errSyntax
		}
		p.pos++
		return v, nil
	}
	return p.number()
}

func (p *parser) number() (float64, error) {
	p.skipSpace()
	start := p.pos
	dots := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "" || lit == "." || dots > 1 {
		return 0, errSyntax
	}
	v, err := strconv.ParseFloat(lit, 64)
	if errors.Is(err, strconv.ErrRange) {
		// out of range literals evaluate to ±Inf or 0
		return v, nil
	}
	return v, err
}
