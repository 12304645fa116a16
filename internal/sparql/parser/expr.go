package parser

import (
	"fmt"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// parseExpression parses a full SPARQL expression using precedence climbing:
// conditional-or > conditional-and > relational > additive > multiplicative > unary > primary.
func (p *Parser) parseExpression() (Expression, error) {
	return p.parseConditionalOr()
}

func (p *Parser) parseConditionalOr() (Expression, error) {
	left, err := p.parseConditionalAnd()
	if err != nil {
		return nil, err
	}

	for {
		if !p.matchSymbol("||") {
			break
		}
		right, err := p.parseConditionalAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpOr, Right: right}
	}

	return left, nil
}

func (p *Parser) parseConditionalAnd() (Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}

	for {
		if !p.matchSymbol("&&") {
			break
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpAnd, Right: right}
	}

	return left, nil
}

func (p *Parser) parseRelational() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()
	var op Operator
	matched := true
	switch {
	case p.matchSymbol("!="):
		op = OpNotEqual
	case p.matchSymbol("<="):
		op = OpLessThanOrEqual
	case p.matchSymbol(">="):
		op = OpGreaterThanOrEqual
	case p.matchSymbol("="):
		op = OpEqual
	case p.matchSymbol("<"):
		op = OpLessThan
	case p.matchSymbol(">"):
		op = OpGreaterThan
	default:
		matched = false
	}

	if !matched {
		return left, nil
	}

	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	return &BinaryExpression{Left: left, Operator: op, Right: right}, nil
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if p.matchSymbol("+") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpAdd, Right: right}
			continue
		}
		if p.matchSymbol("-") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpSubtract, Right: right}
			continue
		}
		break
	}

	return left, nil
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if p.matchSymbol("*") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpMultiply, Right: right}
			continue
		}
		if p.matchSymbol("/") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpDivide, Right: right}
			continue
		}
		break
	}

	return left, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	p.skipWhitespace()

	if p.matchSymbol("!") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNot, Operand: operand}, nil
	}
	if p.matchSymbol("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNegate, Operand: operand}, nil
	}
	if p.matchSymbol("+") {
		return p.parseUnary()
	}

	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	p.skipWhitespace()
	ch := p.peek()

	if ch == '(' {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("expected ')' to close expression")
		}
		p.advance()
		return expr, nil
	}

	if ch == '"' || ch == '\'' {
		return p.parseRDFLiteralExpr()
	}

	if ch >= '0' && ch <= '9' {
		lit, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		return &LiteralExpression{Literal: lit}, nil
	}

	if ch == '?' || ch == '$' {
		variable, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &VariableExpression{Variable: variable}, nil
	}

	if p.matchKeyword("true") {
		return &LiteralExpression{Literal: rdf.NewBooleanLiteral(true)}, nil
	}
	if p.matchKeyword("false") {
		return &LiteralExpression{Literal: rdf.NewBooleanLiteral(false)}, nil
	}

	if p.matchKeyword("NOT") {
		p.skipWhitespace()
		if !p.matchKeyword("EXISTS") {
			return nil, fmt.Errorf("expected EXISTS after NOT in expression")
		}
		pattern, err := p.parseGraphPattern()
		if err != nil {
			return nil, err
		}
		return &ExistsExpression{Not: true, Pattern: pattern}, nil
	}
	if p.matchKeyword("EXISTS") {
		pattern, err := p.parseGraphPattern()
		if err != nil {
			return nil, err
		}
		return &ExistsExpression{Not: false, Pattern: pattern}, nil
	}

	if ch == '<' {
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.peek() != '(' {
			return nil, fmt.Errorf("unexpected IRI in expression context")
		}
		args, err := p.parseArgumentList()
		if err != nil {
			return nil, err
		}
		return &FunctionCallExpression{Function: iri, Arguments: args}, nil
	}

	if ch == ':' || isIdentStart(ch) {
		name, err := p.parseFunctionName()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.peek() != '(' {
			return nil, fmt.Errorf("expected '(' after function name %q", name)
		}
		args, err := p.parseArgumentList()
		if err != nil {
			return nil, err
		}
		return &FunctionCallExpression{Function: name, Arguments: args}, nil
	}

	return nil, fmt.Errorf("unexpected character in expression: %c", ch)
}

// parseArgumentList parses a parenthesized, comma-separated expression list.
// The opening '(' must be the current position.
func (p *Parser) parseArgumentList() ([]Expression, error) {
	if p.peek() != '(' {
		return nil, fmt.Errorf("expected '(' to start argument list")
	}
	p.advance()
	p.skipWhitespace()

	if p.peek() == ')' {
		p.advance()
		return []Expression{}, nil
	}

	p.matchKeyword("DISTINCT") // consumed for aggregate-style calls, has no effect on scalar functions

	var args []Expression
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, expr)

		p.skipWhitespace()
		if p.peek() == ',' {
			p.advance()
			continue
		}
		break
	}

	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("expected ')' to close argument list")
	}
	p.advance()

	return args, nil
}

// parseFunctionName reads a bare or prefixed function/cast name.
// Prefixed names are expanded to their full IRI (needed for xsd:type() casts).
func (p *Parser) parseFunctionName() (string, error) {
	start := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-' {
			p.pos++
			continue
		}
		break
	}
	name := p.input[start:p.pos]
	if name == "" && p.peek() != ':' {
		return "", fmt.Errorf("expected function name")
	}

	if p.peek() == ':' {
		p.advance()
		localStart := p.pos
		for p.pos < p.length {
			ch := p.input[p.pos]
			if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-' {
				p.pos++
				continue
			}
			break
		}
		local := p.input[localStart:p.pos]

		baseIRI, ok := p.prefixes[name]
		if !ok {
			return "", fmt.Errorf("undefined prefix: '%s'", name)
		}
		return baseIRI + local, nil
	}

	return name, nil
}

// parseRDFLiteralExpr parses a quoted string literal with an optional
// language tag (@lang) or datatype (^^iri) suffix.
func (p *Parser) parseRDFLiteralExpr() (Expression, error) {
	lit, err := p.parseStringLiteral()
	if err != nil {
		return nil, err
	}

	if p.peek() == '@' {
		p.advance()
		lang := p.readWhile(func(ch byte) bool {
			return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-'
		})
		return &LiteralExpression{Literal: rdf.NewLiteralWithLanguage(lit.Value, lang)}, nil
	}

	if p.peek() == '^' && p.pos+1 < p.length && p.input[p.pos+1] == '^' {
		p.pos += 2
		var dtIRI string
		var err error
		if p.peek() == '<' {
			dtIRI, err = p.parseIRI()
		} else {
			dtIRI, err = p.parsePrefixedName()
		}
		if err != nil {
			return nil, err
		}
		return &LiteralExpression{Literal: rdf.NewLiteralWithDatatype(lit.Value, rdf.NewNamedNode(dtIRI))}, nil
	}

	return &LiteralExpression{Literal: lit}, nil
}

// matchSymbol consumes an exact operator symbol at the current position, skipping
// leading whitespace first. Callers must check longer symbols (e.g. "<=") before
// their single-character prefixes (e.g. "<").
func (p *Parser) matchSymbol(sym string) bool {
	p.skipWhitespace()
	end := p.pos + len(sym)
	if end > p.length {
		return false
	}
	if p.input[p.pos:end] != sym {
		return false
	}
	p.pos = end
	return true
}
