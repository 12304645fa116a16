package evaluator

import (
	"fmt"

	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/store"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Evaluator evaluates SPARQL expressions against bindings
type Evaluator struct {
	store *store.TripleStore // needed to evaluate EXISTS/NOT EXISTS sub-patterns
}

// NewEvaluator creates a new expression evaluator backed by the given store,
// used to resolve EXISTS/NOT EXISTS sub-patterns.
func NewEvaluator(s *store.TripleStore) *Evaluator {
	return &Evaluator{store: s}
}

// Evaluate evaluates an expression against a binding and returns the result term
// Returns (result, error) where error is nil on success
// If the expression cannot be evaluated (type error, unbound variable, etc.), returns an error
func (e *Evaluator) Evaluate(expr parser.Expression, binding *store.Binding) (rdf.Term, error) {
	if expr == nil {
		return nil, fmt.Errorf("cannot evaluate nil expression")
	}

	switch ex := expr.(type) {
	case *parser.BinaryExpression:
		return e.evaluateBinaryExpression(ex, binding)
	case *parser.UnaryExpression:
		return e.evaluateUnaryExpression(ex, binding)
	case *parser.VariableExpression:
		return e.evaluateVariableExpression(ex, binding)
	case *parser.LiteralExpression:
		return e.evaluateLiteralExpression(ex, binding)
	case *parser.FunctionCallExpression:
		return e.evaluateFunctionCall(ex, binding)
	case *parser.ExistsExpression:
		return e.evaluateExistsExpression(ex, binding)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", expr)
	}
}

// evaluateVariableExpression evaluates a variable reference
func (e *Evaluator) evaluateVariableExpression(expr *parser.VariableExpression, binding *store.Binding) (rdf.Term, error) {
	if expr.Variable == nil {
		return nil, fmt.Errorf("variable expression has nil variable")
	}

	// Special case for COUNT(*) which uses variable name "*"
	if expr.Variable.Name == "*" {
		return nil, fmt.Errorf("* is not a valid variable reference in expressions")
	}

	// Look up variable in binding
	value, exists := binding.Vars[expr.Variable.Name]
	if !exists {
		return nil, fmt.Errorf("unbound variable: ?%s", expr.Variable.Name)
	}

	return value, nil
}

// evaluateLiteralExpression evaluates a literal constant
func (e *Evaluator) evaluateLiteralExpression(expr *parser.LiteralExpression, binding *store.Binding) (rdf.Term, error) {
	if expr.Literal == nil {
		return nil, fmt.Errorf("literal expression has nil literal")
	}
	return expr.Literal, nil
}

// evaluateExistsExpression evaluates EXISTS or NOT EXISTS by running the inner
// pattern's triple patterns (plus any directly nested FILTERs) as a simple
// nested-loop join seeded with the outer binding, and checking for any match.
// OPTIONAL/UNION/MINUS/GRAPH inside EXISTS are not supported; such a pattern
// is treated as never matching any additional patterns beyond its direct
// triple patterns.
func (e *Evaluator) evaluateExistsExpression(expr *parser.ExistsExpression, binding *store.Binding) (rdf.Term, error) {
	if e.store == nil {
		return nil, fmt.Errorf("EXISTS requires a store-backed evaluator")
	}

	matched, err := e.patternHasMatch(expr.Pattern, binding)
	if err != nil {
		return nil, err
	}

	if expr.Not {
		return rdf.NewBooleanLiteral(!matched), nil
	}
	return rdf.NewBooleanLiteral(matched), nil
}

// patternHasMatch reports whether expr.Pattern's triple patterns have at
// least one solution consistent with binding.
func (e *Evaluator) patternHasMatch(pattern *parser.GraphPattern, binding *store.Binding) (bool, error) {
	if pattern == nil {
		return true, nil
	}

	found := false
	err := e.joinPatterns(pattern.Patterns, 0, binding, func(result *store.Binding) (bool, error) {
		for _, filter := range pattern.Filters {
			val, err := e.Evaluate(filter.Expression, result)
			if err != nil {
				return true, nil // unmatched filter just prunes this branch, EXISTS keeps searching
			}
			ebv, err := e.effectiveBooleanValue(val)
			if err != nil || !ebv {
				return true, nil
			}
		}
		found = true
		return false, nil // stop as soon as one solution is found
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// joinPatterns performs a nested-loop join over triple patterns starting at
// index idx, invoking onSolution for every combined binding. onSolution
// returns (continue, error); returning continue=false stops the search early.
func (e *Evaluator) joinPatterns(patterns []*parser.TriplePattern, idx int, binding *store.Binding, onSolution func(*store.Binding) (bool, error)) error {
	if idx >= len(patterns) {
		_, err := onSolution(binding)
		return err
	}

	pat := patterns[idx]
	storePattern := &store.Pattern{
		Subject:   termOrVariableToStoreTerm(pat.Subject, binding),
		Predicate: termOrVariableToStoreTerm(pat.Predicate, binding),
		Object:    termOrVariableToStoreTerm(pat.Object, binding),
	}

	iter, err := e.store.Query(storePattern)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		quad, err := iter.Quad()
		if err != nil {
			return err
		}

		next := binding.Clone()
		if !bindTermOrVariable(pat.Subject, quad.Subject, next) {
			continue
		}
		if !bindTermOrVariable(pat.Predicate, quad.Predicate, next) {
			continue
		}
		if !bindTermOrVariable(pat.Object, quad.Object, next) {
			continue
		}

		keepGoing := true
		err = e.joinPatterns(patterns, idx+1, next, func(result *store.Binding) (bool, error) {
			keepGoing, err = onSolution(result)
			return keepGoing, err
		})
		if err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
	}

	return nil
}

// termOrVariableToStoreTerm resolves a parsed pattern position to either a
// concrete rdf.Term (bound variable or literal term) or a *store.Variable
// placeholder for the store's pattern matcher.
func termOrVariableToStoreTerm(tov parser.TermOrVariable, binding *store.Binding) any {
	if tov.IsVariable() {
		if bound, ok := binding.Vars[tov.Variable.Name]; ok {
			return bound
		}
		return store.NewVariable(tov.Variable.Name)
	}
	return tov.Term
}

// bindTermOrVariable attempts to bind a matched quad term into next,
// returning false if it conflicts with an existing binding for the same
// repeated variable within the pattern.
func bindTermOrVariable(tov parser.TermOrVariable, term rdf.Term, next *store.Binding) bool {
	if !tov.IsVariable() {
		return true
	}
	if existing, ok := next.Vars[tov.Variable.Name]; ok {
		return existing.Equals(term)
	}
	next.Vars[tov.Variable.Name] = term
	return true
}
