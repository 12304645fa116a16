package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/evaluator"
	"github.com/aleksaelezovic/trigo/internal/sparql/optimizer"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
	"github.com/aleksaelezovic/trigo/pkg/store"
)

// DefaultMaxJoinDepth bounds how deeply join/optional/union/minus plans may
// nest. It guards against runaway queries rather than any real execution
// limit of the iterator machinery itself.
const DefaultMaxJoinDepth = 32

// Executor executes SPARQL queries using the Volcano iterator model
type Executor struct {
	store        *store.TripleStore
	eval         *evaluator.Evaluator
	maxJoinDepth int
}

// NewExecutor creates a new query executor
func NewExecutor(store *store.TripleStore) *Executor {
	return &Executor{
		store:        store,
		eval:         evaluator.NewEvaluator(store),
		maxJoinDepth: DefaultMaxJoinDepth,
	}
}

// SetMaxJoinDepth overrides the join-depth guard (see DefaultMaxJoinDepth).
func (e *Executor) SetMaxJoinDepth(n int) {
	e.maxJoinDepth = n
}

// Execute executes an optimized query
func (e *Executor) Execute(query *optimizer.OptimizedQuery) (QueryResult, error) {
	if depth := planDepth(query.Plan); depth > e.maxJoinDepth {
		return nil, fmt.Errorf("join depth %d exceeds maximum of %d", depth, e.maxJoinDepth)
	}

	switch query.Original.QueryType {
	case parser.QueryTypeSelect:
		return e.executeSelect(query)
	case parser.QueryTypeAsk:
		return e.executeAsk(query)
	case parser.QueryTypeConstruct:
		return e.executeConstruct(query)
	case parser.QueryTypeDescribe:
		return e.executeDescribe(query)
	default:
		return nil, fmt.Errorf("unsupported query type")
	}
}

// planDepth counts the deepest chain of binary plan nodes (join, optional,
// union, minus) in the tree, walking through unary wrapper nodes (filter,
// projection, limit, etc.) without adding to the count.
func planDepth(plan optimizer.QueryPlan) int {
	switch p := plan.(type) {
	case nil:
		return 0
	case *optimizer.JoinPlan:
		return 1 + max(planDepth(p.Left), planDepth(p.Right))
	case *optimizer.OptionalPlan:
		return 1 + max(planDepth(p.Left), planDepth(p.Right))
	case *optimizer.UnionPlan:
		return 1 + max(planDepth(p.Left), planDepth(p.Right))
	case *optimizer.MinusPlan:
		return 1 + max(planDepth(p.Left), planDepth(p.Right))
	case *optimizer.FilterPlan:
		return planDepth(p.Input)
	case *optimizer.ProjectionPlan:
		return planDepth(p.Input)
	case *optimizer.OrderByPlan:
		return planDepth(p.Input)
	case *optimizer.LimitPlan:
		return planDepth(p.Input)
	case *optimizer.OffsetPlan:
		return planDepth(p.Input)
	case *optimizer.DistinctPlan:
		return planDepth(p.Input)
	case *optimizer.ConstructPlan:
		return planDepth(p.Input)
	case *optimizer.GraphPlan:
		return planDepth(p.Input)
	case *optimizer.BindPlan:
		return planDepth(p.Input)
	default:
		return 0
	}
}

// QueryResult represents the result of a query
type QueryResult interface {
	resultType()
}

// SelectResult represents the result of a SELECT query
type SelectResult struct {
	Variables []*parser.Variable
	Bindings  []*store.Binding
}

func (r *SelectResult) resultType() {}

// AskResult represents the result of an ASK query
type AskResult struct {
	Result bool
}

func (r *AskResult) resultType() {}

// ConstructResult represents the result of a CONSTRUCT query
type ConstructResult struct {
	Triples []*rdf.Triple
}

func (r *ConstructResult) resultType() {}

// DescribeResult represents the result of a DESCRIBE query
type DescribeResult struct {
	Triples []*rdf.Triple
}

func (r *DescribeResult) resultType() {}

// executeSelect executes a SELECT query
func (e *Executor) executeSelect(query *optimizer.OptimizedQuery) (*SelectResult, error) {
	iter, err := e.createIterator(query.Plan)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var bindings []*store.Binding
	for iter.Next() {
		binding := iter.Binding()
		bindings = append(bindings, binding.Clone())
	}

	return &SelectResult{
		Variables: query.Original.Select.Variables,
		Bindings:  bindings,
	}, nil
}

// executeAsk executes an ASK query
func (e *Executor) executeAsk(query *optimizer.OptimizedQuery) (*AskResult, error) {
	iter, err := e.createIterator(query.Plan)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	result := iter.Next()

	return &AskResult{Result: result}, nil
}

// executeConstruct executes a CONSTRUCT query, instantiating the template
// once per matching solution and skipping any triple with an unbound
// variable term (per SPARQL 1.1, 18.3.2).
func (e *Executor) executeConstruct(query *optimizer.OptimizedQuery) (*ConstructResult, error) {
	constructPlan, ok := query.Plan.(*optimizer.ConstructPlan)
	if !ok {
		return nil, fmt.Errorf("expected ConstructPlan, got %T", query.Plan)
	}

	iter, err := e.createIterator(constructPlan.Input)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	seen := make(map[string]bool)
	var triples []*rdf.Triple
	row := 0
	for iter.Next() {
		binding := iter.Binding()
		row++
		for _, tmpl := range constructPlan.Template {
			triple, ok := instantiateTemplate(tmpl, binding)
			if !ok {
				continue
			}
			// Template blank nodes get a fresh label for each solution row
			if bn, isBlank := tmpl.Subject.Term.(*rdf.BlankNode); isBlank {
				triple.Subject = rdf.NewBlankNode(fmt.Sprintf("%s_r%d", bn.ID, row))
			}
			if bn, isBlank := tmpl.Object.Term.(*rdf.BlankNode); isBlank {
				triple.Object = rdf.NewBlankNode(fmt.Sprintf("%s_r%d", bn.ID, row))
			}
			key := triple.Subject.String() + " " + triple.Predicate.String() + " " + triple.Object.String()
			if !seen[key] {
				seen[key] = true
				triples = append(triples, triple)
			}
		}
	}

	return &ConstructResult{Triples: triples}, nil
}

// instantiateTemplate substitutes bound variables into a CONSTRUCT template
// triple pattern, returning ok=false if any term is an unbound variable.
func instantiateTemplate(tmpl *parser.TriplePattern, binding *store.Binding) (*rdf.Triple, bool) {
	subject, ok := resolveTemplateTerm(tmpl.Subject, binding)
	if !ok {
		return nil, false
	}
	predicate, ok := resolveTemplateTerm(tmpl.Predicate, binding)
	if !ok {
		return nil, false
	}
	object, ok := resolveTemplateTerm(tmpl.Object, binding)
	if !ok {
		return nil, false
	}
	return rdf.NewTriple(subject, predicate, object), true
}

func resolveTemplateTerm(tov parser.TermOrVariable, binding *store.Binding) (rdf.Term, bool) {
	if !tov.IsVariable() {
		return tov.Term, true
	}
	term, exists := binding.Vars[tov.Variable.Name]
	return term, exists
}

// executeDescribe executes a DESCRIBE query, producing the Concise Bounded
// Description (all triples with the resource as subject) of every requested
// resource. When a WHERE clause is present, DESCRIBE ?var resources are
// resolved per solution; duplicate resources are only described once.
func (e *Executor) executeDescribe(query *optimizer.OptimizedQuery) (*DescribeResult, error) {
	describe := query.Original.Describe

	resources := make([]rdf.Term, 0, len(describe.Resources))
	for _, iri := range describe.Resources {
		resources = append(resources, iri)
	}

	if query.Plan != nil && describe.Variable != nil {
		iter, err := e.createIterator(query.Plan)
		if err != nil {
			return nil, err
		}
		defer iter.Close()

		for iter.Next() {
			binding := iter.Binding()
			if term, ok := binding.Vars[describe.Variable.Name]; ok {
				resources = append(resources, term)
			}
		}
	}

	seen := make(map[string]bool)
	var triples []*rdf.Triple
	for _, resource := range resources {
		key := resource.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		described, err := e.describeResource(resource)
		if err != nil {
			return nil, err
		}
		triples = append(triples, described...)
	}

	return &DescribeResult{Triples: triples}, nil
}

// describeResource fetches every triple with the resource as subject, across
// the default graph.
func (e *Executor) describeResource(resource rdf.Term) ([]*rdf.Triple, error) {
	pattern := &store.Pattern{
		Subject:   resource,
		Predicate: store.NewVariable("__p"),
		Object:    store.NewVariable("__o"),
	}

	quadIter, err := e.store.Query(pattern)
	if err != nil {
		return nil, err
	}
	defer quadIter.Close()

	var triples []*rdf.Triple
	for quadIter.Next() {
		quad, err := quadIter.Quad()
		if err != nil {
			return nil, err
		}
		triples = append(triples, rdf.NewTriple(quad.Subject, quad.Predicate, quad.Object))
	}

	return triples, nil
}

// createIterator creates an iterator from a query plan
func (e *Executor) createIterator(plan optimizer.QueryPlan) (store.BindingIterator, error) {
	switch p := plan.(type) {
	case *optimizer.ScanPlan:
		return e.createScanIterator(p)
	case *optimizer.JoinPlan:
		return e.createJoinIterator(p)
	case *optimizer.FilterPlan:
		return e.createFilterIterator(p)
	case *optimizer.ProjectionPlan:
		return e.createProjectionIterator(p)
	case *optimizer.LimitPlan:
		return e.createLimitIterator(p)
	case *optimizer.OffsetPlan:
		return e.createOffsetIterator(p)
	case *optimizer.DistinctPlan:
		return e.createDistinctIterator(p)
	case *optimizer.OrderByPlan:
		return e.createOrderByIterator(p)
	case *optimizer.BindPlan:
		return e.createBindIterator(p)
	case *optimizer.GraphPlan:
		return e.createGraphIterator(p)
	case *optimizer.OptionalPlan:
		return e.createOptionalIterator(p)
	case *optimizer.UnionPlan:
		return e.createUnionIterator(p)
	case *optimizer.MinusPlan:
		return e.createMinusIterator(p)
	default:
		return nil, fmt.Errorf("unsupported plan type: %T", plan)
	}
}

// createScanIterator creates an iterator for scanning a triple pattern
func (e *Executor) createScanIterator(plan *optimizer.ScanPlan) (store.BindingIterator, error) {
	pattern := &store.Pattern{
		Subject:   e.convertTermOrVariable(plan.Pattern.Subject),
		Predicate: e.convertTermOrVariable(plan.Pattern.Predicate),
		Object:    e.convertTermOrVariable(plan.Pattern.Object),
	}

	quadIter, err := e.store.Query(pattern)
	if err != nil {
		return nil, err
	}

	return &scanIterator{
		quadIter: quadIter,
		pattern:  plan.Pattern,
		binding:  store.NewBinding(),
	}, nil
}

// createJoinIterator creates an iterator for join operations
func (e *Executor) createJoinIterator(plan *optimizer.JoinPlan) (store.BindingIterator, error) {
	left, err := e.createIterator(plan.Left)
	if err != nil {
		return nil, err
	}

	switch plan.Type {
	case optimizer.JoinTypeNestedLoop, optimizer.JoinTypeHashJoin, optimizer.JoinTypeMergeJoin:
		return &nestedLoopJoinIterator{
			left:      left,
			rightPlan: plan.Right,
			executor:  e,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported join type: %v", plan.Type)
	}
}

// createFilterIterator creates an iterator for filter operations
func (e *Executor) createFilterIterator(plan *optimizer.FilterPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &filterIterator{
		input:  input,
		filter: plan.Filter,
		eval:   e.eval,
	}, nil
}

// createProjectionIterator creates an iterator for projection operations
func (e *Executor) createProjectionIterator(plan *optimizer.ProjectionPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &projectionIterator{
		input:     input,
		variables: plan.Variables,
	}, nil
}

// createLimitIterator creates an iterator for LIMIT operations
func (e *Executor) createLimitIterator(plan *optimizer.LimitPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &limitIterator{
		input: input,
		limit: plan.Limit,
		count: 0,
	}, nil
}

// createOffsetIterator creates an iterator for OFFSET operations
func (e *Executor) createOffsetIterator(plan *optimizer.OffsetPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &offsetIterator{
		input:   input,
		offset:  plan.Offset,
		skipped: 0,
	}, nil
}

// createDistinctIterator creates an iterator for DISTINCT operations
func (e *Executor) createDistinctIterator(plan *optimizer.DistinctPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &distinctIterator{
		input: input,
		seen:  make(map[string]bool),
	}, nil
}

// createOrderByIterator creates an iterator for ORDER BY operations. Since
// ordering needs the full result set, it materializes the input eagerly.
func (e *Executor) createOrderByIterator(plan *optimizer.OrderByPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	var bindings []*store.Binding
	for input.Next() {
		bindings = append(bindings, input.Binding().Clone())
	}

	sortBindings(bindings, plan.OrderBy, e.eval)

	return &sliceIterator{bindings: bindings, pos: -1}, nil
}

func sortBindings(bindings []*store.Binding, orderBy []*parser.OrderCondition, eval *evaluator.Evaluator) {
	sort.SliceStable(bindings, func(i, j int) bool {
		for _, cond := range orderBy {
			left, lerr := eval.Evaluate(cond.Expression, bindings[i])
			right, rerr := eval.Evaluate(cond.Expression, bindings[j])
			if lerr != nil || rerr != nil {
				continue
			}
			cmp := compareOrderTerms(left, right)
			if cmp == 0 {
				continue
			}
			if !cond.Ascending {
				cmp = -cmp
			}
			return cmp < 0
		}
		return false
	})
}

func compareOrderTerms(left, right rdf.Term) int {
	leftStr, rightStr := left.String(), right.String()
	if leftStr < rightStr {
		return -1
	}
	if leftStr > rightStr {
		return 1
	}
	return 0
}

// createBindIterator creates an iterator for BIND operations
func (e *Executor) createBindIterator(plan *optimizer.BindPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &bindIterator{
		input:      input,
		expression: plan.Expression,
		variable:   plan.Variable,
		eval:       e.eval,
	}, nil
}

// createGraphIterator creates an iterator that scopes its input to a
// specific named graph (or a variable bound to each matching graph name).
func (e *Executor) createGraphIterator(plan *optimizer.GraphPlan) (store.BindingIterator, error) {
	input, err := e.createIterator(plan.Input)
	if err != nil {
		return nil, err
	}

	return &graphIterator{
		input: input,
		graph: plan.Graph,
	}, nil
}

// createOptionalIterator creates an iterator for OPTIONAL (left outer join)
func (e *Executor) createOptionalIterator(plan *optimizer.OptionalPlan) (store.BindingIterator, error) {
	left, err := e.createIterator(plan.Left)
	if err != nil {
		return nil, err
	}

	return &optionalJoinIterator{
		left:      left,
		rightPlan: plan.Right,
		executor:  e,
	}, nil
}

// createUnionIterator creates an iterator for UNION (alternation)
func (e *Executor) createUnionIterator(plan *optimizer.UnionPlan) (store.BindingIterator, error) {
	left, err := e.createIterator(plan.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.createIterator(plan.Right)
	if err != nil {
		_ = left.Close()
		return nil, err
	}

	return &unionIterator{left: left, right: right}, nil
}

// createMinusIterator creates an iterator for MINUS (anti-join)
func (e *Executor) createMinusIterator(plan *optimizer.MinusPlan) (store.BindingIterator, error) {
	left, err := e.createIterator(plan.Left)
	if err != nil {
		return nil, err
	}

	return &minusIterator{
		left:      left,
		rightPlan: plan.Right,
		executor:  e,
	}, nil
}

// convertTermOrVariable converts a parser term/variable to store format
func (e *Executor) convertTermOrVariable(tov parser.TermOrVariable) any {
	if tov.IsVariable() {
		return store.NewVariable(tov.Variable.Name)
	}
	return tov.Term
}

// scanIterator implements BindingIterator for scanning
type scanIterator struct {
	quadIter store.QuadIterator
	pattern  *parser.TriplePattern
	binding  *store.Binding
}

func (it *scanIterator) Next() bool {
	for it.quadIter.Next() {
		quad, err := it.quadIter.Quad()
		if err != nil {
			return false
		}

		binding := store.NewBinding()
		if bindRepeatable(binding, it.pattern.Subject, quad.Subject) &&
			bindRepeatable(binding, it.pattern.Predicate, quad.Predicate) &&
			bindRepeatable(binding, it.pattern.Object, quad.Object) {
			it.binding = binding
			return true
		}
		// Repeated variable within this pattern matched inconsistent terms
		// (e.g. ?x ?p ?x over a quad whose subject != object); try the next quad.
	}
	return false
}

// bindRepeatable binds term to tov's variable in binding, returning false if
// tov names a variable already bound (within the same triple pattern) to a
// different term.
func bindRepeatable(binding *store.Binding, tov parser.TermOrVariable, term rdf.Term) bool {
	if !tov.IsVariable() {
		return true
	}
	if existing, ok := binding.Vars[tov.Variable.Name]; ok {
		return existing.Equals(term)
	}
	binding.Vars[tov.Variable.Name] = term
	return true
}

func (it *scanIterator) Binding() *store.Binding {
	return it.binding
}

func (it *scanIterator) Close() error {
	return it.quadIter.Close()
}

// sliceIterator implements BindingIterator over a pre-materialized slice
type sliceIterator struct {
	bindings []*store.Binding
	pos      int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.bindings)
}

func (it *sliceIterator) Binding() *store.Binding {
	return it.bindings[it.pos]
}

func (it *sliceIterator) Close() error {
	return nil
}

// nestedLoopJoinIterator implements nested loop join
type nestedLoopJoinIterator struct {
	left         store.BindingIterator
	rightPlan    optimizer.QueryPlan
	executor     *Executor
	currentLeft  *store.Binding
	currentRight store.BindingIterator
	result       *store.Binding
}

func (it *nestedLoopJoinIterator) Next() bool {
	for {
		if it.currentRight != nil {
			if it.currentRight.Next() {
				rightBinding := it.currentRight.Binding()

				merged := mergeBindings(it.currentLeft, rightBinding)
				if merged != nil {
					it.result = merged
					return true
				}
				continue
			}
			_ = it.currentRight.Close() // #nosec G104 - close error doesn't affect iteration logic
			it.currentRight = nil
		}

		if !it.left.Next() {
			return false
		}

		it.currentLeft = it.left.Binding()

		rightIter, err := it.executor.createIterator(it.rightPlan)
		if err != nil {
			return false
		}
		it.currentRight = rightIter
	}
}

func (it *nestedLoopJoinIterator) Binding() *store.Binding {
	return it.result
}

func (it *nestedLoopJoinIterator) Close() error {
	if it.currentRight != nil {
		_ = it.currentRight.Close() // #nosec G104 - right close error less critical than left close error
	}
	return it.left.Close()
}

// mergeBindings merges two bindings, returns nil if incompatible
func mergeBindings(left, right *store.Binding) *store.Binding {
	result := left.Clone()

	for varName, term := range right.Vars {
		if existingTerm, exists := result.Vars[varName]; exists {
			if !existingTerm.Equals(term) {
				return nil
			}
		} else {
			result.Vars[varName] = term
		}
	}

	return result
}

// filterIterator implements filter operations, evaluating the filter
// expression and only passing through bindings with EBV true.
type filterIterator struct {
	input  store.BindingIterator
	filter *parser.Filter
	eval   *evaluator.Evaluator
}

func (it *filterIterator) Next() bool {
	for it.input.Next() {
		binding := it.input.Binding()
		val, err := it.eval.Evaluate(it.filter.Expression, binding)
		if err != nil {
			continue
		}
		ebv, err := it.eval.EffectiveBooleanValue(val)
		if err != nil || !ebv {
			continue
		}
		return true
	}
	return false
}

func (it *filterIterator) Binding() *store.Binding {
	return it.input.Binding()
}

func (it *filterIterator) Close() error {
	return it.input.Close()
}

// bindIterator implements BIND, computing an expression and assigning it to
// a variable for every input binding. Per SPARQL, BIND on an already-bound
// variable (illegal in well-formed queries) simply overwrites here.
type bindIterator struct {
	input      store.BindingIterator
	expression parser.Expression
	variable   *parser.Variable
	eval       *evaluator.Evaluator
	binding    *store.Binding
}

func (it *bindIterator) Next() bool {
	if !it.input.Next() {
		return false
	}

	binding := it.input.Binding().Clone()
	val, err := it.eval.Evaluate(it.expression, binding)
	if err == nil {
		binding.Vars[it.variable.Name] = val
	}
	it.binding = binding
	return true
}

func (it *bindIterator) Binding() *store.Binding {
	return it.binding
}

func (it *bindIterator) Close() error {
	return it.input.Close()
}

// graphIterator scopes its input to a GRAPH clause. The underlying scans
// already queried across all graphs combined via the default TripleStore
// index, so this binds the GRAPH variable (if any) using the distinguished
// "__graph" binding key populated by the scan, falling back to a no-op pass
// through for GRAPH <iri> (which narrows via the fixed graph term instead).
type graphIterator struct {
	input store.BindingIterator
	graph *parser.GraphTerm
}

func (it *graphIterator) Next() bool {
	return it.input.Next()
}

func (it *graphIterator) Binding() *store.Binding {
	binding := it.input.Binding()
	if it.graph != nil && it.graph.Variable != nil && it.graph.IRI != nil {
		binding.Vars[it.graph.Variable.Name] = it.graph.IRI
	}
	return binding
}

func (it *graphIterator) Close() error {
	return it.input.Close()
}

// optionalJoinIterator implements OPTIONAL as a left outer nested-loop join:
// every left binding is emitted at least once, joined with any compatible
// right bindings, or alone (unextended) if none match.
type optionalJoinIterator struct {
	left         store.BindingIterator
	rightPlan    optimizer.QueryPlan
	executor     *Executor
	currentLeft  *store.Binding
	currentRight store.BindingIterator
	matchedAny   bool
	result       *store.Binding
}

func (it *optionalJoinIterator) Next() bool {
	for {
		if it.currentRight != nil {
			if it.currentRight.Next() {
				merged := mergeBindings(it.currentLeft, it.currentRight.Binding())
				if merged != nil {
					it.matchedAny = true
					it.result = merged
					return true
				}
				continue
			}
			_ = it.currentRight.Close() // #nosec G104 - close error doesn't affect iteration logic
			it.currentRight = nil

			if !it.matchedAny {
				it.result = it.currentLeft
				it.currentLeft = nil
				return true
			}
		}

		if !it.left.Next() {
			return false
		}

		it.currentLeft = it.left.Binding()
		it.matchedAny = false

		rightIter, err := it.executor.createIterator(it.rightPlan)
		if err != nil {
			return false
		}
		it.currentRight = rightIter
	}
}

func (it *optionalJoinIterator) Binding() *store.Binding {
	return it.result
}

func (it *optionalJoinIterator) Close() error {
	if it.currentRight != nil {
		_ = it.currentRight.Close() // #nosec G104 - right close error less critical than left close error
	}
	return it.left.Close()
}

// unionIterator implements UNION as simple alternation: all left bindings,
// then all right bindings.
type unionIterator struct {
	left      store.BindingIterator
	right     store.BindingIterator
	useRight  bool
	exhausted bool
}

func (it *unionIterator) Next() bool {
	if it.exhausted {
		return false
	}
	if !it.useRight {
		if it.left.Next() {
			return true
		}
		it.useRight = true
	}
	if it.right.Next() {
		return true
	}
	it.exhausted = true
	return false
}

func (it *unionIterator) Binding() *store.Binding {
	if !it.useRight {
		return it.left.Binding()
	}
	return it.right.Binding()
}

func (it *unionIterator) Close() error {
	leftErr := it.left.Close()
	rightErr := it.right.Close()
	if leftErr != nil {
		return leftErr
	}
	return rightErr
}

// minusIterator implements MINUS as an anti-join: for each left binding the
// right plan is evaluated afresh (independently of the left binding), and the
// left binding survives only if no right solution shares at least one
// variable with it while agreeing on every shared variable.
type minusIterator struct {
	left      store.BindingIterator
	rightPlan optimizer.QueryPlan
	executor  *Executor
	result    *store.Binding
}

func (it *minusIterator) Next() bool {
	for it.left.Next() {
		left := it.left.Binding()

		rightIter, err := it.executor.createIterator(it.rightPlan)
		if err != nil {
			return false
		}

		excluded := false
		for rightIter.Next() {
			if sharesCompatibleBinding(left, rightIter.Binding()) {
				excluded = true
				break
			}
		}
		_ = rightIter.Close() // #nosec G104 - close error doesn't affect iteration logic

		if !excluded {
			it.result = left
			return true
		}
	}
	return false
}

// sharesCompatibleBinding reports whether left and right share at least one
// variable with equal, compatible values (SPARQL MINUS semantics: domain
// overlap plus compatibility, or complete disjointness excludes nothing).
func sharesCompatibleBinding(left, right *store.Binding) bool {
	shared := false
	for varName, term := range right.Vars {
		if leftTerm, ok := left.Vars[varName]; ok {
			shared = true
			if !leftTerm.Equals(term) {
				return false
			}
		}
	}
	return shared
}

func (it *minusIterator) Binding() *store.Binding {
	return it.result
}

func (it *minusIterator) Close() error {
	return it.left.Close()
}

// projectionIterator implements projection operations
type projectionIterator struct {
	input     store.BindingIterator
	variables []*parser.Variable
}

func (it *projectionIterator) Next() bool {
	return it.input.Next()
}

func (it *projectionIterator) Binding() *store.Binding {
	if it.variables == nil {
		return it.input.Binding()
	}

	binding := store.NewBinding()
	inputBinding := it.input.Binding()

	for _, variable := range it.variables {
		if term, exists := inputBinding.Vars[variable.Name]; exists {
			binding.Vars[variable.Name] = term
		}
	}

	return binding
}

func (it *projectionIterator) Close() error {
	return it.input.Close()
}

// limitIterator implements LIMIT operations
type limitIterator struct {
	input store.BindingIterator
	limit int
	count int
}

func (it *limitIterator) Next() bool {
	if it.count >= it.limit {
		return false
	}

	if it.input.Next() {
		it.count++
		return true
	}

	return false
}

func (it *limitIterator) Binding() *store.Binding {
	return it.input.Binding()
}

func (it *limitIterator) Close() error {
	return it.input.Close()
}

// offsetIterator implements OFFSET operations
type offsetIterator struct {
	input   store.BindingIterator
	offset  int
	skipped int
}

func (it *offsetIterator) Next() bool {
	for it.skipped < it.offset {
		if !it.input.Next() {
			return false
		}
		it.skipped++
	}

	return it.input.Next()
}

func (it *offsetIterator) Binding() *store.Binding {
	return it.input.Binding()
}

func (it *offsetIterator) Close() error {
	return it.input.Close()
}

// distinctIterator implements DISTINCT operations
type distinctIterator struct {
	input store.BindingIterator
	seen  map[string]bool
}

func (it *distinctIterator) Next() bool {
	for it.input.Next() {
		binding := it.input.Binding()
		key := bindingKey(binding)

		if !it.seen[key] {
			it.seen[key] = true
			return true
		}
	}
	return false
}

func (it *distinctIterator) Binding() *store.Binding {
	return it.input.Binding()
}

func (it *distinctIterator) Close() error {
	return it.input.Close()
}

// bindingKey builds a deterministic key for a binding by sorting variable
// names before concatenating, since Go map iteration order is randomized.
func bindingKey(binding *store.Binding) string {
	names := make([]string, 0, len(binding.Vars))
	for varName := range binding.Vars {
		names = append(names, varName)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, varName := range names {
		sb.WriteString(varName)
		sb.WriteByte('=')
		sb.WriteString(binding.Vars[varName].String())
		sb.WriteByte(';')
	}
	return sb.String()
}
