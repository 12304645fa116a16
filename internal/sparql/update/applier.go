// Package update implements the SPARQL 1.1 Update applier: it takes a parsed
// UpdateRequest and mutates a TripleStore, evaluating WHERE clauses through
// the same optimizer/executor machinery used for read queries.
package update

import (
	"context"
	"fmt"

	"github.com/aleksaelezovic/trigo/internal/load"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/optimizer"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
	"github.com/aleksaelezovic/trigo/pkg/store"
)

// Applier applies SPARQL Update requests against a TripleStore.
type Applier struct {
	store     *store.TripleStore
	executor  *executor.Executor
	optimizer *optimizer.Optimizer
	loader    *load.Client
}

// NewApplier creates an Applier backed by s.
func NewApplier(s *store.TripleStore) *Applier {
	return &Applier{
		store:     s,
		executor:  executor.NewExecutor(s),
		optimizer: optimizer.NewOptimizer(&optimizer.Statistics{}),
		loader:    load.NewClient(),
	}
}

// Result reports the outcome of applying an update request.
type Result struct {
	Success  bool
	Affected int
}

// Apply runs every operation in req in order, within its own batch per
// operation. An operation whose Silent flag is set swallows its own error
// and continues with the next operation; otherwise the first error aborts
// the request, returning the partial result accumulated so far.
func (a *Applier) Apply(req *parser.UpdateRequest) (*Result, error) {
	result := &Result{}

	for _, op := range req.Operations {
		affected, err := a.applyOperation(op)
		if err != nil {
			if op.Silent {
				continue
			}
			return result, err
		}
		result.Affected += affected
	}

	result.Success = true
	return result, nil
}

func (a *Applier) applyOperation(op *parser.UpdateOperation) (int, error) {
	switch op.Type {
	case parser.UpdateLoad:
		return a.applyLoad(op)
	case parser.UpdateClear, parser.UpdateDrop:
		return a.applyClearOrDrop(op)
	case parser.UpdateCreate:
		// Graphs are implicit in this store: any graph name that has quads
		// exists, and CREATE never needs to materialize an empty one.
		return 0, nil
	case parser.UpdateAdd:
		return a.applyAdd(op)
	case parser.UpdateMove:
		return a.applyMove(op)
	case parser.UpdateCopy:
		return a.applyCopy(op)
	case parser.UpdateInsertData:
		return a.applyInsertData(op)
	case parser.UpdateDeleteData:
		return a.applyDeleteData(op)
	case parser.UpdateDeleteWhere:
		return a.applyDeleteWhere(op)
	case parser.UpdateModify:
		return a.applyModify(op)
	default:
		return 0, fmt.Errorf("unsupported update operation")
	}
}

// applyLoad fetches op.LoadSource and inserts the result, rewriting every
// quad's graph to op.LoadInto when the INTO GRAPH clause is present.
func (a *Applier) applyLoad(op *parser.UpdateOperation) (int, error) {
	quads, err := a.loader.Load(context.Background(), op.LoadSource.IRI)
	if err != nil {
		return 0, err
	}

	if op.LoadInto != nil {
		for _, q := range quads {
			q.Graph = op.LoadInto.IRI
		}
	}

	if err := a.store.InsertQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyClearOrDrop deletes every quad matching op.Graph. DROP and CLEAR are
// equivalent in this store: there is no separate graph-existence metadata
// to remove once its quads are gone.
func (a *Applier) applyClearOrDrop(op *parser.UpdateOperation) (int, error) {
	ref := op.Graph

	var graphPattern any
	switch {
	case ref.Default:
		graphPattern = rdf.NewDefaultGraph()
	case ref.IRI != nil:
		graphPattern = ref.IRI
	case ref.Named, ref.All:
		graphPattern = nil // match every graph; filtered below for NAMED
	default:
		return 0, fmt.Errorf("invalid graph reference")
	}

	quads, err := a.scanQuads(graphPattern)
	if err != nil {
		return 0, err
	}

	if ref.Named {
		filtered := quads[:0]
		for _, q := range quads {
			if q.Graph.Type() != rdf.TermTypeDefaultGraph {
				filtered = append(filtered, q)
			}
		}
		quads = filtered
	}

	if err := a.store.DeleteQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyAdd copies every triple from op.From into op.To, leaving op.From
// untouched. A no-op when the two graphs are the same.
func (a *Applier) applyAdd(op *parser.UpdateOperation) (int, error) {
	if graphRefEqual(op.From, op.To) {
		return 0, nil
	}

	quads, err := a.copyGraphQuads(op.From, op.To)
	if err != nil {
		return 0, err
	}
	if err := a.store.InsertQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyCopy replaces the contents of op.To with a copy of op.From.
func (a *Applier) applyCopy(op *parser.UpdateOperation) (int, error) {
	if graphRefEqual(op.From, op.To) {
		return 0, nil
	}

	if _, err := a.clearGraphRef(op.To); err != nil {
		return 0, err
	}
	quads, err := a.copyGraphQuads(op.From, op.To)
	if err != nil {
		return 0, err
	}
	if err := a.store.InsertQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyMove replaces the contents of op.To with op.From, then clears
// op.From.
func (a *Applier) applyMove(op *parser.UpdateOperation) (int, error) {
	if graphRefEqual(op.From, op.To) {
		return 0, nil
	}

	if _, err := a.clearGraphRef(op.To); err != nil {
		return 0, err
	}
	quads, err := a.copyGraphQuads(op.From, op.To)
	if err != nil {
		return 0, err
	}
	if err := a.store.InsertQuadsBatch(quads); err != nil {
		return 0, err
	}
	if _, err := a.clearGraphRef(op.From); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyInsertData inserts ground quad data verbatim.
func (a *Applier) applyInsertData(op *parser.UpdateOperation) (int, error) {
	quads, err := groundQuads(op.QuadData)
	if err != nil {
		return 0, err
	}
	if err := a.store.InsertQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyDeleteData deletes ground quad data verbatim and reports how many of
// the given quads were present before the delete.
func (a *Applier) applyDeleteData(op *parser.UpdateOperation) (int, error) {
	quads, err := groundQuads(op.QuadData)
	if err != nil {
		return 0, err
	}
	affected := 0
	for _, q := range quads {
		present, err := a.store.ContainsQuad(q)
		if err != nil {
			return 0, err
		}
		if present {
			affected++
		}
	}
	if err := a.store.DeleteQuadsBatch(quads); err != nil {
		return 0, err
	}
	return affected, nil
}

// applyDeleteWhere matches op.Where (which is op.DeleteTemplate's own shape)
// against the store and deletes every instantiated quad.
func (a *Applier) applyDeleteWhere(op *parser.UpdateOperation) (int, error) {
	bindings, err := a.evaluateWhere(op.Where)
	if err != nil {
		return 0, err
	}

	var quads []*rdf.Quad
	for _, binding := range bindings {
		for _, tmpl := range op.DeleteTemplate {
			if q, ok := instantiateQuad(tmpl, binding, nil); ok {
				quads = append(quads, q)
			}
		}
	}

	if err := a.store.DeleteQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

// applyModify evaluates op.Where against the pre-update store, then deletes
// every instantiated DeleteTemplate quad before inserting every
// instantiated InsertTemplate quad. Quads whose template leaves the graph
// unscoped take op.With as their graph when present.
func (a *Applier) applyModify(op *parser.UpdateOperation) (int, error) {
	bindings, err := a.evaluateWhere(op.Where)
	if err != nil {
		return 0, err
	}

	var deleteQuads, insertQuads []*rdf.Quad
	for _, binding := range bindings {
		for _, tmpl := range op.DeleteTemplate {
			if q, ok := instantiateQuad(tmpl, binding, op.With); ok {
				deleteQuads = append(deleteQuads, q)
			}
		}
		for _, tmpl := range op.InsertTemplate {
			if q, ok := instantiateQuad(tmpl, binding, op.With); ok {
				insertQuads = append(insertQuads, q)
			}
		}
	}

	if len(deleteQuads) > 0 {
		if err := a.store.DeleteQuadsBatch(deleteQuads); err != nil {
			return 0, err
		}
	}
	if len(insertQuads) > 0 {
		if err := a.store.InsertQuadsBatch(insertQuads); err != nil {
			return 0, err
		}
	}

	return len(deleteQuads) + len(insertQuads), nil
}

// evaluateWhere runs pattern as a synthetic "SELECT * WHERE { pattern }"
// through the usual optimizer/executor pipeline.
func (a *Applier) evaluateWhere(pattern *parser.GraphPattern) ([]*store.Binding, error) {
	query := &parser.Query{
		QueryType: parser.QueryTypeSelect,
		Select:    &parser.SelectQuery{Where: pattern},
	}

	optimized, err := a.optimizer.Optimize(query)
	if err != nil {
		return nil, fmt.Errorf("optimizing WHERE clause: %w", err)
	}

	result, err := a.executor.Execute(optimized)
	if err != nil {
		return nil, fmt.Errorf("evaluating WHERE clause: %w", err)
	}

	selectResult, ok := result.(*executor.SelectResult)
	if !ok {
		return nil, fmt.Errorf("expected SELECT result from WHERE clause, got %T", result)
	}
	return selectResult.Bindings, nil
}

// scanQuads fetches every quad matching graphPattern (an rdf.Term, a
// *store.Variable, or nil for any graph).
func (a *Applier) scanQuads(graphPattern any) ([]*rdf.Quad, error) {
	pattern := &store.Pattern{
		Subject:   store.NewVariable("__s"),
		Predicate: store.NewVariable("__p"),
		Object:    store.NewVariable("__o"),
		Graph:     graphPattern,
	}

	quadIter, err := a.store.Query(pattern)
	if err != nil {
		return nil, err
	}
	defer quadIter.Close()

	var quads []*rdf.Quad
	for quadIter.Next() {
		quad, err := quadIter.Quad()
		if err != nil {
			return nil, err
		}
		quads = append(quads, quad)
	}
	return quads, nil
}

func (a *Applier) clearGraphRef(ref *parser.GraphRef) (int, error) {
	quads, err := a.scanQuads(graphTermFromRef(ref))
	if err != nil {
		return 0, err
	}
	if err := a.store.DeleteQuadsBatch(quads); err != nil {
		return 0, err
	}
	return len(quads), nil
}

func (a *Applier) copyGraphQuads(from, to *parser.GraphRef) ([]*rdf.Quad, error) {
	quads, err := a.scanQuads(graphTermFromRef(from))
	if err != nil {
		return nil, err
	}

	toTerm := graphTermFromRef(to)
	copied := make([]*rdf.Quad, len(quads))
	for i, q := range quads {
		copied[i] = rdf.NewQuad(q.Subject, q.Predicate, q.Object, toTerm)
	}
	return copied, nil
}

func graphTermFromRef(ref *parser.GraphRef) rdf.Term {
	if ref.Default {
		return rdf.NewDefaultGraph()
	}
	return ref.IRI
}

func graphRefEqual(a, b *parser.GraphRef) bool {
	if a.Default && b.Default {
		return true
	}
	if a.IRI != nil && b.IRI != nil {
		return a.IRI.IRI == b.IRI.IRI
	}
	return false
}

// groundQuads converts quad data templates with no variables (as required
// by INSERT DATA/DELETE DATA) into quads.
func groundQuads(data []*parser.QuadPattern) ([]*rdf.Quad, error) {
	quads := make([]*rdf.Quad, 0, len(data))
	for _, qp := range data {
		if qp.Subject.IsVariable() || qp.Predicate.IsVariable() || qp.Object.IsVariable() {
			return nil, fmt.Errorf("variables are not allowed in ground quad data")
		}
		graph := rdf.Term(rdf.NewDefaultGraph())
		if qp.Graph != nil {
			if qp.Graph.Variable != nil {
				return nil, fmt.Errorf("variables are not allowed in ground quad data")
			}
			graph = qp.Graph.IRI
		}
		quads = append(quads, rdf.NewQuad(qp.Subject.Term, qp.Predicate.Term, qp.Object.Term, graph))
	}
	return quads, nil
}

// instantiateQuad substitutes binding's values into a quad template,
// returning ok=false if any term is an unbound variable. withGraph, when
// set, is used as the graph for templates that leave the graph unscoped
// (the Modify operation's WITH clause).
func instantiateQuad(tmpl *parser.QuadPattern, binding *store.Binding, withGraph *rdf.NamedNode) (*rdf.Quad, bool) {
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
	graph, ok := resolveTemplateGraph(tmpl.Graph, withGraph, binding)
	if !ok {
		return nil, false
	}
	return rdf.NewQuad(subject, predicate, object, graph), true
}

func resolveTemplateTerm(tov parser.TermOrVariable, binding *store.Binding) (rdf.Term, bool) {
	if !tov.IsVariable() {
		return tov.Term, true
	}
	term, exists := binding.Vars[tov.Variable.Name]
	return term, exists
}

func resolveTemplateGraph(g *parser.GraphTerm, withGraph *rdf.NamedNode, binding *store.Binding) (rdf.Term, bool) {
	if g == nil {
		if withGraph != nil {
			return withGraph, true
		}
		return rdf.NewDefaultGraph(), true
	}
	if g.Variable != nil {
		term, exists := binding.Vars[g.Variable.Name]
		return term, exists
	}
	return g.IRI, true
}
