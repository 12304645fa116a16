package parser

import (
	"fmt"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// UpdateRequest represents a full SPARQL Update request: a sequence of
// operations separated by ';', sharing a single PREFIX/BASE prologue.
type UpdateRequest struct {
	Operations []*UpdateOperation
}

// UpdateOperationType identifies the kind of update operation.
type UpdateOperationType int

const (
	UpdateLoad UpdateOperationType = iota
	UpdateClear
	UpdateDrop
	UpdateCreate
	UpdateAdd
	UpdateMove
	UpdateCopy
	UpdateInsertData
	UpdateDeleteData
	UpdateDeleteWhere
	UpdateModify
)

// GraphRef names a graph or a class of graphs targeted by a graph-management
// operation (CLEAR/DROP/CREATE/ADD/MOVE/COPY) or by LOAD's INTO clause.
type GraphRef struct {
	Default bool
	Named   bool
	All     bool
	IRI     *rdf.NamedNode
}

// QuadPattern is a triple pattern together with an optional graph scope,
// used both as ground data (INSERT DATA/DELETE DATA) and as a template
// (DELETE WHERE, the DELETE/INSERT clauses of Modify).
type QuadPattern struct {
	Subject   TermOrVariable
	Predicate TermOrVariable
	Object    TermOrVariable
	Graph     *GraphTerm // nil means the default graph
}

// UpdateOperation represents a single SPARQL Update operation.
type UpdateOperation struct {
	Type   UpdateOperationType
	Silent bool

	// LOAD
	LoadSource *rdf.NamedNode
	LoadInto   *GraphRef

	// CLEAR, DROP, CREATE
	Graph *GraphRef

	// ADD, MOVE, COPY
	From *GraphRef
	To   *GraphRef

	// INSERT DATA, DELETE DATA, DELETE WHERE
	QuadData []*QuadPattern

	// Modify (DELETE/INSERT ... WHERE)
	With           *rdf.NamedNode
	DeleteTemplate []*QuadPattern
	InsertTemplate []*QuadPattern
	Using          []*rdf.NamedNode
	UsingNamed     []*rdf.NamedNode
	Where          *GraphPattern
}

// ParseUpdate parses a complete SPARQL Update request, including its
// PREFIX/BASE prologue.
func (p *Parser) ParseUpdate() (*UpdateRequest, error) {
	p.skipWhitespace()
	for {
		p.skipWhitespace()
		if p.matchKeyword("PREFIX") {
			if err := p.skipPrefix(); err != nil {
				return nil, err
			}
		} else if p.matchKeyword("BASE") {
			if err := p.skipBase(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	return p.parseUpdateOperations()
}

// parseUpdateOperations parses the Update1 (';' Update1)* portion of a
// request, assuming any leading PREFIX/BASE prologue has already been
// consumed by the caller.
func (p *Parser) parseUpdateOperations() (*UpdateRequest, error) {
	req := &UpdateRequest{}

	for {
		p.skipWhitespace()
		if p.pos >= p.length {
			break
		}

		op, err := p.parseUpdateOperation()
		if err != nil {
			return nil, err
		}
		req.Operations = append(req.Operations, op)

		p.skipWhitespace()
		if p.peek() == ';' {
			p.advance()
			continue
		}
		break
	}

	if len(req.Operations) == 0 {
		return nil, fmt.Errorf("update request contains no operations")
	}

	return req, nil
}

func (p *Parser) parseUpdateOperation() (*UpdateOperation, error) {
	p.skipWhitespace()

	if p.matchKeyword("LOAD") {
		return p.parseLoad()
	}
	if p.matchKeyword("CLEAR") {
		return p.parseClearOrDrop(UpdateClear)
	}
	if p.matchKeyword("DROP") {
		return p.parseClearOrDrop(UpdateDrop)
	}
	if p.matchKeyword("CREATE") {
		return p.parseCreate()
	}
	if p.matchKeyword("ADD") {
		return p.parseAddMoveCopy(UpdateAdd)
	}
	if p.matchKeyword("MOVE") {
		return p.parseAddMoveCopy(UpdateMove)
	}
	if p.matchKeyword("COPY") {
		return p.parseAddMoveCopy(UpdateCopy)
	}
	if p.matchKeyword("WITH") {
		iri, err := p.parseIRI()
		if err != nil {
			return nil, fmt.Errorf("expected IRI after WITH: %w", err)
		}
		return p.parseModify(rdf.NewNamedNode(iri))
	}
	if p.peekKeyword("INSERT") {
		saved := p.pos
		p.matchKeyword("INSERT")
		if p.matchKeyword("DATA") {
			return p.parseInsertData()
		}
		p.pos = saved
		return p.parseModify(nil)
	}
	if p.peekKeyword("DELETE") {
		saved := p.pos
		p.matchKeyword("DELETE")
		if p.matchKeyword("DATA") {
			return p.parseDeleteData()
		}
		if p.matchKeyword("WHERE") {
			return p.parseDeleteWhere()
		}
		p.pos = saved
		return p.parseModify(nil)
	}

	return nil, fmt.Errorf("expected update operation (LOAD, CLEAR, DROP, CREATE, ADD, MOVE, COPY, INSERT, DELETE, WITH)")
}

// parseLoad parses: LOAD [SILENT] iri [INTO GRAPH iri]
func (p *Parser) parseLoad() (*UpdateOperation, error) {
	silent := p.matchKeyword("SILENT")

	source, err := p.parseIRI()
	if err != nil {
		return nil, fmt.Errorf("expected source IRI in LOAD: %w", err)
	}

	op := &UpdateOperation{
		Type:       UpdateLoad,
		Silent:     silent,
		LoadSource: rdf.NewNamedNode(source),
	}

	if p.matchKeyword("INTO") {
		if !p.matchKeyword("GRAPH") {
			return nil, fmt.Errorf("expected GRAPH after INTO in LOAD")
		}
		target, err := p.parseIRI()
		if err != nil {
			return nil, fmt.Errorf("expected target graph IRI in LOAD: %w", err)
		}
		op.LoadInto = &GraphRef{IRI: rdf.NewNamedNode(target)}
	}

	return op, nil
}

// parseClearOrDrop parses: (CLEAR|DROP) [SILENT] (DEFAULT|NAMED|ALL|GRAPH iri)
func (p *Parser) parseClearOrDrop(opType UpdateOperationType) (*UpdateOperation, error) {
	silent := p.matchKeyword("SILENT")

	ref, err := p.parseGraphRef()
	if err != nil {
		return nil, err
	}

	return &UpdateOperation{Type: opType, Silent: silent, Graph: ref}, nil
}

// parseGraphRef parses DEFAULT | NAMED | ALL | GRAPH iri
func (p *Parser) parseGraphRef() (*GraphRef, error) {
	if p.matchKeyword("DEFAULT") {
		return &GraphRef{Default: true}, nil
	}
	if p.matchKeyword("NAMED") {
		return &GraphRef{Named: true}, nil
	}
	if p.matchKeyword("ALL") {
		return &GraphRef{All: true}, nil
	}
	if p.matchKeyword("GRAPH") {
		iri, err := p.parseIRI()
		if err != nil {
			return nil, fmt.Errorf("expected graph IRI: %w", err)
		}
		return &GraphRef{IRI: rdf.NewNamedNode(iri)}, nil
	}
	return nil, fmt.Errorf("expected DEFAULT, NAMED, ALL, or GRAPH <iri>")
}

// parseCreate parses: CREATE [SILENT] GRAPH iri
func (p *Parser) parseCreate() (*UpdateOperation, error) {
	silent := p.matchKeyword("SILENT")

	if !p.matchKeyword("GRAPH") {
		return nil, fmt.Errorf("expected GRAPH after CREATE")
	}
	iri, err := p.parseIRI()
	if err != nil {
		return nil, fmt.Errorf("expected graph IRI in CREATE: %w", err)
	}

	return &UpdateOperation{
		Type:   UpdateCreate,
		Silent: silent,
		Graph:  &GraphRef{IRI: rdf.NewNamedNode(iri)},
	}, nil
}

// parseAddMoveCopy parses: (ADD|MOVE|COPY) [SILENT] GraphOrDefault TO GraphOrDefault
func (p *Parser) parseAddMoveCopy(opType UpdateOperationType) (*UpdateOperation, error) {
	silent := p.matchKeyword("SILENT")

	from, err := p.parseGraphOrDefault()
	if err != nil {
		return nil, fmt.Errorf("expected source graph: %w", err)
	}
	if !p.matchKeyword("TO") {
		return nil, fmt.Errorf("expected TO")
	}
	to, err := p.parseGraphOrDefault()
	if err != nil {
		return nil, fmt.Errorf("expected destination graph: %w", err)
	}

	return &UpdateOperation{Type: opType, Silent: silent, From: from, To: to}, nil
}

// parseGraphOrDefault parses: DEFAULT | GRAPH? iri
func (p *Parser) parseGraphOrDefault() (*GraphRef, error) {
	if p.matchKeyword("DEFAULT") {
		return &GraphRef{Default: true}, nil
	}
	p.matchKeyword("GRAPH") // optional per the grammar
	iri, err := p.parseIRI()
	if err != nil {
		return nil, err
	}
	return &GraphRef{IRI: rdf.NewNamedNode(iri)}, nil
}

// parseInsertData parses: INSERT DATA quadData
func (p *Parser) parseInsertData() (*UpdateOperation, error) {
	quads, err := p.parseQuadPatternTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse INSERT DATA block: %w", err)
	}
	return &UpdateOperation{Type: UpdateInsertData, QuadData: quads}, nil
}

// parseDeleteData parses: DELETE DATA quadData
func (p *Parser) parseDeleteData() (*UpdateOperation, error) {
	quads, err := p.parseQuadPatternTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse DELETE DATA block: %w", err)
	}
	return &UpdateOperation{Type: UpdateDeleteData, QuadData: quads}, nil
}

// parseDeleteWhere parses: DELETE WHERE quadPattern
//
// The pattern doubles as both the deletion template and the match
// criteria: every solution of matching it against the store is deleted.
func (p *Parser) parseDeleteWhere() (*UpdateOperation, error) {
	quads, err := p.parseQuadPatternTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse DELETE WHERE block: %w", err)
	}
	return &UpdateOperation{
		Type:           UpdateDeleteWhere,
		DeleteTemplate: quads,
		Where:          quadsToGraphPattern(quads),
	}, nil
}

// parseModify parses the DELETE/INSERT...WHERE form, assuming any leading
// "WITH iri" has already been consumed (withIRI is nil otherwise) and that
// the DELETE or INSERT keyword has not yet been consumed.
func (p *Parser) parseModify(withIRI *rdf.NamedNode) (*UpdateOperation, error) {
	op := &UpdateOperation{Type: UpdateModify, With: withIRI}

	p.skipWhitespace()
	if p.matchKeyword("DELETE") {
		quads, err := p.parseQuadPatternTemplate()
		if err != nil {
			return nil, fmt.Errorf("failed to parse DELETE clause: %w", err)
		}
		op.DeleteTemplate = quads

		p.skipWhitespace()
		if p.matchKeyword("INSERT") {
			quads2, err := p.parseQuadPatternTemplate()
			if err != nil {
				return nil, fmt.Errorf("failed to parse INSERT clause: %w", err)
			}
			op.InsertTemplate = quads2
		}
	} else if p.matchKeyword("INSERT") {
		quads, err := p.parseQuadPatternTemplate()
		if err != nil {
			return nil, fmt.Errorf("failed to parse INSERT clause: %w", err)
		}
		op.InsertTemplate = quads
	} else {
		return nil, fmt.Errorf("expected DELETE or INSERT clause")
	}

	for {
		p.skipWhitespace()
		if !p.matchKeyword("USING") {
			break
		}
		if p.matchKeyword("NAMED") {
			iri, err := p.parseIRI()
			if err != nil {
				return nil, fmt.Errorf("expected IRI in USING NAMED: %w", err)
			}
			op.UsingNamed = append(op.UsingNamed, rdf.NewNamedNode(iri))
			continue
		}
		iri, err := p.parseIRI()
		if err != nil {
			return nil, fmt.Errorf("expected IRI in USING: %w", err)
		}
		op.Using = append(op.Using, rdf.NewNamedNode(iri))
	}

	p.skipWhitespace()
	if !p.matchKeyword("WHERE") {
		return nil, fmt.Errorf("expected WHERE clause")
	}
	where, err := p.parseGraphPattern()
	if err != nil {
		return nil, fmt.Errorf("failed to parse WHERE clause: %w", err)
	}
	op.Where = where

	return op, nil
}

// parseQuadPatternTemplate parses a '{' ... '}' block containing triple
// patterns, optionally wrapped in GRAPH term { ... } blocks. It is shared by
// INSERT DATA, DELETE DATA, DELETE WHERE, and the DELETE/INSERT clauses of
// Modify; callers that require ground data (INSERT/DELETE DATA) do not get
// extra validation here that variables are absent, matching this parser's
// general preference for a single lenient code path over duplicated strict
// ones.
func (p *Parser) parseQuadPatternTemplate() ([]*QuadPattern, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("expected '{' to start quad pattern")
	}
	p.advance()

	var quads []*QuadPattern

	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.advance()
			break
		}

		if p.matchKeyword("GRAPH") {
			graphTerm, err := p.parseGraphTermForData()
			if err != nil {
				return nil, err
			}

			p.skipWhitespace()
			if p.peek() != '{' {
				return nil, fmt.Errorf("expected '{' after GRAPH in quad pattern")
			}
			p.advance()

			for {
				p.skipWhitespace()
				if p.peek() == '}' {
					p.advance()
					break
				}
				triple, err := p.parseTriplePattern()
				if err != nil {
					return nil, err
				}
				quads = append(quads, &QuadPattern{
					Subject:   triple.Subject,
					Predicate: triple.Predicate,
					Object:    triple.Object,
					Graph:     graphTerm,
				})
				p.skipWhitespace()
				if p.peek() == '.' {
					p.advance()
				}
			}

			p.skipWhitespace()
			if p.peek() == '.' {
				p.advance()
			}
			continue
		}

		triple, err := p.parseTriplePattern()
		if err != nil {
			return nil, err
		}
		quads = append(quads, &QuadPattern{
			Subject:   triple.Subject,
			Predicate: triple.Predicate,
			Object:    triple.Object,
		})

		p.skipWhitespace()
		if p.peek() == '.' {
			p.advance()
		}
	}

	return quads, nil
}

// parseGraphTermForData parses the graph name following a GRAPH keyword
// inside a quad data/pattern block: an IRI, a prefixed name, or a variable.
func (p *Parser) parseGraphTermForData() (*GraphTerm, error) {
	p.skipWhitespace()

	ch := p.peek()
	if ch == '?' || ch == '$' {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &GraphTerm{Variable: v}, nil
	}
	if ch == '<' {
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return &GraphTerm{IRI: rdf.NewNamedNode(iri)}, nil
	}

	name, err := p.parsePrefixedName()
	if err != nil {
		return nil, fmt.Errorf("expected IRI or variable for graph name: %w", err)
	}
	return &GraphTerm{IRI: rdf.NewNamedNode(name)}, nil
}

// quadsToGraphPattern converts a flat quad list (as produced by
// parseQuadPatternTemplate) into the equivalent basic graph pattern, used
// so DELETE WHERE can match its own template against the store.
func quadsToGraphPattern(quads []*QuadPattern) *GraphPattern {
	root := &GraphPattern{Type: GraphPatternTypeBasic}
	byGraph := make(map[string]*GraphPattern)

	for _, q := range quads {
		triple := &TriplePattern{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object}

		if q.Graph == nil {
			root.Patterns = append(root.Patterns, triple)
			continue
		}

		key := graphTermKey(q.Graph)
		group, ok := byGraph[key]
		if !ok {
			group = &GraphPattern{Type: GraphPatternTypeGraph, Graph: q.Graph}
			byGraph[key] = group
			root.Children = append(root.Children, group)
		}
		group.Patterns = append(group.Patterns, triple)
	}

	return root
}

func graphTermKey(g *GraphTerm) string {
	if g.Variable != nil {
		return "?" + g.Variable.Name
	}
	if g.IRI != nil {
		return g.IRI.IRI
	}
	return ""
}
