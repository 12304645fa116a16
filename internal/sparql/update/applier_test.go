package update

import (
	"testing"

	"github.com/aleksaelezovic/trigo/internal/encoding"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/internal/storage"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
	"github.com/aleksaelezovic/trigo/pkg/store"
)

func newTestStore(t *testing.T) *store.TripleStore {
	t.Helper()
	badgerStorage, err := storage.NewBadgerStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { badgerStorage.Close() })
	return store.NewTripleStore(badgerStorage, encoding.NewTermEncoder(), encoding.NewTermDecoder())
}

func parseUpdate(t *testing.T, text string) *parser.UpdateRequest {
	t.Helper()
	req, err := parser.NewParser(text).ParseUpdate()
	if err != nil {
		t.Fatalf("failed to parse update %q: %v", text, err)
	}
	return req
}

func TestApplyInsertDataAndDeleteData(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	req := parseUpdate(t, `INSERT DATA {
		<http://example.org/alice> <http://xmlns.com/foaf/0.1/name> "Alice" .
		<http://example.org/bob> <http://xmlns.com/foaf/0.1/name> "Bob" .
	}`)

	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("INSERT DATA failed: %v", err)
	}
	if !result.Success || result.Affected != 2 {
		t.Fatalf("expected success with 2 affected, got %+v", result)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 triples in store, got %d", count)
	}

	delReq := parseUpdate(t, `DELETE DATA {
		<http://example.org/alice> <http://xmlns.com/foaf/0.1/name> "Alice" .
	}`)
	result, err = a.Apply(delReq)
	if err != nil {
		t.Fatalf("DELETE DATA failed: %v", err)
	}
	if result.Affected != 1 {
		t.Fatalf("expected 1 affected, got %d", result.Affected)
	}

	count, _ = s.Count()
	if count != 1 {
		t.Fatalf("expected 1 triple remaining, got %d", count)
	}
}

func TestApplyDeleteWhere(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	seed := parseUpdate(t, `INSERT DATA {
		<http://example.org/alice> <http://example.org/age> "30" .
		<http://example.org/bob> <http://example.org/age> "25" .
	}`)
	if _, err := a.Apply(seed); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	req := parseUpdate(t, `DELETE WHERE { ?s <http://example.org/age> ?age }`)
	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("DELETE WHERE failed: %v", err)
	}
	if result.Affected != 2 {
		t.Fatalf("expected 2 affected, got %d", result.Affected)
	}

	count, _ := s.Count()
	if count != 0 {
		t.Fatalf("expected store empty after DELETE WHERE, got %d", count)
	}
}

func TestApplyModifyWithWith(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	seed := parseUpdate(t, `INSERT DATA {
		GRAPH <http://example.org/g> {
			<http://example.org/a> <http://example.org/p> "1" .
		}
	}`)
	if _, err := a.Apply(seed); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	req := parseUpdate(t, `WITH <http://example.org/g>
		DELETE { ?s <http://example.org/p> ?o }
		INSERT { ?s <http://example.org/p> "2" }
		WHERE { ?s <http://example.org/p> ?o }`)

	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	if result.Affected != 2 {
		t.Fatalf("expected 2 affected (1 delete + 1 insert), got %d", result.Affected)
	}

	quads, err := a.scanQuads(rdf.NewNamedNode("http://example.org/g"))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad remaining in graph, got %d", len(quads))
	}
	if quads[0].Object.(*rdf.Literal).Value != "2" {
		t.Fatalf("expected object to be updated to \"2\", got %q", quads[0].Object.(*rdf.Literal).Value)
	}
}

func TestApplyClearDefault(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	seed := parseUpdate(t, `INSERT DATA { <http://example.org/a> <http://example.org/p> "x" }`)
	if _, err := a.Apply(seed); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	req := parseUpdate(t, `CLEAR DEFAULT`)
	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("CLEAR DEFAULT failed: %v", err)
	}
	if result.Affected != 1 {
		t.Fatalf("expected 1 affected, got %d", result.Affected)
	}

	count, _ := s.Count()
	if count != 0 {
		t.Fatalf("expected store empty after CLEAR DEFAULT, got %d", count)
	}
}

func TestApplyCopySelfIsNoOp(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	seed := parseUpdate(t, `INSERT DATA {
		GRAPH <http://example.org/g> { <http://example.org/a> <http://example.org/p> "x" }
	}`)
	if _, err := a.Apply(seed); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	req := parseUpdate(t, `COPY <http://example.org/g> TO <http://example.org/g>`)
	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("COPY failed: %v", err)
	}
	if result.Affected != 0 {
		t.Fatalf("expected self-copy to be a no-op, got %d affected", result.Affected)
	}
}

func TestApplySilentSwallowsError(t *testing.T) {
	s := newTestStore(t)
	a := NewApplier(s)

	req := parseUpdate(t, `LOAD SILENT <http://127.0.0.1:0/does-not-exist.ttl>`)
	result, err := a.Apply(req)
	if err != nil {
		t.Fatalf("SILENT LOAD should not return an error, got: %v", err)
	}
	if !result.Success || result.Affected != 0 {
		t.Fatalf("expected a successful no-op result, got %+v", result)
	}
}
