package load

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoadParsesTurtleByContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		w.Write([]byte(`
			@prefix foaf: <http://xmlns.com/foaf/0.1/> .
			<http://example.org/alice> foaf:name "Alice" .
			<http://example.org/bob> foaf:name "Bob" .
		`))
	}))
	defer server.Close()

	c := NewClient()
	quads, err := c.Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(quads) != 2 {
		t.Fatalf("expected 2 quads, got %d", len(quads))
	}
}

func TestLoadDetectsContentTypeFromExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Type header; caller must fall back to the URL extension.
		w.Write([]byte(`<http://example.org/a> <http://example.org/p> <http://example.org/b> .` + "\n"))
	}))
	defer server.Close()

	c := NewClient()
	quads, err := c.Load(context.Background(), server.URL+"/data.nt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
}

func TestLoadRejectsOversizedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		w.Write([]byte(`<http://example.org/a> <http://example.org/p> <http://example.org/b> .` + "\n"))
	}))
	defer server.Close()

	c := NewClient()
	c.MaxBytes = 4 // smaller than the response body

	if _, err := c.Load(context.Background(), server.URL); err == nil {
		t.Fatal("expected an error for an oversized response, got nil")
	}
}

func TestLoadRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient()
	if _, err := c.Load(context.Background(), server.URL); err == nil {
		t.Fatal("expected an error for a 404 response, got nil")
	}
}

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		header, source, want string
	}{
		{"text/turtle; charset=utf-8", "http://example.org/x", "text/turtle"},
		{"", "http://example.org/x.nt", "application/n-triples"},
		{"", "http://example.org/x.nq", "application/n-quads"},
		{"", "http://example.org/x.ttl", "text/turtle"},
		{"", "http://example.org/x", "text/turtle"},
	}
	for _, c := range cases {
		got := detectContentType(c.header, c.source)
		if got != c.want {
			t.Errorf("detectContentType(%q, %q) = %q, want %q", c.header, c.source, got, c.want)
		}
	}
}
