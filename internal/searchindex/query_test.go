package searchindex

import (
	"testing"

	"github.com/nostrcore/relay/internal/nostr/filter"
)

func TestBuildQueryIncludesTagAndSearchClauses(t *testing.T) {
	f := filter.New()
	f.Tags["e"] = []string{"abc"}
	f.Search = "hello"

	q := BuildQuery(f)
	boolClause, ok := q["query"].(map[string]any)["bool"].(map[string]any)
	if !ok {
		t.Fatal("expected bool query clause")
	}
	must, ok := boolClause["must"].([]map[string]any)
	if !ok || len(must) != 2 {
		t.Fatalf("expected 2 must clauses (tag + search), got %v", must)
	}
}

func TestResolveLimit(t *testing.T) {
	f := filter.New()
	if got := ResolveLimit(f, 100); got != 100 {
		t.Errorf("ResolveLimit with no filter limit = %d, want 100", got)
	}
	small := 10
	f.Limit = &small
	if got := ResolveLimit(f, 100); got != 10 {
		t.Errorf("ResolveLimit with smaller filter limit = %d, want 10", got)
	}
}
