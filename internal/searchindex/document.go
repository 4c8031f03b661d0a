// Package searchindex projects events into the full-text/tag search index
// described by spec.md §3's Search Document and §4.6's Secondary Indices.
// The teacher's own relay speaks to OpenSearch from Rust
// (original_source/services/relay's opensearch integration was filtered
// from the Go retrieval pack); this package follows spec.md's schema
// directly and talks the Elasticsearch-compatible bulk/search API OpenSearch
// also implements, via github.com/elastic/go-elasticsearch/v8 (grounded on
// the shubh9457-high-scale-search manifest).
package searchindex

import (
	"encoding/json"

	"github.com/nostrcore/relay/internal/nostr/event"
)

// IndexedTagNames are the only tag letters the search index exposes as
// dedicated fields; spec.md §3 requires multi-character tag names to remain
// in the retrieval-only payload, invisible to the Filter Evaluator's
// index-planning step.
var IndexedTagNames = []string{"e", "p", "d", "a", "t"}

// Document is the search index's per-event record.
type Document struct {
	ID        string              `json:"id"`
	PubKey    string              `json:"pubkey"`
	Kind      uint16              `json:"kind"`
	CreatedAt int64               `json:"created_at"`
	Tags      map[string][]string `json:"tags"`
	Payload   json.RawMessage     `json:"payload"`
}

// FromEvent builds the Document projection of e, per spec.md §3.
func FromEvent(e *event.Event) (*Document, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	tags := make(map[string][]string, len(IndexedTagNames))
	for _, t := range e.Tags {
		key := t.Key()
		if len(key) != 1 {
			continue // multi-character tag names live only in Payload
		}
		if !isIndexedTagName(key) {
			continue
		}
		if len(t) < 2 {
			continue
		}
		tags[key] = append(tags[key], t[1:]...)
	}

	return &Document{
		ID:        e.ID,
		PubKey:    e.PubKey,
		Kind:      e.Kind,
		CreatedAt: e.CreatedAt,
		Tags:      tags,
		Payload:   payload,
	}, nil
}

func isIndexedTagName(k string) bool {
	for _, n := range IndexedTagNames {
		if n == k {
			return true
		}
	}
	return false
}
