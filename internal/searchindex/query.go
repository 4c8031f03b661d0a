package searchindex

import "github.com/nostrcore/relay/internal/nostr/filter"

// ResolveLimit returns the effective result-count cap for a query: the
// filter's own Limit if set and smaller, else defaultLimit.
func ResolveLimit(f *filter.F, defaultLimit int) int {
	if f.Limit != nil && (*f.Limit < defaultLimit || defaultLimit == 0) {
		return *f.Limit
	}
	return defaultLimit
}

// BuildQuery translates a Filter into an Elasticsearch/OpenSearch query DSL
// body, for filters the planner routed to the search index (any "#<letter>"
// tag constraint, or a search term).
func BuildQuery(f *filter.F) map[string]any {
	var must []map[string]any

	if len(f.IDs) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"id": f.IDs}})
	}
	if len(f.Authors) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"pubkey": f.Authors}})
	}
	if len(f.Kinds) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"kind": f.Kinds}})
	}
	for letter, values := range f.Tags {
		if len(values) == 0 {
			continue
		}
		must = append(must, map[string]any{
			"terms": map[string]any{"tags." + letter: values},
		})
	}
	if f.Since != nil || f.Until != nil {
		rng := map[string]any{}
		if f.Since != nil {
			rng["gte"] = *f.Since
		}
		if f.Until != nil {
			rng["lte"] = *f.Until
		}
		must = append(must, map[string]any{"range": map[string]any{"created_at": rng}})
	}
	if f.Search != "" {
		must = append(must, map[string]any{
			"match": map[string]any{"payload": f.Search},
		})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
	}
}
