package dispatcher

import (
	"context"
	"encoding/json"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
)

// QueryPlanner executes one REQ filter against whichever backend
// internal/nostr/filter.Plan selects for it, per spec.md §4.3.
type QueryPlanner interface {
	Query(ctx context.Context, f *filter.F) ([]*event.Event, error)
}

// searchBackend is the subset of *searchindex.Client a QueryPlanner needs.
type searchBackend interface {
	Search(ctx context.Context, query map[string]any, size int) ([]*searchindex.Document, error)
}

// sqlBackend is the subset of *sqlindex.Client a QueryPlanner needs.
type sqlBackend interface {
	Search(ctx context.Context, f *filter.F) ([]sqlindex.Row, error)
}

// pointLookup is the subset of *store.Store a QueryPlanner needs for an
// ids-only filter.
type pointLookup interface {
	Get(id string) (*event.Event, error)
	GetByPrefix(prefix string) ([]*event.Event, error)
}

// Query is the production QueryPlanner, wiring the Primary Event Log and
// both secondary indices behind internal/nostr/filter's index-selection
// strategy. Concurrent per-filter queries in handle_req.go each construct
// their own call into Query.Query; golang.org/x/sync/errgroup bounds the
// fan-out within one REQ's filter list (SPEC_FULL.md §3's DOMAIN STACK
// entry for errgroup).
type Query struct {
	Store  pointLookup
	Search searchBackend
	SQL    sqlBackend
}

// Query executes f against the backend filter.Plan selects, then re-checks
// every candidate with filter.Matches as a defense against a backend's
// query DSL being looser than the exact semantics spec.md §4.3 requires
// (e.g. a search index analyzer matching substrings an exact filter
// wouldn't), and returns results in created_at DESC, id ASC order capped at
// f.Limit (and MaxLimit).
func (q *Query) Query(ctx context.Context, f *filter.F) ([]*event.Event, error) {
	var candidates []*event.Event
	var err error

	switch filter.Plan(f) {
	case filter.StrategyPointLookup:
		candidates, err = q.queryByIDs(f)
	case filter.StrategySearchIndex:
		candidates, err = q.querySearch(ctx, f)
	default:
		candidates, err = q.querySQL(ctx, f)
	}
	if err != nil {
		return nil, err
	}

	matched := candidates[:0]
	for _, e := range candidates {
		if filter.Matches(f, e) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID < matched[j].ID
	})

	limit := MaxLimit
	if f.Limit != nil && *f.Limit < limit {
		limit = *f.Limit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (q *Query) queryByIDs(f *filter.F) ([]*event.Event, error) {
	events := make([]*event.Event, 0, len(f.IDs))
	for _, id := range f.IDs {
		if len(id) == event.IDHexLen {
			e, err := q.Store.Get(id)
			if err != nil {
				continue // NotFound; skip, per get(id)'s contract
			}
			events = append(events, e)
			continue
		}
		// Shorter than a full id: a byte-prefix per spec.md §3/§4.3, which
		// get(id)'s exact key lookup can never resolve.
		matches, err := q.Store.GetByPrefix(id)
		if err != nil {
			return nil, err
		}
		events = append(events, matches...)
	}
	return events, nil
}

func (q *Query) querySearch(ctx context.Context, f *filter.F) ([]*event.Event, error) {
	size := searchindex.ResolveLimit(f, MaxLimit)
	docs, err := q.Search.Search(ctx, searchindex.BuildQuery(f), size)
	if err != nil {
		return nil, err
	}
	events := make([]*event.Event, 0, len(docs))
	for _, d := range docs {
		var e event.Event
		if err := json.Unmarshal(d.Payload, &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

func (q *Query) querySQL(ctx context.Context, f *filter.F) ([]*event.Event, error) {
	rows, err := q.SQL.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	events := make([]*event.Event, 0, len(rows))
	for _, row := range rows {
		var e event.Event
		if err := json.Unmarshal(row.EventJSON, &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

// queryAll runs every filter in fs concurrently (bounded by errgroup) and
// returns the union of their results, de-duplicated by id; callers sort and
// cap per-filter before deduplication since each filter carries its own
// limit.
func queryAll(ctx context.Context, qp QueryPlanner, fs []*filter.F) ([]*event.Event, error) {
	results := make([][]*event.Event, len(fs))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fs {
		i, f := i, f
		g.Go(func() error {
			res, err := qp.Query(gctx, f)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []*event.Event
	for _, res := range results {
		for _, e := range res {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt > merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}
