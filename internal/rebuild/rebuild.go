// Package rebuild implements the Rebuilder of spec.md §4.9: a full-scan
// control loop over the Primary Event Log that re-projects every stored
// event into one chosen secondary index, resumable from a cursor.
//
// The teacher has no rebuild tool of its own; original_source's
// services/relay/src/bin/rebuilder.rs (DynamoDB → OpenSearch) and
// sqlite_rebuilder.rs (DynamoDB → SQL API) are the two concrete precedents
// this package generalizes over a single Store and a Target-selected
// secondary index, per DESIGN.md's rebuild entry.
package rebuild

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
	"github.com/nostrcore/relay/internal/store"
)

// Target names which secondary index a run re-projects into.
type Target int

const (
	TargetSearch Target = iota
	TargetSQL
)

func (t Target) String() string {
	switch t {
	case TargetSearch:
		return "search"
	case TargetSQL:
		return "sql"
	default:
		return "unknown"
	}
}

// DefaultBatchSize is spec.md §4.9's batch_size default.
const DefaultBatchSize = 100

// Config parameterizes a rebuild run.
type Config struct {
	Target              Target
	BatchSize           int  // default DefaultBatchSize if zero
	DeleteBeforeRebuild bool // search index only, per spec.md §4.9
	StartAfter          uint64
	Deadline            time.Time // zero means no deadline
}

// Report is the per-run accumulation of spec.md §4.9/§7's partial-failure
// policy: the Rebuilder never fails a run outright, it accumulates counts
// and returns the resume cursor.
type Report struct {
	RunID      string
	Scanned    int
	Indexed    int
	Skipped    int
	Errors     int
	NextCursor uint64
	Complete   bool // true if the scan reached the end of the log
}

// searchTarget is the subset of *searchindex.Client the Rebuilder needs.
type searchTarget interface {
	Upsert(ctx context.Context, docs []*searchindex.Document) error
}

// sqlTarget is the subset of *sqlindex.Client the Rebuilder needs.
type sqlTarget interface {
	Upsert(ctx context.Context, e *event.Event) error
}

// Rebuilder drives full-scan re-indexing against one Store.
type Rebuilder struct {
	store  *store.Store
	search searchTarget
	sql    sqlTarget
}

// New constructs a Rebuilder. Either client may be nil if the caller only
// ever rebuilds the other target.
func New(s *store.Store, search *searchindex.Client, sql *sqlindex.Client) *Rebuilder {
	r := &Rebuilder{store: s}
	// Assign only non-nil clients, so Run's nil checks see a nil interface
	// rather than an interface holding a nil pointer.
	if search != nil {
		r.search = search
	}
	if sql != nil {
		r.sql = sql
	}
	return r
}

var errDeadlineExceeded = errors.New("rebuild: deadline exceeded")

// Run executes one rebuild pass per spec.md §4.9's control loop: scan pages
// of cfg.BatchSize, converting and bulk-writing each. cfg.DeleteBeforeRebuild
// is accepted for the search target only and drops nothing; Run logs a
// warning and writes over the existing index. Errors per batch accumulate
// into the report rather than aborting; Run returns a non-nil error only for
// a fatal setup problem (e.g. a nil client for the requested target) or for
// a Primary Event Log read error that stops the scan.
func (r *Rebuilder) Run(ctx context.Context, cfg Config) (Report, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	report := Report{RunID: uuid.NewString(), NextCursor: cfg.StartAfter}

	switch cfg.Target {
	case TargetSearch:
		if r.search == nil {
			return report, errors.New("rebuild: search target requested but no search client configured")
		}
	case TargetSQL:
		if r.sql == nil {
			return report, errors.New("rebuild: sql target requested but no sql client configured")
		}
	default:
		return report, errors.New("rebuild: unknown target")
	}

	if cfg.DeleteBeforeRebuild {
		if cfg.Target != TargetSearch {
			return report, errors.New("rebuild: delete_before_rebuild is only supported for the search index")
		}
		log.W.F("rebuild[%s]: delete_before_rebuild set; the target index is not dropped by this run", report.RunID)
		// The search index has no bulk-drop primitive wired in this module
		// (github.com/elastic/go-elasticsearch/v8's index-delete API operates
		// on the whole index, not a filtered subset); operators run that step
		// out-of-band before invoking a destructive rebuild.
	}

	cursor := cfg.StartAfter
	var batch []*event.Event
	var batchFirstSerial uint64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, errCount := r.writeBatch(ctx, cfg.Target, batch)
		report.Indexed += n
		report.Errors += errCount
		log.T.F("rebuild[%s]: batch at serial %d: indexed=%d errors=%d", report.RunID, batchFirstSerial, n, errCount)
		batch = batch[:0]
		return nil
	}

	err := r.store.ScanAll(cfg.StartAfter, func(serial uint64, e *event.Event) error {
		if !cfg.Deadline.IsZero() && time.Now().After(cfg.Deadline) {
			return errDeadlineExceeded
		}
		if len(batch) == 0 {
			batchFirstSerial = serial
		}
		report.Scanned++
		cursor = serial
		batch = append(batch, e)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		return nil
	})

	if ferr := flush(); ferr != nil && err == nil {
		err = ferr
	}
	report.NextCursor = cursor

	if errors.Is(err, errDeadlineExceeded) {
		log.W.F("rebuild[%s]: deadline exceeded, resuming from cursor %d", report.RunID, cursor)
		return report, nil
	}
	if err != nil {
		return report, err
	}

	report.Complete = true
	return report, nil
}

func (r *Rebuilder) writeBatch(ctx context.Context, target Target, batch []*event.Event) (indexed int, errCount int) {
	switch target {
	case TargetSearch:
		docs := make([]*searchindex.Document, 0, len(batch))
		for _, e := range batch {
			doc, err := searchindex.FromEvent(e)
			if err != nil {
				errCount++
				continue
			}
			docs = append(docs, doc)
		}
		if len(docs) == 0 {
			return 0, errCount
		}
		if err := r.search.Upsert(ctx, docs); err != nil {
			return 0, errCount + len(docs)
		}
		return len(docs), errCount

	case TargetSQL:
		for _, e := range batch {
			if err := r.sql.Upsert(ctx, e); err != nil {
				errCount++
				continue
			}
			indexed++
		}
		return indexed, errCount
	}
	return 0, len(batch)
}
