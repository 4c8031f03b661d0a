// Package cdc implements the CDC Indexer of spec.md §4.8: it consumes
// change-record batches from the Primary Event Log and projects them into
// the search index and SQL index, the two secondary indices of spec.md
// §4.6. The teacher has no change-stream concept of its own (its equivalent
// fan-out is in-process only, app/publisher.go); the batching/backoff idiom
// here instead follows other_examples' shubh9457-high-scale-search
// StreamProcessor (buffered writer, per-record outcome classification,
// bounded retry), per DESIGN.md's cdc entry.
package cdc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
	"github.com/nostrcore/relay/internal/store"
)

// MaxRetries is how many times withRetry retries a transient error after
// the first attempt, with exponential backoff between attempts, so a record
// sees at most MaxRetries+1 calls.
const MaxRetries = 3

// BaseBackoff is the first retry delay; each subsequent attempt doubles it.
const BaseBackoff = 100 * time.Millisecond

// Outcome aggregates per-batch results per spec.md §4.8.
type Outcome struct {
	SuccessCount int
	FailureCount int
	SkipCount    int
}

// Failed reports whether any record in the batch failed, meaning the
// source stream should replay the whole batch.
func (o Outcome) Failed() bool { return o.FailureCount > 0 }

// searchIndexer is the subset of *searchindex.Client the Indexer needs,
// narrowed to an interface so tests can substitute a fake without standing
// up a real Elasticsearch/OpenSearch endpoint.
type searchIndexer interface {
	Upsert(ctx context.Context, docs []*searchindex.Document) error
	Delete(ctx context.Context, ids []string) error
}

// sqlIndexer is the subset of *sqlindex.Client the Indexer needs.
type sqlIndexer interface {
	Upsert(ctx context.Context, e *event.Event) error
	Delete(ctx context.Context, id string) error
}

// Indexer projects change records into both secondary indices.
type Indexer struct {
	search searchIndexer
	sql    sqlIndexer
}

// New constructs an Indexer over both secondary-index clients.
func New(search *searchindex.Client, sql *sqlindex.Client) *Indexer {
	return &Indexer{search: search, sql: sql}
}

// ProcessBatch applies every record in batch, per spec.md §4.8's table:
// INSERT/MODIFY project the new image into both indices, and a MODIFY whose
// old image has a different id also deletes that id from both; REMOVE
// deletes the old image's id from both. A record is skipped if it carries no usable
// image; it fails if either index returns a retryable error after
// exhausting MaxRetries attempts. Per-key order is preserved by processing
// records sequentially in the batch's given order, per spec.md §5.
func (idx *Indexer) ProcessBatch(ctx context.Context, batch []store.ChangeRecord) Outcome {
	var out Outcome
	for _, rec := range batch {
		switch idx.processRecord(ctx, rec) {
		case recordSuccess:
			out.SuccessCount++
		case recordSkip:
			out.SkipCount++
		case recordFailure:
			out.FailureCount++
		}
	}
	return out
}

type recordResult int

const (
	recordSuccess recordResult = iota
	recordSkip
	recordFailure
)

func (idx *Indexer) processRecord(ctx context.Context, rec store.ChangeRecord) recordResult {
	switch rec.Op {
	case store.Insert, store.Modify:
		if rec.NewImage == nil {
			return recordSkip
		}
		if err := idx.upsertWithRetry(ctx, rec.NewImage); err != nil {
			log.E.F("cdc: upsert failed for %s: %v", rec.NewImage.ID, err)
			return recordFailure
		}
		if rec.Op == store.Modify && rec.OldImage != nil && rec.OldImage.ID != rec.NewImage.ID {
			if err := idx.deleteWithRetry(ctx, rec.OldImage.ID); err != nil {
				log.E.F("cdc: delete of replaced %s failed: %v", rec.OldImage.ID, err)
				return recordFailure
			}
		}
		return recordSuccess

	case store.Remove:
		if rec.OldImage == nil {
			return recordSkip
		}
		if err := idx.deleteWithRetry(ctx, rec.OldImage.ID); err != nil {
			log.E.F("cdc: delete failed for %s: %v", rec.OldImage.ID, err)
			return recordFailure
		}
		return recordSuccess

	default:
		return recordSkip
	}
}

func (idx *Indexer) upsertWithRetry(ctx context.Context, e *event.Event) error {
	doc, err := searchindex.FromEvent(e)
	if err != nil {
		return fmt.Errorf("build search document: %w", err)
	}
	return withRetry(ctx, func() error {
		if err := idx.search.Upsert(ctx, []*searchindex.Document{doc}); err != nil {
			return err
		}
		return idx.sql.Upsert(ctx, e)
	})
}

func (idx *Indexer) deleteWithRetry(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		if err := idx.search.Delete(ctx, []string{id}); err != nil {
			return err
		}
		return idx.sql.Delete(ctx, id)
	})
}

// isTerminal reports whether err is a deterministic failure that retrying
// cannot fix: a 4xx response from either secondary index (malformed
// document, rejected by the index's own validation), excluding 429, which is
// a transient rate limit rather than a rejection of the request itself. Per
// spec.md §5/§7, only transient errors (5xx, network/timeout) get the
// backoff; a deterministic one would just fail identically on every retry.
func isTerminal(err error) bool {
	var sqlErr *sqlindex.StatusError
	if errors.As(err, &sqlErr) {
		return sqlErr.StatusCode >= 400 && sqlErr.StatusCode < 500 && sqlErr.StatusCode != http.StatusTooManyRequests
	}
	var searchErr *searchindex.StatusError
	if errors.As(err, &searchErr) {
		return searchErr.StatusCode >= 400 && searchErr.StatusCode < 500 && searchErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// withRetry runs fn up to MaxRetries+1 times with exponential backoff
// between attempts, stopping early if ctx is done or fn returns a terminal
// error.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := BaseBackoff
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isTerminal(err) {
			return fmt.Errorf("terminal error, not retrying: %w", err)
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", MaxRetries, lastErr)
}

// ErrBatchFailed names the batch-level failure that Outcome.Failed reports.
// Nothing in this package returns it: ConsumeLoop only logs a failed batch.
var ErrBatchFailed = errors.New("cdc: batch had one or more failed records")
