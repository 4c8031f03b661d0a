// Package store implements the Primary Event Log of spec.md §4.5: a
// badger-backed KV store with conditional/transactional writes for each
// event-kind category, point lookup by id, and a change-record stream that
// feeds the CDC Indexer.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"lol.mleku.dev/log"
)

const (
	mb = 1 << 20
	kb = 1 << 10
)

// Store wraps a badger database with the event-id and secondary-index key
// layout this package needs, plus the monotonic serial sequence used both as
// a full-scan cursor (internal/rebuild) and as the ordering component of the
// log-ordered key (logKey).
type Store struct {
	db  *badger.DB
	seq *badger.Sequence

	mu   sync.Mutex
	subs []chan ChangeRecord
}

// Options configures the on-disk badger database, mirroring the teacher's
// own deliberately conservative sizing in pkg/database/database.go: small
// block size, moderate caches, no compression, so startup under constrained
// memory (e.g. a container with a tight limit) does not OOM during initial
// table builds.
type Options struct {
	DataDir string
	// InMemory runs badger entirely in memory, for tests.
	InMemory bool
}

// Open creates the data directory if needed and opens the badger database.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory {
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	bo := badger.DefaultOptions(opts.DataDir)
	bo.InMemory = opts.InMemory
	bo.BlockCacheSize = 256 * mb
	bo.BlockSize = 4 * kb
	bo.BaseTableSize = 64 * mb
	bo.MemTableSize = 64 * mb
	bo.ValueLogFileSize = 256 * mb
	bo.CompactL0OnClose = true
	bo.LmaxCompaction = true
	bo.Compression = options.None
	bo.Logger = nil

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte("EVENTS"), 1000)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("get serial sequence: %w", err)
	}

	return &Store{db: db, seq: seq}, nil
}

// Close releases the serial sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		log.E.F("release sequence: %v", err)
	}
	return s.db.Close()
}

// Subscribe registers a new change-record listener with a bounded buffer;
// every listener receives every record published by this process, and both
// the dispatcher's live fan-out and the CDC Indexer subscribe. Subscribers that don't
// keep up have records dropped rather than blocking writers — spec.md makes
// the CDC Indexer responsible for tolerating gaps via the Rebuilder, not the
// log responsible for unbounded buffering.
func (s *Store) Subscribe(buffer int) <-chan ChangeRecord {
	ch := make(chan ChangeRecord, buffer)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) publish(rec ChangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			log.W.Ln("change record dropped: subscriber buffer full")
		}
	}
}

// NextSerial allocates the next monotonic serial from the sequence the Put*
// operations use for log keys. internal/rebuild does not call it: its
// resumable cursor is the serial ScanAll reports for each event.
func (s *Store) NextSerial() (uint64, error) { return s.seq.Next() }

// View runs a read-only transaction, for callers (e.g. the rebuilder) that
// need direct badger access beyond this package's operation set.
func (s *Store) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	_ = ctx
	return s.db.View(fn)
}
