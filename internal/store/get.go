package store

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/nostrcore/relay/internal/nostr/event"
)

// ErrNotFound is returned by Get when no event with the given id exists.
var ErrNotFound = errors.New("event not found")

// Get performs the point lookup of spec.md §4.5's get(id) operation.
func (s *Store) Get(id string) (*event.Event, error) {
	var e event.Event
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByPrefix resolves an "ids" filter value that is shorter than the full
// id length: spec.md §3/§4.3 treats it as a byte-prefix over lowercase hex,
// so a plain Get (exact key) would never find it. This scans the ev:
// keyspace for every id beginning with prefix.
func (s *Store) GetByPrefix(prefix string) ([]*event.Event, error) {
	var events []*event.Event
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := eventKey(prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			item := it.Item()
			var e event.Event
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			events = append(events, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// lookupIndex resolves a secondary index key to its target event, returning
// (nil, nil) if the index entry is absent.
func (s *Store) lookupIndex(key []byte) (*event.Event, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, derr := decodeID(val)
			id = decoded
			return derr
		})
	})
	if err != nil || id == "" {
		return nil, err
	}
	return s.Get(id)
}

// ScanAll walks every event in log (serial) order, invoking fn for each. It
// is the full-scan primitive internal/rebuild uses; fn returning an error
// stops the scan and the error propagates. startAfter resumes a prior scan
// after the given serial; 0 starts from the beginning, including the event
// at serial 0 (the sequence's first value).
func (s *Store) ScanAll(startAfter uint64, fn func(serial uint64, e *event.Event) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := logKey(startAfter + 1)
		if startAfter == 0 {
			start = logKey(0)
		}
		for it.Seek(start); it.ValidForPrefix([]byte(prefixLog)); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			serial := decodeLogSerial(key)

			var id string
			if err := item.Value(func(val []byte) error {
				decoded, derr := decodeID(val)
				id = decoded
				return derr
			}); err != nil {
				return err
			}

			e, err := s.Get(id)
			if errors.Is(err, ErrNotFound) {
				continue // deleted since being logged; rebuilder skips it
			}
			if err != nil {
				return err
			}
			if err := fn(serial, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeLogSerial(key []byte) uint64 {
	var serial uint64
	for _, b := range key[len(prefixLog):] {
		serial = serial<<8 | uint64(b)
	}
	return serial
}
