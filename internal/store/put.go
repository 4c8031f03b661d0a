package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/nostrcore/relay/internal/nostr/event"
)

// Outcome reports the result of a Put* operation, per spec.md §4.5's
// {stored, reason} contract.
type Outcome struct {
	Stored bool
	Reason string
}

var stored = Outcome{Stored: true}

// PutRegular implements spec.md §4.5's put_regular: conditional insert,
// succeeding iff e.ID is not already present.
func (s *Store) PutRegular(e *event.Event) (Outcome, error) {
	var outcome Outcome
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(eventKey(e.ID))
		if err == nil {
			outcome = Outcome{Stored: false, Reason: "duplicate"}
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		serial, serr := s.seq.Next()
		if serr != nil {
			return fmt.Errorf("allocate serial: %w", serr)
		}
		if err := writeEvent(txn, e, serial); err != nil {
			return err
		}
		outcome = stored
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Stored {
		s.publish(ChangeRecord{Op: Insert, NewImage: e})
	}
	return outcome, nil
}

// PutReplaceable implements spec.md §4.5's put_replaceable: transactional
// replace of the row keyed by (pubkey, kind), succeeding iff
// (e.CreatedAt, e.ID) lexically exceeds the existing row, and rejecting
// otherwise.
func (s *Store) PutReplaceable(e *event.Event) (Outcome, error) {
	return s.putKeyed(e, replaceIndexKey(e.PubKey, e.Kind))
}

// PutAddressable implements spec.md §4.5's put_addressable: identical to
// PutReplaceable, but keyed by (pubkey, kind, d-tag).
func (s *Store) PutAddressable(e *event.Event) (Outcome, error) {
	return s.putKeyed(e, addrIndexKey(e.PubKey, e.Kind, e.Tags.DTag()))
}

// putKeyed implements the shared replace logic behind PutReplaceable and
// PutAddressable, parameterized only by which secondary-index key identifies
// the row's replacement target, mirroring the near-identical shouldReplace
// logic the teacher duplicates across its own replaceable/addressable
// branches in pkg/database/save-event.go.
func (s *Store) putKeyed(e *event.Event, indexKey []byte) (Outcome, error) {
	var outcome Outcome
	var old *event.Event

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// no existing row: proceed unconditionally.
		case err != nil:
			return err
		default:
			var oldID string
			if verr := item.Value(func(val []byte) error {
				decoded, derr := decodeID(val)
				oldID = decoded
				return derr
			}); verr != nil {
				return verr
			}
			oldItem, gerr := txn.Get(eventKey(oldID))
			if gerr != nil && !errors.Is(gerr, badger.ErrKeyNotFound) {
				return gerr
			}
			if gerr == nil {
				old = &event.Event{}
				if verr := oldItem.Value(func(val []byte) error {
					return json.Unmarshal(val, old)
				}); verr != nil {
					return verr
				}
				if !supersedes(e, old) {
					outcome = Outcome{Stored: false, Reason: "superseded by existing row"}
					return nil
				}
				if err := txn.Delete(eventKey(old.ID)); err != nil {
					return err
				}
			}
		}

		serial, serr := s.seq.Next()
		if serr != nil {
			return fmt.Errorf("allocate serial: %w", serr)
		}
		if err := writeEvent(txn, e, serial); err != nil {
			return err
		}
		if err := txn.Set(indexKey, []byte(e.ID)); err != nil {
			return err
		}
		outcome = stored
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Stored {
		if old != nil {
			s.publish(ChangeRecord{Op: Modify, NewImage: e, OldImage: old})
		} else {
			s.publish(ChangeRecord{Op: Insert, NewImage: e})
		}
	}
	return outcome, nil
}

// supersedes reports whether candidate replaces existing under the
// (created_at, id) lexical tie-break spec.md §4.5 specifies.
func supersedes(candidate, existing *event.Event) bool {
	if candidate.CreatedAt != existing.CreatedAt {
		return candidate.CreatedAt > existing.CreatedAt
	}
	return candidate.ID > existing.ID
}

// writeEvent stores the JSON-encoded event and its log-ordered index entry
// inside an in-flight transaction. Callers hold txn and allocate serial.
func writeEvent(txn *badger.Txn, e *event.Event, serial uint64) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := txn.Set(eventKey(e.ID), val); err != nil {
		return err
	}
	return txn.Set(logKey(serial), []byte(e.ID))
}
