package store

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/nostrcore/relay/internal/nostr/deletion"
	"github.com/nostrcore/relay/internal/nostr/event"
)

// DeleteOutcome reports the per-id result of a Delete call.
type DeleteOutcome struct {
	ID      string
	Removed bool
	Reason  string
}

// Delete implements spec.md §4.5's delete(ids, by_pubkey): for each id,
// fetch the row; if absent, skip; otherwise apply the Deletion Validator
// and remove on success. Reports one outcome per id.
func (s *Store) Delete(ids []string, byPubKey string, deleterCreatedAt int64) ([]DeleteOutcome, error) {
	outcomes := make([]DeleteOutcome, 0, len(ids))
	for _, id := range ids {
		outcome, err := s.deleteOne(id, byPubKey, deleterCreatedAt)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *Store) deleteOne(id, byPubKey string, deleterCreatedAt int64) (DeleteOutcome, error) {
	var removed *event.Event
	var outcome DeleteOutcome
	outcome.ID = id

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			outcome.Reason = "not found"
			return nil
		}
		if err != nil {
			return err
		}

		var target event.Event
		if verr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &target)
		}); verr != nil {
			return verr
		}

		ok, reason := deletion.Validate(
			deletion.Target{PubKey: target.PubKey, Kind: target.Kind, CreatedAt: target.CreatedAt},
			byPubKey, deleterCreatedAt,
		)
		if !ok {
			outcome.Reason = reason.String()
			return nil
		}

		if err := txn.Delete(eventKey(id)); err != nil {
			return err
		}
		removed = &target
		outcome.Removed = true
		return nil
	})
	if err != nil {
		return DeleteOutcome{}, err
	}
	if removed != nil {
		s.publish(ChangeRecord{Op: Remove, OldImage: removed})
	}
	return outcome, nil
}
