package dispatcher

import (
	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/kind"
)

// handleEvent implements the EVENT branch of app/handle-event.go: validate,
// classify, persist per category, and reply OK. Ephemeral events skip the
// Primary Event Log entirely and go straight to live fan-out, per spec.md
// §3's storage-category table; stored categories instead reach live
// subscribers through the Publisher's consumption of the Primary Event
// Log's change-record stream (Server.New wires this up), so this function
// does not fan out stored events itself.
//
// Kind 5 is Regular per §3's range table ([4,44]), so a deletion event runs
// the delete flow *and* is persisted like any other regular event, matching
// app/handle-event.go's HandleDelete-then-SaveEvent fall-through: without
// storing it, the event is never queryable (NIP-09) and the Deletion
// Validator's protected-kind rule (a kind=5 referencing another kind=5) can
// never find a stored target to reject against.
func (l *listener) handleEvent(e *event.Event) error {
	if err := event.Validate(e); err != nil {
		return l.replyOK(e, false, reasonInvalid, err.Error())
	}

	category := kind.Classify(e.Kind)

	if !kind.ShouldStore(category) {
		l.publisher.Fanout(e)
		return l.replyOK(e, true, reasonOK, "")
	}

	var deletionRejected string
	if e.Kind == kind.EventDeletion {
		rejected, err := l.runDeletion(e)
		if err != nil {
			return l.replyOK(e, false, reasonError, err.Error())
		}
		deletionRejected = rejected
	}

	var outcome struct {
		Stored bool
		Reason string
	}
	var err error
	switch category {
	case kind.Replaceable:
		o, perr := l.store.PutReplaceable(e)
		outcome.Stored, outcome.Reason, err = o.Stored, o.Reason, perr
	case kind.Addressable:
		o, perr := l.store.PutAddressable(e)
		outcome.Stored, outcome.Reason, err = o.Stored, o.Reason, perr
	default:
		o, perr := l.store.PutRegular(e)
		outcome.Stored, outcome.Reason, err = o.Stored, o.Reason, perr
	}
	if err != nil {
		return l.replyOK(e, false, reasonError, err.Error())
	}
	if !outcome.Stored {
		return l.replyOK(e, false, reasonDuplicate, outcome.Reason)
	}
	if deletionRejected != "" {
		return l.replyOK(e, false, reasonInvalid, deletionRejected)
	}

	return l.replyOK(e, true, reasonOK, "")
}

// runDeletion implements spec.md §4.4's delete path: every "e"-tagged id on
// the deletion event is handed to the Primary Event Log's Delete, which
// applies the Deletion Validator per id and reports which targets were
// actually removed. The returned rejected reason is non-empty only when a
// target that existed was rejected by the Deletion Validator itself
// (pubkey mismatch or protected-kind/window violation); a target that was
// simply already gone is not a failure, per spec.md §4.5's delete contract.
func (l *listener) runDeletion(e *event.Event) (rejected string, err error) {
	var ids []string
	for _, t := range e.Tags.GetAll("e") {
		if v := t.Value(); v != "" {
			ids = append(ids, v)
		}
	}
	if len(ids) == 0 {
		return "", nil
	}

	outcomes, err := l.store.Delete(ids, e.PubKey, e.CreatedAt)
	if err != nil {
		return "", err
	}

	for _, o := range outcomes {
		if o.Removed {
			l.publisher.FanoutDeletion(o.ID)
			continue
		}
		if o.Reason != "" && o.Reason != "not found" {
			rejected = o.Reason
		}
	}
	return rejected, nil
}
