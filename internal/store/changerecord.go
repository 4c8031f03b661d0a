package store

import "github.com/nostrcore/relay/internal/nostr/event"

// Op names the mutation kind a ChangeRecord reports, per spec.md §3's
// Primary Event Log Record definition.
type Op int

const (
	Insert Op = iota
	Modify
	Remove
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "INSERT"
	case Modify:
		return "MODIFY"
	default:
		return "REMOVE"
	}
}

// ChangeRecord is emitted on every Primary Event Log mutation. NewImage is
// set for INSERT/MODIFY, OldImage for MODIFY/REMOVE; spec.md §4.5 allows a
// transactional replace to surface as either a single MODIFY or a REMOVE
// followed by an INSERT, and downstream CDC consumers must tolerate both —
// this implementation always emits the single-MODIFY form, since badger's
// transaction lets the old row be read before it's overwritten.
type ChangeRecord struct {
	Op       Op
	NewImage *event.Event
	OldImage *event.Event
}
