// Package deletion implements the pure static rules of spec.md §4.4 that
// govern whether a kind-5 deletion event may remove a target event. The
// teacher inlines this logic directly in app/handle-delete.go and
// pkg/database/process-delete.go; here it is factored into a standalone,
// I/O-free function so the dispatcher, rebuilder, and tests can all call the
// same decision without touching storage.
package deletion

import "github.com/nostrcore/relay/internal/nostr/kind"

// Target is the minimal view of an event the Deletion Validator needs: its
// pubkey, kind, and created_at. Callers pass the Primary Event Log's loaded
// row here without exposing the rest of the event shape.
type Target struct {
	PubKey    string
	Kind      uint16
	CreatedAt int64
}

// Reason names why a deletion attempt was rejected.
type Reason int

const (
	// Allowed is the zero value: the deletion may proceed.
	Allowed Reason = iota
	PubKeyMismatch
	ProtectedKind
	OutsideDeletionWindow
)

func (r Reason) String() string {
	switch r {
	case PubKeyMismatch:
		return "pubkey mismatch"
	case ProtectedKind:
		return "cannot delete an event deletion"
	case OutsideDeletionWindow:
		return "target superseded by a newer addressable version"
	default:
		return "allowed"
	}
}

// Validate reports whether deleter may delete target, per spec.md §4.4:
//   - pubkey of target and deleter must match;
//   - a deletion event (kind 5) cannot itself be the target of a deletion;
//   - for Addressable targets, the target must not postdate the deleter:
//     a newer addressable version always survives a prior deletion.
func Validate(target Target, deleterPubKey string, deleterCreatedAt int64) (bool, Reason) {
	if target.PubKey != deleterPubKey {
		return false, PubKeyMismatch
	}
	if target.Kind == kind.EventDeletion {
		return false, ProtectedKind
	}
	if kind.Classify(target.Kind) == kind.Addressable && target.CreatedAt > deleterCreatedAt {
		return false, OutsideDeletionWindow
	}
	return true, Allowed
}
