package event

import (
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Failure is a typed Event Validator outcome, matching spec.md §4.1's
// enumerated failure set so callers can map each case to a distinct OK
// rejection reason without string-matching error text.
type Failure int

const (
	// Valid is the zero value: no failure.
	Valid Failure = iota
	InvalidID
	InvalidSignature
	MalformedField
	OutOfRangeCreatedAt
)

func (f Failure) String() string {
	switch f {
	case InvalidID:
		return "invalid-id"
	case InvalidSignature:
		return "invalid-signature"
	case MalformedField:
		return "malformed-field"
	case OutOfRangeCreatedAt:
		return "out-of-range-created-at"
	default:
		return "valid"
	}
}

// ValidationError pairs a Failure with the offending field name, for
// MalformedField cases, and an underlying cause where one exists.
type ValidationError struct {
	Failure Failure
	Field   string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Failure, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Failure, e.Cause)
	}
	return e.Failure.String()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// MinCreatedAt/MaxCreatedAt bound the acceptable created_at range absent any
// configured skew window (SPEC_FULL.md §6): Nostr's timestamp is a signed
// 32-bit-safe Unix second count by convention, and a relay must not accept
// events claiming to originate outside of recorded history or impossibly far
// in the future. These are deliberately permissive, and they are the only
// created_at bound the relay applies: the dispatcher adds no skew window.
const (
	MinCreatedAt int64 = 0
	MaxCreatedAt int64 = 4102444800 // 2100-01-01T00:00:00Z
)

// Validate runs the pure Event Validator of spec.md §4.1: canonicalize and
// check the id, verify the Schnorr signature, then check structural
// constraints on tags and content. It performs no I/O. Returns nil if e is
// valid, or a *ValidationError describing the first failure found, in the
// order id, signature, structure — matching the order app/handle-event.go's
// teacher code checks things in.
func Validate(e *Event) error {
	if e == nil {
		return &ValidationError{Failure: MalformedField, Field: "event"}
	}

	computed, err := ComputeID(e)
	if err != nil {
		return &ValidationError{Failure: MalformedField, Field: "tags", Cause: err}
	}
	if !idsEqual(e.ID, computed) {
		return &ValidationError{Failure: InvalidID}
	}

	if err := verifySignature(e); err != nil {
		return &ValidationError{Failure: InvalidSignature, Cause: err}
	}

	if err := validateStructure(e); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return &ValidationError{Failure: MalformedField, Cause: err}
	}

	if e.CreatedAt < MinCreatedAt || e.CreatedAt > MaxCreatedAt {
		return &ValidationError{Failure: OutOfRangeCreatedAt}
	}

	return nil
}

// verifySignature checks sig against pubkey over the 32-byte id, per
// BIP-340 Schnorr verification as NIP-01 specifies.
func verifySignature(e *Event) error {
	idBytes, err := IDBytes(e)
	if err != nil || len(idBytes) != 32 {
		return fmt.Errorf("decode id: %w", err)
	}

	pubKeyBytes, err := hex.DecodeString(e.PubKey)
	if err != nil || len(pubKeyBytes) != 32 {
		return fmt.Errorf("decode pubkey: %w", err)
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("parse pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil || len(sigBytes) != 64 {
		return fmt.Errorf("decode sig: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("parse sig: %w", err)
	}

	if !sig.Verify(idBytes, pubKey) {
		return errors.New("schnorr verification failed")
	}
	return nil
}

// validateStructure asserts tags is a list of non-empty string lists and
// content is valid UTF-8, per spec.md §4.1's structural clause.
func validateStructure(e *Event) error {
	if !utf8.ValidString(e.Content) {
		return &ValidationError{Failure: MalformedField, Field: "content"}
	}
	for i, t := range e.Tags {
		if len(t) == 0 {
			return &ValidationError{Failure: MalformedField, Field: fmt.Sprintf("tags[%d]", i)}
		}
		for j, v := range t {
			if !utf8.ValidString(v) {
				return &ValidationError{Failure: MalformedField, Field: fmt.Sprintf("tags[%d][%d]", i, j)}
			}
		}
	}
	if len(e.ID) != IDHexLen {
		return &ValidationError{Failure: MalformedField, Field: "id"}
	}
	if len(e.PubKey) != PubKeyHexLen {
		return &ValidationError{Failure: MalformedField, Field: "pubkey"}
	}
	if len(e.Sig) != 128 {
		return &ValidationError{Failure: MalformedField, Field: "sig"}
	}
	return nil
}
