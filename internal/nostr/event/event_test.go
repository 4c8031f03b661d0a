package event

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// signWithFreshKey sets e's pubkey to a freshly generated key, recomputes
// its id and signs it, so Validate's id and signature checks pass and the
// later checks are reached.
func signWithFreshKey(t *testing.T, e *Event) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	id, err := ComputeID(e)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	e.ID = id
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
}

func sampleEvent() *Event {
	return &Event{
		ID:        "1ebecb95404f006cdf21a29c254857626cac4766126d97b037a41957d84388d5",
		PubKey:    "7e7e9c42a91bfef19fa929e5fda1b72e0ebc1a4c1141673e2794234d86addf4e",
		CreatedAt: 1700000000,
		Kind:      1,
		Tags: Tags{
			{"e", "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"},
			{"p", strings.Repeat("b", 64)},
		},
		Content: "hello nostr",
		Sig:     strings.Repeat("0", 128),
	}
}

func TestComputeID(t *testing.T) {
	e := sampleEvent()
	want := "1ebecb95404f006cdf21a29c254857626cac4766126d97b037a41957d84388d5"
	got, err := ComputeID(e)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if got != want {
		t.Errorf("ComputeID = %s, want %s", got, want)
	}
}

func TestCanonicalPreimageDoesNotHTMLEscape(t *testing.T) {
	e := sampleEvent()
	e.Content = "<b>hi</b> & 'quotes'"
	pre, err := canonicalPreimage(e)
	if err != nil {
		t.Fatalf("canonicalPreimage: %v", err)
	}
	if strings.Contains(string(pre), `<`) || strings.Contains(string(pre), `&`) {
		t.Fatalf("canonical preimage HTML-escaped special characters, NIP-01 requires it not to: %s", pre)
	}
	if !strings.Contains(string(pre), "<b>hi</b> & 'quotes'") {
		t.Fatalf("canonical preimage did not contain content verbatim: %s", pre)
	}
}

func TestValidateInvalidID(t *testing.T) {
	e := sampleEvent()
	e.ID = strings.Repeat("f", 64) // does not match canonical preimage hash
	err := Validate(e)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Validate returned %T, want *ValidationError", err)
	}
	if ve.Failure != InvalidID {
		t.Errorf("Failure = %v, want InvalidID", ve.Failure)
	}
}

func TestValidateInvalidSignature(t *testing.T) {
	e := sampleEvent() // id matches, but sig is all zero bytes: not a valid schnorr sig
	err := Validate(e)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Validate returned %T, want *ValidationError", err)
	}
	if ve.Failure != InvalidSignature {
		t.Errorf("Failure = %v, want InvalidSignature", ve.Failure)
	}
}

func TestValidateMalformedTag(t *testing.T) {
	e := sampleEvent()
	e.Tags = Tags{{}} // empty tag list is malformed
	// Validate checks the signature before structure, so the event must be
	// properly signed for the malformed tag to be the reported failure.
	signWithFreshKey(t, e)
	err := Validate(e)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Validate returned %T, want *ValidationError", err)
	}
	if ve.Failure != MalformedField {
		t.Errorf("Failure = %v, want MalformedField", ve.Failure)
	}
}

func TestValidateMalformedIDLength(t *testing.T) {
	e := sampleEvent()
	e.ID = "abc" // too short to even compare
	err := Validate(e)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Validate returned %T, want *ValidationError", err)
	}
	if ve.Failure != InvalidID {
		t.Errorf("Failure = %v, want InvalidID", ve.Failure)
	}
}

// TestValidateOutOfRangeCreatedAt gives a structurally valid event a
// created_at one second past MaxCreatedAt and signs it, so Validate passes
// the id, signature and structure checks and reports the range failure.
func TestValidateOutOfRangeCreatedAt(t *testing.T) {
	e := sampleEvent()
	e.CreatedAt = MaxCreatedAt + 1
	if err := validateStructure(e); err != nil {
		t.Fatalf("validateStructure unexpectedly failed: %v", err)
	}
	if e.CreatedAt >= MinCreatedAt && e.CreatedAt <= MaxCreatedAt {
		t.Fatalf("expected CreatedAt to be out of range")
	}
	signWithFreshKey(t, e)
	err := Validate(e)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Validate returned %T, want *ValidationError", err)
	}
	if ve.Failure != OutOfRangeCreatedAt {
		t.Errorf("Failure = %v, want OutOfRangeCreatedAt", ve.Failure)
	}
}

func TestTagHelpers(t *testing.T) {
	tags := Tags{{"d", "my-article"}, {"e", "abc"}, {"e", "def"}}
	if got := tags.DTag(); got != "my-article" {
		t.Errorf("DTag() = %q, want %q", got, "my-article")
	}
	if got := tags.GetAll("e"); len(got) != 2 {
		t.Errorf("GetAll(e) = %d tags, want 2", len(got))
	}
	if got := tags.GetFirst("missing"); got != nil {
		t.Errorf("GetFirst(missing) = %v, want nil", got)
	}
}

func TestEventClone(t *testing.T) {
	e := sampleEvent()
	c := e.Clone()
	c.Tags[0][1] = "mutated"
	if e.Tags[0][1] == "mutated" {
		t.Error("Clone did not deep-copy tags")
	}
}

func TestSort(t *testing.T) {
	older := &Event{ID: "bb", CreatedAt: 100}
	newer := &Event{ID: "aa", CreatedAt: 200}
	tie1 := &Event{ID: "aa", CreatedAt: 300}
	tie2 := &Event{ID: "zz", CreatedAt: 300}
	s := S{older, tie2, newer, tie1}
	Sort(s)
	want := S{tie1, tie2, newer, older}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("Sort order[%d] = %v, want %v", i, s[i].ID, want[i].ID)
		}
	}
}
