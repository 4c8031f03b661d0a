package dispatcher

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/nostrcore/relay/internal/nostr/event"
)

// testKey is a generated keypair, reused across an event and a later
// deletion of that event so the deletion's pubkey can be made to match.
type testKey struct {
	priv   *btcec.PrivateKey
	pubKey string
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return testKey{priv: priv, pubKey: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))}
}

// sign builds and signs a real event under k so it passes event.Validate.
func (k testKey) sign(t *testing.T, kind uint16, createdAt int64, content string, tags event.Tags) *event.Event {
	t.Helper()

	e := &event.Event{
		PubKey:    k.pubKey,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	id, err := event.ComputeID(e)
	if err != nil {
		t.Fatalf("compute id: %v", err)
	}
	e.ID = id

	idBytes, err := hex.DecodeString(id)
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	sig, err := schnorr.Sign(k.priv, idBytes)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return e
}

// signedEvent builds and signs a real event under a freshly generated key,
// for tests that don't need to reuse the same identity across two events.
func signedEvent(t *testing.T, kind uint16, createdAt int64, content string, tags event.Tags) *event.Event {
	t.Helper()
	return newTestKey(t).sign(t, kind, createdAt, content, tags)
}
