package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/nostrcore/relay/internal/nostr/deletion"
	"github.com/nostrcore/relay/internal/nostr/envelope"
	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/store"
)

// fakePrimary implements Primary entirely in memory, for dispatcher tests
// that would otherwise need a real badger store.
type fakePrimary struct {
	mu        sync.Mutex
	byID      map[string]*event.Event
	deletes   []string
	putErr    error
	deleteErr error
}

func newFakePrimary() *fakePrimary {
	return &fakePrimary{byID: make(map[string]*event.Event)}
}

func (p *fakePrimary) Get(id string) (*event.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.byID[id]; ok {
		return e, nil
	}
	return nil, errors.New("not found")
}

func (p *fakePrimary) PutRegular(e *event.Event) (store.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return store.Outcome{}, p.putErr
	}
	if _, ok := p.byID[e.ID]; ok {
		return store.Outcome{Stored: false, Reason: "duplicate"}, nil
	}
	p.byID[e.ID] = e
	return store.Outcome{Stored: true}, nil
}

func (p *fakePrimary) PutReplaceable(e *event.Event) (store.Outcome, error) {
	return p.PutRegular(e)
}

func (p *fakePrimary) PutAddressable(e *event.Event) (store.Outcome, error) {
	return p.PutRegular(e)
}

func (p *fakePrimary) Delete(ids []string, byPubKey string, deleterCreatedAt int64) ([]store.DeleteOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return nil, p.deleteErr
	}
	outcomes := make([]store.DeleteOutcome, 0, len(ids))
	for _, id := range ids {
		target, ok := p.byID[id]
		if !ok {
			outcomes = append(outcomes, store.DeleteOutcome{ID: id, Reason: "not found"})
			continue
		}
		ok, reason := deletion.Validate(
			deletion.Target{PubKey: target.PubKey, Kind: target.Kind, CreatedAt: target.CreatedAt},
			byPubKey, deleterCreatedAt,
		)
		if !ok {
			outcomes = append(outcomes, store.DeleteOutcome{ID: id, Reason: reason.String()})
			continue
		}
		delete(p.byID, id)
		p.deletes = append(p.deletes, id)
		outcomes = append(outcomes, store.DeleteOutcome{ID: id, Removed: true})
	}
	return outcomes, nil
}

func (p *fakePrimary) Subscribe(buffer int) <-chan store.ChangeRecord {
	return make(chan store.ChangeRecord, buffer)
}

// fakeConn implements wireConn, recording every frame written instead of
// touching a real websocket.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), p...)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func (c *fakeConn) all() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func newTestListener(primary Primary, qp QueryPlanner) (*listener, *fakeConn) {
	srv := &Server{store: primary, queries: qp, publisher: NewPublisher()}
	conn := &fakeConn{}
	l := newListener(context.Background(), srv, conn, "test")
	return l, conn
}

func decodeFrame(t *testing.T, frame []byte) []json.RawMessage {
	t.Helper()
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return parts
}

func TestHandleEventStoresAndRepliesOK(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	e := signedEvent(t, 1, 1700000000, "hello", nil)
	if err := l.handleEvent(e); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}

	if _, err := primary.Get(e.ID); err != nil {
		t.Fatalf("event not stored: %v", err)
	}

	parts := decodeFrame(t, conn.last())
	var label string
	json.Unmarshal(parts[0], &label)
	if label != envelope.LabelOK {
		t.Fatalf("label = %q, want OK", label)
	}
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if !accepted {
		t.Fatalf("expected accepted=true")
	}
}

func TestHandleEventRejectsInvalidSignature(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	e := signedEvent(t, 1, 1700000000, "hello", nil)
	e.Sig = e.Sig[:126] + "00" // corrupt the signature

	if err := l.handleEvent(e); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if _, err := primary.Get(e.ID); err == nil {
		t.Fatalf("invalid event should not be stored")
	}
	parts := decodeFrame(t, conn.last())
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if accepted {
		t.Fatalf("expected accepted=false")
	}
}

func TestHandleEventDuplicateRejected(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	e := signedEvent(t, 1, 1700000000, "hello", nil)
	if err := l.handleEvent(e); err != nil {
		t.Fatalf("first handleEvent: %v", err)
	}
	if err := l.handleEvent(e); err != nil {
		t.Fatalf("second handleEvent: %v", err)
	}

	parts := decodeFrame(t, conn.last())
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if accepted {
		t.Fatalf("expected duplicate rejected")
	}
	var msg string
	json.Unmarshal(parts[3], &msg)
	if msg == "" {
		t.Fatalf("expected a duplicate reason message")
	}
}

func TestHandleEventDeletionRemovesTarget(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	author := newTestKey(t)
	target := author.sign(t, 1, 1700000000, "to be deleted", nil)
	if err := l.handleEvent(target); err != nil {
		t.Fatalf("store target: %v", err)
	}

	deletion := author.sign(t, 5, 1700000100, "", event.Tags{{"e", target.ID}})
	if err := l.handleEvent(deletion); err != nil {
		t.Fatalf("handleEvent deletion: %v", err)
	}

	if _, err := primary.Get(target.ID); err == nil {
		t.Fatalf("target should have been removed")
	}
	if _, err := primary.Get(deletion.ID); err != nil {
		t.Fatalf("the deletion event itself should be stored (kind 5 is Regular): %v", err)
	}
	parts := decodeFrame(t, conn.last())
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if !accepted {
		t.Fatalf("expected deletion OK to be accepted")
	}
}

func TestHandleEventDeletionRejectingAnotherDeletionIsProtected(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	author := newTestKey(t)
	firstDeletion := author.sign(t, 5, 1700000000, "", event.Tags{{"e", signedEvent(t, 1, 1699999999, "x", nil).ID}})
	if err := l.handleEvent(firstDeletion); err != nil {
		t.Fatalf("store first deletion: %v", err)
	}

	secondDeletion := author.sign(t, 5, 1700000100, "", event.Tags{{"e", firstDeletion.ID}})
	if err := l.handleEvent(secondDeletion); err != nil {
		t.Fatalf("handleEvent second deletion: %v", err)
	}

	if _, err := primary.Get(firstDeletion.ID); err != nil {
		t.Fatalf("a deletion event must not itself be deletable: %v", err)
	}
	parts := decodeFrame(t, conn.last())
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if accepted {
		t.Fatalf("expected the protected-kind rejection to surface as accepted=false")
	}
}

func TestHandleEventEphemeralSkipsStorage(t *testing.T) {
	primary := newFakePrimary()
	l, conn := newTestListener(primary, nil)

	e := signedEvent(t, 20001, 1700000000, "ephemeral", nil)
	if err := l.handleEvent(e); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if _, err := primary.Get(e.ID); err == nil {
		t.Fatalf("ephemeral event must not be stored")
	}
	parts := decodeFrame(t, conn.last())
	var accepted bool
	json.Unmarshal(parts[2], &accepted)
	if !accepted {
		t.Fatalf("expected ephemeral event to be accepted")
	}
}
