package dispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
)

// fakeQueryPlanner returns a fixed result set regardless of the filter, for
// tests that only exercise handleReq's streaming/EOSE/registration behavior.
type fakeQueryPlanner struct {
	results []*event.Event
	err     error
}

func (q *fakeQueryPlanner) Query(ctx context.Context, f *filter.F) ([]*event.Event, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.results, nil
}

func TestHandleReqStreamsEventsThenEOSE(t *testing.T) {
	e1 := signedEvent(t, 1, 1700000100, "first", nil)
	e2 := signedEvent(t, 1, 1700000200, "second", nil)
	qp := &fakeQueryPlanner{results: []*event.Event{e1, e2}}

	l, conn := newTestListener(newFakePrimary(), qp)

	limit := 10
	f := &filter.F{Kinds: []uint16{1}, Limit: &limit}
	if err := l.handleReq("sub1", []*filter.F{f}); err != nil {
		t.Fatalf("handleReq: %v", err)
	}

	frames := conn.all()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (2 events + EOSE)", len(frames))
	}
	var label string
	json.Unmarshal(decodeFrame(t, frames[len(frames)-1])[0], &label)
	if label != "EOSE" {
		t.Fatalf("last frame label = %q, want EOSE", label)
	}
}

func TestHandleReqRegistersSubscriptionForLiveFanout(t *testing.T) {
	qp := &fakeQueryPlanner{}
	l, _ := newTestListener(newFakePrimary(), qp)

	f := &filter.F{Kinds: []uint16{1}}
	if err := l.handleReq("sub1", []*filter.F{f}); err != nil {
		t.Fatalf("handleReq: %v", err)
	}

	l.mu.Lock()
	_, ok := l.subs["sub1"]
	l.mu.Unlock()
	if !ok {
		t.Fatalf("expected sub1 to be registered")
	}
}

func TestHandleReqIDsOnlyFilterDoesNotRegister(t *testing.T) {
	qp := &fakeQueryPlanner{}
	l, _ := newTestListener(newFakePrimary(), qp)

	f := &filter.F{IDs: []string{"abc"}}
	if err := l.handleReq("sub1", []*filter.F{f}); err != nil {
		t.Fatalf("handleReq: %v", err)
	}

	l.mu.Lock()
	_, ok := l.subs["sub1"]
	l.mu.Unlock()
	if ok {
		t.Fatalf("ids-only subscription should not be kept registered")
	}
}

func TestHandleReqPropagatesQueryError(t *testing.T) {
	qp := &fakeQueryPlanner{err: context.DeadlineExceeded}
	l, _ := newTestListener(newFakePrimary(), qp)

	f := &filter.F{Kinds: []uint16{1}}
	if err := l.handleReq("sub1", []*filter.F{f}); err == nil {
		t.Fatalf("expected an error from handleReq")
	}
}
