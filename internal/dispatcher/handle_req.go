package dispatcher

import (
	"github.com/nostrcore/relay/internal/nostr/envelope"
	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
)

// handleReq implements the REQ branch of app/handle-req.go: run every
// filter concurrently against the QueryPlanner, stream matches, terminate
// with EOSE, then register the subscription for live fan-out — unless every
// filter in the set was an exhausted ids-only lookup, matching the teacher's
// cancel-immediately-after-EOSE behavior for filters that can never produce
// a future match.
func (l *listener) handleReq(subID string, filters []*filter.F) error {
	matched, err := queryAll(l.ctx, l.queries, filters)
	if err != nil {
		return err
	}

	for _, e := range matched {
		if err := l.sendEvent(subID, e); err != nil {
			return err
		}
	}
	if err := l.sendEOSE(subID); err != nil {
		return err
	}

	if allIDsOnly(filters) {
		return nil
	}

	l.mu.Lock()
	l.subs[subID] = filters
	l.mu.Unlock()
	l.publisher.Register(l, subID, filters)
	return nil
}

func (l *listener) sendEvent(subID string, e *event.Event) error {
	frame, err := envelope.EncodeEvent(subID, e)
	if err != nil {
		return err
	}
	_, err = l.Write(frame)
	return err
}

func (l *listener) sendEOSE(subID string) error {
	frame, err := envelope.EncodeEOSE(subID)
	if err != nil {
		return err
	}
	_, err = l.Write(frame)
	return err
}

// allIDsOnly reports whether every filter names only ids, with no other
// constraint — such a filter can never match a future event, so there is no
// point keeping it registered for live fan-out.
func allIDsOnly(filters []*filter.F) bool {
	for _, f := range filters {
		if len(f.IDs) == 0 {
			return false
		}
		if len(f.Authors) != 0 || len(f.Kinds) != 0 || len(f.Tags) != 0 ||
			f.Since != nil || f.Until != nil || f.Search != "" {
			return false
		}
	}
	return true
}
