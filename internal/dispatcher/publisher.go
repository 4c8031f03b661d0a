package dispatcher

import (
	"context"
	"sync"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/nostr/envelope"
	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
	"github.com/nostrcore/relay/internal/store"
)

// Publisher fans a matching event out to every live subscription across
// every connection, per app/publisher.go's connection-keyed map of
// subscriptions. Stored events reach it through ConsumeChanges, which drains
// the Primary Event Log's change-record stream; ephemeral events, which are
// never stored, reach it through Fanout.
type Publisher struct {
	mu    sync.Mutex
	conns map[*listener]map[string][]*filter.F
}

func NewPublisher() *Publisher {
	return &Publisher{conns: make(map[*listener]map[string][]*filter.F)}
}

// Register adds or replaces subID's filter set for l, per app/handle-req.go
// re-subscribing an existing subid.
func (p *Publisher) Register(l *listener, subID string, filters []*filter.F) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[l] == nil {
		p.conns[l] = make(map[string][]*filter.F)
	}
	p.conns[l][subID] = filters
}

// Unregister removes one subscription, per the CLOSE branch of
// app/handle-close.go.
func (p *Publisher) Unregister(l *listener, subID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns[l], subID)
}

// RemoveConn drops every subscription belonging to l, called when its
// websocket connection closes.
func (p *Publisher) RemoveConn(l *listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, l)
}

// Fanout delivers e as an EVENT frame to every subscription across every
// connection whose filter set matches it.
func (p *Publisher) Fanout(e *event.Event) {
	p.deliver(e)
}

// FanoutDeletion is called for every id a deletion event removed, and sends
// nothing: NIP-01 carries no dedicated deletion-notice frame, so subscribers
// simply stop seeing the id in future REQ replies; this is a no-op placed here so the
// deletion path reads symmetrically with Fanout and gives a home for a
// future NIP-09-aware notice if one is ever added.
func (p *Publisher) FanoutDeletion(id string) {}

func (p *Publisher) deliver(e *event.Event) {
	p.mu.Lock()
	type target struct {
		l     *listener
		subID string
	}
	var targets []target
	for l, subs := range p.conns {
		for subID, filters := range subs {
			if matchesAny(filters, e) {
				targets = append(targets, target{l, subID})
			}
		}
	}
	p.mu.Unlock()

	for _, t := range targets {
		frame, err := envelope.EncodeEvent(t.subID, e)
		if chk.E(err) {
			continue
		}
		if _, err := t.l.Write(frame); chk.E(err) {
			log.D.F("dropping subscriber %s on %s: write failed", t.subID, t.l.remote)
		}
	}
}

func matchesAny(filters []*filter.F, e *event.Event) bool {
	for _, f := range filters {
		if filter.Matches(f, e) {
			return true
		}
	}
	return false
}

// ConsumeChanges drains the Primary Event Log's change-record stream and
// fans out every insert/modify's NewImage, for the lifetime of ctx. This is
// the only live fan-out path for stored events: handleEvent calls Fanout
// directly only for ephemeral ones. Records without a NewImage (removals)
// are not delivered.
func (p *Publisher) ConsumeChanges(ctx context.Context, ch <-chan store.ChangeRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.NewImage != nil {
				p.deliver(rec.NewImage)
			}
		}
	}
}
