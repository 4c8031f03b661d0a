// Package dispatcher implements the Message Dispatcher of spec.md §4
// (implicit) and §6: it terminates client websocket connections, decodes
// EVENT/REQ/CLOSE frames, and drives the Event Validator, Event-Kind
// Classifier, Filter Evaluator, Primary Event Log, and Secondary Indices on
// their behalf, replying with OK/EVENT/EOSE/NOTICE frames.
//
// Grounded on app/server.go (HTTP routing: websocket upgrade vs NIP-11
// content negotiation), app/handle-websocket.go (accept/read loop, ping
// idiom), app/handle-event.go, app/handle-req.go, app/handle-close.go,
// app/handle-message.go (envelope dispatch), app/publisher.go (subscription
// fan-out map), and app/ok.go (reply helper table) — adapted by removing
// every ACL/AUTH branch (out of scope per spec.md's Non-goals) and by
// replacing the teacher's hand-rolled envelope codec with
// internal/nostr/envelope.
package dispatcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/relayinfo"
	"github.com/nostrcore/relay/internal/store"
)

// MaxFrameSize is spec.md §6's inbound frame size ceiling.
const MaxFrameSize = 256 * 1024

// MaxLimit is spec.md §6's cap on a filter's `limit` field.
const MaxLimit = 5000

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// Primary is the subset of *store.Store the dispatcher needs.
type Primary interface {
	Get(id string) (*event.Event, error)
	PutRegular(e *event.Event) (store.Outcome, error)
	PutReplaceable(e *event.Event) (store.Outcome, error)
	PutAddressable(e *event.Event) (store.Outcome, error)
	Delete(ids []string, byPubKey string, deleterCreatedAt int64) ([]store.DeleteOutcome, error)
	Subscribe(buffer int) <-chan store.ChangeRecord
}

// Server owns the Primary Event Log and secondary-index query backends
// shared by every connection, and routes incoming HTTP requests to either
// the websocket upgrade path or the NIP-11 info document.
type Server struct {
	store   Primary
	queries QueryPlanner
	info    http.HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc

	publisher *Publisher
}

// New constructs a Server. ctx bounds the server's lifetime; cancelling it
// tears down every live connection.
func New(ctx context.Context, s Primary, qp QueryPlanner, infoCfg relayinfo.Config) *Server {
	ctx, cancel := context.WithCancel(ctx)
	srv := &Server{
		store:     s,
		queries:   qp,
		info:      relayinfo.NewHandler(infoCfg),
		ctx:       ctx,
		cancel:    cancel,
		publisher: NewPublisher(),
	}
	go srv.publisher.ConsumeChanges(ctx, s.Subscribe(256))
	return srv
}

// Close cancels the server's context, tearing down all connections.
func (s *Server) Close() { s.cancel() }

// ServeHTTP routes a request to the NIP-11 info handler or the websocket
// upgrade, per app/server.go's content-negotiation.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if relayinfo.Accepts(r) {
		s.info(w, r)
		return
	}
	s.handleWebsocket(w, r)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	remote := remoteAddr(r)
	log.T.F("accepting websocket connection from %s", remote)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if chk.E(err) {
		return
	}
	conn.SetReadLimit(MaxFrameSize)
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	l := newListener(ctx, s, conn, remote)
	defer s.publisher.RemoveConn(l)

	ticker := time.NewTicker(DefaultPingInterval)
	defer ticker.Stop()
	go l.pinger(ticker)

	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			status := websocket.CloseStatus(err)
			switch status {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway,
				websocket.StatusNoStatusRcvd, websocket.StatusAbnormalClosure:
			default:
				log.E.F("unexpected close from %s: %v", remote, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		l.HandleMessage(msg)
	}
}

func (l *listener) pinger(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			if err := l.conn.Ping(l.ctx); chk.E(err) {
				return
			}
		case <-l.ctx.Done():
			return
		}
	}
}

// remoteAddr extracts the originating client address, preferring the
// Forwarded/X-Forwarded-For proxy headers over RemoteAddr, per
// app/helpers.go's GetRemoteFromReq.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		for _, part := range strings.Split(fwd, ";") {
			part = strings.TrimSpace(part)
			if v, ok := strings.CutPrefix(part, "for="); ok {
				return strings.Trim(strings.Trim(v, "\""), "[]")
			}
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return r.RemoteAddr
}
