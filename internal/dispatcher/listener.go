package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/nostr/envelope"
	"github.com/nostrcore/relay/internal/nostr/filter"
)

// wireConn is the subset of *websocket.Conn a listener needs, narrowed so
// tests can exercise the dispatcher's handlers against a fake connection
// instead of a real websocket.
type wireConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
}

// listener is one client's connection state: the websocket, its owning
// Server, and the set of live subscriptions it has open. Grounded on
// app/listener.go, stripped of the auth/challenge fields this repo's
// Non-goals exclude.
type listener struct {
	*Server
	conn   wireConn
	ctx    context.Context
	remote string
	connID string

	mu   sync.Mutex
	subs map[string][]*filter.F // subid -> live OR-across-filters list
}

func newListener(ctx context.Context, s *Server, conn wireConn, remote string) *listener {
	connID := uuid.NewString()
	return &listener{
		Server: s,
		conn:   conn,
		ctx:    ctx,
		remote: remote,
		connID: connID,
		subs:   make(map[string][]*filter.F),
	}
}

// Write implements io.Writer so envelope.Encode* helpers and the publisher
// can send frames directly to this connection, per app/listener.go's Write.
func (l *listener) Write(p []byte) (n int, err error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	if err = l.conn.Write(writeCtx, websocket.MessageText, p); chk.E(err) {
		return 0, err
	}
	return len(p), nil
}

// HandleMessage decodes one client frame and dispatches it to the matching
// handler, per app/handle-message.go. Decode/handler errors become a
// NOTICE frame rather than terminating the connection.
func (l *listener) HandleMessage(msg []byte) {
	log.T.F("%s[%s] received %d bytes", l.remote, l.connID, len(msg))

	cm, err := envelope.Parse(msg)
	if err != nil {
		l.notice(fmt.Sprintf("error: could not parse message: %s", err))
		return
	}

	switch m := cm.(type) {
	case envelope.EventMessage:
		err = l.handleEvent(m.Event)
	case envelope.ReqMessage:
		err = l.handleReq(m.SubID, m.Filters)
	case envelope.CloseMessage:
		err = l.handleClose(m.SubID)
	default:
		err = fmt.Errorf("unhandled envelope type %T", cm)
	}
	if err != nil {
		log.D.F("notice->%s: %v", l.remote, err)
		l.notice(err.Error())
	}
}

func (l *listener) notice(msg string) {
	frame, err := envelope.EncodeNotice(msg)
	if chk.E(err) {
		return
	}
	_, _ = l.Write(frame)
}

