package dispatcher

import (
	"github.com/nostrcore/relay/internal/nostr/envelope"
	"github.com/nostrcore/relay/internal/nostr/event"
)

// okReason prefixes an OK/NOTICE message with the machine-readable category
// NIP-01 conventions expect ("duplicate: ...", "invalid: ...", ...), per
// app/ok.go's reason table, trimmed to the reasons this repo's Non-goals
// leave in play (no auth-required/pow/rate-limited/blocked/restricted: those
// all depend on ACL or payment features this repo does not implement).
type okReason string

const (
	reasonOK        okReason = ""
	reasonInvalid   okReason = "invalid"
	reasonDuplicate okReason = "duplicate"
	reasonError     okReason = "error"
)

func okMessage(reason okReason, detail string) string {
	if reason == reasonOK {
		return detail
	}
	if detail == "" {
		return string(reason)
	}
	return string(reason) + ": " + detail
}

func (l *listener) replyOK(e *event.Event, accepted bool, reason okReason, detail string) error {
	frame, err := envelope.EncodeOK(e.ID, accepted, okMessage(reason, detail))
	if err != nil {
		return err
	}
	_, err = l.Write(frame)
	return err
}
