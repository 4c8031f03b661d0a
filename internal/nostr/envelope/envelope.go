// Package envelope implements the client→relay and relay→client message
// framing of spec.md §4.7: decoding ["EVENT",e], ["REQ",subid,f1,...], and
// ["CLOSE",subid] frames, and encoding ["OK",...], ["EVENT",subid,e],
// ["EOSE",subid], and ["NOTICE",msg] replies. The teacher expresses each
// envelope as its own hand-rolled package (reqenvelope, closeenvelope,
// eventenvelope, ...) over a shared zero-copy parser; this repo collapses
// them into one package built on encoding/json, per DESIGN.md's wire-codec
// entry, since the heterogeneous-array framing these messages use is exactly
// the shape encoding/json's json.RawMessage handles directly.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
)

// Label values for the envelope types this relay understands, per NIP-01.
const (
	LabelEvent  = "EVENT"
	LabelReq    = "REQ"
	LabelClose  = "CLOSE"
	LabelOK     = "OK"
	LabelEOSE   = "EOSE"
	LabelNotice = "NOTICE"
)

// ClientMessage is the decoded form of an inbound client frame.
type ClientMessage interface{ isClientMessage() }

// EventMessage is ["EVENT", <event>].
type EventMessage struct{ Event *event.Event }

// ReqMessage is ["REQ", <subid>, <filter>, ...].
type ReqMessage struct {
	SubID   string
	Filters []*filter.F
}

// CloseMessage is ["CLOSE", <subid>].
type CloseMessage struct{ SubID string }

func (EventMessage) isClientMessage() {}
func (ReqMessage) isClientMessage()   {}
func (CloseMessage) isClientMessage() {}

// MaxSubIDLen is the client-chosen subscription id length ceiling from
// spec.md §3's Subscription definition.
const MaxSubIDLen = 64

// Parse decodes a single client frame into its ClientMessage form. Unknown
// labels and malformed frames both return an error; callers reply with a
// NOTICE per spec.md §4.7's Invalid case.
func Parse(frame []byte) (ClientMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return nil, fmt.Errorf("malformed frame label: %w", err)
	}

	switch label {
	case LabelEvent:
		if len(parts) != 2 {
			return nil, fmt.Errorf("EVENT frame must have exactly one event element")
		}
		var e event.Event
		if err := json.Unmarshal(parts[1], &e); err != nil {
			return nil, fmt.Errorf("malformed event: %w", err)
		}
		return EventMessage{Event: &e}, nil

	case LabelReq:
		if len(parts) < 2 {
			return nil, fmt.Errorf("REQ frame requires a subscription id")
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("malformed subscription id: %w", err)
		}
		if len(subID) > MaxSubIDLen {
			return nil, fmt.Errorf("subscription id exceeds %d bytes", MaxSubIDLen)
		}
		filters := make([]*filter.F, 0, len(parts)-2)
		for _, raw := range parts[2:] {
			f := filter.New()
			if err := json.Unmarshal(raw, f); err != nil {
				return nil, fmt.Errorf("malformed filter: %w", err)
			}
			filters = append(filters, f)
		}
		return ReqMessage{SubID: subID, Filters: filters}, nil

	case LabelClose:
		if len(parts) != 2 {
			return nil, fmt.Errorf("CLOSE frame must have exactly one subscription id element")
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("malformed subscription id: %w", err)
		}
		return CloseMessage{SubID: subID}, nil

	default:
		return nil, fmt.Errorf("unrecognized envelope label %q", label)
	}
}

// EncodeOK renders ["OK", id, accepted, msg].
func EncodeOK(id string, accepted bool, msg string) ([]byte, error) {
	return json.Marshal([]any{LabelOK, id, accepted, msg})
}

// EncodeEvent renders ["EVENT", subid, e].
func EncodeEvent(subID string, e *event.Event) ([]byte, error) {
	return json.Marshal([]any{LabelEvent, subID, e})
}

// EncodeEOSE renders ["EOSE", subid].
func EncodeEOSE(subID string) ([]byte, error) {
	return json.Marshal([]any{LabelEOSE, subID})
}

// EncodeNotice renders ["NOTICE", msg].
func EncodeNotice(msg string) ([]byte, error) {
	return json.Marshal([]any{LabelNotice, msg})
}
