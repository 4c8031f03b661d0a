package envelope

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseEvent(t *testing.T) {
	frame := []byte(`["EVENT",{"id":"aa","pubkey":"bb","created_at":1,"kind":1,"tags":[],"content":"hi","sig":"cc"}]`)
	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ev, ok := msg.(EventMessage)
	if !ok {
		t.Fatalf("got %T, want EventMessage", msg)
	}
	if ev.Event.ID != "aa" {
		t.Errorf("Event.ID = %q", ev.Event.ID)
	}
}

func TestParseReq(t *testing.T) {
	frame := []byte(`["REQ","sub1",{"ids":["aa"]},{"kinds":[1]}]`)
	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	req, ok := msg.(ReqMessage)
	if !ok {
		t.Fatalf("got %T, want ReqMessage", msg)
	}
	if req.SubID != "sub1" {
		t.Errorf("SubID = %q", req.SubID)
	}
	if len(req.Filters) != 2 {
		t.Fatalf("len(Filters) = %d, want 2", len(req.Filters))
	}
}

func TestParseReqRejectsLongSubID(t *testing.T) {
	longID := strings.Repeat("a", MaxSubIDLen+1)
	frame, _ := json.Marshal([]any{"REQ", longID})
	if _, err := Parse(frame); err == nil {
		t.Fatal("expected error for oversized subscription id")
	}
}

func TestParseClose(t *testing.T) {
	frame := []byte(`["CLOSE","sub1"]`)
	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cl, ok := msg.(CloseMessage)
	if !ok {
		t.Fatalf("got %T, want CloseMessage", msg)
	}
	if cl.SubID != "sub1" {
		t.Errorf("SubID = %q", cl.SubID)
	}
}

func TestParseUnknownLabel(t *testing.T) {
	if _, err := Parse([]byte(`["BOGUS","x"]`)); err == nil {
		t.Fatal("expected error for unrecognized label")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if _, err := Parse([]byte(`[]`)); err == nil {
		t.Fatal("expected error for empty frame")
	}
}

func TestEncodeOK(t *testing.T) {
	b, err := EncodeOK("id1", true, "")
	if err != nil {
		t.Fatalf("EncodeOK: %v", err)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(parts) != 4 {
		t.Fatalf("len(parts) = %d, want 4", len(parts))
	}
}

func TestEncodeEOSE(t *testing.T) {
	b, err := EncodeEOSE("sub1")
	if err != nil {
		t.Fatalf("EncodeEOSE: %v", err)
	}
	if string(b) != `["EOSE","sub1"]` {
		t.Errorf("EncodeEOSE = %s", b)
	}
}

func TestEncodeNotice(t *testing.T) {
	b, err := EncodeNotice("too large")
	if err != nil {
		t.Fatalf("EncodeNotice: %v", err)
	}
	if string(b) != `["NOTICE","too large"]` {
		t.Errorf("EncodeNotice = %s", b)
	}
}
