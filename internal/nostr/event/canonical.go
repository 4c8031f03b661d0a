package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalPreimage renders the NIP-01 serialization used to compute an
// event's id: the JSON array [0, pubkey, created_at, kind, tags, content]
// with no insignificant whitespace. encoding/json's Marshal HTML-escapes
// '<', '>', and '&' by default, which NIP-01's canonical form does not; a
// real client's content containing those (common) characters would then
// hash to a different id here than the one it actually signed. SetEscapeHTML
// disables that so this matches byte-for-byte what any NIP-01-compliant
// signer produces.
func canonicalPreimage(e *Event) ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = Tags{}
	}
	arr := []any{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeID returns the lowercase-hex SHA-256 of the canonical preimage.
func ComputeID(e *Event) (string, error) {
	pre, err := canonicalPreimage(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	sum := sha256.Sum256(pre)
	return hex.EncodeToString(sum[:]), nil
}

// IDBytes decodes the event's hex id field into raw bytes.
func IDBytes(e *Event) ([]byte, error) { return hex.DecodeString(e.ID) }

// idsEqual compares a computed id to the claimed one case-insensitively by
// decoding both to bytes, so "AA" and "aa" compare equal as the protocol
// requires lowercase hex but some clients still send mixed case.
func idsEqual(claimed, computed string) bool {
	a, err1 := hex.DecodeString(claimed)
	b, err2 := hex.DecodeString(computed)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, b)
}
