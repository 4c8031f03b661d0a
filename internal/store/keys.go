package store

import (
	"encoding/binary"
	"encoding/hex"
)

// Key layout. All keys are plain byte-slice prefixes over a single badger
// keyspace, in the manner of the teacher's pkg/database/indexes package,
// simplified here to string concatenation since this repo does not need the
// teacher's zero-copy Uint40 serial encoding.
const (
	prefixEvent   = "ev:"  // ev:<id hex>                -> event JSON
	prefixLog     = "lg:"  // lg:<serial big-endian>      -> id hex
	prefixReplace = "ri:"  // ri:<pubkey><kind>           -> id hex
	prefixAddr    = "ai:"  // ai:<pubkey><kind><d-tag>    -> id hex
)

func eventKey(id string) []byte { return []byte(prefixEvent + id) }

func logKey(serial uint64) []byte {
	b := make([]byte, len(prefixLog)+8)
	copy(b, prefixLog)
	binary.BigEndian.PutUint64(b[len(prefixLog):], serial)
	return b
}

func replaceIndexKey(pubKey string, kind uint16) []byte {
	b := make([]byte, 0, len(prefixReplace)+len(pubKey)+2)
	b = append(b, prefixReplace...)
	b = append(b, pubKey...)
	b = binary.BigEndian.AppendUint16(b, kind)
	return b
}

func addrIndexKey(pubKey string, kind uint16, dTag string) []byte {
	b := make([]byte, 0, len(prefixAddr)+len(pubKey)+2+len(dTag))
	b = append(b, prefixAddr...)
	b = append(b, pubKey...)
	b = binary.BigEndian.AppendUint16(b, kind)
	b = append(b, dTag...)
	return b
}

// decodeID is a small readability wrapper around hex validation used when
// reading index values back out as event ids.
func decodeID(b []byte) (string, error) {
	if _, err := hex.DecodeString(string(b)); err != nil {
		return "", err
	}
	return string(b), nil
}
