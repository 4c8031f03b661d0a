// Package relayinfo implements the NIP-11 Relay Information Document
// collaborator of spec.md §6: a JSON document served over HTTP when a
// client requests it with Accept: application/nostr+json.
//
// Grounded on app/handleRelayinfo.go and app/handle-relayinfo.go (two
// divergent copies in the retrieval pack; this package follows the simpler,
// non-ACL one since this repo carries no ACL/auth layer per the Non-goals).
package relayinfo

// Limits is the NIP-11 limitation object. Only max_subid_length is
// meaningful for this relay; the others the teacher sets depend on the ACL
// layer this repo doesn't carry, so they are omitted via omitempty.
type Limits struct {
	MaxSubIDLength int `json:"max_subid_length,omitempty"`
	MaxLimit       int `json:"max_limit,omitempty"`
}

// Document is the NIP-11 Relay Information Document, per spec.md §6.
// Optional fields are omitted when unset; empty slices are omitted.
type Document struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	PubKey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	Banner        string   `json:"banner,omitempty"`
	SupportedNIPs []int    `json:"supported_nips,omitempty"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
	Limitation    Limits   `json:"limitation"`
	RelayCountries []string `json:"relay_countries,omitempty"`
	LanguageTags  []string `json:"language_tags,omitempty"`
}

// SupportedNIPs lists the NIPs this relay implements: NIP-01 (basic
// protocol), NIP-09 (event deletion), NIP-11 (this document itself).
var SupportedNIPs = []int{1, 9, 11}
