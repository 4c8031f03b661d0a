package relayinfo

import (
	"encoding/json"
	"net/http"

	"github.com/nostrcore/relay/internal/nostr/envelope"
)

// Config supplies the operator-facing fields of the relay info document;
// the protocol fields (SupportedNIPs, Limitation.MaxSubIDLength) are fixed
// by this repo's scope and filled in by NewHandler.
type Config struct {
	Name        string
	Description string
	PubKey      string
	Contact     string
	Icon        string
	Banner      string
	Software    string
	Version     string
}

// NewHandler returns an http.HandlerFunc that serves the NIP-11 document
// when the request carries Accept: application/nostr+json, per spec.md §6.
// Callers wire this behind the same path the websocket upgrade listens on,
// mirroring the teacher's single-listener content negotiation in
// app/server.go's ServeHTTP.
func NewHandler(cfg Config) http.HandlerFunc {
	doc := Document{
		Name:        cfg.Name,
		Description: cfg.Description,
		PubKey:      cfg.PubKey,
		Contact:     cfg.Contact,
		Icon:        cfg.Icon,
		Banner:      cfg.Banner,
		Software:    cfg.Software,
		Version:     cfg.Version,
		SupportedNIPs: SupportedNIPs,
		Limitation: Limits{
			MaxSubIDLength: envelope.MaxSubIDLen,
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/nostr+json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

// Accepts reports whether r is requesting the NIP-11 document rather than
// a websocket upgrade or an ordinary HTTP request.
func Accepts(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/nostr+json"
}
