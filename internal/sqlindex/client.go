// Package sqlindex implements the client side of spec.md §4.6's SQL index:
// a bearer-token HTTP API fronting a relational store, with rows shaped
// (id PK, pubkey, kind, created_at, event_json) and a secondary index on
// (pubkey, kind, created_at DESC) / (kind, created_at DESC).
//
// The teacher's own relay speaks to this collaborator from Rust
// (original_source/services/relay/src/infrastructure/http_sqlite); its
// counterpart service, services/sqlite-api, authenticates callers with a
// bearer token compared against an environment-configured value (auth.rs)
// and distinguishes client vs. server failures (error.rs). This client
// reproduces that contract from the Go side: no SDK exists anywhere in the
// retrieval pack for a bespoke internal HTTP API like this one, so net/http
// is the idiomatic choice (DESIGN.md's sqlindex entry).
package sqlindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nostrcore/relay/internal/nostr/event"
	"github.com/nostrcore/relay/internal/nostr/filter"
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	BearerToken    string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client is a bearer-authenticated HTTP client for the SQL index API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a Client, applying sane connect/request timeout
// defaults (5s/10s) when Config leaves them zero.
func NewClient(cfg Config) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.BearerToken,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
	}
}

// Row is the wire shape of a single SQL index record.
type Row struct {
	ID        string          `json:"id"`
	PubKey    string          `json:"pubkey"`
	Kind      uint16          `json:"kind"`
	CreatedAt int64           `json:"created_at"`
	EventJSON json.RawMessage `json:"event_json"`
}

func rowFromEvent(e *event.Event) (Row, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return Row{}, err
	}
	return Row{ID: e.ID, PubKey: e.PubKey, Kind: e.Kind, CreatedAt: e.CreatedAt, EventJSON: raw}, nil
}

// Upsert implements insert-if-absent semantics against POST /events.
func (c *Client) Upsert(ctx context.Context, e *event.Event) error {
	row, err := rowFromEvent(e)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/events", bytes.NewReader(body))
	return err
}

// Delete implements idempotent deletion against DELETE /events/{id}; a 404
// response is treated as success per spec.md §4.6.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/events/"+id, nil)
	return err
}

// SearchResult is the decoded response body of POST /events/search.
type SearchResult struct {
	Rows []Row `json:"rows"`
}

// Search posts f as a query to POST /events/search, using the identical
// wire Filter grammar REQ uses (SPEC_FULL.md §6's Open Question decision).
func (c *Client) Search(ctx context.Context, f *filter.F) ([]Row, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/events/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return result.Rows, nil
}

// Healthy reports whether GET /health succeeds, bypassing bearer auth per
// the teacher's own health-check exemption.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err == nil
}

// StatusError is returned for any non-2xx response other than a 404 on
// Delete, which is treated as success; a non-2xx /health reply also yields
// one, which Healthy reports as false.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sqlindex: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if path != "/health" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return respBody, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
