package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// MaxBulkBatch is the ≤500-document bulk indexing ceiling spec.md §4.6
// requires during rebuild.
const MaxBulkBatch = 500

// Client is a thin wrapper over the Elasticsearch/OpenSearch-compatible
// bulk and search REST API.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// Config configures a Client.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// NewClient constructs a Client from Config.
func NewClient(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("construct elasticsearch client: %w", err)
	}
	return &Client{es: es, index: cfg.Index}, nil
}

type bulkMeta struct {
	Index *bulkMetaIndex `json:"index,omitempty"`
	Delete *bulkMetaIndex `json:"delete,omitempty"`
}

type bulkMetaIndex struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// Upsert bulk-indexes docs, chunked to MaxBulkBatch per request.
func (c *Client) Upsert(ctx context.Context, docs []*Document) error {
	for start := 0; start < len(docs); start += MaxBulkBatch {
		end := min(start+MaxBulkBatch, len(docs))
		if err := c.upsertBatch(ctx, docs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertBatch(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, d := range docs {
		meta := bulkMeta{Index: &bulkMetaIndex{Index: c.index, ID: d.ID}}
		if err := writeNDJSONLine(&buf, meta); err != nil {
			return err
		}
		if err := writeNDJSONLine(&buf, d); err != nil {
			return err
		}
	}
	return c.doBulk(ctx, &buf)
}

// Delete bulk-removes docs by id, chunked to MaxBulkBatch per request.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += MaxBulkBatch {
		end := min(start+MaxBulkBatch, len(ids))
		if err := c.deleteBatch(ctx, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, id := range ids {
		meta := bulkMeta{Delete: &bulkMetaIndex{Index: c.index, ID: id}}
		if err := writeNDJSONLine(&buf, meta); err != nil {
			return err
		}
	}
	return c.doBulk(ctx, &buf)
}

func (c *Client) doBulk(ctx context.Context, body io.Reader) error {
	req := esapi.BulkRequest{Body: body, Refresh: "false"}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return &StatusError{StatusCode: res.StatusCode, Body: res.String()}
	}
	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int    `json:"status"`
			Error  any    `json:"error,omitempty"`
			ID     string `json:"_id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for action, result := range item {
				if result.Error != nil {
					return &StatusError{
						StatusCode: result.Status,
						Body:       fmt.Sprintf("bulk %s failed for id %s: %v", action, result.ID, result.Error),
					}
				}
			}
		}
	}
	return nil
}

// StatusError reports a non-success HTTP response (top-level or per-item
// within a bulk envelope) from the search index, carrying the status code so
// callers can tell a client-caused failure (4xx: malformed document, bad
// mapping) from a transient server/network one worth retrying.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("searchindex: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Search runs a raw Elasticsearch/OpenSearch query DSL body and decodes the
// matching documents' _source into Document values.
func (c *Client) Search(ctx context.Context, query map[string]any, size int) ([]*Document, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: res.String()}
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]*Document, 0, len(parsed.Hits.Hits))
	for i := range parsed.Hits.Hits {
		d := parsed.Hits.Hits[i].Source
		out = append(out, &d)
	}
	return out, nil
}

func writeNDJSONLine(buf *bytes.Buffer, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(enc)
	buf.WriteByte('\n')
	return nil
}
