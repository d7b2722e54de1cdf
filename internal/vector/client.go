// File path: internal/vector/client.go
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/common/telemetry"
)

// Store is the nearest-neighbor index the retrieval engine and the ingestion
// pipeline talk to. The metadata filter is a flat equality predicate.
type Store interface {
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error)
	Upsert(ctx context.Context, items []Item) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

// QueryOptions shape a nearest-neighbor query.
type QueryOptions struct {
	TopK            int
	Filter          map[string]string
	IncludeMetadata bool
}

// Match is a single query hit.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]interface{}
}

// Item is the unit stored in the index. The ID is a deterministic function
// of the canonical URL, source path, and chunk index so re-upserts replace
// rather than append.
type Item struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Client talks to the vector index over HTTP.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport

	baseURL   string
	namespace string
	apiKey    string
}

var (
	errNotFound = errors.New("resource not found")
)

// NewFromEnv constructs a client from environment configuration.
func NewFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New constructs a client using the provided configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	logger := common.Logger()
	logger.Info(
		"vector: initializing index client",
		"endpoint", cfg.Endpoint,
		"namespace", cfg.Namespace,
		"timeout", cfg.Timeout,
	)
	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		namespace:  cfg.Namespace,
		apiKey:     cfg.APIKey,
	}, nil
}

func (c *Client) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error) {
	if c == nil {
		return nil, errors.New("vector client not configured")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"namespace":       c.namespace,
		"includeMetadata": opts.IncludeMetadata,
	}
	if len(opts.Filter) > 0 {
		filter := make(map[string]interface{}, len(opts.Filter))
		for key, value := range opts.Filter {
			filter[key] = value
		}
		body["filter"] = filter
	}
	var resp struct {
		Matches []struct {
			ID       string                 `json:"id"`
			Score    float32                `json:"score"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"matches"`
	}
	start := time.Now()
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/query", body, &resp)
	telemetry.RecordVectorQuery(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (c *Client) Upsert(ctx context.Context, items []Item) error {
	if c == nil {
		return errors.New("vector client not configured")
	}
	if len(items) == 0 {
		return nil
	}
	body := map[string]interface{}{
		"namespace": c.namespace,
		"vectors":   items,
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/vectors/upsert", body, nil)
}

func (c *Client) DeleteByIDs(ctx context.Context, ids []string) error {
	if c == nil {
		return errors.New("vector client not configured")
	}
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{
		"namespace": c.namespace,
		"ids":       ids,
	}
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/vectors/delete", body, nil)
	if errors.Is(err, errNotFound) {
		// Ids already gone; deletion is idempotent.
		return nil
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vector %s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases pooled transport resources.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

var _ Store = (*Client)(nil)
