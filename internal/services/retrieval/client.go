// Package retrieval fetches grounding chunks from the hosted vector database.
// The index embeds query text server-side, so this client is pure
// pass-through: text in, scored chunks out.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/classifier"
	"github.com/praxislearn/curricula/internal/utils"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultContentField = "content"
	maxAttempts         = 3
	retryBaseDelay      = 500 * time.Millisecond
)

// Client talks to the vector index data plane.
type Client struct {
	cfg        models.RetrievalConfig
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a retrieval client with a pooled transport.
func NewClient(cfg models.RetrievalConfig) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	if cfg.ContentField == "" {
		cfg.ContentField = defaultContentField
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type searchRequest struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields,omitempty"`
}

type searchQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
}

type searchResponse struct {
	Result struct {
		Hits []searchHit `json:"hits"`
	} `json:"result"`
}

type searchHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Fields map[string]any `json:"fields"`
}

// Query searches the index for chunks relevant to the query text.
func (c *Client) Query(ctx context.Context, text string, topK int) ([]models.Chunk, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}

	namespace := c.cfg.Namespace
	if namespace == "" {
		namespace = "__default__"
	}
	path := fmt.Sprintf("%s/records/namespaces/%s/search", c.baseURL, namespace)

	buf := utils.Get()
	defer utils.Put(buf)
	err := json.NewEncoder(buf).Encode(searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": text},
			TopK:   topK,
		},
		Fields: []string{c.cfg.ContentField, "document", "grade_band"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	var result searchResponse
	if err := c.doWithRetry(ctx, path, buf.Bytes(), &result); err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(result.Result.Hits))
	for _, hit := range result.Result.Hits {
		chunk := models.Chunk{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields[c.cfg.ContentField].(string); ok {
			chunk.Text = v
		}
		if v, ok := hit.Fields["document"].(string); ok {
			chunk.Document = v
		}
		if v, ok := hit.Fields["grade_band"].(string); ok {
			chunk.GradeBand = v
		}
		if chunk.Text == "" {
			fiberlog.Debugf("retrieval: dropping hit %s with empty %s field", hit.ID, c.cfg.ContentField)
			continue
		}
		chunk.SLOCodes = classifier.ExtractSLOCodes(chunk.Text)
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// doWithRetry posts the search request, retrying transient failures with a
// linear backoff.
func (c *Client) doWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * retryBaseDelay
			fiberlog.Debugf("retrieval: retrying in %v (attempt %d/%d)", delay, attempt+1, maxAttempts)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := c.doOnce(ctx, url, body, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}

	return fmt.Errorf("vector search failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, url string, body []byte, result any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("vector search request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return true, fmt.Errorf("vector search returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("vector search returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("decode search response: %w", err)
	}
	return false, nil
}
