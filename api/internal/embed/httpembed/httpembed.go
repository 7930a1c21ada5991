// Package httpembed is a sentence embedding capability served over HTTP by
// an OpenAI-compatible (/embeddings) or Ollama (/api/embeddings) endpoint.
package httpembed

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

	"golang.org/x/time/rate"
)

const (
	FlavorOpenAI = "openai"
	FlavorOllama = "ollama"
)

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Flavor  string // openai | ollama, openai when empty
	Timeout time.Duration
	// Retries on 429 and 5xx, with backoff doubling from Backoff.
	Retries int
	Backoff time.Duration
	// Requests per second; 0 means unlimited.
	RPS float64
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	httpc   *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("httpembed: base URL is empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("httpembed: model is empty")
	}
	switch cfg.Flavor = strings.ToLower(strings.TrimSpace(cfg.Flavor)); cfg.Flavor {
	case "":
		cfg.Flavor = FlavorOpenAI
	case FlavorOpenAI, FlavorOllama:
	default:
		return nil, fmt.Errorf("httpembed: unknown flavor %q", cfg.Flavor)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
	}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, url := c.request(text)
	delay := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		v, retry, err := c.do(ctx, url, body)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) request(text string) ([]byte, string) {
	var payload map[string]any
	var url string
	if c.cfg.Flavor == FlavorOllama {
		payload = map[string]any{"model": c.cfg.Model, "prompt": text}
		url = c.cfg.BaseURL + "/api/embeddings"
	} else {
		payload = map[string]any{"model": c.cfg.Model, "input": text}
		url = c.cfg.BaseURL + "/embeddings"
	}
	body, _ := json.Marshal(payload)
	return body, url
}

// embeddingResponse covers both reply shapes.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Embedding []float64 `json:"embedding"`
}

func (c *Client) do(ctx context.Context, url string, body []byte) ([]float64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// transport errors are retried unless ctx is done
		return nil, ctx.Err() == nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("%s embeddings %s: %s: %s",
			c.cfg.Model, url, resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("parse embedding response: %w", err)
	}
	v := parsed.Embedding
	if len(parsed.Data) > 0 {
		v = parsed.Data[0].Embedding
	}
	if len(v) == 0 {
		return nil, false, errors.New("embedding response returned empty vector")
	}
	return v, false, nil
}
