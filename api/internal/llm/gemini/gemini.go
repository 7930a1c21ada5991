// Package gemini provides the generation and equation embedding
// capabilities on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const attempts = 3

// Client owns the API connection shared by the Generator and the Embedder.
// It is safe for concurrent use.
type Client struct {
	cl *genai.Client
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{cl: cl}, nil
}

func (c *Client) Close() error { return c.cl.Close() }

// Generator answers free-text prompts.
type Generator struct {
	Model string
	m     *genai.GenerativeModel
}

func (c *Client) Generator(model string) *Generator {
	model = strings.TrimSpace(model)
	m := c.cl.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	return &Generator{Model: model, m: m}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := g.m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			if !wait(ctx, attempt) {
				break
			}
			continue
		}
		txt := firstText(resp)
		if strings.TrimSpace(txt) == "" {
			return "", fmt.Errorf("gemini %s: empty response", g.Model)
		}
		return txt, nil
	}
	return "", fmt.Errorf("gemini %s: %w", g.Model, lastErr)
}

// Embedder embeds equations for similarity comparison.
type Embedder struct {
	Model string
	em    *genai.EmbeddingModel
}

func (c *Client) Embedder(model string) *Embedder {
	model = strings.TrimSpace(model)
	em := c.cl.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeSemanticSimilarity
	return &Embedder{Model: model, em: em}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := e.em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			lastErr = err
			if !wait(ctx, attempt) {
				break
			}
			continue
		}
		if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("gemini %s: empty embedding", e.Model)
		}
		return toFloat64(resp.Embedding.Values), nil
	}
	return nil, fmt.Errorf("gemini %s: %w", e.Model, lastErr)
}

// wait sleeps attempt*300ms before the next try. It returns false when ctx
// ends first or no attempt is left.
func wait(ctx context.Context, attempt int) bool {
	if attempt >= attempts {
		return false
	}
	t := time.NewTimer(time.Duration(attempt) * 300 * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func ptrFloat32(v float32) *float32 { return &v }
