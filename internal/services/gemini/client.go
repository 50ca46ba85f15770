// Package gemini adapts the Google Gen AI SDK to the JSON completion contract
// used by edit analysis.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config captures Gemini API settings.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Client issues JSON-mode generateContent calls.
type Client struct {
	models  *genai.Models
	model   string
	timeout time.Duration
}

// NewClient builds a Gemini Developer API client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("gemini: api key required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: client.Models, model: model, timeout: cfg.Timeout}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// CompleteJSON sends systemPrompt as the system instruction and userPrompt as
// the user turn, asking for an application/json response.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("gemini complete: user prompt required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
	if system := strings.TrimSpace(systemPrompt); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini complete: %w", err)
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("gemini complete: empty response")
	}
	return text, nil
}

// HealthCheck verifies the key and model with a minimal JSON round trip.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "Respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var pong struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(content), &pong); err != nil || !pong.OK {
		return fmt.Errorf("gemini health: unexpected response %q", content)
	}
	return nil
}
