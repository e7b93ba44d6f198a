// Package google generates distillations using the Gemini API.
package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/history"
)

const requestTimeout = 60 * time.Second

// Client generates distillations via a Gemini model. The underlying
// genai.Client is created lazily on first use since its constructor
// requires a context.
type Client struct {
	client *genai.Client
	apiKey string
	model  string
}

// New creates a distiller.Distiller backed by the named Gemini model.
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

// Generate implements distiller.Distiller.
func (c *Client) Generate(ctx context.Context, entries []history.HistoryEntry, targetTokens uint32) (string, error) {
	prompt := distiller.BuildPrompt(entries, targetTokens)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		text, err = c.complete(ctx, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("google distiller: %w", err)
	}
	if text == "" {
		return "", &distiller.ErrEmptyResult{Provider: "google"}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if c.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return "", fmt.Errorf("create gemini client: %w", err)
		}
		c.client = client
	}

	maxTokens := int32(2048)
	result, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}},
	}, &genai.GenerateContentConfig{MaxOutputTokens: maxTokens})
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("nil response")
	}
	return result.Text(), nil
}
