// Package ollama generates distillations using a local Ollama runtime,
// for offline or no-API-cost distillation.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/history"
)

const requestTimeout = 60 * time.Second

// Client generates distillations via a locally-served Ollama model.
type Client struct {
	client *api.Client
	model  string
}

// New creates a distiller.Distiller backed by the named Ollama model
// served at hostURL (e.g. "http://localhost:11434").
func New(hostURL, model string) (*Client, error) {
	parsed, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("ollama distiller: parse host url: %w", err)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}, nil
}

// Generate implements distiller.Distiller.
func (c *Client) Generate(ctx context.Context, entries []history.HistoryEntry, targetTokens uint32) (string, error) {
	prompt := distiller.BuildPrompt(entries, targetTokens)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		text, err = c.complete(ctx, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("ollama distiller: %w", err)
	}
	if text == "" {
		return "", &distiller.ErrEmptyResult{Provider: "ollama"}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}

	var text string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		text = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
