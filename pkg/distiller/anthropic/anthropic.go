// Package anthropic generates distillations using the Anthropic Claude
// API.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/history"
)

// requestTimeout bounds each distillation attempt. Generate retries once
// after a failed attempt, whatever the error (timeout or otherwise).
const requestTimeout = 60 * time.Second

// Client generates distillations via a Claude model, typically a cheaper
// one than the session's main model.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a distiller.Distiller backed by the named Claude model.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0), // retried once locally below
		),
		model: anthropic.Model(model),
	}
}

// Generate implements distiller.Distiller.
func (c *Client) Generate(ctx context.Context, entries []history.HistoryEntry, targetTokens uint32) (string, error) {
	prompt := distiller.BuildPrompt(entries, targetTokens)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		text, err = c.complete(ctx, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("anthropic distiller: %w", err)
	}
	if text == "" {
		return "", &distiller.ErrEmptyResult{Provider: "anthropic"}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}

	var text string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}
