// Package openai generates distillations using the official OpenAI Go
// SDK's Responses API.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/history"
)

const requestTimeout = 60 * time.Second

// Client generates distillations via an OpenAI model.
type Client struct {
	client openai.Client
	model  string
}

// New creates a distiller.Distiller backed by the named OpenAI model.
func New(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
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
		return "", fmt.Errorf("openai distiller: %w", err)
	}
	if text == "" {
		return "", &distiller.ErrEmptyResult{Provider: "openai"}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(2048),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}
	return resp.OutputText(), nil
}
