// Package chain composes several distiller.Distiller implementations into
// one that tries each in order, falling through to the next on failure.
// It is grounded on the teacher's LLM client middleware chaining pattern
// but restructured for sequential failover rather than request/response
// wrapping, since a distillation either succeeds against one provider or
// needs a completely different one, not a decorated retry of the same
// call.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ctxkeep/pkg/distiller"
	"ctxkeep/pkg/history"
)

// Chain tries each distiller in order, returning the first success. If
// every distiller fails, it returns a combined error.
type Chain struct {
	distillers []namedDistiller
}

type namedDistiller struct {
	name string
	d    distiller.Distiller
}

// New returns an empty Chain; members are appended with Add, whose name
// argument is used only for error reporting.
func New() *Chain {
	return &Chain{}
}

// Add appends a distiller to the end of the failover order and returns
// the chain for fluent construction.
func (c *Chain) Add(name string, d distiller.Distiller) *Chain {
	c.distillers = append(c.distillers, namedDistiller{name: name, d: d})
	return c
}

// Generate implements distiller.Distiller, trying each member in order.
func (c *Chain) Generate(ctx context.Context, entries []history.HistoryEntry, targetTokens uint32) (string, error) {
	if len(c.distillers) == 0 {
		return "", fmt.Errorf("distiller chain: no distillers configured")
	}

	var errs []string
	for _, nd := range c.distillers {
		if ctx.Err() != nil {
			break
		}
		text, err := nd.d.Generate(ctx, entries, targetTokens)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty result")
		}
		errs = append(errs, fmt.Sprintf("%s: %v", nd.name, err))
	}
	return "", fmt.Errorf("distiller chain: all providers failed: %s", strings.Join(errs, "; "))
}
