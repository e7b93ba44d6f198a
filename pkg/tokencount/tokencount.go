// Package tokencount provides BPE-based token counting with a byte/4
// fallback, approximating the active LLM's tokenization closely enough for
// budget derivation purposes.
package tokencount

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"ctxkeep/pkg/logx"
)

// MessageOverhead is the constant per-message token overhead added by
// CountMessage, covering role markers and structural delimiters that the
// raw text encoding does not capture.
const MessageOverhead = 4

var (
	logOnce    sync.Once
	fallbackLg = logx.NewLogger("tokencount")
)

// Counter counts tokens for strings and messages. A single Counter wraps a
// shared encoder loaded once at process start; it is safe for concurrent
// use across multiple ContextManager instances.
type Counter struct {
	codec tokenizer.Codec
}

// New returns a Counter backed by the cl100k_base BPE encoder. The o200k
// vocabulary is not used. If the encoder fails to initialize, the returned
// Counter silently falls back to byte/4 approximation and a warning is
// logged exactly once.
func New() *Counter {
	// GPT4 selects the cl100k_base BPE vocabulary; every model routes
	// through it, since exact provider-native token counting is out of
	// scope.
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		logOnce.Do(func() {
			fallbackLg.Warn("token encoder init failed, falling back to byte/4 approximation: %v", err)
		})
		return &Counter{}
	}
	return &Counter{codec: codec}
}

// CountText returns the token count of text, using the byte/4 fallback if
// no encoder is available or encoding fails.
func (c *Counter) CountText(text string) uint32 {
	if c.codec == nil {
		return fallbackCount(text)
	}
	n, err := c.codec.Count(text)
	if err != nil {
		logOnce.Do(func() {
			fallbackLg.Warn("token encode failed, falling back to byte/4 approximation: %v", err)
		})
		return fallbackCount(text)
	}
	return uint32(n)
}

// CountMessage returns the token count of a message's text payload plus
// the fixed per-message structural overhead.
func (c *Counter) CountMessage(text string) uint32 {
	return c.CountText(text) + MessageOverhead
}

func fallbackCount(text string) uint32 {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return uint32(n)
}
