package main

import (
	"fmt"

	"ctxkeep/pkg/contextmgr"
	"ctxkeep/pkg/history"
)

func newUserMessageOrWrap(text string) (history.Message, error) {
	msg, err := history.NewUserMessage(text)
	if err != nil {
		return history.Message{}, fmt.Errorf("construct user message: %w", err)
	}
	return msg, nil
}

func adaptationKindName(k contextmgr.AdaptationKind) string {
	switch k {
	case contextmgr.AdaptationNoChange:
		return "no change"
	case contextmgr.AdaptationShrinking:
		return "shrinking"
	case contextmgr.AdaptationExpanding:
		return "expanding"
	default:
		return "unknown"
	}
}
