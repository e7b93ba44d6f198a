package distiller

import (
	"fmt"
	"strings"

	"ctxkeep/pkg/history"
)

// BuildPrompt constructs a structured summarization prompt instructing
// the distiller model to produce a third-person account of entries that
// can stand in for them verbatim, targeting roughly targetTokens.
func BuildPrompt(entries []history.HistoryEntry, targetTokens uint32) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The following is a contiguous run of %d messages from an ongoing conversation. ", len(entries))
	fmt.Fprintf(&b, "Write a third-person summary of roughly %d tokens that can stand in for these messages. ", targetTokens)
	b.WriteString("Use exactly four sections:\n\n")

	b.WriteString("## Context\n")
	b.WriteString("What was being discussed or worked on, and why.\n\n")

	b.WriteString("## Decisions and actions\n")
	b.WriteString("What was decided, chosen, or done, and the stated reasons.\n\n")

	b.WriteString("## Findings\n")
	b.WriteString("Facts, results, or constraints established during this span.\n\n")

	b.WriteString("## Outcome\n")
	b.WriteString("Where things stood at the end of this span.\n\n")

	b.WriteString("---\n")
	b.WriteString("Preserve file paths, identifiers, error messages, and explicit user instructions verbatim where they appear.\n")
	b.WriteString("Do not add commentary, hedging, or meta-references to this summary itself.\n")
	b.WriteString("Write in the third person throughout (\"the user asked\", \"the assistant found\") — never first person.\n\n")

	b.WriteString("Messages:\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s]: %s\n\n", i+1, e.Message.Kind(), e.Message.TextForCounting())
	}

	return b.String()
}
