// Package prompts assembles provider-ready prompts: a pedagogical template
// selected by content type, a grounding block of retrieved curriculum chunks,
// and conversation history trimmed to a token budget.
package prompts

import (
	"fmt"
	"strings"

	"github.com/praxislearn/curricula/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Prompt is the assembled input for one provider invocation.
type Prompt struct {
	System  string
	History []models.HistoryTurn
	User    string
}

// Flatten renders the history and the user message as one text block, for
// providers invoked with a single prompt string.
func (p Prompt) Flatten() string {
	var sb strings.Builder
	for _, turn := range p.History {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString(p.User)
	return sb.String()
}

// Builder assembles prompts within a token budget.
type Builder struct {
	tokenBudget int
	encoder     *tiktoken.Tiktoken
}

// NewBuilder creates a prompt builder. The encoder load is best-effort; when
// unavailable, token counts fall back to a bytes/4 estimate.
func NewBuilder(tokenBudget int) *Builder {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		fiberlog.Warnf("PromptBuilder: failed to load %s encoding, falling back to estimate: %v", encodingName, err)
		enc = nil
	}
	return &Builder{tokenBudget: tokenBudget, encoder: enc}
}

// Build assembles the prompt for a request. chunks may be empty, in which
// case no grounding block is emitted and the model answers unconstrained.
func (b *Builder) Build(req *models.SynthesisRequest, chunks []models.Chunk, contentType models.ContentType) Prompt {
	var system strings.Builder

	if req.SystemInstruction != "" {
		system.WriteString(req.SystemInstruction)
	} else {
		system.WriteString(baseSystem)
	}
	system.WriteString("\n\n")
	system.WriteString(Template(contentType))

	if len(chunks) > 0 {
		system.WriteString("\n\n")
		system.WriteString(groundingPreamble)
		system.WriteString("\n")
		for i, chunk := range chunks {
			fmt.Fprintf(&system, "\n[%d] (%s) %s\n", i+1, chunk.Document, chunk.Text)
		}
	}

	sys := system.String()
	used := b.CountTokens(sys) + b.CountTokens(req.Query)

	return Prompt{
		System:  sys,
		History: b.trimHistory(req.History, b.tokenBudget-used),
		User:    req.Query,
	}
}

// trimHistory keeps the most recent turns that fit the remaining budget.
// The current question is never trimmed; history is the first thing dropped.
func (b *Builder) trimHistory(history []models.HistoryTurn, budget int) []models.HistoryTurn {
	if len(history) == 0 || budget <= 0 {
		return nil
	}

	kept := make([]models.HistoryTurn, 0, len(history))
	remaining := budget
	for i := len(history) - 1; i >= 0; i-- {
		cost := b.CountTokens(history[i].Content) + 4 // role and framing overhead
		if cost > remaining {
			break
		}
		remaining -= cost
		kept = append(kept, history[i])
	}

	// kept is newest-first, restore chronological order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	if len(kept) < len(history) {
		fiberlog.Debugf("PromptBuilder: trimmed history from %d to %d turns", len(history), len(kept))
	}
	return kept
}

// CountTokens returns the token count of text under the builder's encoding.
func (b *Builder) CountTokens(text string) int {
	if b.encoder != nil {
		return len(b.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}
