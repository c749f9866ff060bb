package nl2sql

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/llm"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

// Clarifier asks the gateway whether a request needs a follow-up question. It fails open:
// any gateway problem means no clarification.
type Clarifier struct {
	generator    llm.Generator
	historyTurns int
	logger       *slog.Logger
}

func NewClarifier(generator llm.Generator, historyTurns int, logger *slog.Logger) *Clarifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Clarifier{generator: generator, historyTurns: historyTurns, logger: logger}
}

// Clarify returns the clarifying question, or "" when the request can proceed.
func (c *Clarifier) Clarify(ctx context.Context, request string, description schema.Description, turns []conversation.Turn) string {
	filtered := FilterForPrompt(turns)
	response, err := c.generator.Generate(ctx, clarifierPrompt(description.Render(), RenderTranscript(filtered, c.historyTurns), request))
	observability.ObserveGatewayCall("clarifier", err)
	if err != nil {
		c.logger.WarnContext(ctx, "clarifier unavailable, continuing", slog.String("error", err.Error()))
		return ""
	}
	response = strings.TrimSpace(response)
	if response == "" || strings.HasPrefix(strings.ToUpper(response), "CLEAR") {
		return ""
	}
	return response
}
