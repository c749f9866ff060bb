package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/llm"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

const maxSuggestions = 3

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// Humanizer explains execution failures and proposes next requests. Neither operation fails:
// gateway problems fall back to the raw error text and schema-derived suggestions.
type Humanizer struct {
	generator    llm.Generator
	historyTurns int
	logger       *slog.Logger
}

func NewHumanizer(generator llm.Generator, historyTurns int, logger *slog.Logger) *Humanizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Humanizer{generator: generator, historyTurns: historyTurns, logger: logger}
}

func (h *Humanizer) Explain(ctx context.Context, rawError string, turns []conversation.Turn) string {
	transcript := RenderTranscript(FilterForPrompt(turns), h.historyTurns)
	response, err := h.generator.Generate(ctx, explainPrompt(rawError, transcript))
	observability.ObserveGatewayCall("humanizer", err)
	if err != nil {
		h.logger.WarnContext(ctx, "error humanizer unavailable, using raw error", slog.String("error", err.Error()))
		return rawError
	}
	response = StripArtifacts(response)
	if response == "" {
		return rawError
	}
	return response
}

func (h *Humanizer) Suggest(ctx context.Context, description schema.Description, turns []conversation.Turn) []string {
	transcript := RenderTranscript(FilterForPrompt(turns), h.historyTurns)
	response, err := h.generator.Generate(ctx, suggestPrompt(description.Render(), transcript))
	observability.ObserveGatewayCall("suggestions", err)
	if err != nil {
		h.logger.WarnContext(ctx, "suggestions unavailable, using defaults", slog.String("error", err.Error()))
		return DefaultSuggestions(description)
	}
	suggestions := parseSuggestions(response)
	if len(suggestions) == 0 {
		return DefaultSuggestions(description)
	}
	return suggestions
}

// DefaultSuggestions proposes previewing the first few tables.
func DefaultSuggestions(description schema.Description) []string {
	names := description.TableNames()
	if len(names) == 0 {
		return []string{"Show me all tables"}
	}
	out := make([]string, 0, maxSuggestions)
	for _, name := range names {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, fmt.Sprintf("Show the first 10 rows of %s", name))
	}
	return out
}

func parseSuggestions(response string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
