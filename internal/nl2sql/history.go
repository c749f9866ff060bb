package nl2sql

import (
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

// Assistant replies longer than this add noise to prompts without carrying intent.
const maxAssistantChars = 500

// FilterForPrompt drops results payloads and assistant turns that are oversized or look like
// raw JSON.
func FilterForPrompt(turns []conversation.Turn) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.IsResults() {
			continue
		}
		if turn.Role == conversation.RoleAssistant {
			text := strings.TrimSpace(turn.Text())
			if len(text) > maxAssistantChars || looksLikeJSON(text) {
				continue
			}
		}
		out = append(out, turn)
	}
	return out
}

func looksLikeJSON(text string) bool {
	return strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")
}

// OperativeRequest returns the newest user turn, or the newest turn of any role when the
// conversation has no user turns.
func OperativeRequest(turns []conversation.Turn) (conversation.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleUser {
			return turns[i], true
		}
	}
	if len(turns) == 0 {
		return conversation.Turn{}, false
	}
	return turns[len(turns)-1], true
}

// RenderTranscript formats the last limit turns as "role: text" lines.
func RenderTranscript(turns []conversation.Turn, limit int) string {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text())
		if text == "" {
			continue
		}
		lines = append(lines, string(turn.Role)+": "+text)
	}
	if len(lines) == 0 {
		return "(empty)"
	}
	return strings.Join(lines, "\n")
}

// RecentTable returns the most recently mentioned known table name.
func RecentTable(turns []conversation.Turn, description schema.Description) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if name := description.MentionedTable(turns[i].Text()); name != "" {
			return name
		}
	}
	return ""
}
