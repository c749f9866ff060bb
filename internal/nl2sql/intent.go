package nl2sql

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	listTablesPattern = regexp.MustCompile(`(?i)\b(show|list|display|get|what|which)\b.*\btables\b`)
	mutationPattern   = regexp.MustCompile(`(?i)\b(add|insert|update|delete|remove|create)\b`)
	sqlLabelPattern   = regexp.MustCompile(`(?i)^sql\s*:\s*`)
)

var fenceTags = map[string]struct{}{
	"sql": {}, "postgresql": {}, "postgres": {}, "pgsql": {}, "psql": {}, "duckdb": {},
}

func IsListTablesRequest(text string) bool {
	return listTablesPattern.MatchString(text)
}

func IsMutationRequest(text string) bool {
	return mutationPattern.MatchString(text)
}

func ListTablesQuery(namespace string) string {
	if namespace == "" {
		namespace = "public"
	}
	return fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = '%s' ORDER BY table_name;",
		strings.ReplaceAll(namespace, "'", "''"),
	)
}

// StripArtifacts removes code fences and a leading "SQL:" label from generated text.
func StripArtifacts(value string) string {
	trimmed := strings.TrimSpace(value)
	if start := strings.Index(trimmed, "```"); start >= 0 {
		body := trimmed[start+3:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		if newline := strings.IndexByte(body, '\n'); newline >= 0 {
			if _, ok := fenceTags[strings.ToLower(strings.TrimSpace(body[:newline]))]; ok {
				body = body[newline+1:]
			}
		}
		trimmed = strings.TrimSpace(body)
	}
	trimmed = sqlLabelPattern.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}
