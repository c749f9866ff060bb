package writegate

import "regexp"

var (
	baseKeywords   = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|TRUNCATE|ALTER|DROP|CREATE)\b`)
	strictKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|TRUNCATE|ALTER|DROP|CREATE|GRANT|REVOKE|EXECUTE|CALL|MERGE)\b`)
)

// Classifier is a lexical check, not a parse: a keyword inside a string literal still counts.
type Classifier struct {
	pattern *regexp.Regexp
}

func NewClassifier(strict bool) Classifier {
	if strict {
		return Classifier{pattern: strictKeywords}
	}
	return Classifier{pattern: baseKeywords}
}

func (c Classifier) IsMutating(sqlText string) bool {
	pattern := c.pattern
	if pattern == nil {
		pattern = baseKeywords
	}
	return pattern.MatchString(sqlText)
}
