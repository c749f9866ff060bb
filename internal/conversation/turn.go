package conversation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// ParseRole maps free-form role labels onto the canonical set. Unknown labels become assistant.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser
	case RoleSystem:
		return RoleSystem
	case RoleError:
		return RoleError
	default:
		return RoleAssistant
	}
}

// Content is either Text or Results.
type Content interface {
	isContent()
}

type Text string

func (Text) isContent() {}

// Results is a restorable table payload shown in place of prose.
type Results struct {
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	ArchiveKey string   `json:"archive_key,omitempty"`
}

func (Results) isContent() {}

const resultsType = "results"

type Turn struct {
	Role      Role
	Content   Content
	MessageID string
	Timestamp time.Time
}

func NewText(role Role, text string) Turn {
	return Turn{Role: role, Content: Text(text)}
}

// Text returns the turn's prose, or an empty string for results payloads.
func (t Turn) Text() string {
	if text, ok := t.Content.(Text); ok {
		return string(text)
	}
	return ""
}

func (t Turn) IsResults() bool {
	_, ok := t.Content.(Results)
	return ok
}

type wireTurn struct {
	Role      Role    `json:"role"`
	Content   any     `json:"content"`
	MessageID *string `json:"message_id"`
	Timestamp *string `json:"timestamp"`
}

type wireResults struct {
	Type string `json:"type"`
	Results
}

func (t Turn) MarshalJSON() ([]byte, error) {
	wire := wireTurn{Role: t.Role, Content: EncodeContent(t.Content)}
	if t.MessageID != "" {
		id := t.MessageID
		wire.MessageID = &id
	}
	if !t.Timestamp.IsZero() {
		ts := t.Timestamp.UTC().Format(time.RFC3339Nano)
		wire.Timestamp = &ts
	}
	return json.Marshal(wire)
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = DecodeAny(raw)
	return nil
}

// EncodeContent returns the JSON-ready form: a string, or a tagged results object.
func EncodeContent(content Content) any {
	switch typed := content.(type) {
	case Results:
		if typed.Columns == nil {
			typed.Columns = []string{}
		}
		if typed.Rows == nil {
			typed.Rows = [][]any{}
		}
		return wireResults{Type: resultsType, Results: typed}
	case Text:
		return string(typed)
	default:
		return ""
	}
}

// DecodeAny coerces any stored or submitted record into a Turn. Maps are read with every known
// key variant; anything else is stringified into an assistant turn.
func DecodeAny(raw any) Turn {
	record, ok := raw.(map[string]any)
	if !ok {
		return Turn{Role: RoleAssistant, Content: Text(stringify(raw))}
	}
	return Decode(record)
}

func Decode(record map[string]any) Turn {
	turn := Turn{
		Role:      ParseRole(firstString(record, "role", "type")),
		MessageID: firstString(record, "message_id", "messageId", "id"),
	}

	turn.Content = Text("")
	for _, key := range []string{"content", "text", "message"} {
		value, ok := record[key]
		if !ok || isBlank(value) {
			continue
		}
		turn.Content = DecodeContent(value)
		break
	}

	for _, key := range []string{"timestamp", "time"} {
		if ts, ok := parseTimestamp(record[key]); ok {
			turn.Timestamp = ts
			break
		}
	}
	return turn
}

// DecodeContent reads a content value: strings stay text, tagged results objects become Results,
// anything else is stringified.
func DecodeContent(value any) Content {
	switch typed := value.(type) {
	case string:
		return Text(typed)
	case map[string]any:
		if kind, _ := typed["type"].(string); kind == resultsType {
			return decodeResults(typed)
		}
	}
	return Text(stringify(value))
}

func decodeResults(record map[string]any) Results {
	results := Results{Columns: []string{}, Rows: [][]any{}}
	results.SQL, _ = record["sql"].(string)
	results.ArchiveKey, _ = record["archive_key"].(string)
	if columns, ok := record["columns"].([]any); ok {
		for _, column := range columns {
			results.Columns = append(results.Columns, stringify(column))
		}
	}
	rows, _ := record["rows"].([]any)
	for _, row := range rows {
		switch typed := row.(type) {
		case []any:
			results.Rows = append(results.Rows, typed)
		case map[string]any:
			ordered := make([]any, len(results.Columns))
			for i, column := range results.Columns {
				ordered[i] = typed[column]
			}
			results.Rows = append(results.Rows, ordered)
		default:
			results.Rows = append(results.Rows, []any{typed})
		}
	}
	return results
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := record[key]
		if !ok || isBlank(value) {
			continue
		}
		return stringify(value)
	}
	return ""
}

func isBlank(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	default:
		return false
	}
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

func parseTimestamp(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
			if ts, err := time.Parse(layout, strings.TrimSpace(typed)); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		if typed > 1e12 {
			return time.UnixMilli(int64(typed)).UTC(), true
		}
		return time.Unix(int64(typed), 0).UTC(), true
	case time.Time:
		return typed.UTC(), true
	}
	return time.Time{}, false
}
