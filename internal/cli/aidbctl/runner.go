package aidbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	UserID     string
	Session    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   map[string]any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("aidbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "AI-DB API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	userID := fs.String("user", defaults.UserID, "X-User-ID header (used when auth is disabled)")
	session := fs.String("session", firstNonEmpty(defaults.Session, "default"), "conversation session id")
	chartKind := fs.String("chart", "", "preferred chart kind for ask: bar|line|pie|scatter")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	sessionBody := map[string]any{"session_id": *session}

	var req request
	switch command {
	case "health":
		req = request{method: http.MethodGet, path: "/v1/health"}
	case "ready":
		req = request{method: http.MethodGet, path: "/v1/ready"}
	case "schema":
		req = request{method: http.MethodGet, path: "/v1/schema"}
	case "schema-refresh":
		req = request{method: http.MethodPost, path: "/v1/schema/refresh"}
	case "history":
		req = request{method: http.MethodGet, path: "/v1/chat/" + url.PathEscape(*session)}
	case "clear":
		req = request{method: http.MethodPost, path: "/v1/chat/clear", body: sessionBody}
	case "cancel":
		req = request{method: http.MethodPost, path: "/v1/cancel", body: sessionBody}
	case "ask":
		message := strings.TrimSpace(strings.Join(rest, " "))
		if message == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a message")
			return 2
		}
		body := map[string]any{"session_id": *session, "message": message}
		if *chartKind != "" {
			body["chart_kind"] = *chartKind
		}
		req = request{method: http.MethodPost, path: "/v1/ask", body: body}
	case "confirm":
		if len(rest) != 1 {
			_, _ = fmt.Fprintln(stderr, "confirm requires yes or no")
			return 2
		}
		req = request{method: http.MethodPost, path: "/v1/confirm", body: map[string]any{"session_id": *session, "decision": rest[0]}}
	case "archive":
		if len(rest) != 1 {
			_, _ = fmt.Fprintln(stderr, "archive requires a key")
			return 2
		}
		req = request{method: http.MethodGet, path: "/v1/archive/" + strings.TrimLeft(rest[0], "/")}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, req.body, *apiKey, *userID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, payload map[string]any, apiKey, userID string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(userID) != "" {
		req.Header.Set("X-User-ID", strings.TrimSpace(userID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: aidbctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema              GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  schema-refresh      POST /v1/schema/refresh")
	_, _ = fmt.Fprintln(w, "  ask <message>       POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  confirm <yes|no>    POST /v1/confirm")
	_, _ = fmt.Fprintln(w, "  cancel              POST /v1/cancel")
	_, _ = fmt.Fprintln(w, "  history             GET /v1/chat/{session}")
	_, _ = fmt.Fprintln(w, "  clear               POST /v1/chat/clear")
	_, _ = fmt.Fprintln(w, "  archive <key>       GET /v1/archive/{key}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
