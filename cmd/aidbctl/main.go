package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Shivansh-2508/AI-DB/internal/cli/aidbctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("AIDB_CLI_TIMEOUT")), 60*time.Second)
	options := aidbctl.Options{
		BaseURL: envOr("AIDB_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("AIDB_API_KEY")),
		UserID:  strings.TrimSpace(os.Getenv("AIDB_USER_ID")),
		Session: strings.TrimSpace(os.Getenv("AIDB_SESSION")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := aidbctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid AIDB_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
