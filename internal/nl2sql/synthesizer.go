package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/llm"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

var ErrNoRequest = errors.New("conversation has no request to answer")

// UngroundedError reports generated SQL that named nothing from the schema, even after the
// hinted retry when one was possible.
type UngroundedError struct {
	SQL       string
	RetrySQL  string
	HintTable string
}

func (e *UngroundedError) Error() string {
	if e.HintTable == "" {
		return fmt.Sprintf("generated sql does not reference the schema: %s", e.SQL)
	}
	return fmt.Sprintf("generated sql does not reference the schema after retry with table %q: %s", e.HintTable, e.SQL)
}

// GatewayError wraps a text-generation failure at a call site that must not swallow it.
type GatewayError struct {
	Site string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: text generation failed: %v", e.Site, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type attempt struct {
	retry     bool
	hintTable string
}

func firstAttempt() attempt {
	return attempt{}
}

func retryWithHint(table string) attempt {
	return attempt{retry: true, hintTable: table}
}

func (a attempt) label() string {
	if a.retry {
		return "retry_with_hint"
	}
	return "first"
}

type Synthesis struct {
	SQL      string
	Request  string
	Catalog  bool
	Attempts int
}

type SynthesizerConfig struct {
	Namespace    string
	HistoryTurns int
}

type Synthesizer struct {
	generator    llm.Generator
	namespace    string
	historyTurns int
	logger       *slog.Logger
}

func NewSynthesizer(generator llm.Generator, cfg SynthesizerConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	historyTurns := cfg.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &Synthesizer{
		generator:    generator,
		namespace:    cfg.Namespace,
		historyTurns: historyTurns,
		logger:       logger,
	}
}

// Synthesize answers the conversation's operative request with schema-grounded SQL, a fixed
// catalog query, or an error. It never returns ungrounded SQL as a success.
func (s *Synthesizer) Synthesize(ctx context.Context, turns []conversation.Turn, description schema.Description) (Synthesis, error) {
	operative, ok := OperativeRequest(FilterForPrompt(turns))
	if !ok {
		operative, _ = OperativeRequest(turns)
	}
	return s.SynthesizeRequest(ctx, operative.Text(), turns, description)
}

// SynthesizeRequest answers request with the transcript as context only. Callers that
// already hold the utterance use it so a transcript rewritten in place cannot change
// which request is answered.
func (s *Synthesizer) SynthesizeRequest(ctx context.Context, request string, turns []conversation.Turn, description schema.Description) (Synthesis, error) {
	filtered := FilterForPrompt(turns)
	request = strings.TrimSpace(request)
	if request == "" {
		return Synthesis{}, ErrNoRequest
	}

	if IsListTablesRequest(request) {
		return Synthesis{SQL: ListTablesQuery(s.namespace), Request: request, Catalog: true}, nil
	}

	if IsMutationRequest(request) && description.MentionedTable(request) == "" {
		if table := RecentTable(filtered, description); table != "" {
			request = fmt.Sprintf("%s (table: %s)", request, table)
		}
	}

	schemaText := description.Render()
	transcript := RenderTranscript(filtered, s.historyTurns)

	var original string
	current := firstAttempt()
	for count := 1; ; count++ {
		raw, err := s.generator.Generate(ctx, synthesisPrompt(schemaText, transcript, request, current.hintTable))
		observability.ObserveGatewayCall("synthesizer", err)
		if err != nil {
			return Synthesis{}, &GatewayError{Site: "synthesizer", Err: err}
		}

		sqlText := StripArtifacts(raw)
		grounded := sqlText != "" && description.References(sqlText)
		observability.ObserveSynthesisAttempt(current.label(), grounded)
		s.logger.DebugContext(ctx, "sql synthesized",
			slog.String("attempt", current.label()),
			slog.Bool("grounded", grounded),
			slog.String("sql", sqlText),
		)
		if grounded {
			return Synthesis{SQL: sqlText, Request: request, Attempts: count}, nil
		}

		if current.retry {
			return Synthesis{}, &UngroundedError{SQL: original, RetrySQL: sqlText, HintTable: current.hintTable}
		}
		original = sqlText
		hint := RecentTable(filtered, description)
		if hint == "" {
			return Synthesis{}, &UngroundedError{SQL: original}
		}
		current = retryWithHint(hint)
	}
}
