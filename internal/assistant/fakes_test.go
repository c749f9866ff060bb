package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/llm"
	"github.com/Shivansh-2508/AI-DB/internal/nl2sql"
	"github.com/Shivansh-2508/AI-DB/internal/query"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
	"github.com/Shivansh-2508/AI-DB/internal/writegate"
)

// routedGenerator answers each prompt according to the call site that built
// it. The clarifier answers CLEAR once its script runs out; other sites
// return llm.ErrUnavailable.
type routedGenerator struct {
	mu      sync.Mutex
	clarify []string
	sql     []string
	explain []string
	suggest []string
	calls   map[string]int
	prompts map[string][]string
}

func (g *routedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	if g.prompts == nil {
		g.prompts = map[string][]string{}
	}
	site := siteFor(prompt)
	index := g.calls[site]
	g.calls[site]++
	g.prompts[site] = append(g.prompts[site], prompt)

	var script []string
	switch site {
	case "clarifier":
		script = g.clarify
	case "synthesizer":
		script = g.sql
	case "humanizer":
		script = g.explain
	case "suggestions":
		script = g.suggest
	}
	if index >= len(script) {
		if site == "clarifier" {
			return "CLEAR", nil
		}
		return "", llm.ErrUnavailable
	}
	return script[index], nil
}

func (g *routedGenerator) count(site string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[site]
}

func (g *routedGenerator) lastPrompt(site string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	prompts := g.prompts[site]
	if len(prompts) == 0 {
		return ""
	}
	return prompts[len(prompts)-1]
}

func (g *routedGenerator) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func siteFor(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "You review requests"):
		return "clarifier"
	case strings.HasPrefix(prompt, "You translate"):
		return "synthesizer"
	case strings.HasPrefix(prompt, "A database statement"):
		return "humanizer"
	default:
		return "suggestions"
	}
}

type fakeExecutor struct {
	mu       sync.Mutex
	requests []query.Request
	result   query.Result
	err      error
}

func (e *fakeExecutor) Execute(_ context.Context, request query.Request) (query.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, request)
	if e.err != nil {
		return query.Result{}, e.err
	}
	return e.result, nil
}

func (e *fakeExecutor) executed() []query.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]query.Request{}, e.requests...)
}

type fakeIntrospector struct {
	description schema.Description
	err         error
}

func (f *fakeIntrospector) DescribeSchema(_ context.Context, _ string) (schema.Description, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.description.Clone(), nil
}

func testSchema() schema.Description {
	return schema.Description{
		"users": {
			Columns:    []schema.Column{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}, {Name: "active", Type: "boolean"}},
			PrimaryKey: []string{"id"},
		},
		"signups": {
			Columns: []schema.Column{{Name: "month", Type: "text"}, {Name: "count", Type: "integer"}},
		},
	}
}

type harness struct {
	service   *Service
	generator *routedGenerator
	executor  *fakeExecutor
	store     *conversation.MemoryStore
	gate      *writegate.Gate
}

type harnessOption func(*Dependencies)

func newHarness(t *testing.T, generator *routedGenerator, executor *fakeExecutor, opts ...harnessOption) *harness {
	t.Helper()
	if generator == nil {
		generator = &routedGenerator{}
	}
	if executor == nil {
		executor = &fakeExecutor{}
	}
	store := conversation.NewMemoryStore()
	gate := writegate.NewGate()
	ids := 0
	deps := Dependencies{
		Schemas:       schema.NewCache(&fakeIntrospector{description: testSchema()}, "public"),
		Conversations: store,
		Synthesizer:   nl2sql.NewSynthesizer(generator, nl2sql.SynthesizerConfig{Namespace: "public", HistoryTurns: 10}, nil),
		Clarifier:     nl2sql.NewClarifier(generator, 10, nil),
		Humanizer:     nl2sql.NewHumanizer(generator, 10, nil),
		Executor:      executor,
		Classifier:    writegate.NewClassifier(false),
		Gate:          gate,
		NewMessageID: func() string {
			ids++
			return fmt.Sprintf("m%d", ids)
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	service, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{service: service, generator: generator, executor: executor, store: store, gate: gate}
}

func alice() Requester {
	return Requester{Identity: "alice", Session: "s1"}
}

func asAssistantError(t *testing.T, err error) *Error {
	t.Helper()
	var failure *Error
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v (%T), want *assistant.Error", err, err)
	}
	return failure
}

func lastText(turns []conversation.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].Text()
}
