package nl2sql

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

func TestExplainUsesGateway(t *testing.T) {
	humanizer := NewHumanizer(&scriptedGenerator{responses: []string{"The table usres does not exist; did you mean users?"}}, 5, nil)
	got := humanizer.Explain(context.Background(), `relation "usres" does not exist`, nil)
	if got != "The table usres does not exist; did you mean users?" {
		t.Fatalf("Explain() = %q", got)
	}
}

func TestExplainFallsBackToRawError(t *testing.T) {
	humanizer := NewHumanizer(&scriptedGenerator{errs: []error{errors.New("timeout")}}, 5, nil)
	raw := `relation "usres" does not exist`
	if got := humanizer.Explain(context.Background(), raw, nil); got != raw {
		t.Fatalf("Explain() = %q", got)
	}
	humanizer = NewHumanizer(&scriptedGenerator{responses: []string{"   "}}, 5, nil)
	if got := humanizer.Explain(context.Background(), raw, nil); got != raw {
		t.Fatalf("Explain() with blank response = %q", got)
	}
}

func TestSuggestParsesLines(t *testing.T) {
	humanizer := NewHumanizer(&scriptedGenerator{responses: []string{"1. Show all users\n- 3 most recent orders\n\n* Count orders\nextra"}}, 5, nil)
	got := humanizer.Suggest(context.Background(), testSchema(), nil)
	if len(got) != 3 || got[0] != "Show all users" || got[1] != "3 most recent orders" || got[2] != "Count orders" {
		t.Fatalf("Suggest() = %#v", got)
	}
}

func TestSuggestFallsBackToSchema(t *testing.T) {
	humanizer := NewHumanizer(&scriptedGenerator{errs: []error{errors.New("down")}}, 5, nil)
	got := humanizer.Suggest(context.Background(), testSchema(), nil)
	if len(got) != 2 || got[0] != "Show the first 10 rows of orders" {
		t.Fatalf("Suggest() = %#v", got)
	}
	if got := DefaultSuggestions(schema.Description{}); len(got) != 1 || got[0] != "Show me all tables" {
		t.Fatalf("DefaultSuggestions() = %#v", got)
	}
}
