package nl2sql

import (
	"context"
	"sync"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	index := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	var err error
	if index < len(g.errs) {
		err = g.errs[index]
	}
	if err != nil {
		return "", err
	}
	if index < len(g.responses) {
		return g.responses[index], nil
	}
	return "", nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func testSchema() schema.Description {
	return schema.Description{
		"users": {
			Columns:    []schema.Column{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}, {Name: "active", Type: "boolean"}},
			PrimaryKey: []string{"id"},
		},
		"orders": {
			Columns:     []schema.Column{{Name: "id", Type: "integer"}, {Name: "user_id", Type: "integer"}, {Name: "total", Type: "numeric"}},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []schema.ForeignKey{{Column: "user_id", RefTable: "users", RefColumn: "id"}},
		},
	}
}

func userTurn(text string) conversation.Turn {
	return conversation.NewText(conversation.RoleUser, text)
}

func assistantTurn(text string) conversation.Turn {
	return conversation.NewText(conversation.RoleAssistant, text)
}
