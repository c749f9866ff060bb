package redis

import (
	"testing"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
)

func TestKeysAreNamespaced(t *testing.T) {
	store := NewWithClient(nil, " aidb: ")
	if got := store.listKey("alice/s1"); got != "aidb:chat:alice/s1" {
		t.Fatalf("listKey() = %q", got)
	}
	if got := store.indexKey("alice/s1"); got != "aidb:chat:alice/s1:ids" {
		t.Fatalf("indexKey() = %q", got)
	}
	if got := NewWithClient(nil, "").listKey("k"); got != "chat:k" {
		t.Fatalf("listKey() without prefix = %q", got)
	}
}

func TestDecodeTurnsNormalizesEntries(t *testing.T) {
	turns := decodeTurns([]string{
		`{"role":"user","content":"hi","message_id":"m-1","timestamp":"2025-03-01T10:00:00Z"}`,
		`{"type":"assistant","text":"hello"}`,
		`not json`,
	})
	if len(turns) != 3 {
		t.Fatalf("turns = %d", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[0].MessageID != "m-1" {
		t.Fatalf("turn[0] = %+v", turns[0])
	}
	if turns[1].Role != conversation.RoleAssistant || turns[1].Text() != "hello" {
		t.Fatalf("turn[1] = %+v", turns[1])
	}
	if turns[2].Role != conversation.RoleAssistant || turns[2].Text() != "not json" {
		t.Fatalf("turn[2] = %+v", turns[2])
	}
}
