package writegate

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestClassifierMutatingKeywords(t *testing.T) {
	c := NewClassifier(false)
	for _, sqlText := range []string{
		"INSERT INTO users (email) VALUES ('a')",
		"update users set active = false",
		"DELETE FROM users",
		"truncate orders",
		"ALTER TABLE users ADD COLUMN x int",
		"drop table users",
		"Create table t (id int)",
		"SELECT 'please delete' AS note",
	} {
		if !c.IsMutating(sqlText) {
			t.Fatalf("IsMutating(%q) = false", sqlText)
		}
	}
}

func TestClassifierReadOnly(t *testing.T) {
	c := NewClassifier(false)
	for _, sqlText := range []string{
		"SELECT update_count FROM stats",
		"SELECT created_at, deleted FROM users",
		"SELECT * FROM orders",
		"GRANT SELECT ON users TO bob",
	} {
		if c.IsMutating(sqlText) {
			t.Fatalf("IsMutating(%q) = true", sqlText)
		}
	}
}

func TestClassifierStrictAddsKeywords(t *testing.T) {
	c := NewClassifier(true)
	for _, sqlText := range []string{"GRANT SELECT ON users TO bob", "call refresh()", "MERGE INTO t USING s ON true", "execute stmt"} {
		if !c.IsMutating(sqlText) {
			t.Fatalf("strict IsMutating(%q) = false", sqlText)
		}
	}
	if (Classifier{}).IsMutating("SELECT 1") {
		t.Fatal("zero classifier should treat SELECT as read-only")
	}
}

func TestParseDecision(t *testing.T) {
	if d, err := ParseDecision(" YES "); err != nil || d != DecisionYes {
		t.Fatalf("ParseDecision() = %q, %v", d, err)
	}
	if d, err := ParseDecision("no"); err != nil || d != DecisionNo {
		t.Fatalf("ParseDecision() = %q, %v", d, err)
	}
	if _, err := ParseDecision("maybe"); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("ParseDecision() error = %v", err)
	}
}

func TestGateHoldTakeLifecycle(t *testing.T) {
	gate := NewGate()
	if _, err := gate.Take("s1", "alice"); !errors.Is(err, ErrNoPending) {
		t.Fatalf("Take() on empty gate error = %v", err)
	}

	gate.Hold("s1", Pending{SQL: "DELETE FROM users", Owner: "alice"})
	gate.Hold("s1", Pending{SQL: "DELETE FROM orders", Owner: "alice"})
	if gate.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", gate.Len())
	}

	if _, err := gate.Take("s1", "mallory"); !errors.Is(err, ErrNoPending) {
		t.Fatalf("Take() by other owner error = %v", err)
	}
	pending, err := gate.Take("s1", "alice")
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if pending.SQL != "DELETE FROM orders" {
		t.Fatalf("pending = %+v", pending)
	}
	if _, err := gate.Take("s1", "alice"); !errors.Is(err, ErrNoPending) {
		t.Fatalf("second Take() error = %v", err)
	}
}

func TestGateConcurrentTakeYieldsOneWinner(t *testing.T) {
	gate := NewGate()
	gate.Hold("s1", Pending{SQL: "DELETE FROM users", Owner: "alice"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := gate.Take("s1", "alice"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("winners = %d", winners)
	}
}

func TestPolicyAllow(t *testing.T) {
	if err := (Policy{}).Allow("viewer"); err != nil {
		t.Fatalf("empty policy error = %v", err)
	}
	policy := Policy{WriterRoles: []string{"admin", "editor"}}
	if err := policy.Allow("Admin"); err != nil {
		t.Fatalf("Allow(admin) error = %v", err)
	}
	if err := policy.Allow(""); err != nil {
		t.Fatalf("Allow(\"\") error = %v", err)
	}
	if err := policy.Allow("viewer"); !errors.Is(err, ErrWriteForbidden) {
		t.Fatalf("Allow(viewer) error = %v", err)
	}
	if err := policy.Allow(); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
}

func TestPolicyAllowsAnyHeldWriterRole(t *testing.T) {
	policy := Policy{WriterRoles: []string{"writer"}}
	if err := policy.Allow("analyst", "writer"); err != nil {
		t.Fatalf("Allow(analyst, writer) error = %v", err)
	}
	err := policy.Allow("analyst", "viewer")
	if !errors.Is(err, ErrWriteForbidden) {
		t.Fatalf("Allow(analyst, viewer) error = %v", err)
	}
	if !strings.Contains(err.Error(), "analyst, viewer") {
		t.Fatalf("error = %v", err)
	}
}
