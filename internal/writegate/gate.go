package writegate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shivansh-2508/AI-DB/internal/observability"
)

var (
	ErrNoPending       = errors.New("no pending query for this session")
	ErrInvalidDecision = errors.New("decision must be 'yes' or 'no'")
	ErrWriteForbidden  = errors.New("role is not allowed to modify data")
)

type Decision string

const (
	DecisionYes Decision = "yes"
	DecisionNo  Decision = "no"
)

func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionYes:
		return DecisionYes, nil
	case DecisionNo:
		return DecisionNo, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidDecision, raw)
	}
}

type Pending struct {
	SQL   string
	Owner string
}

// Gate holds at most one pending mutating statement per session key. Entries live only in
// process memory.
type Gate struct {
	mu      sync.Mutex
	pending map[string]Pending
}

func NewGate() *Gate {
	return &Gate{pending: map[string]Pending{}}
}

// Hold stages sql for confirmation, replacing any earlier entry for the key.
func (g *Gate) Hold(key string, pending Pending) {
	g.mu.Lock()
	g.pending[key] = pending
	count := len(g.pending)
	g.mu.Unlock()
	observability.SetPendingWrites(count)
}

func (g *Gate) Peek(key string) (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pending, ok := g.pending[key]
	return pending, ok
}

// Take removes and returns the entry for key when owner matches.
func (g *Gate) Take(key, owner string) (Pending, error) {
	g.mu.Lock()
	pending, ok := g.pending[key]
	if !ok || pending.Owner != owner {
		g.mu.Unlock()
		return Pending{}, ErrNoPending
	}
	delete(g.pending, key)
	count := len(g.pending)
	g.mu.Unlock()
	observability.SetPendingWrites(count)
	return pending, nil
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Policy restricts which roles may stage writes. An empty allow list, or a caller without a
// role, permits everything. A caller holding any allowed role may write.
type Policy struct {
	WriterRoles []string
}

func (p Policy) Allow(roles ...string) error {
	if len(p.WriterRoles) == 0 {
		return nil
	}
	held := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		held = append(held, role)
		for _, allowed := range p.WriterRoles {
			if strings.EqualFold(allowed, role) {
				return nil
			}
		}
	}
	if len(held) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrWriteForbidden, strings.Join(held, ", "))
}
