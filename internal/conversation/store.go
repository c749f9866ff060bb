package conversation

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"
)

var ErrInvalidKey = errors.New("conversation key is required")

// Store keeps an ordered transcript per partition key. Append with a known MessageID replaces
// that turn's role and content in place.
type Store interface {
	Append(ctx context.Context, key string, turn Turn) error
	List(ctx context.Context, key string) ([]Turn, error)
	Clear(ctx context.Context, key string) error
}

// PartitionKey scopes a transcript to one identity and one of its sessions. Both parts are
// path-escaped so a "/" inside either one cannot make two pairs share a key.
func PartitionKey(identity, session string) string {
	return url.PathEscape(identity) + "/" + url.PathEscape(session)
}

type MemoryStore struct {
	mu         sync.Mutex
	partitions map[string]*partition
	now        func() time.Time
}

type partition struct {
	mu      sync.Mutex
	turns   []Turn
	index   map[string]int
	dropped bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: map[string]*partition{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) partition(key string, create bool) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[key]
	if !ok && create {
		p = &partition{index: map[string]int{}}
		s.partitions[key] = p
	}
	return p
}

func (s *MemoryStore) Append(_ context.Context, key string, turn Turn) error {
	if key == "" {
		return ErrInvalidKey
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	if turn.Content == nil {
		turn.Content = Text("")
	}
	for {
		p := s.partition(key, true)
		p.mu.Lock()
		if p.dropped {
			p.mu.Unlock()
			continue
		}
		if turn.MessageID != "" {
			if pos, ok := p.index[turn.MessageID]; ok {
				existing := p.turns[pos]
				existing.Role = turn.Role
				existing.Content = turn.Content
				p.turns[pos] = existing
				p.mu.Unlock()
				return nil
			}
			p.index[turn.MessageID] = len(p.turns)
		}
		p.turns = append(p.turns, turn)
		p.mu.Unlock()
		return nil
	}
}

func (s *MemoryStore) List(_ context.Context, key string) ([]Turn, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	p := s.partition(key, false)
	if p == nil {
		return []Turn{}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Turn, len(p.turns))
	copy(out, p.turns)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	p, ok := s.partitions[key]
	delete(s.partitions, key)
	s.mu.Unlock()
	if ok {
		p.mu.Lock()
		p.dropped = true
		p.turns = nil
		p.index = nil
		p.mu.Unlock()
	}
	return nil
}
