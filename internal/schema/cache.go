package schema

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Shivansh-2508/AI-DB/internal/observability"
)

// Cache holds one Description per identity. Entries never expire; Refresh replaces an entry
// wholesale and a failed refresh leaves the previous entry untouched.
type Cache struct {
	introspector Introspector
	namespace    string

	mu      sync.RWMutex
	entries map[string]Description
	flight  singleflight.Group
}

func NewCache(introspector Introspector, namespace string) *Cache {
	return &Cache{
		introspector: introspector,
		namespace:    namespace,
		entries:      map[string]Description{},
	}
}

func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) Get(identity string) (Description, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	description, ok := c.entries[identity]
	if !ok {
		return nil, false
	}
	return description.Clone(), true
}

// Refresh queries the catalog and overwrites the identity's entry. Concurrent refreshes for the
// same identity share one catalog round trip.
func (c *Cache) Refresh(ctx context.Context, identity string) (Description, error) {
	value, err, _ := c.flight.Do(identity, func() (any, error) {
		description, err := c.introspector.DescribeSchema(ctx, c.namespace)
		observability.ObserveSchemaRefresh(err)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if description == nil {
			description = Description{}
		}
		c.mu.Lock()
		c.entries[identity] = description
		c.mu.Unlock()
		return description, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(Description).Clone(), nil
}

// Ensure returns the cached entry, fetching it on first use.
func (c *Cache) Ensure(ctx context.Context, identity string) (Description, error) {
	if description, ok := c.Get(identity); ok {
		return description, nil
	}
	return c.Refresh(ctx, identity)
}
