package history

import (
	"context"
	"sync"

	"github.com/aouyang1/forecastd/report"
)

// MemoryStore keeps bundles in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string][]report.Bundle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles: make(map[string][]report.Bundle),
	}
}

func (s *MemoryStore) Save(ctx context.Context, b *report.Bundle) error {
	if err := validate(b); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.Owner] = append(s.bundles[b.Owner], *b)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, owner string, order Order) ([]report.Bundle, error) {
	s.mu.RLock()
	res := make([]report.Bundle, len(s.bundles[owner]))
	copy(res, s.bundles[owner])
	s.mu.RUnlock()

	sortBundles(res, order)
	return res, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
