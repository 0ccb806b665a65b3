package proposition

import (
	"context"
	"errors"
	"iter"
	"sync"
)

var (
	ErrNotFound      = errors.New("proposition: not found")
	ErrEmptyMarketID = errors.New("proposition: market_id is required")
)

// Store is the data-access contract for propositions. Put overwrites by
// market_id. All yields a restartable sequence in no particular order.
type Store interface {
	Put(ctx context.Context, p Proposition) error
	Get(ctx context.Context, marketID string) (Proposition, error)
	All(ctx context.Context) iter.Seq[Proposition]
}

// MemoryStore is a map-backed Store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Proposition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Proposition)}
}

func (s *MemoryStore) Put(_ context.Context, p Proposition) error {
	if p.MarketID == "" {
		return ErrEmptyMarketID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.MarketID] = p
	return nil
}

func (s *MemoryStore) Get(_ context.Context, marketID string) (Proposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[marketID]
	if !ok {
		return Proposition{}, ErrNotFound
	}
	return p, nil
}

// All snapshots the current contents each time the sequence is ranged over.
func (s *MemoryStore) All(ctx context.Context) iter.Seq[Proposition] {
	return func(yield func(Proposition) bool) {
		s.mu.RLock()
		snapshot := make([]Proposition, 0, len(s.items))
		for _, p := range s.items {
			snapshot = append(snapshot, p)
		}
		s.mu.RUnlock()
		for _, p := range snapshot {
			if ctx.Err() != nil {
				return
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Collect drains a sequence into a slice.
func Collect(seq iter.Seq[Proposition]) []Proposition {
	var out []Proposition
	for p := range seq {
		out = append(out, p)
	}
	return out
}

// CollectErr drains a fallible sequence, stopping at the first error.
func CollectErr(seq iter.Seq2[Proposition, error]) ([]Proposition, error) {
	var out []Proposition
	for p, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
