package tracking

import (
	"context"
	"sync"
)

type InMemorySequence struct {
	mu     sync.Mutex
	values map[int]int
}

func NewInMemorySequence() *InMemorySequence {
	return &InMemorySequence{values: make(map[int]int)}
}

// Next returns the next value for year, starting at 1.
func (s *InMemorySequence) Next(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[year]++
	return s.values[year], nil
}
