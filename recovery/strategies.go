package recovery

import (
	"context"
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy keeps going on every error and remembers what it saw, so a
// damaged document still renders whatever pages survive.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
	limit  int
}

// NewLenientStrategy returns a strategy that records at most limit errors
// (0 means unbounded).
func NewLenientStrategy(limit int) *LenientStrategy {
	return &LenientStrategy{limit: limit}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit == 0 || len(s.errors) < s.limit {
		s.errors = append(s.errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	}
	return ActionWarn
}

// Errors returns a copy of the recorded errors.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

// ForMode maps a configuration value to a strategy. Unknown modes are lenient.
func ForMode(mode string) Strategy {
	if mode == "strict" {
		return NewStrictStrategy()
	}
	return NewLenientStrategy(100)
}
