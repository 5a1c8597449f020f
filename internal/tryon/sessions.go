package tryon

import (
	"context"
	"strings"
	"sync"
)

// Sessions tracks the in-flight attempt per caller session. Starting a new
// attempt cancels the previous one for the same key with ErrSuperseded, so a
// late result never overwrites a newer one.
type Sessions struct {
	mu       sync.Mutex
	inflight map[string]*attempt
}

type attempt struct {
	cancel context.CancelCauseFunc
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{inflight: make(map[string]*attempt)}
}

// Begin derives the context for a new attempt under key. The returned func
// must be called when the attempt finishes. An empty key is not tracked.
func (s *Sessions) Begin(ctx context.Context, key string) (context.Context, func()) {
	key = strings.TrimSpace(key)
	ctx, cancel := context.WithCancelCause(ctx)
	if key == "" {
		return ctx, func() { cancel(nil) }
	}

	current := &attempt{cancel: cancel}
	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	s.inflight[key] = current
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.inflight[key] == current {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// Len reports the number of tracked in-flight attempts.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
