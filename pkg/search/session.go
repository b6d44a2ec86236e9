package search

import (
	"context"
	"sync"
	"sync/atomic"
)

// Session serializes the searches of one interactive user so that the latest
// request wins. Every Resolve gets a new generation and cancels the resolution
// still in flight; a resolution that finishes after a newer one started returns
// ErrSuperseded instead of its results.
type Session struct {
	svc *Service

	generation atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession creates a session backed by svc.
func NewSession(svc *Service) *Session {
	return &Session{svc: svc}
}

// Generation returns the generation of the most recent Resolve call.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Resolve runs a search for this session. Results carry the generation they were
// produced for.
func (s *Session) Resolve(ctx context.Context, mode Mode, text string) (*Results, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	gen := s.generation.Add(1)
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.generation.Load() == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	res, err := s.svc.Resolve(ctx, mode, text)
	if s.generation.Load() != gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	res.Generation = gen
	return res, nil
}

// Close cancels the resolution in flight, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
