package internal

import (
	"context"
	"sync"
)

// signal is a one-shot completion with an error, used by the WaitUntilOpen helpers
type signal struct {
	mu     sync.Mutex
	done   chan struct{}
	err    error
	closed bool
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

func (s *signal) resolve(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.done)
}

func (s *signal) resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *signal) wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
