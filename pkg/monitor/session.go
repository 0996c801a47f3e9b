package monitor

import (
	"sync"

	"github.com/google/uuid"

	"github.com/simtap/simtap-go/pkg/subscription"
)

// session is the state of one connection attempt. Every Connect creates a
// new session so signals from an older connection cannot resolve a newer one.
type session struct {
	id         string
	generation uint64
	registry   *subscription.Registry

	authenticated chan struct{}
	authOnce      sync.Once

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

func newSession(generation uint64) *session {
	return &session{
		id:            uuid.NewString(),
		generation:    generation,
		registry:      subscription.NewRegistry(),
		authenticated: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// authenticate resolves the authenticated signal.
func (s *session) authenticate() {
	s.authOnce.Do(func() { close(s.authenticated) })
}

// fail records err and resolves the disconnection signal.
// Returns false if the session had already ended.
func (s *session) fail(err error) bool {
	failed := false
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
		failed = true
	})
	return failed
}

// Err returns the recorded failure, or nil while the session is live.
func (s *session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
