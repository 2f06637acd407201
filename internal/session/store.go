package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/quizbot/core/logger"
)

type entry struct {
	// lock is a one-slot semaphore so waiting can be cancelled.
	lock  chan struct{}
	state *State
	refs  int
}

// Store keeps one State per user and runs every read-decide-write
// sequence for a user under that user's exclusive lock.
// Different users never wait on each other.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	live    atomic.Int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Update runs fn with exclusive access to the user's state, creating it
// on first use. When fn returns true the state is discarded and the next
// call starts from a fresh one. Waiting for the lock honours ctx.
func (s *Store) Update(ctx context.Context, userID string, fn func(*State) (discard bool)) error {
	e := s.acquire(userID)
	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.release(userID, e)
		logger.Warn(ctx, "session", "session.lock_cancelled",
			slog.String("status", "cancelled"),
			logger.Err(ctx.Err()),
		)
		return ctx.Err()
	}
	defer func() {
		<-e.lock
		s.release(userID, e)
	}()

	if e.state == nil {
		e.state = New(userID)
		s.live.Add(1)
	}
	if fn(e.state) {
		e.state = nil
		s.live.Add(-1)
	}
	return nil
}

// Peek returns a copy of the user's state without creating one.
func (s *Store) Peek(ctx context.Context, userID string) (*State, bool, error) {
	var (
		snapshot *State
		found    bool
	)
	e := s.acquire(userID)
	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.release(userID, e)
		return nil, false, ctx.Err()
	}
	if e.state != nil {
		snapshot, found = e.state.Clone(), true
	}
	<-e.lock
	s.release(userID, e)
	return snapshot, found, nil
}

// Delete discards the user's state if present.
func (s *Store) Delete(ctx context.Context, userID string) error {
	e := s.acquire(userID)
	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.release(userID, e)
		return ctx.Err()
	}
	if e.state != nil {
		e.state = nil
		s.live.Add(-1)
	}
	<-e.lock
	s.release(userID, e)
	return nil
}

// Len returns the number of users holding a state.
func (s *Store) Len() int {
	return int(s.live.Load())
}

func (s *Store) acquire(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{lock: make(chan struct{}, 1)}
		s.entries[userID] = e
	}
	e.refs++
	return e
}

// release drops the map entry once nobody references it and it holds no state.
func (s *Store) release(userID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.state == nil {
		delete(s.entries, userID)
	}
}
