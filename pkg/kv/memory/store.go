// Package memory is the in-process kv.Store used when no Redis address is
// configured or Redis cannot be reached at startup.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/monistake/monistake-backend/pkg/kv"
)

// DefaultSweepInterval is how often NewStore drops expired entries
const DefaultSweepInterval = 30 * time.Second

type entry struct {
	value   []byte
	expires time.Time // zero: no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool
	now     func() time.Time

	stop      chan struct{}
	swept     chan struct{}
	closeOnce sync.Once
}

var _ kv.Store = (*Store)(nil)

func NewStore() *Store {
	return New(DefaultSweepInterval)
}

// New starts a store that sweeps expired entries every interval. A zero
// interval only expires entries lazily on read.
func New(interval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
		swept:   make(chan struct{}),
	}
	if interval > 0 {
		go s.sweepLoop(interval)
	} else {
		close(s.swept)
	}
	return s
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.swept)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// lookup must be called with the lock held
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return entry{}, false
	}
	return e, true
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrClosed
	}
	return nil
}

// Close drops all entries and stops the sweeper. It is safe to call twice.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.entries = nil
		s.mu.Unlock()

		close(s.stop)
		<-s.swept
	})
	return nil
}
