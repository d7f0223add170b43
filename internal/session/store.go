// Package session keeps the per-user colour state of the query surface.
package session

import (
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Session owns one ColorAllocator. The allocator is only reachable through
// Do, which serialises concurrent requests carrying the same session id.
type Session struct {
	ID string

	mu     sync.Mutex
	colors *domain.ColorAllocator
}

// Do runs fn with exclusive access to the session's allocator.
func (s *Session) Do(fn func(colors *domain.ColorAllocator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.colors)
}

// Store holds live sessions with LRU eviction and an idle TTL. An evicted or
// expired session is rebuilt from scratch on its next request.
type Store struct {
	mu           sync.Mutex
	cache        gcache.Cache
	newAllocator func() *domain.ColorAllocator
}

// NewStore creates a store of at most size sessions that expire after ttl
// without use.
func NewStore(size int, ttl time.Duration, newAllocator func() *domain.ColorAllocator, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		cache: gcache.New(size).
			LRU().
			Expiration(ttl).
			Clock(clock).
			Build(),
		newAllocator: newAllocator,
	}
}

// Get returns the live session with the given id and refreshes its TTL.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// GetOrCreate returns the session for id, creating it when id is unknown or
// expired. A blank or malformed id gets a freshly generated one. created
// reports whether a new session was started.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	} else if sess, ok := s.get(id); ok {
		return sess, false
	}

	sess = &Session{ID: id, colors: s.newAllocator()}
	_ = s.cache.Set(id, sess)
	return sess, true
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len(true)
}

func (s *Store) get(id string) (*Session, bool) {
	v, err := s.cache.Get(id)
	if err != nil {
		return nil, false
	}
	sess := v.(*Session)
	// re-set to slide the expiry
	_ = s.cache.Set(id, sess)
	return sess, true
}
