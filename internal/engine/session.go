package engine

import (
	"sync"
	"time"

	"github.com/meridianbio/pharma-research/internal/model"
)

// SessionStore caches finished runs in memory so results can be re-read
// without re-running the pipeline. Bounded; the least recently touched entry
// is evicted when full.
type SessionStore struct {
	mu      sync.Mutex
	max     int
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	result  *model.RunResult
	touched time.Time
}

// NewSessionStore creates a store holding at most max results.
func NewSessionStore(max int) *SessionStore {
	if max <= 0 {
		max = 100
	}
	return &SessionStore{
		max:     max,
		entries: make(map[string]*sessionEntry, max),
	}
}

// Put stores a result under its session ID, evicting the stalest entry when
// at capacity.
func (s *SessionStore) Put(result *model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[result.SessionID]; !exists && len(s.entries) >= s.max {
		var oldestID string
		var oldest time.Time
		for id, e := range s.entries {
			if oldestID == "" || e.touched.Before(oldest) {
				oldestID, oldest = id, e.touched
			}
		}
		delete(s.entries, oldestID)
	}
	s.entries[result.SessionID] = &sessionEntry{result: result, touched: time.Now()}
}

// Get returns the result for id and refreshes its eviction clock.
func (s *SessionStore) Get(id string) (*model.RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.touched = time.Now()
	return e.result, true
}

// Len reports how many results are cached.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
