package flow

import (
	"sync"

	"beleggingsmatch/internal/matching"
)

// Store persists the preference record and the latest match list between
// views. Implementations are injected so the flow stays testable.
type Store interface {
	SavePreferences(prefs matching.Preferences)
	Preferences() (matching.Preferences, bool)
	SaveMatches(matches []matching.Match)
	Matches() ([]matching.Match, bool)
	Clear()
}

// MemoryStore is the default in-process store. Safe for concurrent reads,
// though the flow itself writes sequentially.
type MemoryStore struct {
	mu      sync.RWMutex
	prefs   matching.Preferences
	matches []matching.Match
	hasPref bool
	hasMat  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SavePreferences(prefs matching.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs.Clone()
	s.hasPref = true
}

func (s *MemoryStore) Preferences() (matching.Preferences, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasPref {
		return nil, false
	}
	return s.prefs.Clone(), true
}

func (s *MemoryStore) SaveMatches(matches []matching.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append([]matching.Match(nil), matches...)
	s.hasMat = true
}

func (s *MemoryStore) Matches() ([]matching.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasMat {
		return nil, false
	}
	return append([]matching.Match(nil), s.matches...), true
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = nil
	s.matches = nil
	s.hasPref = false
	s.hasMat = false
}
