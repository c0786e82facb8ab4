package memory

import (
	"context"
	"sync"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/domain"
)

// MatchStore is an in-memory implementation of app.MatchStore. Snapshots are
// kept in the same process, so they survive an Abandon but not a restart.
type MatchStore struct {
	mu        sync.RWMutex
	matches   map[string]*app.Match
	snapshots map[string]domain.MatchSnapshot
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches:   make(map[string]*app.Match),
		snapshots: make(map[string]domain.MatchSnapshot),
	}
}

func (s *MatchStore) Put(match *app.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[match.ID()] = match
}

func (s *MatchStore) Get(matchID string) (*app.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.matches[matchID]
	return match, ok
}

func (s *MatchStore) Delete(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, matchID)
	delete(s.snapshots, matchID)
}

func (s *MatchStore) SaveSnapshot(_ context.Context, snap domain.MatchSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.MatchID] = snap
}

func (s *MatchStore) LoadSnapshot(_ context.Context, matchID string) (domain.MatchSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[matchID]
	return snap, ok
}
