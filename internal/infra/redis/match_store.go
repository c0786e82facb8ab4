package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/domain"
)

// MatchStore is a Redis-aware implementation of app.MatchStore.
// Notes:
//   - Live *app.Match objects stay in a local map so the in-process
//     subscription/broadcast logic keeps working.
//   - Redis holds a JSON snapshot per match with TTL; the service restores
//     a match from its snapshot when the live object is gone (restart,
//     reconnect). Last write wins, no durability beyond the TTL.
type MatchStore struct {
	client *redis.Client
	ttl    time.Duration

	mu      sync.RWMutex
	matches map[string]*app.Match
}

func NewMatchStore(client *redis.Client, ttl time.Duration) *MatchStore {
	return &MatchStore{
		client:  client,
		ttl:     ttl,
		matches: make(map[string]*app.Match),
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
	_ = s.client.Del(context.Background(), s.key(matchID)).Err()
}

// SaveSnapshot is best-effort; a write failure loses restart recovery, not
// the live match.
func (s *MatchStore) SaveSnapshot(ctx context.Context, snap domain.MatchSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, s.key(snap.MatchID), raw, s.ttl).Err()
}

func (s *MatchStore) LoadSnapshot(ctx context.Context, matchID string) (domain.MatchSnapshot, bool) {
	raw, err := s.client.Get(ctx, s.key(matchID)).Bytes()
	if err != nil {
		return domain.MatchSnapshot{}, false
	}
	var snap domain.MatchSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.MatchSnapshot{}, false
	}
	return snap, true
}

func (s *MatchStore) key(matchID string) string {
	return "match:snapshot:" + matchID
}
