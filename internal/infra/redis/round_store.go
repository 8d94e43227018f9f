package redis

import (
	"context"
	"sync"
	"time"

	"math-dash-service/internal/round"

	"github.com/redis/go-redis/v9"
)

// RoundStore is a Redis-aware implementation of app.RoundRepository.
// Notes:
//   - Rounds hold live timers, so the rounds themselves stay in a local map.
//   - Redis carries a liveness marker per player holding the active round id,
//     so other instances and operators can see who is mid-round.
type RoundStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rounds map[string]*round.Round
}

func NewRoundStore(client *redis.Client, ttl time.Duration) *RoundStore {
	return &RoundStore{
		client: client,
		ttl:    ttl,
		rounds: make(map[string]*round.Round),
	}
}

func (s *RoundStore) Put(r *round.Round) *round.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.rounds[r.PlayerID()]
	s.rounds[r.PlayerID()] = r
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(r.PlayerID()), r.ID(), s.ttl).Err()
	return prev
}

func (s *RoundStore) Get(playerID string) (*round.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[playerID]
	return r, ok
}

func (s *RoundStore) Remove(playerID, roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[playerID]
	if !ok || r.ID() != roundID {
		return
	}
	delete(s.rounds, playerID)
	_ = s.client.Del(context.Background(), s.key(playerID)).Err()
}

// ActiveRoundID reads the liveness marker of a player. The game path never
// reads it; the marker is for operators and other instances sharing this
// Redis to see who is mid-round (redis-cli KEYS mathdash:round:active:*).
func (s *RoundStore) ActiveRoundID(ctx context.Context, playerID string) (string, bool) {
	id, err := s.client.Get(ctx, s.key(playerID)).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *RoundStore) key(playerID string) string {
	return "mathdash:round:active:" + playerID
}
