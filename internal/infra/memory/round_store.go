package memory

import (
	"sync"

	"math-dash-service/internal/round"
)

// RoundStore is an in-memory implementation of app.RoundRepository.
type RoundStore struct {
	mu     sync.RWMutex
	rounds map[string]*round.Round
}

func NewRoundStore() *RoundStore {
	return &RoundStore{
		rounds: make(map[string]*round.Round),
	}
}

func (s *RoundStore) Put(r *round.Round) *round.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.rounds[r.PlayerID()]
	s.rounds[r.PlayerID()] = r
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
	if !ok {
		return
	}
	if r.ID() == roundID {
		delete(s.rounds, playerID)
	}
}
