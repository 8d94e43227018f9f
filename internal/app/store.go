package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"math-dash-service/internal/domain"
	"math-dash-service/internal/round"

	"golang.org/x/sync/singleflight"
)

// KeyValueStore persists opaque per-player documents (memory, Redis, SQLite).
type KeyValueStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RoundRepository tracks the single active round of each player.
type RoundRepository interface {
	// Put installs r as the player's active round and returns the round it replaced.
	Put(r *round.Round) (previous *round.Round)
	Get(playerID string) (*round.Round, bool)
	// Remove drops the player's active round only if it is still roundID.
	Remove(playerID, roundID string)
}

// SummaryArchive keeps every finished round beyond the ledger's history cap.
type SummaryArchive interface {
	Append(ctx context.Context, s domain.RoundSummary) error
	Recent(ctx context.Context, playerID string, limit int) ([]domain.RoundSummary, error)
}

func progressKey(playerID string) string        { return "progress:" + playerID }
func settingsKey(playerID string) string        { return "settings:" + playerID }
func audioKey(playerID string) string           { return "audio:" + playerID }
func personalizationKey(playerID string) string { return "personalization:" + playerID }

// documents loads and saves JSON documents, collapsing concurrent loads of
// the same key.
type documents struct {
	store KeyValueStore
	sf    singleflight.Group
}

func (d *documents) load(ctx context.Context, key string) ([]byte, bool, error) {
	result, err, _ := d.sf.Do(key, func() (interface{}, error) {
		raw, ok, err := d.store.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if !ok {
			return []byte(nil), nil
		}
		return raw, nil
	})
	if err != nil {
		return nil, false, err
	}
	raw := result.([]byte)
	return raw, raw != nil, nil
}

func (d *documents) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := d.store.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// decodeOr returns the decoded document, or fallback when raw is absent,
// corrupt or rejected by valid.
func decodeOr[T any](raw []byte, fallback T, valid func(T) bool) (T, bool) {
	if raw == nil {
		return fallback, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, false
	}
	if valid != nil && !valid(v) {
		return fallback, false
	}
	return v, true
}

// keyedMutex serializes read-modify-write cycles per key. An entry lives only
// while some caller holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
