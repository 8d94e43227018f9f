package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"math-dash-service/internal/domain"
	"math-dash-service/internal/infra/memory"
	"math-dash-service/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBackend = errors.New("backend down")

// flakyStore wraps a memory store and fails the operations it is told to.
type flakyStore struct {
	*memory.KVStore
	failLoad bool
	failSave bool
	saves    int
}

func (f *flakyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failLoad {
		return nil, false, errBackend
	}
	return f.KVStore.Load(ctx, key)
}

func (f *flakyStore) Save(ctx context.Context, key string, value []byte) error {
	f.saves++
	if f.failSave {
		return errBackend
	}
	return f.KVStore.Save(ctx, key, value)
}

func fixedClock(day int) func() time.Time {
	return func() time.Time { return time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC) }
}

func TestProgressCorruptDocumentLoadsDefaults(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Save(ctx, progressKey("p1"), []byte("{not json")))
	require.NoError(t, kv.Save(ctx, progressKey("p2"), []byte(`{"version":99,"ledger":{"gamesPlayed":7}}`)))

	svc := NewProgressService(kv, zap.NewNop(), fixedClock(1))
	for _, player := range []string{"p1", "p2"} {
		ledger, err := svc.Ledger(ctx, player)
		require.NoError(t, err)
		assert.Equal(t, 0, ledger.GamesPlayed, player)
		assert.Len(t, ledger.Operators, len(domain.Operators), player)
	}
}

func TestProgressSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	svc := NewProgressService(kv, nil, fixedClock(1))

	summary := domain.RoundSummary{RoundID: "r1", PlayerID: "p1", FinalScore: 120, ElapsedSeconds: 30, QuestionsAnswered: 10, PerfectAnswers: 9, BestStreak: 6, AccuracyPercent: 90}
	result, _, err := svc.RecordRound(ctx, summary)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Achievements)

	reloaded := NewProgressService(kv, nil, fixedClock(1))
	p, err := reloaded.Progress(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Ledger.GamesPlayed)
	assert.Equal(t, 120, p.Ledger.BestScore)
	assert.Equal(t, result.Ledger.GamesPlayed, p.Ledger.GamesPlayed)

	again, _, err := reloaded.RecordRound(ctx, domain.RoundSummary{RoundID: "r2", PlayerID: "p1", FinalScore: 10, ElapsedSeconds: 30, QuestionsAnswered: 1, PerfectAnswers: 1, BestStreak: 1, AccuracyPercent: 100})
	require.NoError(t, err)
	for _, a := range again.Achievements {
		assert.NotContains(t, []string{"first_game", "hundred_club"}, a.ID)
	}
}

func TestProgressLoadErrorIsReturned(t *testing.T) {
	store := &flakyStore{KVStore: memory.NewKVStore(), failLoad: true}
	svc := NewProgressService(store, nil, nil)

	_, err := svc.Progress(context.Background(), "p1")
	assert.ErrorIs(t, err, errBackend)
}

func TestProgressSaveErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{KVStore: memory.NewKVStore(), failSave: true}
	svc := NewProgressService(store, nil, nil)

	require.NoError(t, svc.RecordAnswer(ctx, "p1", domain.OpAdd, true))
	assert.Equal(t, 1, store.saves)

	result, _, err := svc.RecordRound(ctx, domain.RoundSummary{RoundID: "r1", PlayerID: "p1", FinalScore: 10, ElapsedSeconds: 30, QuestionsAnswered: 1, PerfectAnswers: 1, BestStreak: 1, AccuracyPercent: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ledger.GamesPlayed)
	assert.Equal(t, 2, store.saves)

	ledger, err := svc.Ledger(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.GamesPlayed, "unsaved folds are not served back")
}

func TestProgressUnreadableStoreFoldsOntoDefaults(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{KVStore: memory.NewKVStore(), failLoad: true}
	svc := NewProgressService(store, nil, fixedClock(1))

	p, unlocked, err := svc.Visit(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Ledger.DailyLoginStreak)
	assert.Empty(t, unlocked)

	result, _, err := svc.RecordRound(ctx, domain.RoundSummary{RoundID: "r1", PlayerID: "p1", FinalScore: 120, ElapsedSeconds: 30, QuestionsAnswered: 10, PerfectAnswers: 9, BestStreak: 6, AccuracyPercent: 90})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ledger.GamesPlayed)
	assert.NotEmpty(t, result.Achievements)
	assert.Equal(t, 0, store.saves, "a record that could not be read is never overwritten")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = svc.RecordRound(canceled, domain.RoundSummary{RoundID: "r2", PlayerID: "p1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressKeepsNoPerPlayerState(t *testing.T) {
	ctx := context.Background()
	svc := NewProgressService(memory.NewKVStore(), nil, nil)

	for i := 0; i < 1000; i++ {
		_, err := svc.Ledger(ctx, "visitor-"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, svc.players.size())
}

func TestKeyedMutexSerializesAndForgets(t *testing.T) {
	var (
		k       keyedMutex
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("p1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())

	unlockA := k.lock("a")
	unlockB := k.lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}

func TestVisitCountsOncePerDay(t *testing.T) {
	ctx := context.Background()
	day := 1
	svc := NewProgressService(memory.NewKVStore(), nil, func() time.Time { return fixedClock(day)() })

	for ; day <= 3; day++ {
		p, _, err := svc.Visit(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, day, p.Ledger.DailyLoginStreak)
	}
	day = 3
	p, unlocked, err := svc.Visit(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Ledger.DailyLoginStreak)
	assert.Empty(t, unlocked)
}

func TestProgressReset(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	svc := NewProgressService(kv, nil, nil)
	require.NoError(t, svc.RecordAnswer(ctx, "p1", domain.OpDivide, false))

	require.NoError(t, svc.Reset(ctx, "p1"))
	ledger, err := svc.Ledger(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Operators[domain.OpDivide].Total)

	_, found, err := kv.Load(ctx, progressKey("p1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPreferencesDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Save(ctx, settingsKey("p2"), []byte(`{"durationSeconds":1,"difficulty":"easy","mode":"input"}`)))
	prefs := NewPreferencesService(kv, domain.Settings{DurationSeconds: 45, Difficulty: domain.DifficultyHard, Mode: domain.ModeInput}, nil)

	s, err := prefs.Settings(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 45, s.DurationSeconds)

	s, err = prefs.Settings(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 45, s.DurationSeconds, "out-of-range stored settings fall back to defaults")

	_, err = prefs.UpdateSettings(ctx, "p1", domain.Settings{DurationSeconds: 30, Difficulty: "legendary", Mode: domain.ModeInput})
	assert.ErrorIs(t, err, domain.ErrInvalidDifficulty)

	audio, err := prefs.Audio(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAudioSettings(), audio)
}

func TestPreferencesUnlockFromProgress(t *testing.T) {
	ctx := context.Background()
	prefs := NewPreferencesService(memory.NewKVStore(), domain.DefaultSettings(), nil)

	_, err := prefs.Select(ctx, "p1", domain.ItemAvatar, "lightning")
	require.ErrorIs(t, err, domain.ErrItemLocked)

	p := progress.NewProgress()
	for i := range p.Achievements {
		if p.Achievements[i].ID == "speed_demon" {
			p.Achievements[i].Unlocked = true
		}
	}
	granted, err := prefs.Unlock(ctx, "p1", p)
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, "lightning", granted[0].ID)

	again, err := prefs.Unlock(ctx, "p1", p)
	require.NoError(t, err)
	assert.Empty(t, again)

	pers, err := prefs.Select(ctx, "p1", domain.ItemAvatar, "lightning")
	require.NoError(t, err)
	assert.Equal(t, "lightning", pers.SelectedAvatar)
}
