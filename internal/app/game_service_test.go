package app_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"math-dash-service/internal/app"
	"math-dash-service/internal/domain"
	"math-dash-service/internal/infra/memory"
	"math-dash-service/internal/round"
)

type archiveStub struct {
	mu     sync.Mutex
	rounds []domain.RoundSummary
}

func (a *archiveStub) Append(_ context.Context, s domain.RoundSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rounds = append(a.rounds, s)
	return nil
}

func (a *archiveStub) Recent(_ context.Context, playerID string, limit int) ([]domain.RoundSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.RoundSummary
	for i := len(a.rounds) - 1; i >= 0 && len(out) < limit; i-- {
		if a.rounds[i].PlayerID == playerID {
			out = append(out, a.rounds[i])
		}
	}
	return out, nil
}

type fixture struct {
	service *app.GameService
	sched   *round.ManualScheduler
	archive *archiveStub
}

func newFixture(withArchive bool) *fixture {
	kv := memory.NewKVStore()
	sched := round.NewManualScheduler()
	f := &fixture{sched: sched}
	deps := app.GameDeps{
		Rounds:      memory.NewRoundStore(),
		Progress:    app.NewProgressService(kv, nil, nil),
		Preferences: app.NewPreferencesService(kv, domain.DefaultSettings(), nil),
		Scheduler:   sched,
	}
	if withArchive {
		f.archive = &archiveStub{}
		deps.Archive = f.archive
	}
	f.service = app.NewGameService(deps)
	return f
}

func drain(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func find(events []domain.Event, typ string) (domain.Event, bool) {
	for _, ev := range events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return domain.Event{}, false
}

func hasSound(events []domain.Event, action, name string) bool {
	for _, ev := range events {
		if ev.Type != app.EventSound {
			continue
		}
		if cue := ev.Payload.(app.SoundCue); cue.Action == action && cue.Name == name {
			return true
		}
	}
	return false
}

func inputRound(seconds int) app.StartOptions {
	return app.StartOptions{Mode: domain.ModeInput, Difficulty: domain.DifficultyEasy, DurationSeconds: seconds}
}

func TestRoundPlaysToTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	snap, err := f.service.StartRound(ctx, "p1", inputRound(10))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Question == nil || snap.State.Lives != domain.MaxLives {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	started := drain(events)
	if started[0].Type != app.EventRoundStarted {
		t.Fatalf("expected roundStarted first, got %s", started[0].Type)
	}
	if _, ok := find(started, app.EventQuestion); !ok {
		t.Fatalf("expected a question event")
	}

	outcome, err := f.service.SubmitAnswer(ctx, "p1", strconv.Itoa(snap.Question.Answer()))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !outcome.Correct {
		t.Fatalf("expected correct answer, got %+v", outcome)
	}
	drain(events)

	f.sched.Advance(10 * time.Second)
	ev, ok := find(drain(events), app.EventRoundEnded)
	if !ok {
		t.Fatalf("expected roundEnded event")
	}
	result := ev.Payload.(domain.RoundResult)
	if result.Summary.EndReason != domain.EndTimeExpired || result.Summary.ElapsedSeconds != 10 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if !containsAchievement(result.Achievements, "first_game") {
		t.Fatalf("expected first_game unlocked, got %+v", result.Achievements)
	}

	ledger, err := f.service.Progress().Ledger(ctx, "p1")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.GamesPlayed != 1 || ledger.CumulativeCorrect != 1 {
		t.Fatalf("unexpected ledger %+v", ledger)
	}
	if ledger.Operators[outcome.Operator].Correct != 1 {
		t.Fatalf("expected operator tally for %s, got %+v", outcome.Operator, ledger.Operators)
	}

	history, err := f.service.History(ctx, "p1", 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].RoundID != snap.RoundID {
		t.Fatalf("expected archived round %s, got %+v", snap.RoundID, history)
	}

	if _, err := f.service.Snapshot(ctx, "p1"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected finished round to be released, got %v", err)
	}
}

func TestRoundEndsWhenLivesRunOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	if _, err := f.service.StartRound(ctx, "p1", inputRound(30)); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < domain.MaxLives; i++ {
		snap, err := f.service.Snapshot(ctx, "p1")
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		if _, err := f.service.SubmitAnswer(ctx, "p1", strconv.Itoa(snap.Question.Answer()+1)); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}

	ev, ok := find(drain(events), app.EventRoundEnded)
	if !ok {
		t.Fatalf("expected roundEnded event")
	}
	result := ev.Payload.(domain.RoundResult)
	if result.Summary.EndReason != domain.EndLivesExhausted {
		t.Fatalf("expected lives exhausted, got %s", result.Summary.EndReason)
	}
	if result.Summary.AccuracyPercent != 0 || result.Summary.QuestionsAnswered != 3 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if _, err := f.service.SubmitAnswer(ctx, "p1", "1"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected no round after game over, got %v", err)
	}
}

func TestInvalidAnswerDoesNotCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	if _, err := f.service.StartRound(ctx, "p1", inputRound(30)); err != nil {
		t.Fatalf("start: %v", err)
	}
	drain(events)

	if _, err := f.service.SubmitAnswer(ctx, "p1", "seven"); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	ev, ok := find(drain(events), app.EventNotify)
	if !ok || ev.Payload.(app.Notification).Kind != app.NotifyWarning {
		t.Fatalf("expected a warning notification, got %+v", ev)
	}
	snap, _ := f.service.Snapshot(ctx, "p1")
	if snap.State.QuestionsAnswered != 0 || snap.State.Lives != domain.MaxLives {
		t.Fatalf("invalid input changed the round: %+v", snap.State)
	}
}

func TestStartingAgainAbandonsPreviousRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)

	first, err := f.service.StartRound(ctx, "p1", inputRound(30))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := f.service.StartRound(ctx, "p1", inputRound(30))
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if first.RoundID == second.RoundID {
		t.Fatalf("expected a new round id")
	}
	snap, err := f.service.Snapshot(ctx, "p1")
	if err != nil || snap.RoundID != second.RoundID {
		t.Fatalf("expected second round active, got %+v (%v)", snap, err)
	}

	f.sched.Advance(30 * time.Second)
	if len(f.archive.rounds) != 1 || f.archive.rounds[0].RoundID != second.RoundID {
		t.Fatalf("expected only the second round archived, got %+v", f.archive.rounds)
	}
}

func TestPauseStopsTheClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	if _, err := f.service.StartRound(ctx, "p1", inputRound(10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.sched.Advance(3 * time.Second)
	drain(events)

	state, err := f.service.Pause(ctx, "p1")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !state.Paused || state.TimeRemaining != 7 {
		t.Fatalf("unexpected paused state %+v", state)
	}
	if _, err := f.service.SubmitAnswer(ctx, "p1", "1"); !errors.Is(err, domain.ErrRoundPaused) {
		t.Fatalf("expected ErrRoundPaused, got %v", err)
	}
	paused := drain(events)
	ev, ok := find(paused, app.EventNotify)
	if !ok || ev.Payload.(app.Notification).Kind != app.NotifyInfo {
		t.Fatalf("expected an info notification on pause, got %+v", ev)
	}
	if !hasSound(paused, app.SoundActionEffect, app.SoundClick) {
		t.Fatalf("expected a click effect on pause")
	}

	f.sched.Advance(time.Minute)
	if _, ok := find(drain(events), app.EventTick); ok {
		t.Fatalf("tick while paused")
	}

	if _, err := f.service.Resume(ctx, "p1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !hasSound(drain(events), app.SoundActionLoop, app.TrackBackground) {
		t.Fatalf("expected background music to restart on resume")
	}
	f.sched.Advance(time.Second)
	ev, ok = find(drain(events), app.EventTick)
	if !ok || ev.Payload.(domain.RoundState).TimeRemaining != 6 {
		t.Fatalf("expected tick at 6s, got %+v", ev)
	}
}

func TestAbandonRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)

	if _, err := f.service.StartRound(ctx, "p1", inputRound(10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.service.Abandon(ctx, "p1"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	f.sched.Advance(time.Minute)

	ledger, _ := f.service.Progress().Ledger(ctx, "p1")
	if ledger.GamesPlayed != 0 || len(f.archive.rounds) != 0 {
		t.Fatalf("abandoned round was recorded: %+v", ledger)
	}
	if err := f.service.Abandon(ctx, "p1"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestDisconnectKeepsRoundWhileSubscribed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	_, cancelA := f.service.Subscribe(ctx, "p1")
	_, cancelB := f.service.Subscribe(ctx, "p1")

	if _, err := f.service.StartRound(ctx, "p1", inputRound(10)); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancelA()
	f.service.Disconnect(ctx, "p1")
	if _, err := f.service.Snapshot(ctx, "p1"); err != nil {
		t.Fatalf("round dropped with a subscriber left: %v", err)
	}

	cancelB()
	f.service.Disconnect(ctx, "p1")
	if _, err := f.service.Snapshot(ctx, "p1"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected round abandoned, got %v", err)
	}
}

func TestStartRejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	_, err := f.service.StartRound(ctx, "p1", app.StartOptions{Difficulty: "impossible"})
	if !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
	ev, ok := find(drain(events), app.EventNotify)
	if !ok || ev.Payload.(app.Notification).Kind != app.NotifyError {
		t.Fatalf("expected an error notification, got %+v", ev)
	}
}

func TestHistoryNeedsArchive(t *testing.T) {
	f := newFixture(false)
	if _, err := f.service.History(context.Background(), "p1", 10); !errors.Is(err, domain.ErrArchiveDisabled) {
		t.Fatalf("expected ErrArchiveDisabled, got %v", err)
	}
}

func TestMusicSettingGatesLoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	audio := domain.DefaultAudioSettings()
	audio.MusicEnabled = false
	if _, err := f.service.Preferences().UpdateAudio(ctx, "p1", audio); err != nil {
		t.Fatalf("update audio: %v", err)
	}
	events, cancel := f.service.Subscribe(ctx, "p1")
	defer cancel()

	if _, err := f.service.StartRound(ctx, "p1", inputRound(10)); err != nil {
		t.Fatalf("start: %v", err)
	}
	var effects int
	for _, ev := range drain(events) {
		if ev.Type != app.EventSound {
			continue
		}
		cue := ev.Payload.(app.SoundCue)
		if cue.Action == app.SoundActionLoop {
			t.Fatalf("music loop sent while music is disabled")
		}
		if cue.Action == app.SoundActionEffect && cue.Name == app.SoundGameStart {
			effects++
		}
	}
	if effects != 1 {
		t.Fatalf("expected one gameStart effect, got %d", effects)
	}
}

func containsAchievement(list []domain.Achievement, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}
