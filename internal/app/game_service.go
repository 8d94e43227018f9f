package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-dash-service/internal/domain"
	"math-dash-service/internal/metrics"
	"math-dash-service/internal/round"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// streakNotifyEvery is how often a running streak earns a notification.
const streakNotifyEvery = 5

// GameDeps wires a GameService. Archive, Scheduler and Generator are optional.
type GameDeps struct {
	Rounds      RoundRepository
	Progress    *ProgressService
	Preferences *PreferencesService
	Archive     SummaryArchive
	Hub         *Hub
	Scheduler   round.Scheduler
	Generator   *round.Generator
	AnswerDelay time.Duration
	Log         *zap.Logger
}

// StartOptions override the player's stored settings for one round. Zero
// fields fall back to the stored settings.
type StartOptions struct {
	Mode            domain.PresentationMode `json:"mode"`
	Difficulty      domain.Difficulty       `json:"difficulty"`
	DurationSeconds int                     `json:"durationSeconds"`
}

// RoundStarted is the payload of the roundStarted event.
type RoundStarted struct {
	RoundID         string                  `json:"roundId"`
	DurationSeconds int                     `json:"durationSeconds"`
	Difficulty      domain.Difficulty       `json:"difficulty"`
	Mode            domain.PresentationMode `json:"mode"`
	Lives           int                     `json:"lives"`
}

// GameService runs rounds for players and routes their outcomes into
// progress, personalization, the archive and the player's event stream.
type GameService struct {
	rounds      RoundRepository
	progress    *ProgressService
	prefs       *PreferencesService
	archive     SummaryArchive
	hub         *Hub
	audio       *Audio
	notifier    *Notifier
	sched       round.Scheduler
	gen         *round.Generator
	answerDelay time.Duration
	log         *zap.Logger
}

func NewGameService(deps GameDeps) *GameService {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	if deps.Generator == nil {
		deps.Generator = round.NewGenerator(nil)
	}
	if deps.Scheduler == nil {
		deps.Scheduler = round.RealScheduler{}
	}
	return &GameService{
		rounds:      deps.Rounds,
		progress:    deps.Progress,
		prefs:       deps.Preferences,
		archive:     deps.Archive,
		hub:         deps.Hub,
		audio:       NewAudio(deps.Hub, deps.Preferences, deps.Log),
		notifier:    NewNotifier(deps.Hub),
		sched:       deps.Scheduler,
		gen:         deps.Generator,
		answerDelay: deps.AnswerDelay,
		log:         deps.Log,
	}
}

// StartRound begins a new round for the player. A round already running for
// the player is abandoned without a summary.
func (s *GameService) StartRound(ctx context.Context, playerID string, opts StartOptions) (domain.RoundSnapshot, error) {
	settings, err := s.prefs.Settings(ctx, playerID)
	if err != nil {
		s.log.Warn("settings unavailable, using defaults", zap.String("player", playerID), zap.Error(err))
		settings = s.prefs.Defaults()
	}
	if opts.Mode != "" {
		settings.Mode = opts.Mode
	}
	if opts.Difficulty != "" {
		settings.Difficulty = opts.Difficulty
	}
	if opts.DurationSeconds != 0 {
		settings.DurationSeconds = opts.DurationSeconds
	}
	if err := settings.Validate(); err != nil {
		s.notifier.Notify(playerID, NotifyError, "Cannot start round", err.Error())
		return domain.RoundSnapshot{}, err
	}

	roundID := uuid.NewString()
	obs := &roundObserver{svc: s, playerID: playerID}
	r := round.New(round.Config{
		ID:              roundID,
		PlayerID:        playerID,
		DurationSeconds: settings.DurationSeconds,
		Difficulty:      settings.Difficulty,
		Mode:            settings.Mode,
		AnswerDelay:     s.answerDelay,
	}, s.gen, s.sched, obs)

	if prev := s.rounds.Put(r); prev != nil && prev.Abandon() {
		s.log.Info("previous round abandoned", zap.String("player", playerID), zap.String("round", prev.ID()))
	}

	s.hub.Publish(playerID, EventRoundStarted, RoundStarted{
		RoundID:         roundID,
		DurationSeconds: settings.DurationSeconds,
		Difficulty:      settings.Difficulty,
		Mode:            settings.Mode,
		Lives:           domain.MaxLives,
	})
	snap, err := r.Start()
	if err != nil {
		s.rounds.Remove(playerID, roundID)
		return domain.RoundSnapshot{}, fmt.Errorf("start round: %w", err)
	}

	metrics.RoundsStarted.WithLabelValues(string(settings.Difficulty), string(settings.Mode)).Inc()
	s.audio.PlayEffect(ctx, playerID, SoundGameStart)
	s.audio.PlayLoop(ctx, playerID, TrackBackground)
	s.log.Info("round started",
		zap.String("player", playerID),
		zap.String("round", roundID),
		zap.String("difficulty", string(settings.Difficulty)),
		zap.String("mode", string(settings.Mode)),
		zap.Int("duration", settings.DurationSeconds),
	)
	return snap, nil
}

// SubmitAnswer judges raw input against the player's current question.
func (s *GameService) SubmitAnswer(_ context.Context, playerID, raw string) (domain.AnswerOutcome, error) {
	r, ok := s.rounds.Get(playerID)
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrRoundNotFound
	}
	outcome, err := r.SubmitText(raw)
	if errors.Is(err, domain.ErrInvalidAnswer) {
		s.notifier.Notify(playerID, NotifyWarning, "Please enter a number", "")
	}
	return outcome, err
}

func (s *GameService) Pause(ctx context.Context, playerID string) (domain.RoundState, error) {
	r, ok := s.rounds.Get(playerID)
	if !ok {
		return domain.RoundState{}, domain.ErrRoundNotFound
	}
	state, err := r.Pause()
	if err != nil {
		return state, err
	}
	s.hub.Publish(playerID, EventPaused, state)
	s.audio.PlayEffect(ctx, playerID, SoundClick)
	s.audio.StopLoop(ctx, playerID, TrackBackground)
	s.notifier.Notify(playerID, NotifyInfo, "Paused", "")
	return state, nil
}

func (s *GameService) Resume(ctx context.Context, playerID string) (domain.RoundState, error) {
	r, ok := s.rounds.Get(playerID)
	if !ok {
		return domain.RoundState{}, domain.ErrRoundNotFound
	}
	state, err := r.Resume()
	if err != nil {
		return state, err
	}
	s.hub.Publish(playerID, EventResumed, state)
	s.audio.PlayEffect(ctx, playerID, SoundClick)
	s.audio.PlayLoop(ctx, playerID, TrackBackground)
	s.notifier.Notify(playerID, NotifyInfo, "Resumed", "")
	return state, nil
}

// Abandon tears down the player's round without recording it.
func (s *GameService) Abandon(ctx context.Context, playerID string) error {
	r, ok := s.rounds.Get(playerID)
	if !ok {
		return domain.ErrRoundNotFound
	}
	s.rounds.Remove(playerID, r.ID())
	if r.Abandon() {
		s.audio.StopLoop(ctx, playerID, TrackBackground)
		s.log.Info("round abandoned", zap.String("player", playerID), zap.String("round", r.ID()))
	}
	return nil
}

func (s *GameService) Snapshot(_ context.Context, playerID string) (domain.RoundSnapshot, error) {
	r, ok := s.rounds.Get(playerID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrRoundNotFound
	}
	return r.Snapshot(), nil
}

// Subscribe returns the player's event stream. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, playerID string) (<-chan domain.Event, func()) {
	return s.hub.Subscribe(playerID)
}

// Disconnect abandons the player's round once their last subscriber is gone.
func (s *GameService) Disconnect(ctx context.Context, playerID string) {
	if s.hub.Subscribers(playerID) > 0 {
		return
	}
	if err := s.Abandon(ctx, playerID); err != nil && !errors.Is(err, domain.ErrRoundNotFound) {
		s.log.Warn("abandon on disconnect failed", zap.String("player", playerID), zap.Error(err))
	}
}

// Visit records the player landing on the home screen: the daily streak is
// updated and streak achievements are celebrated.
func (s *GameService) Visit(ctx context.Context, playerID string) (domain.Ledger, error) {
	p, unlocked, err := s.progress.Visit(ctx, playerID)
	if err != nil {
		return domain.Ledger{}, err
	}
	s.celebrate(ctx, playerID, unlocked, p)
	return p.Ledger, nil
}

// Progress exposes the progress service to transports.
func (s *GameService) Progress() *ProgressService { return s.progress }

// Preferences exposes the preferences service to transports.
func (s *GameService) Preferences() *PreferencesService { return s.prefs }

// History lists the player's archived rounds, newest first.
func (s *GameService) History(ctx context.Context, playerID string, limit int) ([]domain.RoundSummary, error) {
	if s.archive == nil {
		return nil, domain.ErrArchiveDisabled
	}
	return s.archive.Recent(ctx, playerID, limit)
}

// finish runs once per round that ended through play.
func (s *GameService) finish(ctx context.Context, summary domain.RoundSummary) {
	s.rounds.Remove(summary.PlayerID, summary.RoundID)
	metrics.RoundsEnded.WithLabelValues(string(summary.EndReason)).Inc()
	s.audio.StopLoop(ctx, summary.PlayerID, TrackBackground)
	s.audio.PlayEffect(ctx, summary.PlayerID, SoundGameEnd)

	result, after, err := s.progress.RecordRound(ctx, summary)
	if err != nil {
		s.log.Warn("round not folded into progress", zap.String("player", summary.PlayerID), zap.Error(err))
		result = domain.RoundResult{Summary: summary, Achievements: []domain.Achievement{}}
	} else {
		s.celebrate(ctx, summary.PlayerID, result.Achievements, after)
	}

	if s.archive != nil {
		if err := s.archive.Append(ctx, summary); err != nil {
			s.log.Warn("round not archived", zap.String("round", summary.RoundID), zap.Error(err))
		}
	}

	s.hub.Publish(summary.PlayerID, EventRoundEnded, result)
	s.log.Info("round ended",
		zap.String("player", summary.PlayerID),
		zap.String("round", summary.RoundID),
		zap.String("reason", string(summary.EndReason)),
		zap.Int("score", summary.FinalScore),
		zap.Int("unlocked", len(result.Achievements)),
	)
}

// celebrate announces newly unlocked achievements and grants the items they earn.
func (s *GameService) celebrate(ctx context.Context, playerID string, unlocked []domain.Achievement, after domain.Progress) {
	if len(unlocked) == 0 {
		return
	}
	for _, a := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(string(a.Rarity)).Inc()
		s.notifier.Notify(playerID, NotifyAchievement, a.Name, a.Description)
	}
	s.audio.PlayEffect(ctx, playerID, SoundAchievement)

	items, err := s.prefs.Unlock(ctx, playerID, after)
	if err != nil {
		s.log.Warn("personalization unlock failed", zap.String("player", playerID), zap.Error(err))
		return
	}
	for _, it := range items {
		s.notifier.Notify(playerID, NotifySuccess, "New "+string(it.Kind)+" unlocked", it.Name)
	}
}

// roundObserver forwards one round's events. It runs on the round's dispatch
// path and never calls back into the round.
type roundObserver struct {
	svc      *GameService
	playerID string
}

func (o *roundObserver) QuestionReady(q domain.Question) {
	o.svc.hub.Publish(o.playerID, EventQuestion, q)
}

func (o *roundObserver) Ticked(state domain.RoundState) {
	o.svc.hub.Publish(o.playerID, EventTick, state)
}

func (o *roundObserver) Answered(outcome domain.AnswerOutcome) {
	s := o.svc
	ctx := context.Background()

	result := "wrong"
	if outcome.Correct {
		result = "correct"
	}
	metrics.Answers.WithLabelValues(string(outcome.Operator), result).Inc()

	s.hub.Publish(o.playerID, EventAnswerResult, outcome)
	if err := s.progress.RecordAnswer(ctx, o.playerID, outcome.Operator, outcome.Correct); err != nil {
		s.log.Warn("answer not recorded", zap.String("player", o.playerID), zap.Error(err))
	}

	if !outcome.Correct {
		s.audio.PlayEffect(ctx, o.playerID, SoundIncorrect)
		return
	}
	s.audio.PlayEffect(ctx, o.playerID, SoundCorrect)
	if streak := outcome.State.Streak; streak > 0 && streak%streakNotifyEvery == 0 {
		s.notifier.Notify(o.playerID, NotifySuccess, fmt.Sprintf("%d in a row!", streak), "Streak bonus keeps growing")
	}
}

func (o *roundObserver) Ended(summary domain.RoundSummary) {
	o.svc.finish(context.Background(), summary)
}
