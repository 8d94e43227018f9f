package round

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"math-dash-service/internal/domain"
)

const (
	tickInterval = time.Second
	baseAward    = 10
	streakBonus  = 2
)

// Observer receives round events. Callbacks run outside the round lock, in
// the order the round produced them, and must not call back into the round.
type Observer interface {
	QuestionReady(q domain.Question)
	Ticked(state domain.RoundState)
	Answered(outcome domain.AnswerOutcome)
	Ended(summary domain.RoundSummary)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) QuestionReady(domain.Question) {}
func (NopObserver) Ticked(domain.RoundState)      {}
func (NopObserver) Answered(domain.AnswerOutcome) {}
func (NopObserver) Ended(domain.RoundSummary)     {}

// Config fixes the parameters of one round.
type Config struct {
	ID              string
	PlayerID        string
	DurationSeconds int
	Difficulty      domain.Difficulty
	Mode            domain.PresentationMode
	// AnswerDelay holds the next question back after an answer so the client
	// can show the verdict. Zero presents it immediately.
	AnswerDelay time.Duration
	Now         func() time.Time
}

type phase int

const (
	phaseIdle phase = iota
	phaseActive
	phaseEnded
)

// task owns one scheduled callback. Once done it can neither fire nor be
// cancelled again; both transitions happen under the round lock.
type task struct {
	handle Task
	done   bool
}

func (t *task) cancel() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.handle.Cancel()
}

// Round is one timed play session: Idle -> Active (<-> Paused) -> Ended.
type Round struct {
	cfg   Config
	gen   *Generator
	sched Scheduler
	obs   Observer

	dispatchMu sync.Mutex
	mu         sync.Mutex
	phase      phase
	state      domain.RoundState
	question   domain.Question
	pending    bool // answered; next question not presented yet
	bestStreak int
	tick       *task
	next       *task
	startedAt  time.Time
	summary    *domain.RoundSummary
	events     []func()
}

// New builds an idle round. A nil scheduler uses wall-clock timers, a nil
// observer drops events.
func New(cfg Config, gen *Generator, sched Scheduler, obs Observer) *Round {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	if obs == nil {
		obs = NopObserver{}
	}
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &Round{cfg: cfg, gen: gen, sched: sched, obs: obs}
}

func (r *Round) ID() string       { return r.cfg.ID }
func (r *Round) PlayerID() string { return r.cfg.PlayerID }

// Start moves the round to Active, presents the first question and starts the tick.
func (r *Round) Start() (domain.RoundSnapshot, error) {
	r.mu.Lock()
	if r.phase != phaseIdle {
		r.mu.Unlock()
		return domain.RoundSnapshot{}, domain.ErrRoundStarted
	}
	if r.cfg.DurationSeconds <= 0 {
		r.mu.Unlock()
		return domain.RoundSnapshot{}, domain.ErrInvalidSettings
	}
	q, err := r.gen.Next(r.cfg.Difficulty, r.cfg.Mode)
	if err != nil {
		r.mu.Unlock()
		return domain.RoundSnapshot{}, err
	}

	r.phase = phaseActive
	r.startedAt = r.cfg.Now()
	r.state = domain.RoundState{
		Lives:         domain.MaxLives,
		TimeRemaining: r.cfg.DurationSeconds,
		Active:        true,
	}
	r.presentLocked(q)
	r.tick = r.scheduleLocked(tickInterval, r.onTickLocked)
	snap := r.snapshotLocked()
	r.unlockAndDispatch()
	return snap, nil
}

// SubmitText parses free-text input. Non-numeric input is rejected without
// touching the round state and does not count as an attempt.
func (r *Round) SubmitText(raw string) (domain.AnswerOutcome, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.AnswerOutcome{}, domain.ErrInvalidAnswer
	}
	return r.Submit(value)
}

// Submit judges value against the current question.
func (r *Round) Submit(value int) (domain.AnswerOutcome, error) {
	r.mu.Lock()
	switch {
	case r.phase != phaseActive:
		r.mu.Unlock()
		return domain.AnswerOutcome{}, domain.ErrRoundNotActive
	case r.state.Paused:
		r.mu.Unlock()
		return domain.AnswerOutcome{}, domain.ErrRoundPaused
	case r.pending:
		r.mu.Unlock()
		return domain.AnswerOutcome{}, domain.ErrAnswerPending
	}

	q := r.question
	expected := q.Answer()
	outcome := domain.AnswerOutcome{
		QuestionID: q.ID,
		Operator:   q.Operator,
		Submitted:  value,
		Expected:   expected,
		Correct:    value == expected,
	}

	r.state.QuestionsAnswered++
	if outcome.Correct {
		outcome.Awarded = baseAward + streakBonus*r.state.Streak
		r.state.Score += outcome.Awarded
		r.state.Streak++
		r.state.CorrectAnswered++
		if r.state.Streak > r.bestStreak {
			r.bestStreak = r.state.Streak
		}
	} else {
		r.state.Lives--
		r.state.Streak = 0
	}

	exhausted := r.state.Lives <= 0
	if exhausted {
		r.state.Lives = 0
		r.state.Active = false
	}
	outcome.State = r.state
	r.emitLocked(func() { r.obs.Answered(outcome) })

	switch {
	case exhausted:
		r.endLocked(domain.EndLivesExhausted)
	case r.cfg.AnswerDelay > 0:
		r.pending = true
		r.next = r.scheduleLocked(r.cfg.AnswerDelay, r.nextQuestionLocked)
	default:
		r.nextQuestionLocked()
	}
	r.unlockAndDispatch()
	return outcome, nil
}

// Pause suspends the tick without touching the round state.
func (r *Round) Pause() (domain.RoundState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phaseActive {
		return r.state, domain.ErrRoundNotActive
	}
	if r.state.Paused {
		return r.state, nil
	}
	r.state.Paused = true
	r.tick.cancel()
	r.tick = nil
	return r.state, nil
}

// Resume restarts the tick from the remaining time.
func (r *Round) Resume() (domain.RoundState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != phaseActive {
		return r.state, domain.ErrRoundNotActive
	}
	if !r.state.Paused {
		return r.state, nil
	}
	r.state.Paused = false
	r.tick = r.scheduleLocked(tickInterval, r.onTickLocked)
	return r.state, nil
}

// Abandon tears the round down without emitting a summary, e.g. when the
// player navigates away. It reports whether the round was still running.
func (r *Round) Abandon() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == phaseEnded {
		return false
	}
	r.phase = phaseEnded
	r.cancelTasksLocked()
	r.state.Active = false
	r.state.Paused = false
	return true
}

// Snapshot returns the current state and question.
func (r *Round) Snapshot() domain.RoundSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Summary returns the summary once the round has ended through play.
func (r *Round) Summary() (domain.RoundSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return domain.RoundSummary{}, false
	}
	return *r.summary, true
}

// Ended reports whether the round reached its terminal state.
func (r *Round) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseEnded
}

func (r *Round) onTickLocked() {
	if r.phase != phaseActive || r.state.Paused {
		return
	}
	r.state.TimeRemaining--
	if r.state.TimeRemaining <= 0 {
		r.state.TimeRemaining = 0
		r.endLocked(domain.EndTimeExpired)
		return
	}
	state := r.state
	r.emitLocked(func() { r.obs.Ticked(state) })
	r.tick = r.scheduleLocked(tickInterval, r.onTickLocked)
}

func (r *Round) nextQuestionLocked() {
	r.pending = false
	r.next = nil
	if r.phase != phaseActive {
		return
	}
	q, err := r.gen.Next(r.cfg.Difficulty, r.cfg.Mode)
	if err != nil {
		// Difficulty and mode were accepted by Start, so this keeps the current question.
		q = r.question
	}
	r.presentLocked(q)
}

func (r *Round) presentLocked(q domain.Question) {
	r.question = q
	r.emitLocked(func() { r.obs.QuestionReady(cloneQuestion(q)) })
}

// endLocked is the single exit into Ended. Later calls are no-ops, so a
// summary is emitted at most once whichever path gets here first.
func (r *Round) endLocked(reason domain.EndReason) {
	if r.phase == phaseEnded {
		return
	}
	r.phase = phaseEnded
	r.cancelTasksLocked()
	r.state.Active = false
	r.state.Paused = false

	answered := r.state.QuestionsAnswered
	summary := domain.RoundSummary{
		RoundID:           r.cfg.ID,
		PlayerID:          r.cfg.PlayerID,
		Difficulty:        r.cfg.Difficulty,
		Mode:              r.cfg.Mode,
		FinalScore:        r.state.Score,
		ElapsedSeconds:    r.cfg.DurationSeconds - r.state.TimeRemaining,
		AccuracyPercent:   accuracy(r.state.CorrectAnswered, answered),
		QuestionsAnswered: answered,
		BestStreak:        r.bestStreak,
		PerfectAnswers:    r.state.CorrectAnswered,
		EndReason:         reason,
		PlayedAt:          r.startedAt,
	}
	r.summary = &summary
	r.emitLocked(func() { r.obs.Ended(summary) })
}

func (r *Round) cancelTasksLocked() {
	r.tick.cancel()
	r.next.cancel()
	r.tick = nil
	r.next = nil
	r.pending = false
}

// scheduleLocked wraps fn so it runs under the round lock only while its task
// is live. Cancelling the task under the same lock makes a stale callback a no-op.
func (r *Round) scheduleLocked(d time.Duration, fn func()) *task {
	t := &task{}
	t.handle = r.sched.AfterFunc(d, func() {
		r.mu.Lock()
		if t.done {
			r.mu.Unlock()
			return
		}
		t.done = true
		fn()
		r.unlockAndDispatch()
	})
	return t
}

func (r *Round) emitLocked(ev func()) {
	r.events = append(r.events, ev)
}

// unlockAndDispatch releases the round lock and delivers queued events. The
// dispatch lock is taken before the round lock is released so events reach
// the observer in the order they were produced.
func (r *Round) unlockAndDispatch() {
	events := r.events
	r.events = nil
	r.dispatchMu.Lock()
	r.mu.Unlock()
	defer r.dispatchMu.Unlock()
	for _, ev := range events {
		ev()
	}
}

func (r *Round) snapshotLocked() domain.RoundSnapshot {
	snap := domain.RoundSnapshot{
		RoundID:  r.cfg.ID,
		Duration: r.cfg.DurationSeconds,
		State:    r.state,
		Mode:     r.cfg.Mode,
	}
	if r.phase == phaseActive {
		q := cloneQuestion(r.question)
		snap.Question = &q
	}
	return snap
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.Choices != nil {
		q.Choices = append([]int(nil), q.Choices...)
	}
	return q
}

func accuracy(correct, answered int) int {
	if answered < 1 {
		answered = 1
	}
	return int(math.Round(100 * float64(correct) / float64(answered)))
}
