package app

import (
	"context"
	"time"

	"math-dash-service/internal/domain"
	"math-dash-service/internal/progress"

	"go.uber.org/zap"
)

// ProgressService owns each player's persisted progress record. Every
// mutation is a read-modify-write under the player's lock followed by a
// best-effort save.
type ProgressService struct {
	docs  *documents
	log   *zap.Logger
	clock func() time.Time

	players keyedMutex
}

func NewProgressService(store KeyValueStore, log *zap.Logger, clock func() time.Time) *ProgressService {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &ProgressService{
		docs:  &documents{store: store},
		log:   log,
		clock: clock,
	}
}

// Progress returns a copy of the player's record.
func (s *ProgressService) Progress(ctx context.Context, playerID string) (domain.Progress, error) {
	unlock := s.players.lock(playerID)
	defer unlock()
	p, err := s.loadLocked(ctx, playerID)
	if err != nil {
		return domain.Progress{}, err
	}
	return progress.Clone(p), nil
}

// Ledger returns a copy of the player's lifetime statistics.
func (s *ProgressService) Ledger(ctx context.Context, playerID string) (domain.Ledger, error) {
	p, err := s.Progress(ctx, playerID)
	if err != nil {
		return domain.Ledger{}, err
	}
	return p.Ledger, nil
}

// Achievements lists the catalog merged with the player's unlock state.
func (s *ProgressService) Achievements(ctx context.Context, playerID string) ([]domain.Achievement, error) {
	p, err := s.Progress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return progress.Achievements(p), nil
}

// RecordAnswer counts one judged answer against its operator.
func (s *ProgressService) RecordAnswer(ctx context.Context, playerID string, op domain.Operator, correct bool) error {
	return s.mutate(ctx, playerID, func(p *domain.Progress) bool {
		progress.FoldOperatorAnswer(&p.Ledger, op, correct)
		return true
	})
}

// RecordRound folds a finished round and evaluates achievements against the
// updated ledger. The returned result carries only the achievements this
// round unlocked.
func (s *ProgressService) RecordRound(ctx context.Context, summary domain.RoundSummary) (domain.RoundResult, domain.Progress, error) {
	var (
		unlocked []domain.Achievement
		after    domain.Progress
	)
	err := s.mutate(ctx, summary.PlayerID, func(p *domain.Progress) bool {
		progress.FoldRoundSummary(&p.Ledger, summary)
		unlocked = progress.Evaluate(p, s.clock())
		after = progress.Clone(*p)
		return true
	})
	if err != nil {
		return domain.RoundResult{}, domain.Progress{}, err
	}
	if unlocked == nil {
		unlocked = []domain.Achievement{}
	}
	return domain.RoundResult{Summary: summary, Achievements: unlocked, Ledger: after.Ledger}, after, nil
}

// Visit records a visit on today's date in the service clock's zone.
// Achievements gated on the daily streak are evaluated when it changes.
func (s *ProgressService) Visit(ctx context.Context, playerID string) (domain.Progress, []domain.Achievement, error) {
	var (
		after    domain.Progress
		unlocked []domain.Achievement
	)
	err := s.mutate(ctx, playerID, func(p *domain.Progress) bool {
		now := s.clock()
		changed := progress.UpdateDailyStreak(&p.Ledger, now)
		if changed {
			unlocked = progress.Evaluate(p, now)
		}
		after = progress.Clone(*p)
		return changed
	})
	return after, unlocked, err
}

// Reset restores the player's record to defaults.
func (s *ProgressService) Reset(ctx context.Context, playerID string) error {
	unlock := s.players.lock(playerID)
	defer unlock()

	err := s.docs.store.Delete(ctx, progressKey(playerID))
	if err == nil {
		return nil
	}
	s.log.Warn("progress reset not deleted, overwriting", zap.String("player", playerID), zap.Error(err))
	if err := s.docs.save(ctx, progressKey(playerID), progress.NewProgress()); err != nil {
		s.log.Warn("progress reset not persisted", zap.String("player", playerID), zap.Error(err))
	}
	return nil
}

// mutate applies fn to the stored record. An unreadable store folds onto a
// default record that is never saved, so the stored one is not clobbered.
func (s *ProgressService) mutate(ctx context.Context, playerID string, fn func(p *domain.Progress) bool) error {
	unlock := s.players.lock(playerID)
	defer unlock()

	p, err := s.loadLocked(ctx, playerID)
	readable := err == nil
	if !readable {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.log.Warn("progress unreadable, folding onto defaults", zap.String("player", playerID), zap.Error(err))
		p = progress.NewProgress()
	}
	if !fn(&p) || !readable {
		return nil
	}

	if err := s.docs.save(ctx, progressKey(playerID), p); err != nil {
		s.log.Warn("progress not persisted", zap.String("player", playerID), zap.Error(err))
	}
	return nil
}

// loadLocked returns a record the caller owns.
func (s *ProgressService) loadLocked(ctx context.Context, playerID string) (domain.Progress, error) {
	raw, found, err := s.docs.load(ctx, progressKey(playerID))
	if err != nil {
		return domain.Progress{}, err
	}
	p, valid := decodeOr(raw, progress.NewProgress(), func(p domain.Progress) bool {
		return p.Version == domain.ProgressVersion
	})
	if found && !valid {
		s.log.Warn("unreadable progress replaced by defaults", zap.String("player", playerID))
	}
	return progress.Normalize(p), nil
}
