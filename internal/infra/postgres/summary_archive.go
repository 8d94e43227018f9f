package postgres

import (
	"context"
	"fmt"

	"math-dash-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// DefaultHistoryLimit bounds Recent when the caller passes no limit.
const DefaultHistoryLimit = 20

// SummaryArchive stores every finished round in Postgres.
type SummaryArchive struct {
	pool *pgxpool.Pool
}

func NewSummaryArchive(pool *pgxpool.Pool) *SummaryArchive {
	return &SummaryArchive{pool: pool}
}

// Append inserts a summary; replaying the same round id is a no-op.
func (a *SummaryArchive) Append(ctx context.Context, s domain.RoundSummary) error {
	_, err := a.pool.Exec(ctx, `
INSERT INTO round_summaries (
    round_id, player_id, difficulty, mode, final_score, elapsed_seconds, accuracy_percent,
    questions_answered, best_streak, perfect_answers, end_reason, played_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (round_id) DO NOTHING`,
		s.RoundID, s.PlayerID, string(s.Difficulty), string(s.Mode), s.FinalScore, s.ElapsedSeconds,
		s.AccuracyPercent, s.QuestionsAnswered, s.BestStreak, s.PerfectAnswers, string(s.EndReason), s.PlayedAt)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

// Recent returns the player's latest rounds, newest first.
func (a *SummaryArchive) Recent(ctx context.Context, playerID string, limit int) ([]domain.RoundSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := a.pool.Query(ctx, `
SELECT round_id, player_id, difficulty, mode, final_score, elapsed_seconds, accuracy_percent,
       questions_answered, best_streak, perfect_answers, end_reason, played_at
FROM round_summaries
WHERE player_id = $1
ORDER BY played_at DESC
LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RoundSummary, 0, limit)
	for rows.Next() {
		var (
			s                           domain.RoundSummary
			difficulty, mode, endReason string
		)
		if err := rows.Scan(&s.RoundID, &s.PlayerID, &difficulty, &mode, &s.FinalScore, &s.ElapsedSeconds,
			&s.AccuracyPercent, &s.QuestionsAnswered, &s.BestStreak, &s.PerfectAnswers, &endReason, &s.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Difficulty = domain.Difficulty(difficulty)
		s.Mode = domain.PresentationMode(mode)
		s.EndReason = domain.EndReason(endReason)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}
