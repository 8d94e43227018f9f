// Package progress folds round outcomes into a player's lifetime ledger and
// decides which achievements and cosmetic items they have earned. Everything
// here is pure; persistence lives in the app layer.
package progress

import (
	"math"
	"time"

	"math-dash-service/internal/domain"
)

const dateLayout = "2006-01-02"

// NewProgress returns the record of a player who has never played.
func NewProgress() domain.Progress {
	records := make([]domain.AchievementRecord, 0, len(catalog))
	for _, def := range catalog {
		records = append(records, domain.AchievementRecord{ID: def.ID})
	}
	return domain.Progress{
		Version:      domain.ProgressVersion,
		Ledger:       domain.NewLedger(),
		Achievements: records,
	}
}

// Clone deep-copies the maps and slices of a record.
func Clone(p domain.Progress) domain.Progress {
	l := p.Ledger
	if l.History != nil {
		l.History = append([]domain.RoundSummary(nil), l.History...)
	}
	if l.Operators != nil {
		ops := make(map[domain.Operator]domain.OperatorTally, len(l.Operators))
		for op, t := range l.Operators {
			ops[op] = t
		}
		l.Operators = ops
	}
	p.Ledger = l
	if p.Achievements != nil {
		p.Achievements = append([]domain.AchievementRecord(nil), p.Achievements...)
	}
	return p
}

// Normalize repairs a decoded record so every map and slice is usable and
// every catalog achievement has a record, in catalog order.
func Normalize(p domain.Progress) domain.Progress {
	if p.Ledger.Operators == nil {
		p.Ledger.Operators = make(map[domain.Operator]domain.OperatorTally, len(domain.Operators))
	}
	for _, op := range domain.Operators {
		if _, ok := p.Ledger.Operators[op]; !ok {
			p.Ledger.Operators[op] = domain.OperatorTally{}
		}
	}
	if p.Ledger.History == nil {
		p.Ledger.History = []domain.RoundSummary{}
	}
	if len(p.Ledger.History) > domain.HistoryLimit {
		p.Ledger.History = p.Ledger.History[len(p.Ledger.History)-domain.HistoryLimit:]
	}

	byID := make(map[string]domain.AchievementRecord, len(p.Achievements))
	for _, rec := range p.Achievements {
		byID[rec.ID] = rec
	}
	records := make([]domain.AchievementRecord, 0, len(catalog))
	for _, def := range catalog {
		rec, ok := byID[def.ID]
		if !ok {
			rec = domain.AchievementRecord{ID: def.ID}
		}
		records = append(records, rec)
	}
	p.Achievements = records
	return p
}

// FoldRoundSummary incorporates one finished round into the ledger.
func FoldRoundSummary(l *domain.Ledger, s domain.RoundSummary) {
	first := l.GamesPlayed == 0

	l.GamesPlayed++
	l.CumulativeScore += s.FinalScore
	if s.FinalScore > l.BestScore {
		l.BestScore = s.FinalScore
	}
	l.CumulativeTimeSeconds += s.ElapsedSeconds
	if s.BestStreak > l.BestStreakEver {
		l.BestStreakEver = s.BestStreak
	}
	if first || s.ElapsedSeconds < l.FastestRoundSeconds {
		l.FastestRoundSeconds = s.ElapsedSeconds
	}

	wrong := s.QuestionsAnswered - s.PerfectAnswers
	if wrong < 0 {
		wrong = 0
	}
	l.CumulativeCorrect += s.PerfectAnswers
	l.CumulativeWrong += wrong
	if s.AccuracyPercent == 100 {
		l.PerfectGameCount++
	}

	l.History = append(l.History, s)
	if over := len(l.History) - domain.HistoryLimit; over > 0 {
		l.History = append([]domain.RoundSummary(nil), l.History[over:]...)
	}
	Recompute(l)
}

// Recompute refreshes the derived averages and accuracy.
func Recompute(l *domain.Ledger) {
	if l.GamesPlayed > 0 {
		l.AverageScore = float64(l.CumulativeScore) / float64(l.GamesPlayed)
		l.AverageTimeSeconds = float64(l.CumulativeTimeSeconds) / float64(l.GamesPlayed)
	} else {
		l.AverageScore = 0
		l.AverageTimeSeconds = 0
	}
	total := l.TotalAnswered()
	if total == 0 {
		l.AccuracyPercent = 0
		return
	}
	l.AccuracyPercent = int(math.Round(100 * float64(l.CumulativeCorrect) / float64(total)))
}

// FoldOperatorAnswer counts one judged answer against its operator. It is
// independent of FoldRoundSummary; call it exactly once per answer.
func FoldOperatorAnswer(l *domain.Ledger, op domain.Operator, correct bool) {
	if l.Operators == nil {
		l.Operators = make(map[domain.Operator]domain.OperatorTally, len(domain.Operators))
	}
	tally := l.Operators[op]
	tally.Total++
	if correct {
		tally.Correct++
	}
	l.Operators[op] = tally
}

// UpdateDailyStreak records a visit on today's calendar date. The streak
// starts at 1, grows by one on consecutive days and resets after a gap.
// Repeat visits on the same day change nothing. It reports whether the
// ledger changed.
func UpdateDailyStreak(l *domain.Ledger, today time.Time) bool {
	day := today.Format(dateLayout)
	if l.LastPlayedDate == day {
		return false
	}

	last, err := time.ParseInLocation(dateLayout, l.LastPlayedDate, today.Location())
	switch {
	case l.LastPlayedDate == "" || err != nil:
		l.DailyLoginStreak = 1
	default:
		current, _ := time.ParseInLocation(dateLayout, day, today.Location())
		switch daysBetween(last, current) {
		case 1:
			l.DailyLoginStreak++
		default:
			l.DailyLoginStreak = 1
		}
	}
	l.LastPlayedDate = day
	return true
}

// daysBetween counts calendar days, ignoring DST-shortened or lengthened days.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
