package progress

import (
	"time"

	"math-dash-service/internal/domain"
)

// Definition is the static, serializable part of an achievement. Its unlock
// rule lives in the rules registry under the same id.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Rarity      domain.Rarity
	Reward      *domain.Reward
}

// Rule decides from a ledger snapshot whether an achievement is earned.
type Rule func(l domain.Ledger) bool

func reward(kind domain.RewardKind, value string) *domain.Reward {
	return &domain.Reward{Kind: kind, Value: value}
}

// catalog is evaluated in declaration order.
var catalog = []Definition{
	{ID: "first_game", Name: "First Steps", Description: "Finish your first game", Icon: "🎮", Rarity: domain.RarityCommon, Reward: reward(domain.RewardPoints, "50")},
	{ID: "hundred_club", Name: "Hundred Club", Description: "Score 100 points in a single game", Icon: "💯", Rarity: domain.RarityCommon, Reward: reward(domain.RewardPoints, "100")},
	{ID: "speed_demon", Name: "Speed Demon", Description: "Average under 3 seconds per answer over at least 20 answers", Icon: "⚡", Rarity: domain.RarityRare, Reward: reward(domain.RewardAvatar, "lightning")},
	{ID: "math_master", Name: "Math Master", Description: "Score 200 points in a single game", Icon: "🧠", Rarity: domain.RarityEpic, Reward: reward(domain.RewardTheme, "master")},
	{ID: "combo_king", Name: "Combo King", Description: "Answer 20 in a row correctly", Icon: "🔥", Rarity: domain.RarityRare, Reward: reward(domain.RewardAvatar, "fire")},
	{ID: "perfectionist", Name: "Perfectionist", Description: "Finish a game with 100% accuracy", Icon: "💎", Rarity: domain.RarityEpic, Reward: reward(domain.RewardTheme, "diamond")},
	{ID: "marathon_runner", Name: "Marathon Runner", Description: "Play for more than 60 minutes in total", Icon: "🏃", Rarity: domain.RarityRare, Reward: reward(domain.RewardTitle, "persistent")},
	{ID: "streak_master", Name: "Streak Master", Description: "Answer 50 in a row correctly", Icon: "🌟", Rarity: domain.RarityLegendary, Reward: reward(domain.RewardTheme, "golden")},
	{ID: "accuracy_ace", Name: "Accuracy Ace", Description: "Reach 95% overall accuracy", Icon: "🎯", Rarity: domain.RarityEpic, Reward: reward(domain.RewardAvatar, "target")},
	{ID: "daily_dedication", Name: "Daily Dedication", Description: "Play 7 days in a row", Icon: "📅", Rarity: domain.RarityRare, Reward: reward(domain.RewardTitle, "persister")},
	{ID: "addition_expert", Name: "Addition Expert", Description: "Reach 98% accuracy on addition", Icon: "➕", Rarity: domain.RarityRare, Reward: reward(domain.RewardAvatar, "plus")},
	{ID: "multiplication_master", Name: "Multiplication Master", Description: "Reach 95% accuracy on multiplication", Icon: "✖️", Rarity: domain.RarityEpic, Reward: reward(domain.RewardTheme, "multiplication")},
	{ID: "century_scorer", Name: "Century Scorer", Description: "Score 10000 points in total", Icon: "🏆", Rarity: domain.RarityLegendary, Reward: reward(domain.RewardTitle, "legendary_player")},
	{ID: "speed_racer", Name: "Speed Racer", Description: "Finish a game in 30 seconds or less", Icon: "🏎️", Rarity: domain.RarityEpic, Reward: reward(domain.RewardAvatar, "racer")},
	{ID: "hundred_games", Name: "Veteran", Description: "Finish 100 games", Icon: "🎖️", Rarity: domain.RarityLegendary, Reward: reward(domain.RewardTheme, "veteran")},
}

var rules = map[string]Rule{
	"first_game":   func(l domain.Ledger) bool { return l.GamesPlayed >= 1 },
	"hundred_club": func(l domain.Ledger) bool { return l.BestScore >= 100 },
	"speed_demon": func(l domain.Ledger) bool {
		answered := l.TotalAnswered()
		return answered >= 20 && float64(l.CumulativeTimeSeconds)/float64(answered) <= 3
	},
	"math_master":      func(l domain.Ledger) bool { return l.BestScore >= 200 },
	"combo_king":       func(l domain.Ledger) bool { return l.BestStreakEver >= 20 },
	"perfectionist":    func(l domain.Ledger) bool { return l.PerfectGameCount >= 1 },
	"marathon_runner":  func(l domain.Ledger) bool { return l.CumulativeTimeSeconds >= 3600 },
	"streak_master":    func(l domain.Ledger) bool { return l.BestStreakEver >= 50 },
	"accuracy_ace":     func(l domain.Ledger) bool { return l.TotalAnswered() > 0 && l.AccuracyPercent >= 95 },
	"daily_dedication": func(l domain.Ledger) bool { return l.DailyLoginStreak >= 7 },
	"addition_expert": func(l domain.Ledger) bool {
		t := l.Operators[domain.OpAdd]
		return t.Total > 0 && t.Rate() >= 0.98
	},
	"multiplication_master": func(l domain.Ledger) bool {
		t := l.Operators[domain.OpMultiply]
		return t.Total > 0 && t.Rate() >= 0.95
	},
	"century_scorer": func(l domain.Ledger) bool { return l.CumulativeScore >= 10000 },
	"speed_racer": func(l domain.Ledger) bool {
		return l.GamesPlayed > 0 && l.FastestRoundSeconds > 0 && l.FastestRoundSeconds <= 30
	},
	"hundred_games": func(l domain.Ledger) bool { return l.GamesPlayed >= 100 },
}

// Catalog returns the achievement definitions in declaration order.
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

// Evaluate runs the rule of every still-locked achievement against the
// ledger. Newly satisfied achievements are unlocked at now, their points
// rewards are credited, and they are returned in catalog order. Unlocked
// achievements are never evaluated again, so a second call without new
// progress returns nothing.
func Evaluate(p *domain.Progress, now time.Time) []domain.Achievement {
	*p = Normalize(*p)
	var unlocked []domain.Achievement
	for i, def := range catalog {
		rec := &p.Achievements[i]
		if rec.Unlocked {
			continue
		}
		rule, ok := rules[def.ID]
		if !ok || !rule(p.Ledger) {
			continue
		}
		at := now
		rec.Unlocked = true
		rec.UnlockedAt = &at
		if def.Reward != nil {
			p.UnlockedPoints += def.Reward.Points()
		}
		unlocked = append(unlocked, view(def, *rec))
	}
	return unlocked
}

// Achievements merges the catalog with the player's unlock records.
func Achievements(p domain.Progress) []domain.Achievement {
	p = Normalize(p)
	out := make([]domain.Achievement, 0, len(catalog))
	for i, def := range catalog {
		out = append(out, view(def, p.Achievements[i]))
	}
	return out
}

func view(def Definition, rec domain.AchievementRecord) domain.Achievement {
	a := domain.Achievement{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Icon:        def.Icon,
		Rarity:      def.Rarity,
		Unlocked:    rec.Unlocked,
		UnlockedAt:  rec.UnlockedAt,
	}
	if def.Reward != nil {
		r := *def.Reward
		a.Reward = &r
	}
	return a
}
