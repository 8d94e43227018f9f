package domain

import (
	"strconv"
	"time"
)

// HistoryLimit caps the number of round summaries kept in the ledger.
const HistoryLimit = 50

// ProgressVersion is stamped on persisted progress records. Records without it
// are treated as unreadable and replaced by defaults.
const ProgressVersion = 1

// OperatorTally counts answers for one operator.
type OperatorTally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Rate returns correct/total, or 0 when nothing was answered.
func (t OperatorTally) Rate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}

// Ledger is the lifetime statistics aggregate of a player.
type Ledger struct {
	GamesPlayed           int    `json:"gamesPlayed"`
	CumulativeScore       int    `json:"cumulativeScore"`
	BestScore             int    `json:"bestScore"`
	CumulativeTimeSeconds int    `json:"cumulativeTimeSeconds"`
	BestStreakEver        int    `json:"bestStreakEver"`
	CumulativeCorrect     int    `json:"cumulativeCorrect"`
	CumulativeWrong       int    `json:"cumulativeWrong"`
	PerfectGameCount      int    `json:"perfectGameCount"`
	FastestRoundSeconds   int    `json:"fastestRoundSeconds"` // meaningful only when GamesPlayed > 0
	DailyLoginStreak      int    `json:"dailyLoginStreak"`
	LastPlayedDate        string `json:"lastPlayedDate"` // YYYY-MM-DD, empty until the first visit

	AverageScore       float64 `json:"averageScore"`
	AverageTimeSeconds float64 `json:"averageTimeSeconds"`
	AccuracyPercent    int     `json:"accuracyPercent"`

	History   []RoundSummary             `json:"history"`
	Operators map[Operator]OperatorTally `json:"operators"`
}

// NewLedger returns an empty ledger with every operator tally present.
func NewLedger() Ledger {
	ops := make(map[Operator]OperatorTally, len(Operators))
	for _, op := range Operators {
		ops[op] = OperatorTally{}
	}
	return Ledger{History: []RoundSummary{}, Operators: ops}
}

// TotalAnswered is the number of judged answers across every folded round.
func (l Ledger) TotalAnswered() int {
	return l.CumulativeCorrect + l.CumulativeWrong
}

// Rarity tiers of achievements and personalization items.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RewardKind says what an achievement grants.
type RewardKind string

const (
	RewardPoints RewardKind = "points"
	RewardAvatar RewardKind = "avatar"
	RewardTheme  RewardKind = "theme"
	RewardTitle  RewardKind = "title"
)

// Reward is granted when an achievement unlocks. For item rewards Value is the
// item id; for points it is the decimal amount.
type Reward struct {
	Kind  RewardKind `json:"kind"`
	Value string     `json:"value"`
}

// Points returns the point value of a points reward.
func (r Reward) Points() int {
	if r.Kind != RewardPoints {
		return 0
	}
	n, err := strconv.Atoi(r.Value)
	if err != nil {
		return 0
	}
	return n
}

// Achievement is the serializable view of an achievement: its static
// definition merged with the player's unlock state.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Rarity      Rarity     `json:"rarity"`
	Reward      *Reward    `json:"reward,omitempty"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// AchievementRecord is the persisted unlock state of one achievement.
type AchievementRecord struct {
	ID         string     `json:"id"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// Progress is the persisted per-player record behind the ledger.
type Progress struct {
	Version        int                 `json:"version"`
	Ledger         Ledger              `json:"ledger"`
	Achievements   []AchievementRecord `json:"achievements"`
	UnlockedPoints int                 `json:"unlockedPoints"`
}

// Settings are the per-player game defaults.
type Settings struct {
	DurationSeconds int              `json:"durationSeconds"`
	Difficulty      Difficulty       `json:"difficulty"`
	Mode            PresentationMode `json:"mode"`
}

const (
	MinDurationSeconds = 10
	MaxDurationSeconds = 600
)

// DefaultSettings mirrors the stock game settings.
func DefaultSettings() Settings {
	return Settings{DurationSeconds: 30, Difficulty: DifficultyMedium, Mode: ModeMultipleChoice}
}

// Validate rejects out-of-range settings.
func (s Settings) Validate() error {
	if s.DurationSeconds < MinDurationSeconds || s.DurationSeconds > MaxDurationSeconds {
		return ErrInvalidSettings
	}
	if !s.Difficulty.Valid() {
		return ErrInvalidDifficulty
	}
	if !s.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// AudioSettings gate and scale the audio cues sent to a player.
type AudioSettings struct {
	SoundEnabled bool    `json:"soundEnabled"`
	MusicEnabled bool    `json:"musicEnabled"`
	SoundVolume  float64 `json:"soundVolume"`
	MusicVolume  float64 `json:"musicVolume"`
}

func DefaultAudioSettings() AudioSettings {
	return AudioSettings{SoundEnabled: true, MusicEnabled: true, SoundVolume: 0.5, MusicVolume: 0.2}
}

// Clamp forces both volumes into [0,1].
func (a AudioSettings) Clamp() AudioSettings {
	a.SoundVolume = clampUnit(a.SoundVolume)
	a.MusicVolume = clampUnit(a.MusicVolume)
	return a
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ItemKind distinguishes the personalization catalogs.
type ItemKind string

const (
	ItemAvatar ItemKind = "avatar"
	ItemTheme  ItemKind = "theme"
	ItemTitle  ItemKind = "title"
)

// Item is an avatar, theme or title a player can select once unlocked.
type Item struct {
	ID       string   `json:"id"`
	Kind     ItemKind `json:"kind"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon,omitempty"`
	Rarity   Rarity   `json:"rarity,omitempty"`
	Unlocked bool     `json:"unlocked"`
	Hint     string   `json:"hint,omitempty"`
}

// Personalization is the persisted cosmetic state of a player.
type Personalization struct {
	Version        int    `json:"version"`
	SelectedAvatar string `json:"selectedAvatar"`
	SelectedTheme  string `json:"selectedTheme"`
	SelectedTitle  string `json:"selectedTitle"`
	Items          []Item `json:"items"`
}

// Event is a message pushed to a player's subscribers.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// RoundResult is handed to the result screen when a round ends.
type RoundResult struct {
	Summary      RoundSummary  `json:"summary"`
	Achievements []Achievement `json:"achievements"`
	Ledger       Ledger        `json:"ledger"`
}
