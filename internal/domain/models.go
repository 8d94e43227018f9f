package domain

import (
	"fmt"
	"time"
)

// Operator is one of the four arithmetic operations a question can use.
type Operator string

const (
	OpAdd      Operator = "add"
	OpSubtract Operator = "subtract"
	OpMultiply Operator = "multiply"
	OpDivide   Operator = "divide"
)

// Operators lists every operator in display order.
var Operators = []Operator{OpAdd, OpSubtract, OpMultiply, OpDivide}

// Symbol returns the glyph shown to players.
func (o Operator) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "×"
	case OpDivide:
		return "÷"
	default:
		return "?"
	}
}

// Apply evaluates a op b. Division is integer division; callers guarantee exactness.
func (o Operator) Apply(a, b int) (int, error) {
	switch o {
	case OpAdd:
		return a + b, nil
	case OpSubtract:
		return a - b, nil
	case OpMultiply:
		return a * b, nil
	case OpDivide:
		if b == 0 {
			return 0, ErrInvalidQuestion
		}
		return a / b, nil
	default:
		return 0, ErrUnknownOperator
	}
}

// PresentationMode decides whether the player types the answer or picks one.
type PresentationMode string

const (
	ModeInput          PresentationMode = "input"
	ModeMultipleChoice PresentationMode = "multiple-choice"
)

func (m PresentationMode) Valid() bool {
	return m == ModeInput || m == ModeMultipleChoice
}

// Difficulty gates operand ranges and the operators a round may use.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// ChoiceCount is the number of options offered for multiple-choice questions.
const ChoiceCount = 4

// Question is immutable once presented.
type Question struct {
	ID       string           `json:"id"`
	First    int              `json:"first"`
	Second   int              `json:"second"`
	Operator Operator         `json:"operator"`
	Mode     PresentationMode `json:"mode"`
	Choices  []int            `json:"choices,omitempty"`
}

// Answer returns the correct result of the question.
func (q Question) Answer() int {
	v, _ := q.Operator.Apply(q.First, q.Second)
	return v
}

// Prompt renders the question the way players see it.
func (q Question) Prompt() string {
	return fmt.Sprintf("%d %s %d = ?", q.First, q.Operator.Symbol(), q.Second)
}

// Validate checks the generation invariants: exact division, non-negative
// subtraction and a well-formed choice set.
func (q Question) Validate() error {
	if q.First <= 0 || q.Second <= 0 {
		return fmt.Errorf("%w: zero or negative operand", ErrInvalidQuestion)
	}
	switch q.Operator {
	case OpDivide:
		if q.First%q.Second != 0 {
			return fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidQuestion, q.First, q.Second)
		}
	case OpSubtract:
		if q.First < q.Second {
			return fmt.Errorf("%w: negative difference", ErrInvalidQuestion)
		}
	case OpAdd, OpMultiply:
	default:
		return ErrUnknownOperator
	}
	if !q.Mode.Valid() {
		return ErrInvalidMode
	}
	if q.Mode == ModeInput {
		if len(q.Choices) != 0 {
			return fmt.Errorf("%w: choices on free-input question", ErrInvalidQuestion)
		}
		return nil
	}

	if len(q.Choices) != ChoiceCount {
		return fmt.Errorf("%w: expected %d choices, got %d", ErrInvalidQuestion, ChoiceCount, len(q.Choices))
	}
	answer := q.Answer()
	seen := make(map[int]struct{}, len(q.Choices))
	correct := 0
	for _, c := range q.Choices {
		if c < 0 {
			return fmt.Errorf("%w: negative choice", ErrInvalidQuestion)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate choice %d", ErrInvalidQuestion, c)
		}
		seen[c] = struct{}{}
		if c == answer {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("%w: correct answer missing from choices", ErrInvalidQuestion)
	}
	return nil
}

// MaxLives is the number of wrong answers a round tolerates.
const MaxLives = 3

// RoundState is owned by a single round and mutated only by answers and ticks.
type RoundState struct {
	Score             int  `json:"score"`
	Lives             int  `json:"lives"`
	Streak            int  `json:"streak"`
	TimeRemaining     int  `json:"timeRemaining"`
	QuestionsAnswered int  `json:"questionsAnswered"`
	CorrectAnswered   int  `json:"correctAnswered"`
	Active            bool `json:"active"`
	Paused            bool `json:"paused"`
}

// EndReason records why a round stopped.
type EndReason string

const (
	EndTimeExpired    EndReason = "timeExpired"
	EndLivesExhausted EndReason = "livesExhausted"
)

// RoundSummary is emitted exactly once per round.
type RoundSummary struct {
	RoundID           string           `json:"roundId"`
	PlayerID          string           `json:"playerId"`
	Difficulty        Difficulty       `json:"difficulty"`
	Mode              PresentationMode `json:"mode"`
	FinalScore        int              `json:"finalScore"`
	ElapsedSeconds    int              `json:"elapsedSeconds"`
	AccuracyPercent   int              `json:"accuracyPercent"`
	QuestionsAnswered int              `json:"questionsAnswered"`
	BestStreak        int              `json:"bestStreak"`
	PerfectAnswers    int              `json:"perfectAnswers"`
	EndReason         EndReason        `json:"endReason"`
	PlayedAt          time.Time        `json:"playedAt"`
}

// AnswerOutcome describes how a submission was judged.
type AnswerOutcome struct {
	QuestionID string     `json:"questionId"`
	Operator   Operator   `json:"operator"`
	Submitted  int        `json:"submitted"`
	Expected   int        `json:"expected"`
	Correct    bool       `json:"correct"`
	Awarded    int        `json:"awarded"`
	State      RoundState `json:"state"`
}

// RoundSnapshot is what clients receive when a round starts or reconnects.
type RoundSnapshot struct {
	RoundID  string           `json:"roundId"`
	Duration int              `json:"durationSeconds"`
	State    RoundState       `json:"state"`
	Question *Question        `json:"question,omitempty"`
	Mode     PresentationMode `json:"mode"`
}
