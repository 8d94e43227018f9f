package round

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"math-dash-service/internal/domain"

	"github.com/google/uuid"
)

type span struct{ min, max int }

func (s span) pick(rnd *rand.Rand) int {
	return s.min + rnd.Intn(s.max-s.min+1)
}

// ranges holds the operand ranges a difficulty allows. A missing operator is
// not offered at that difficulty.
type ranges struct {
	ops      []domain.Operator
	add      span
	subtract span // minuend; the subtrahend is drawn below it
	multiply span
	divide   span // divisor and quotient
}

var difficultyRanges = map[domain.Difficulty]ranges{
	domain.DifficultyEasy: {
		ops:      []domain.Operator{domain.OpAdd, domain.OpSubtract},
		add:      span{1, 10},
		subtract: span{2, 20},
	},
	domain.DifficultyMedium: {
		ops:      domain.Operators,
		add:      span{1, 50},
		subtract: span{20, 69},
		multiply: span{1, 12},
		divide:   span{1, 12},
	},
	domain.DifficultyHard: {
		ops:      domain.Operators,
		add:      span{10, 200},
		subtract: span{50, 250},
		multiply: span{2, 20},
		divide:   span{2, 20},
	},
	domain.DifficultyExpert: {
		ops:      domain.Operators,
		add:      span{100, 999},
		subtract: span{100, 999},
		multiply: span{5, 30},
		divide:   span{5, 30},
	},
}

// AllowedOperators returns the operators a difficulty draws from.
func AllowedOperators(d domain.Difficulty) []domain.Operator {
	r, ok := difficultyRanges[d]
	if !ok {
		return nil
	}
	return append([]domain.Operator(nil), r.ops...)
}

const (
	choiceSpread     = 10
	widenAfterMisses = 8
	maxGenerateTries = 32
)

// Generator produces random questions. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator seeds a generator from src; a nil source seeds from the clock.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(src)}
}

// Next draws a question for the difficulty. Generated questions are validated
// and regenerated until they hold every invariant.
func (g *Generator) Next(d domain.Difficulty, mode domain.PresentationMode) (domain.Question, error) {
	r, ok := difficultyRanges[d]
	if !ok {
		return domain.Question{}, domain.ErrInvalidDifficulty
	}
	if !mode.Valid() {
		return domain.Question{}, domain.ErrInvalidMode
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < maxGenerateTries; i++ {
		op := r.ops[g.rnd.Intn(len(r.ops))]
		a, b := g.operands(r, op)
		if a == 0 || b == 0 {
			continue
		}
		q, err := g.buildLocked(op, a, b, mode)
		if err != nil {
			continue
		}
		return q, nil
	}
	return g.buildLocked(domain.OpAdd, 1, 1, mode)
}

// Build assembles a question with fixed operands, applying the same
// normalisation as Next (subtraction swap, choice generation).
func (g *Generator) Build(op domain.Operator, a, b int, mode domain.PresentationMode) (domain.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buildLocked(op, a, b, mode)
}

func (g *Generator) buildLocked(op domain.Operator, a, b int, mode domain.PresentationMode) (domain.Question, error) {
	if op == domain.OpSubtract && b > a {
		a, b = b, a
	}
	q := domain.Question{
		ID:       uuid.NewString(),
		First:    a,
		Second:   b,
		Operator: op,
		Mode:     mode,
	}
	if mode == domain.ModeMultipleChoice {
		q.Choices = g.choices(q.Answer())
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, fmt.Errorf("build %s: %w", q.Prompt(), err)
	}
	return q, nil
}

func (g *Generator) operands(r ranges, op domain.Operator) (int, int) {
	switch op {
	case domain.OpAdd:
		return r.add.pick(g.rnd), r.add.pick(g.rnd)
	case domain.OpSubtract:
		a := r.subtract.pick(g.rnd)
		return a, g.rnd.Intn(a)
	case domain.OpMultiply:
		return r.multiply.pick(g.rnd), r.multiply.pick(g.rnd)
	case domain.OpDivide:
		divisor := r.divide.pick(g.rnd)
		quotient := r.divide.pick(g.rnd)
		return divisor * quotient, divisor
	}
	return 0, 0
}

// choices returns ChoiceCount unique non-negative values including answer, in
// random order. Distractors sit within ±choiceSpread of the answer; the window
// doubles whenever candidates keep colliding.
func (g *Generator) choices(answer int) []int {
	set := []int{answer}
	seen := map[int]struct{}{answer: {}}
	spread := choiceSpread
	misses := 0
	for len(set) < domain.ChoiceCount {
		candidate := answer + g.rnd.Intn(2*spread+1) - spread
		if _, dup := seen[candidate]; dup || candidate < 0 {
			misses++
			if misses >= widenAfterMisses {
				spread *= 2
				misses = 0
			}
			continue
		}
		seen[candidate] = struct{}{}
		set = append(set, candidate)
	}
	g.rnd.Shuffle(len(set), func(i, j int) { set[i], set[j] = set[j], set[i] })
	return set
}
