package slot

import "fmt"

// MultiplierPolicy names how multiplier tiles scale cascade payouts
type MultiplierPolicy string

const (
	// PolicyAdditive collects tile values into a stored multiplier
	PolicyAdditive MultiplierPolicy = "additive"
	// PolicyStaged upgrades a hidden per-position stage each time the position clears
	PolicyStaged MultiplierPolicy = "staged"
)

// maxStageShift keeps 1<<(stage-1) inside an int
const maxStageShift = 30

// Ledger tracks multiplier state across the cascades of a spin and, for the
// additive policy, across a free-spin sequence.
type Ledger interface {
	// BeginSequence resets the persistent baseline when a free-spin sequence starts
	BeginSequence()
	// BeginSpin runs before the first cascade of every spin
	BeginSpin(mode Mode)
	// Scale returns one multiplier per winning group and the multiplier-tile
	// positions consumed by this iteration
	Scale(g *Grid, groups []WinGroup) (factors []int, consumed []int)
	// Cleared records the positions removed by this iteration
	Cleared(removed []int)
	// Accumulated returns the multiplier currently held by the ledger
	Accumulated() int
}

// NewLedger returns the ledger for policy over a grid of size positions
func NewLedger(policy MultiplierPolicy, size, stageCap int) (Ledger, error) {
	switch policy {
	case PolicyAdditive:
		return &Additive{}, nil
	case PolicyStaged:
		return NewStaged(size, stageCap), nil
	default:
		return nil, fmt.Errorf("unknown multiplier policy %q", policy)
	}
}

// Additive sums every tile on the grid when a cascade wins, removes the tiles
// and scales the cascade by max(stored, 1). Stored resets each base spin and
// persists across a free-spin sequence.
type Additive struct {
	stored int
}

// BeginSequence implements Ledger
func (a *Additive) BeginSequence() {
	a.stored = 0
}

// BeginSpin implements Ledger
func (a *Additive) BeginSpin(mode Mode) {
	if mode == ModeBase {
		a.stored = 0
	}
}

// Scale implements Ledger
func (a *Additive) Scale(g *Grid, groups []WinGroup) ([]int, []int) {
	var consumed []int
	for i, c := range g.Cells {
		if c.Kind == KindMultiplier {
			a.stored += c.Value
			consumed = append(consumed, i)
		}
	}

	factor := a.stored
	if factor < 1 {
		factor = 1
	}
	factors := make([]int, len(groups))
	for i := range factors {
		factors[i] = factor
	}
	return factors, consumed
}

// Cleared implements Ledger
func (a *Additive) Cleared([]int) {}

// Accumulated implements Ledger
func (a *Additive) Accumulated() int {
	return a.stored
}

// Staged keeps a stage counter per position. A position's effective multiplier
// is 0 below stage 2 and 2^(stage-1) from stage 2, capped at Cap when Cap > 0.
type Staged struct {
	stages []int
	cap    int
}

// NewStaged returns a staged ledger for size positions
func NewStaged(size, stageCap int) *Staged {
	return &Staged{stages: make([]int, size), cap: stageCap}
}

// Effective returns the multiplier of a position at stage
func (s *Staged) Effective(stage int) int {
	if stage < 2 {
		return 0
	}
	shift := stage - 1
	if shift > maxStageShift {
		shift = maxStageShift
	}
	m := 1 << shift
	if s.cap > 0 && m > s.cap {
		m = s.cap
	}
	return m
}

// BeginSequence implements Ledger
func (s *Staged) BeginSequence() {}

// BeginSpin implements Ledger
func (s *Staged) BeginSpin(Mode) {
	for i := range s.stages {
		s.stages[i] = 0
	}
}

// Scale implements Ledger. A group is scaled by the sum of the effective
// multipliers inside its footprint, or 1 when there are none.
func (s *Staged) Scale(_ *Grid, groups []WinGroup) ([]int, []int) {
	factors := make([]int, len(groups))
	for i, group := range groups {
		sum := 0
		for _, pos := range group.Positions {
			sum += s.Effective(s.stages[pos])
		}
		if sum == 0 {
			sum = 1
		}
		factors[i] = sum
	}
	return factors, nil
}

// Cleared implements Ledger
func (s *Staged) Cleared(removed []int) {
	for _, pos := range removed {
		if s.stages[pos] <= maxStageShift {
			s.stages[pos]++
		}
	}
}

// Accumulated implements Ledger. It is the sum of effective multipliers on the board.
func (s *Staged) Accumulated() int {
	sum := 0
	for _, stage := range s.stages {
		sum += s.Effective(stage)
	}
	return sum
}

// Stages returns a copy of the per-position counters
func (s *Staged) Stages() []int {
	return append([]int(nil), s.stages...)
}
