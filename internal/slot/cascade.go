package slot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrCascadeNonTermination means a grid kept producing wins past the cascade cap.
// It indicates a game configuration that cannot settle and is never recoverable.
var ErrCascadeNonTermination = errors.New("cascade did not reach a stable grid")

// Mode selects base or free-spin tables
type Mode string

const (
	ModeBase Mode = "base"
	ModeFree Mode = "free"
)

// PayTable maps a symbol to its payout per matched cell, as a multiple of stake
type PayTable map[string]float64

// Win is one paid group of a cascade step
type Win struct {
	Symbol     string          `json:"symbol"`
	Positions  []int           `json:"positions"`
	Multiplier int             `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}

// CascadeStep records one detect, pay, remove and refill iteration
type CascadeStep struct {
	Index       int             `json:"index"`
	Wins        []Win           `json:"wins"`
	Consumed    []int           `json:"consumed,omitempty"`
	Removed     []int           `json:"removed"`
	Accumulated int             `json:"accumulated"`
	Payout      decimal.Decimal `json:"payout"`
	Grid        *Grid           `json:"grid"`
}

// Resolution is the outcome of running a grid to a stable state
type Resolution struct {
	Payout decimal.Decimal `json:"payout"`
	Steps  []CascadeStep   `json:"steps"`
	Final  *Grid           `json:"final"`
}

// Cascade runs the tumble loop with one detector and ledger
type Cascade struct {
	detector    Detector
	ledger      Ledger
	maxCascades int
}

// NewCascade returns a cascade loop capped at maxCascades paying iterations
func NewCascade(detector Detector, ledger Ledger, maxCascades int) *Cascade {
	return &Cascade{detector: detector, ledger: ledger, maxCascades: maxCascades}
}

// Ledger returns the multiplier ledger driven by the loop
func (c *Cascade) Ledger() Ledger {
	return c.ledger
}

// Resolve detects wins, pays them, removes winning and consumed cells and
// tumbles the grid until no group wins. The grid is mutated in place; refills
// come from gen.
func (c *Cascade) Resolve(src Source, grid *Grid, gen *Generator, pays PayTable, stake decimal.Decimal) (*Resolution, error) {
	res := &Resolution{Payout: decimal.Zero}

	for iter := 0; ; iter++ {
		groups := c.detector.Detect(grid)
		if len(groups) == 0 {
			break
		}
		if iter >= c.maxCascades {
			return nil, fmt.Errorf("%w: still winning after %d cascades", ErrCascadeNonTermination, iter)
		}

		factors, consumed := c.ledger.Scale(grid, groups)
		step := CascadeStep{Index: iter, Consumed: consumed, Payout: decimal.Zero}
		for i, group := range groups {
			payout := decimal.NewFromFloat(pays[group.Symbol]).
				Mul(stake).
				Mul(decimal.NewFromInt(int64(len(group.Positions)))).
				Mul(decimal.NewFromInt(int64(factors[i])))
			step.Wins = append(step.Wins, Win{
				Symbol:     group.Symbol,
				Positions:  group.Positions,
				Multiplier: factors[i],
				Payout:     payout,
			})
			step.Payout = step.Payout.Add(payout)
		}

		step.Removed = removalSet(groups, consumed)
		gen.tumble(src, grid, step.Removed)
		c.ledger.Cleared(step.Removed)

		step.Accumulated = c.ledger.Accumulated()
		step.Grid = grid.Clone()
		res.Steps = append(res.Steps, step)
		res.Payout = res.Payout.Add(step.Payout)
	}

	res.Final = grid.Clone()
	return res, nil
}

// removalSet unions winning positions with consumed tiles, sorted and unique
func removalSet(groups []WinGroup, consumed []int) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(pos int) {
		if !seen[pos] {
			seen[pos] = true
			out = append(out, pos)
		}
	}
	for _, g := range groups {
		for _, pos := range g.Positions {
			add(pos)
		}
	}
	for _, pos := range consumed {
		add(pos)
	}
	sort.Ints(out)
	return out
}
