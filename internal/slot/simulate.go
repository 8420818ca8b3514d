package slot

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidStake       = errors.New("stake must be positive")
	ErrConflictingOptions = errors.New("ante bet cannot be combined with a bonus buy")
)

// Entry is how a round was paid for
type Entry string

const (
	EntryBase Entry = "base"
	EntryAnte Entry = "ante"
	EntryBuy  Entry = "buy"
)

// Options are the per-round player choices
type Options struct {
	Ante bool `json:"ante"`
	Buy  bool `json:"buy"`
}

// Entry returns the entry mode selected by the options
func (o Options) Entry() Entry {
	switch {
	case o.Buy:
		return EntryBuy
	case o.Ante:
		return EntryAnte
	default:
		return EntryBase
	}
}

// OptionsFor maps an entry mode back to options
func OptionsFor(e Entry) Options {
	return Options{Ante: e == EntryAnte, Buy: e == EntryBuy}
}

// Spin is the trace of one base or free spin
type Spin struct {
	Index          int             `json:"index"`
	Mode           Mode            `json:"mode"`
	Initial        *Grid           `json:"initial"`
	Forced         []int           `json:"forced,omitempty"`
	Steps          []CascadeStep   `json:"steps"`
	Final          *Grid           `json:"final"`
	Payout         decimal.Decimal `json:"payout"`
	Scatters       int             `json:"scatters"`
	Awarded        int             `json:"awarded"`
	SpinsRemaining int             `json:"spins_remaining"`
	Accumulated    int             `json:"accumulated"`
}

// RoundTrace is the full step-by-step outcome of a round. Payout is capped
// but not yet rounded; settlement normalises it.
type RoundTrace struct {
	GameID         string          `json:"game_id"`
	Entry          Entry           `json:"entry"`
	Stake          decimal.Decimal `json:"stake"`
	Cost           decimal.Decimal `json:"cost"`
	Spins          []Spin          `json:"spins"`
	Transitions    []Transition    `json:"transitions"`
	Payout         decimal.Decimal `json:"payout"`
	Capped         bool            `json:"capped"`
	TriggeredBonus bool            `json:"triggered_bonus"`
	FreeSpins      int             `json:"free_spins"`
	Cascades       int             `json:"cascades"`
}

// Cost returns what a round costs the player for the given stake and options
func (g *Game) Cost(stake decimal.Decimal, opts Options) decimal.Decimal {
	switch opts.Entry() {
	case EntryBuy:
		return stake.Mul(decimal.NewFromFloat(g.def.BuyCost))
	case EntryAnte:
		return stake.Mul(decimal.NewFromFloat(g.def.AnteCost))
	default:
		return stake
	}
}

// Simulate plays a whole round, the base spin and any free-spin sequence,
// from src. It has no side effects and the result depends only on src.
func (g *Game) Simulate(src Source, stake decimal.Decimal, opts Options) (*RoundTrace, error) {
	if !stake.IsPositive() {
		return nil, ErrInvalidStake
	}
	if opts.Ante && opts.Buy {
		return nil, ErrConflictingOptions
	}

	cascade := g.newCascade()
	ledger := cascade.Ledger()
	baseGen, freeGen := g.tables(opts.Ante)
	machine := NewBonusMachine(g.def.FreeSpins)

	trace := &RoundTrace{
		GameID: g.def.ID,
		Entry:  opts.Entry(),
		Stake:  stake,
		Cost:   g.Cost(stake, opts),
	}

	if err := machine.Start(); err != nil {
		return nil, err
	}
	forced := 0
	if opts.Buy {
		forced = g.def.ForcedScatters
	}
	spin, err := g.spin(src, cascade, baseGen, g.def.BasePays, stake, ModeBase, forced)
	if err != nil {
		return nil, err
	}
	awarded, err := machine.EndBaseSpin(spin.Scatters, spin.Payout)
	if err != nil {
		return nil, err
	}
	spin.Awarded = awarded
	spin.SpinsRemaining = machine.State().SpinsRemaining
	trace.Spins = append(trace.Spins, *spin)

	if awarded > 0 {
		trace.TriggeredBonus = true
		ledger.BeginSequence()
	} else if opts.Buy {
		return nil, fmt.Errorf("bonus buy on %s did not enter free spins", g.def.ID)
	}

	for !machine.Done() {
		if err := machine.BeginFreeSpin(); err != nil {
			return nil, err
		}
		spin, err := g.spin(src, cascade, freeGen, g.def.FreePays, stake, ModeFree, 0)
		if err != nil {
			return nil, err
		}
		spin.Index = machine.State().Played
		added, err := machine.EndFreeSpin(spin.Scatters, spin.Payout, ledger.Accumulated())
		if err != nil {
			return nil, err
		}
		spin.Awarded = added
		spin.SpinsRemaining = machine.State().SpinsRemaining
		trace.Spins = append(trace.Spins, *spin)
	}

	final := machine.Settle()
	trace.Transitions = machine.Transitions()
	trace.FreeSpins = final.Played
	for _, s := range trace.Spins {
		trace.Cascades += len(s.Steps)
	}

	trace.Payout = final.PendingPayout
	if limit := stake.Mul(decimal.NewFromFloat(g.def.MaxWin)); trace.Payout.GreaterThan(limit) {
		trace.Payout = limit
		trace.Capped = true
	}
	return trace, nil
}

// spin generates a grid and runs it to a stable state
func (g *Game) spin(src Source, cascade *Cascade, gen *Generator, pays PayTable, stake decimal.Decimal, mode Mode, forced int) (*Spin, error) {
	cascade.Ledger().BeginSpin(mode)
	grid, positions := gen.Generate(src, forced)
	initial := grid.Clone()

	res, err := cascade.Resolve(src, grid, gen, pays, stake)
	if err != nil {
		return nil, fmt.Errorf("%s %s spin: %w", g.def.ID, mode, err)
	}
	return &Spin{
		Mode:        mode,
		Initial:     initial,
		Forced:      positions,
		Steps:       res.Steps,
		Final:       res.Final,
		Payout:      res.Payout,
		Scatters:    res.Final.Scatters(),
		Accumulated: cascade.Ledger().Accumulated(),
	}, nil
}
