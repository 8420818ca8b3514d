package slot

import (
	"fmt"
)

// Definition is the static configuration of one cascading game
type Definition struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Rows     int      `yaml:"rows" json:"rows"`
	Cols     int      `yaml:"cols" json:"cols"`
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	MinMatch int      `yaml:"min_match" json:"min_match"`

	Multipliers MultiplierPolicy `yaml:"multipliers" json:"multipliers"`
	StageCap    int              `yaml:"stage_cap" json:"stage_cap,omitempty"`

	BaseWeights WeightTable `yaml:"base_weights" json:"base_weights"`
	FreeWeights WeightTable `yaml:"free_weights" json:"free_weights"`
	BasePays    PayTable    `yaml:"base_pays" json:"base_pays"`
	FreePays    PayTable    `yaml:"free_pays" json:"free_pays"`
	FreeSpins   BonusRules  `yaml:"free_spins" json:"free_spins"`

	// AnteCost is the spin cost as a multiple of stake with the ante bet on
	AnteCost float64 `yaml:"ante_cost" json:"ante_cost"`
	// AnteBoost scales scatter and multiplier weights with the ante bet on
	AnteBoost      float64 `yaml:"ante_boost" json:"ante_boost"`
	BuyCost        float64 `yaml:"buy_cost" json:"buy_cost"`
	ForcedScatters int     `yaml:"forced_scatters" json:"forced_scatters"`
	MaxCascades    int     `yaml:"max_cascades" json:"max_cascades"`
	// MaxWin caps the round payout as a multiple of stake
	MaxWin float64 `yaml:"max_win" json:"max_win"`

	MinStake float64 `yaml:"min_stake" json:"min_stake"`
	MaxStake float64 `yaml:"max_stake" json:"max_stake"`
}

// Validate rejects configurations the engine cannot run
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("game has no id")
	}
	if d.Rows < 1 || d.Cols < 1 {
		return fmt.Errorf("game %s: grid %dx%d is empty", d.ID, d.Rows, d.Cols)
	}
	if _, err := NewDetector(d.Strategy, d.MinMatch); err != nil {
		return fmt.Errorf("game %s: %w", d.ID, err)
	}
	if _, err := NewLedger(d.Multipliers, d.Rows*d.Cols, d.StageCap); err != nil {
		return fmt.Errorf("game %s: %w", d.ID, err)
	}
	for name, table := range map[string]WeightTable{"base": d.BaseWeights, "free": d.FreeWeights} {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("game %s: %s weights: %w", d.ID, name, err)
		}
		if d.Multipliers == PolicyStaged && table.Multiplier > 0 {
			return fmt.Errorf("game %s: staged multipliers take no tile cells", d.ID)
		}
		pays := d.BasePays
		if name == "free" {
			pays = d.FreePays
		}
		for symbol, p := range pays {
			if !finite(p) || p < 0 {
				return fmt.Errorf("game %s: %s pay for symbol %q is %v", d.ID, name, symbol, p)
			}
		}
		for _, s := range table.Symbols {
			p, ok := pays[s.Symbol]
			if !ok {
				return fmt.Errorf("game %s: %s pay missing for symbol %q", d.ID, name, s.Symbol)
			}
			// a symbol that can land must pay when it wins
			if s.Weight > 0 && p <= 0 {
				return fmt.Errorf("game %s: %s pay for symbol %q must be positive", d.ID, name, s.Symbol)
			}
		}
	}
	if err := d.FreeSpins.Validate(); err != nil {
		return fmt.Errorf("game %s: %w", d.ID, err)
	}
	if d.ForcedScatters < d.FreeSpins.TriggerScatters || d.ForcedScatters > d.Rows*d.Cols {
		return fmt.Errorf("game %s: %d forced scatters cannot trigger free spins", d.ID, d.ForcedScatters)
	}
	for field, v := range map[string]float64{
		"ante_cost":  d.AnteCost,
		"ante_boost": d.AnteBoost,
		"buy_cost":   d.BuyCost,
		"max_win":    d.MaxWin,
		"min_stake":  d.MinStake,
		"max_stake":  d.MaxStake,
	} {
		if !finite(v) {
			return fmt.Errorf("game %s: %s must be a finite number", d.ID, field)
		}
	}
	if d.AnteCost < 1 || d.AnteBoost < 1 || d.BuyCost < 1 {
		return fmt.Errorf("game %s: ante and buy multiples must be at least 1", d.ID)
	}
	if d.MaxCascades < 1 {
		return fmt.Errorf("game %s: cascade cap must be positive", d.ID)
	}
	if d.MaxWin <= 0 {
		return fmt.Errorf("game %s: max win must be positive", d.ID)
	}
	if d.MinStake <= 0 || d.MaxStake < d.MinStake {
		return fmt.Errorf("game %s: invalid stake range %.2f-%.2f", d.ID, d.MinStake, d.MaxStake)
	}
	return nil
}

// Game is a validated definition ready to simulate rounds
type Game struct {
	def Definition
}

// NewGame validates def
func NewGame(def Definition) (*Game, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Game{def: def}, nil
}

// MustGame is NewGame for built-in definitions
func MustGame(def Definition) *Game {
	g, err := NewGame(def)
	if err != nil {
		panic(err)
	}
	return g
}

// ID returns the game id
func (g *Game) ID() string {
	return g.def.ID
}

// Definition returns a copy of the configuration
func (g *Game) Definition() Definition {
	return g.def
}

// newCascade builds a fresh detector and ledger for one round
func (g *Game) newCascade() *Cascade {
	detector, _ := NewDetector(g.def.Strategy, g.def.MinMatch)
	ledger, _ := NewLedger(g.def.Multipliers, g.def.Rows*g.def.Cols, g.def.StageCap)
	return NewCascade(detector, ledger, g.def.MaxCascades)
}

// tables returns the base table (ante-boosted if requested) and the free-spin table
func (g *Game) tables(ante bool) (*Generator, *Generator) {
	base := g.def.BaseWeights
	if ante {
		base = base.Boosted(g.def.AnteBoost)
	}
	return NewGenerator(base, g.def.Rows, g.def.Cols),
		NewGenerator(g.def.FreeWeights, g.def.Rows, g.def.Cols)
}
