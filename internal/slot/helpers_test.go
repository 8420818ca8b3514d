package slot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scripted replays a fixed list of draws, cycling when exhausted
type scripted struct {
	vals []float64
	i    int
}

func (s *scripted) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

// scatterOnly refills every emptied slot with a scatter, which never wins
func scatterOnly(rows, cols int) *Generator {
	return NewGenerator(WeightTable{Symbols: []SymbolWeight{{Symbol: "z", Weight: 0}}, Scatter: 1}, rows, cols)
}

func mustGrid(t *testing.T, rows ...string) *Grid {
	t.Helper()
	g, err := ParseGrid(rows...)
	require.NoError(t, err)
	return g
}

// testDefinition is a small valid game used to exercise edge cases
func testDefinition() Definition {
	return Definition{
		ID:          "test-connect",
		Name:        "Test Connect",
		Rows:        5,
		Cols:        6,
		Strategy:    StrategyConnect,
		MinMatch:    8,
		Multipliers: PolicyAdditive,
		BaseWeights: WeightTable{
			Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}},
			Scatter: 1,
		},
		FreeWeights: WeightTable{
			Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}},
			Scatter: 1,
		},
		BasePays: PayTable{"A": 1},
		FreePays: PayTable{"A": 1},
		FreeSpins: BonusRules{
			TriggerScatters:   3,
			Award:             10,
			AwardPerExtra:     2,
			RetriggerAward:    5,
			RetriggerPerExtra: 1,
			MaxSpins:          20,
		},
		AnteCost:       1.5,
		AnteBoost:      2,
		BuyCost:        100,
		ForcedScatters: 3,
		MaxCascades:    100,
		MaxWin:         1,
		MinStake:       0.1,
		MaxStake:       100,
	}
}
