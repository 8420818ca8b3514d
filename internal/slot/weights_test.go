package slot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPick(t *testing.T) {
	t.Run("FirstOfTenZeroZero", func(t *testing.T) {
		src := rand.New(rand.NewSource(7))
		for i := 0; i < 1000; i++ {
			if got := Pick(src, []float64{10, 0, 0}); got != 0 {
				t.Fatalf("Expected index 0, got %d on draw %d", got, i)
			}
		}
	})

	t.Run("AllZeroFallsBackToFirst", func(t *testing.T) {
		assert.Equal(t, 0, Pick(constSource(0.5), []float64{0, 0, 0}))
		assert.Equal(t, 0, Pick(constSource(0.5), nil))
	})

	t.Run("ZeroWeightNeverSelected", func(t *testing.T) {
		assert.Equal(t, 1, Pick(constSource(0), []float64{0, 10}))
		assert.Equal(t, 1, Pick(constSource(0), []float64{-5, 3}))
	})

	t.Run("SubtractsInOrder", func(t *testing.T) {
		weights := []float64{1, 2, 3}
		assert.Equal(t, 0, Pick(constSource(0.1), weights))
		assert.Equal(t, 1, Pick(constSource(0.4), weights))
		assert.Equal(t, 2, Pick(constSource(0.9), weights))
	})

	t.Run("DriftFallsBackToLastPositive", func(t *testing.T) {
		// a draw of 1 is outside [0,1) and exhausts the table
		assert.Equal(t, 1, Pick(constSource(1.0000001), []float64{1, 2, 0}))
	})

	t.Run("Distribution", func(t *testing.T) {
		src := rand.New(rand.NewSource(42))
		counts := make([]int, 2)
		for i := 0; i < 20000; i++ {
			counts[Pick(src, []float64{1, 3})]++
		}
		ratio := float64(counts[1]) / float64(counts[0])
		assert.InDelta(t, 3.0, ratio, 0.3)
	})
}

func TestWeightTableDraw(t *testing.T) {
	t.Run("ScatterOnly", func(t *testing.T) {
		table := WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 0}}, Scatter: 1}
		assert.Equal(t, ScatterCell(), table.Draw(constSource(0.3)))
	})

	t.Run("MultiplierValueFromPool", func(t *testing.T) {
		table := WeightTable{
			Symbols:    []SymbolWeight{{Symbol: "A", Weight: 0}},
			Multiplier: 1,
			Values:     []ValueWeight{{Value: 2, Weight: 0}, {Value: 25, Weight: 1}},
		}
		assert.Equal(t, MultiplierCell(25), table.Draw(constSource(0.3)))
	})

	t.Run("SymbolInTableOrder", func(t *testing.T) {
		table := WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}, {Symbol: "B", Weight: 1}}}
		assert.Equal(t, SymbolCell("A"), table.Draw(constSource(0.2)))
		assert.Equal(t, SymbolCell("B"), table.Draw(constSource(0.7)))
	})
}

func TestWeightTableBoosted(t *testing.T) {
	table := WeightTable{
		Symbols:    []SymbolWeight{{Symbol: "A", Weight: 5}},
		Scatter:    1.5,
		Multiplier: 0.5,
		Values:     []ValueWeight{{Value: 2, Weight: 1}},
	}
	boosted := table.Boosted(2)

	assert.Equal(t, 3.0, boosted.Scatter)
	assert.Equal(t, 1.0, boosted.Multiplier)
	assert.Equal(t, 5.0, boosted.Symbols[0].Weight)
	assert.Equal(t, 1.5, table.Scatter, "original table must not change")
}

func TestWeightTableValidate(t *testing.T) {
	tests := []struct {
		name  string
		table WeightTable
		ok    bool
	}{
		{"Valid", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}}}, true},
		{"NoSymbols", WeightTable{Scatter: 1}, false},
		{"Duplicate", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}, {Symbol: "A", Weight: 2}}}, false},
		{"Negative", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: -1}}}, false},
		{"NaNWeight", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: math.NaN()}}}, false},
		{"InfiniteWeight", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: math.Inf(1)}}}, false},
		{"InfiniteScatter", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}}, Scatter: math.Inf(1)}, false},
		{"NaNMultiplier", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}}, Multiplier: math.NaN()}, false},
		{"NaNValueWeight", WeightTable{
			Symbols:    []SymbolWeight{{Symbol: "A", Weight: 1}},
			Multiplier: 1,
			Values:     []ValueWeight{{Value: 2, Weight: math.NaN()}},
		}, false},
		{"TilesWithoutValues", WeightTable{Symbols: []SymbolWeight{{Symbol: "A", Weight: 1}}, Multiplier: 1}, false},
		{"ZeroValue", WeightTable{
			Symbols:    []SymbolWeight{{Symbol: "A", Weight: 1}},
			Multiplier: 1,
			Values:     []ValueWeight{{Value: 0, Weight: 1}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
