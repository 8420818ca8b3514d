package slot

import (
	"fmt"
	"math"
)

// Source supplies uniform draws in [0,1)
type Source interface {
	Float64() float64
}

// SymbolWeight is the spawn weight of one paying symbol
type SymbolWeight struct {
	Symbol string  `yaml:"symbol" json:"symbol"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// ValueWeight is the weight of one multiplier tile value
type ValueWeight struct {
	Value  int     `yaml:"value" json:"value"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// WeightTable drives cell generation. Symbols are sampled in table order,
// followed by the scatter entry and the multiplier-tile entry.
type WeightTable struct {
	Symbols    []SymbolWeight `yaml:"symbols" json:"symbols"`
	Scatter    float64        `yaml:"scatter" json:"scatter"`
	Multiplier float64        `yaml:"multiplier" json:"multiplier"`
	Values     []ValueWeight  `yaml:"values" json:"values"`
}

// Boosted returns a copy with scatter and multiplier-tile weights scaled by factor
func (t WeightTable) Boosted(factor float64) WeightTable {
	out := WeightTable{
		Symbols:    append([]SymbolWeight(nil), t.Symbols...),
		Scatter:    t.Scatter * factor,
		Multiplier: t.Multiplier * factor,
		Values:     append([]ValueWeight(nil), t.Values...),
	}
	return out
}

// Validate checks the table can produce cells
func (t WeightTable) Validate() error {
	if len(t.Symbols) == 0 {
		return fmt.Errorf("weight table has no symbols")
	}
	seen := make(map[string]bool, len(t.Symbols))
	for _, s := range t.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("weight table has an unnamed symbol")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("symbol %q listed twice", s.Symbol)
		}
		seen[s.Symbol] = true
		if !finite(s.Weight) || s.Weight < 0 {
			return fmt.Errorf("symbol %q has invalid weight %v", s.Symbol, s.Weight)
		}
	}
	if !finite(t.Scatter) || !finite(t.Multiplier) || t.Scatter < 0 || t.Multiplier < 0 {
		return fmt.Errorf("weight table has invalid special weights")
	}
	if t.Multiplier > 0 && len(t.Values) == 0 {
		return fmt.Errorf("multiplier tiles enabled without a value pool")
	}
	for _, v := range t.Values {
		if v.Value < 1 {
			return fmt.Errorf("multiplier value %d must be at least 1", v.Value)
		}
		if !finite(v.Weight) || v.Weight < 0 {
			return fmt.Errorf("multiplier value %d has invalid weight %v", v.Value, v.Weight)
		}
	}
	return nil
}

// finite reports whether f is neither NaN nor an infinity
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// cellWeights flattens the table into sampling order
func (t WeightTable) cellWeights() []float64 {
	w := make([]float64, 0, len(t.Symbols)+2)
	for _, s := range t.Symbols {
		w = append(w, s.Weight)
	}
	return append(w, t.Scatter, t.Multiplier)
}

func (t WeightTable) valueWeights() []float64 {
	w := make([]float64, len(t.Values))
	for i, v := range t.Values {
		w[i] = v.Weight
	}
	return w
}

// Pick selects an index by weight. It draws r in [0,total) and subtracts the
// weights in order until the remainder is <= 0. Non-positive weights are never
// selected. An all-zero table returns 0; floating point drift falls back to the
// last positive entry.
func Pick(src Source, weights []float64) int {
	var total float64
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if total <= 0 || last < 0 {
		return 0
	}

	r := src.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		r -= w
		if r <= 0 {
			return i
		}
	}
	return last
}

// Draw samples a single cell
func (t WeightTable) Draw(src Source) Cell {
	return t.draw(src, t.cellWeights(), t.valueWeights())
}

func (t WeightTable) draw(src Source, cells, values []float64) Cell {
	idx := Pick(src, cells)
	switch {
	case idx < len(t.Symbols):
		return SymbolCell(t.Symbols[idx].Symbol)
	case idx == len(t.Symbols):
		return ScatterCell()
	default:
		if len(t.Values) == 0 {
			return SymbolCell(t.Symbols[0].Symbol)
		}
		return MultiplierCell(t.Values[Pick(src, values)].Value)
	}
}
