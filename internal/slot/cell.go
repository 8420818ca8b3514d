// Package slot implements the cascading cluster-pay resolution engine shared by
// the reel games: weighted grid generation, Connect and Cluster win detection,
// the tumble loop, multiplier bookkeeping and the free-spin state machine.
//
// Everything in this package is pure and synchronous. A round is simulated from
// an injected Source and returned as a trace; wallets, persistence and
// presentation live outside.
package slot

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Cell
type Kind uint8

const (
	// KindEmpty only exists between removal and refill inside a tumble
	KindEmpty Kind = iota
	KindSymbol
	KindScatter
	KindMultiplier
)

var kindNames = map[Kind]string{
	KindEmpty:      "empty",
	KindSymbol:     "symbol",
	KindScatter:    "scatter",
	KindMultiplier: "multiplier",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown cell kind %q", text)
}

// Cell is one grid position: Symbol(id) | Scatter | MultiplierTile(value)
type Cell struct {
	Kind   Kind   `json:"kind"`
	Symbol string `json:"symbol,omitempty"`
	Value  int    `json:"value,omitempty"`
}

// SymbolCell returns a paying symbol cell
func SymbolCell(id string) Cell {
	return Cell{Kind: KindSymbol, Symbol: id}
}

// ScatterCell returns a scatter cell
func ScatterCell() Cell {
	return Cell{Kind: KindScatter}
}

// MultiplierCell returns a multiplier tile carrying value
func MultiplierCell(value int) Cell {
	return Cell{Kind: KindMultiplier, Value: value}
}

// IsSymbol reports whether the cell can take part in a win
func (c Cell) IsSymbol() bool {
	return c.Kind == KindSymbol
}

func (c Cell) String() string {
	switch c.Kind {
	case KindSymbol:
		return c.Symbol
	case KindScatter:
		return "*"
	case KindMultiplier:
		return fmt.Sprintf("x%d", c.Value)
	default:
		return "."
	}
}

// Grid is a dense ROWS×COLS board stored row-major. Positions are row-major
// indices: index = row*Cols + col.
type Grid struct {
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Cells []Cell `json:"cells"`
}

// NewGrid allocates an empty grid
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Cells: make([]Cell, rows*cols)}
}

// ParseGrid builds a grid from rows of whitespace separated tokens:
// a symbol id, "*" for a scatter or "xN" for a multiplier tile.
func ParseGrid(rows ...string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("grid has no rows")
	}
	var cells []Cell
	cols := -1
	for r, line := range rows {
		tokens := strings.Fields(line)
		if cols == -1 {
			cols = len(tokens)
		}
		if len(tokens) != cols || cols == 0 {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(tokens), cols)
		}
		for _, tok := range tokens {
			switch {
			case tok == "*":
				cells = append(cells, ScatterCell())
			case multiplierToken(tok):
				v, _ := strconv.Atoi(tok[1:])
				cells = append(cells, MultiplierCell(v))
			default:
				cells = append(cells, SymbolCell(tok))
			}
		}
	}
	return &Grid{Rows: len(rows), Cols: cols, Cells: cells}, nil
}

// multiplierToken reports whether tok is x followed by digits; any other token
// is a symbol id
func multiplierToken(tok string) bool {
	if len(tok) < 2 || tok[0] != 'x' {
		return false
	}
	_, err := strconv.Atoi(tok[1:])
	return err == nil && tok[1] != '-' && tok[1] != '+'
}

// Size returns the number of positions
func (g *Grid) Size() int {
	return g.Rows * g.Cols
}

// Index converts a row/column pair to a position
func (g *Grid) Index(row, col int) int {
	return row*g.Cols + col
}

// At returns the cell at row/col
func (g *Grid) At(row, col int) Cell {
	return g.Cells[g.Index(row, col)]
}

// Set stores a cell at row/col
func (g *Grid) Set(row, col int, c Cell) {
	g.Cells[g.Index(row, col)] = c
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	cells := make([]Cell, len(g.Cells))
	copy(cells, g.Cells)
	return &Grid{Rows: g.Rows, Cols: g.Cols, Cells: cells}
}

// Dense reports whether every position holds a cell
func (g *Grid) Dense() bool {
	if len(g.Cells) != g.Size() {
		return false
	}
	for _, c := range g.Cells {
		if c.Kind == KindEmpty {
			return false
		}
	}
	return true
}

// Count returns how many cells of the given kind are on the grid
func (g *Grid) Count(kind Kind) int {
	n := 0
	for _, c := range g.Cells {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Scatters returns the number of scatter cells
func (g *Grid) Scatters() int {
	return g.Count(KindScatter)
}

func (g *Grid) String() string {
	var b strings.Builder
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(g.At(r, c).String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
