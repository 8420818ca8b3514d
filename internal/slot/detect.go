package slot

import (
	"fmt"
	"sort"
)

// Strategy names a win detection rule
type Strategy string

const (
	StrategyConnect Strategy = "connect"
	StrategyCluster Strategy = "cluster"
)

// WinGroup is one winning set of same-symbol positions
type WinGroup struct {
	Symbol    string `json:"symbol"`
	Positions []int  `json:"positions"`
}

// Detector finds winning groups on a grid. Scatter and multiplier cells are
// never part of a group.
type Detector interface {
	Detect(g *Grid) []WinGroup
	Strategy() Strategy
}

// NewDetector returns the detector for strategy with the given minimum size
func NewDetector(strategy Strategy, min int) (Detector, error) {
	if min < 1 {
		return nil, fmt.Errorf("minimum match must be positive, got %d", min)
	}
	switch strategy {
	case StrategyConnect:
		return Connect{Min: min}, nil
	case StrategyCluster:
		return Cluster{Min: min}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// Connect pays a symbol once it occurs at least Min times anywhere on the grid.
// All its occurrences form the group.
type Connect struct {
	Min int
}

// Strategy implements Detector
func (Connect) Strategy() Strategy { return StrategyConnect }

// Detect implements Detector. Groups are ordered by symbol id.
func (d Connect) Detect(g *Grid) []WinGroup {
	tally := make(map[string][]int)
	for i, c := range g.Cells {
		if c.IsSymbol() {
			tally[c.Symbol] = append(tally[c.Symbol], i)
		}
	}

	var groups []WinGroup
	for symbol, positions := range tally {
		if len(positions) >= d.Min {
			groups = append(groups, WinGroup{Symbol: symbol, Positions: positions})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Symbol < groups[j].Symbol })
	return groups
}

// Cluster pays 4-directionally connected same-symbol components of at least Min cells
type Cluster struct {
	Min int
}

// Strategy implements Detector
func (Cluster) Strategy() Strategy { return StrategyCluster }

// Detect implements Detector. Groups come out in order of their first
// position; positions within a group are ascending.
func (d Cluster) Detect(g *Grid) []WinGroup {
	visited := make([]bool, g.Size())
	var groups []WinGroup

	for start, c := range g.Cells {
		if visited[start] || !c.IsSymbol() {
			continue
		}
		component := floodFill(g, start, visited)
		if len(component) >= d.Min {
			sort.Ints(component)
			groups = append(groups, WinGroup{Symbol: c.Symbol, Positions: component})
		}
	}
	return groups
}

// floodFill collects the same-symbol component containing start (BFS)
func floodFill(g *Grid, start int, visited []bool) []int {
	symbol := g.Cells[start].Symbol
	queue := []int{start}
	visited[start] = true
	var component []int

	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]
		component = append(component, pos)

		r, c := pos/g.Cols, pos%g.Cols
		for _, n := range [4][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
			if n[0] < 0 || n[0] >= g.Rows || n[1] < 0 || n[1] >= g.Cols {
				continue
			}
			next := g.Index(n[0], n[1])
			if visited[next] {
				continue
			}
			cell := g.Cells[next]
			if cell.IsSymbol() && cell.Symbol == symbol {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return component
}
