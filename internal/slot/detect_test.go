package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectGrid has eight A cells spread over a 5x6 board; no other symbol
// reaches eight.
func connectGrid(t *testing.T) *Grid {
	return mustGrid(t,
		"A B C D E A",
		"F G A B C D",
		"E F G H A B",
		"A C D E F A",
		"H A B * x2 A",
	)
}

// checkerboard fills a grid so that no two neighbours share a symbol
func checkerboard(rows, cols int) *Grid {
	g := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if (r+c)%2 == 0 {
				g.Set(r, c, SymbolCell("x"))
			} else {
				g.Set(r, c, SymbolCell("y"))
			}
		}
	}
	return g
}

func TestConnectDetect(t *testing.T) {
	t.Run("AllOccurrencesWin", func(t *testing.T) {
		groups := Connect{Min: 8}.Detect(connectGrid(t))
		require.Len(t, groups, 1)
		assert.Equal(t, "A", groups[0].Symbol)
		assert.Equal(t, []int{0, 5, 8, 16, 18, 23, 25, 29}, groups[0].Positions)
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		grid := connectGrid(t)
		grid.Cells[0] = SymbolCell("Q")
		assert.Empty(t, Connect{Min: 8}.Detect(grid))
	})

	t.Run("SpecialCellsNeverCount", func(t *testing.T) {
		grid := mustGrid(t,
			"* * * * * *",
			"x3 x3 x3 x3 x3 x3",
		)
		assert.Empty(t, Connect{Min: 2}.Detect(grid))
	})

	t.Run("GroupsSortedBySymbol", func(t *testing.T) {
		grid := mustGrid(t, "B A B A")
		groups := Connect{Min: 2}.Detect(grid)
		require.Len(t, groups, 2)
		assert.Equal(t, "A", groups[0].Symbol)
		assert.Equal(t, "B", groups[1].Symbol)
	})
}

func TestClusterDetect(t *testing.T) {
	t.Run("SixConnected", func(t *testing.T) {
		grid := checkerboard(7, 7)
		for _, pos := range [][2]int{{2, 2}, {2, 3}, {2, 4}, {3, 4}, {4, 4}, {4, 5}} {
			grid.Set(pos[0], pos[1], SymbolCell("B"))
		}
		groups := Cluster{Min: 5}.Detect(grid)
		require.Len(t, groups, 1)
		assert.Equal(t, "B", groups[0].Symbol)
		assert.Equal(t, []int{16, 17, 18, 25, 32, 33}, groups[0].Positions)
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		grid := checkerboard(7, 7)
		for _, pos := range [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 2}} {
			grid.Set(pos[0], pos[1], SymbolCell("B"))
		}
		assert.Empty(t, Cluster{Min: 5}.Detect(grid))
	})

	t.Run("DiagonalIsNotAdjacent", func(t *testing.T) {
		grid := mustGrid(t,
			"B * B",
			"* B *",
			"B * B",
		)
		assert.Empty(t, Cluster{Min: 2}.Detect(grid))
	})

	t.Run("ScatterAndTilesBreakClusters", func(t *testing.T) {
		grid := mustGrid(t, "B B * B B x2 B")
		assert.Empty(t, Cluster{Min: 3}.Detect(grid))
	})

	t.Run("SeparateComponentsOfSameSymbol", func(t *testing.T) {
		grid := mustGrid(t,
			"B B * C C",
			"B * * * C",
		)
		groups := Cluster{Min: 3}.Detect(grid)
		require.Len(t, groups, 2)
		assert.Equal(t, []int{0, 1, 5}, groups[0].Positions)
		assert.Equal(t, []int{3, 4, 9}, groups[1].Positions)
	})
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector(StrategyCluster, 5)
	require.NoError(t, err)
	assert.Equal(t, StrategyCluster, d.Strategy())

	_, err = NewDetector("diagonal", 5)
	assert.Error(t, err)

	_, err = NewDetector(StrategyConnect, 0)
	assert.Error(t, err)
}
