package slot

// Generator fills grids from one WeightTable
type Generator struct {
	table  WeightTable
	rows   int
	cols   int
	cells  []float64
	values []float64
}

// NewGenerator caches the sampling weights of table
func NewGenerator(table WeightTable, rows, cols int) *Generator {
	return &Generator{
		table:  table,
		rows:   rows,
		cols:   cols,
		cells:  table.cellWeights(),
		values: table.valueWeights(),
	}
}

// Table returns the table the generator draws from
func (g *Generator) Table() WeightTable {
	return g.table
}

// Draw samples one cell
func (g *Generator) Draw(src Source) Cell {
	return g.table.draw(src, g.cells, g.values)
}

// Generate draws every cell independently. When forceScatters > 0, exactly that
// many distinct positions are then overwritten with scatters.
func (g *Generator) Generate(src Source, forceScatters int) (*Grid, []int) {
	grid := NewGrid(g.rows, g.cols)
	for i := range grid.Cells {
		grid.Cells[i] = g.Draw(src)
	}
	if forceScatters <= 0 {
		return grid, nil
	}

	forced := choosePositions(src, grid.Size(), forceScatters)
	for _, pos := range forced {
		grid.Cells[pos] = ScatterCell()
	}
	return grid, forced
}

// Generate draws a grid from table, see Generator.Generate
func Generate(src Source, table WeightTable, rows, cols, forceScatters int) *Grid {
	grid, _ := NewGenerator(table, rows, cols).Generate(src, forceScatters)
	return grid
}

// choosePositions picks n distinct positions out of size with a partial
// Fisher-Yates shuffle
func choosePositions(src Source, size, n int) []int {
	if n > size {
		n = size
	}
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + int(src.Float64()*float64(size-i))
		if j >= size {
			j = size - 1
		}
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:n]
}

// refill tops up emptied positions column by column, left to right, top to bottom
func (g *Generator) refill(src Source, grid *Grid) {
	for c := 0; c < grid.Cols; c++ {
		for r := 0; r < grid.Rows; r++ {
			if grid.At(r, c).Kind == KindEmpty {
				grid.Set(r, c, g.Draw(src))
			}
		}
	}
}

// tumble removes the given positions, slides survivors of each column to the
// bottom keeping their order and refills the vacated top slots
func (g *Generator) tumble(src Source, grid *Grid, removed []int) {
	gone := make([]bool, grid.Size())
	for _, pos := range removed {
		gone[pos] = true
	}
	for c := 0; c < grid.Cols; c++ {
		write := grid.Rows - 1
		for r := grid.Rows - 1; r >= 0; r-- {
			idx := grid.Index(r, c)
			if gone[idx] {
				continue
			}
			grid.Set(write, c, grid.Cells[idx])
			write--
		}
		for ; write >= 0; write-- {
			grid.Set(write, c, Cell{})
		}
	}
	g.refill(src, grid)
}
