package hopfield

import "fmt"

// Grid is a square, row-major view of a Vector.
type Grid [][]int

// Grid reshapes v into side rows of side cells. Flat index k lands at
// row k/side, column k%side.
func (v Vector) Grid(side int) (Grid, error) {
	if side < 1 || len(v) != side*side {
		return nil, fmt.Errorf("%w: cannot reshape %d values into %dx%d grid", ErrInvalidInput, len(v), side, side)
	}
	g := make(Grid, side)
	for r := 0; r < side; r++ {
		row := make([]int, side)
		copy(row, v[r*side:(r+1)*side])
		g[r] = row
	}
	return g, nil
}

// Flatten concatenates the rows of g. The grid must be exactly side x side.
func (g Grid) Flatten(side int) (Vector, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: missing grid", ErrInvalidInput)
	}
	if len(g) != side {
		return nil, fmt.Errorf("%w: grid has %d rows, want %d", ErrInvalidInput, len(g), side)
	}
	v := make(Vector, 0, side*side)
	for r, row := range g {
		if len(row) != side {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidInput, r, len(row), side)
		}
		v = append(v, row...)
	}
	return v, nil
}
