package hopfield

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseText reads a side x side grid drawn with characters. '#', '*', 'X',
// 'x' and '1' are active (+1); '.', '-', '0', 'o' and ' ' are inactive (-1).
// Empty lines and lines starting with "//" are skipped. A line of spaces is a
// row of inactive cells. Short lines are padded with inactive cells.
func ParseText(r io.Reader, side int) (Grid, error) {
	g := make(Grid, 0, side)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if len(g) == side {
			return nil, fmt.Errorf("%w: more than %d rows", ErrInvalidInput, side)
		}
		if len(line) > side {
			return nil, fmt.Errorf("%w: line %d has %d cells, want at most %d", ErrInvalidInput, lineNo, len(line), side)
		}
		row := make([]int, side)
		for c := 0; c < side; c++ {
			row[c] = -1
			if c >= len(line) {
				continue
			}
			switch line[c] {
			case '#', '*', 'X', 'x', '1':
				row[c] = 1
			case '.', '-', '0', 'o', ' ':
			default:
				return nil, fmt.Errorf("%w: line %d: unexpected character %q", ErrInvalidInput, lineNo, line[c])
			}
		}
		g = append(g, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading grid: %w", err)
	}
	if len(g) != side {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrInvalidInput, len(g), side)
	}
	return g, nil
}

// FormatText writes g using '#' for positive cells and '.' otherwise.
func FormatText(w io.Writer, g Grid) error {
	var b strings.Builder
	for _, row := range g {
		for _, cell := range row {
			if cell > 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
