package board

import "errors"

const (
	Rows    = 6
	Columns = 7
)

// Cell values match the wire format: 0 empty, 1 seat one, 2 seat two.
type Cell int

const (
	Empty Cell = iota
	PlayerOne
	PlayerTwo
)

var (
	ErrColumnFull       = errors.New("COLUMN_FULL: Column is full")
	ErrColumnOutOfRange = errors.New("COLUMN_OUT_OF_RANGE: Column must be between 0 and 6")
)

// Grid is the board state. Row 0 is the top of the board, row 5 the bottom,
// so gravity fills columns from high row indexes toward low ones.
// Grid is an array value, not a slice, so methods receive a copy and can
// never mutate the caller's board.
type Grid [Rows][Columns]Cell

// Drop places piece into the lowest empty cell of column and returns the new
// grid plus the row the piece landed in. The receiver is left untouched.
func (g Grid) Drop(column int, piece Cell) (Grid, int, error) {
	if column < 0 || column >= Columns {
		return g, -1, ErrColumnOutOfRange
	}

	for row := Rows - 1; row >= 0; row-- {
		if g[row][column] == Empty {
			g[row][column] = piece
			return g, row, nil
		}
	}

	return g, -1, ErrColumnFull
}

// HasLine reports whether piece has four consecutive cells in a row, column,
// or either diagonal anywhere on the grid. One match is enough.
func (g Grid) HasLine(piece Cell) bool {
	// Horizontal
	for row := 0; row < Rows; row++ {
		for col := 0; col <= Columns-4; col++ {
			if g[row][col] == piece && g[row][col+1] == piece &&
				g[row][col+2] == piece && g[row][col+3] == piece {
				return true
			}
		}
	}

	// Vertical
	for col := 0; col < Columns; col++ {
		for row := 0; row <= Rows-4; row++ {
			if g[row][col] == piece && g[row+1][col] == piece &&
				g[row+2][col] == piece && g[row+3][col] == piece {
				return true
			}
		}
	}

	// Diagonal rising ("/"): up-right from the starting cell
	for row := 3; row < Rows; row++ {
		for col := 0; col <= Columns-4; col++ {
			if g[row][col] == piece && g[row-1][col+1] == piece &&
				g[row-2][col+2] == piece && g[row-3][col+3] == piece {
				return true
			}
		}
	}

	// Diagonal falling ("\"): down-right from the starting cell
	for row := 0; row <= Rows-4; row++ {
		for col := 0; col <= Columns-4; col++ {
			if g[row][col] == piece && g[row+1][col+1] == piece &&
				g[row+2][col+2] == piece && g[row+3][col+3] == piece {
				return true
			}
		}
	}

	return false
}

// IsFull reports whether every cell is occupied. Checking the top row is
// sufficient because of gravity.
func (g Grid) IsFull() bool {
	for col := 0; col < Columns; col++ {
		if g[0][col] == Empty {
			return false
		}
	}
	return true
}
