package game

import (
	"encoding/json"
	"fmt"
)

// Board is a 6x7 grid, row 0 at the top. It is a value type: every
// mutation below returns a new Board and leaves the input untouched.
type Board [Rows][Cols]Player

// direction vectors as (row, col) steps: horizontal, vertical, and both diagonals
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

func NewBoard() Board {
	return Board{}
}

// DropPiece lets p fall into col and returns the new board together with the
// row the piece landed in. On rejection the original board is returned.
func DropPiece(b Board, col int, p Player) (Board, int, error) {
	if col < 0 || col >= Cols {
		return b, -1, ErrColumnOutOfRange
	}
	row := b.lowestEmptyRow(col)
	if row < 0 {
		return b, -1, ErrColumnFull
	}
	b[row][col] = p
	return b, row, nil
}

// CheckWin scans the four windows of WinLength cells that pass through
// (row, col) along each direction. Only lines through the last placed cell
// are considered.
func CheckWin(b Board, row, col int, p Player) bool {
	for _, d := range directions {
		for i := -(WinLength - 1); i <= 0; i++ {
			if b.windowOwnedBy(row, col, d, i, p) {
				return true
			}
		}
	}
	return false
}

func (b Board) windowOwnedBy(row, col int, d [2]int, offset int, p Player) bool {
	for j := 0; j < WinLength; j++ {
		r := row + (offset+j)*d[0]
		c := col + (offset+j)*d[1]
		if r < 0 || r >= Rows || c < 0 || c >= Cols || b[r][c] != p {
			return false
		}
	}
	return true
}

// scan from the bottom; -1 when the column is full
func (b Board) lowestEmptyRow(col int) int {
	for row := Rows - 1; row >= 0; row-- {
		if b[row][col] == None {
			return row
		}
	}
	return -1
}

// ColumnFull reports whether the top cell of col is occupied. Out of range
// columns count as full.
func (b Board) ColumnFull(col int) bool {
	if col < 0 || col >= Cols {
		return true
	}
	return b[0][col] != None
}

func (b Board) Full() bool {
	for col := 0; col < Cols; col++ {
		if !b.ColumnFull(col) {
			return false
		}
	}
	return true
}

// Validate checks cell values and the gravity invariant.
func (b Board) Validate() error {
	for col := 0; col < Cols; col++ {
		seenEmpty := false
		for row := Rows - 1; row >= 0; row-- {
			cell := b[row][col]
			if cell != None && !cell.Seat() {
				return fmt.Errorf("cell (%d,%d) has value %d", row, col, cell)
			}
			if cell == None {
				seenEmpty = true
				continue
			}
			if seenEmpty {
				return fmt.Errorf("cell (%d,%d) floats above an empty cell", row, col)
			}
		}
	}
	return nil
}

// UnmarshalJSON accepts exactly Rows arrays of Cols numbers. The default
// array decoding would silently pad or truncate.
func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]Player
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != Rows {
		return fmt.Errorf("board has %d rows, want %d", len(rows), Rows)
	}
	var out Board
	for r, row := range rows {
		if len(row) != Cols {
			return fmt.Errorf("board row %d has %d columns, want %d", r, len(row), Cols)
		}
		copy(out[r][:], row)
	}
	*b = out
	return nil
}
