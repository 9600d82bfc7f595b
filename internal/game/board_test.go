package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boardFrom builds a board from rows of '.', '1' and '2', top row first.
func boardFrom(t *testing.T, rows ...string) Board {
	t.Helper()
	require.Len(t, rows, Rows)
	var b Board
	for r, line := range rows {
		require.Len(t, line, Cols)
		for c, ch := range line {
			switch ch {
			case '1':
				b[r][c] = PlayerOne
			case '2':
				b[r][c] = PlayerTwo
			}
		}
	}
	return b
}

func TestDropPieceLandsInLowestEmptyRow(t *testing.T) {
	base := boardFrom(t,
		".......",
		".......",
		".......",
		"...2...",
		"...1..2",
		"2..1..1",
	)
	for col := 0; col < Cols; col++ {
		want := base.lowestEmptyRow(col)
		got, row, err := DropPiece(base, col, PlayerTwo)
		require.NoError(t, err, "col %d", col)
		assert.Equal(t, want, row, "col %d", col)
		assert.Equal(t, PlayerTwo, got[row][col])

		for r := 0; r < Rows; r++ {
			for c := 0; c < Cols; c++ {
				if r == row && c == col {
					continue
				}
				assert.Equal(t, base[r][c], got[r][c], "cell (%d,%d) changed for drop in col %d", r, c, col)
			}
		}
		assert.NoError(t, got.Validate())
	}
}

func TestDropPieceDoesNotMutateInput(t *testing.T) {
	b := NewBoard()
	_, _, err := DropPiece(b, 2, PlayerOne)
	require.NoError(t, err)
	assert.Equal(t, NewBoard(), b)
}

func TestDropPieceRejections(t *testing.T) {
	full := NewBoard()
	for i := 0; i < Rows; i++ {
		var err error
		full, _, err = DropPiece(full, 0, Player(i%2+1))
		require.NoError(t, err)
	}

	cases := []struct {
		name string
		col  int
		want error
	}{
		{"negative", -1, ErrColumnOutOfRange},
		{"past last column", Cols, ErrColumnOutOfRange},
		{"full column", 0, ErrColumnFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, row, err := DropPiece(full, tc.col, PlayerOne)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, -1, row)
			assert.Equal(t, full, got)
		})
	}
}

func TestSeventhDropInColumnIsRejected(t *testing.T) {
	b := NewBoard()
	for i := 0; i < Rows; i++ {
		var row int
		var err error
		b, row, err = DropPiece(b, 0, Player(i%2+1))
		require.NoError(t, err)
		assert.Equal(t, Rows-1-i, row)
	}
	assert.NotEqual(t, None, b[0][0])

	before := b
	after, _, err := DropPiece(b, 0, PlayerOne)
	assert.ErrorIs(t, err, ErrColumnFull)
	assert.Equal(t, before, after)
}

func TestFourDropsInOneColumnWin(t *testing.T) {
	b := NewBoard()
	var row int
	var err error
	for i := 0; i < 4; i++ {
		b, row, err = DropPiece(b, 3, PlayerOne)
		require.NoError(t, err)
	}

	for _, r := range []int{5, 4, 3, 2} {
		assert.Equal(t, PlayerOne, b[r][3])
	}
	assert.Equal(t, None, b[1][3])
	assert.Equal(t, 2, row)
	assert.True(t, CheckWin(b, 2, 3, PlayerOne))
}

func TestCheckWinEveryLine(t *testing.T) {
	// Place every possible line of four for PlayerOne and check each cell of
	// the line as the last placed piece.
	for _, d := range directions {
		for r := 0; r < Rows; r++ {
			for c := 0; c < Cols; c++ {
				endR := r + (WinLength-1)*d[0]
				endC := c + (WinLength-1)*d[1]
				if endR < 0 || endR >= Rows || endC < 0 || endC >= Cols {
					continue
				}
				var b Board
				for i := 0; i < WinLength; i++ {
					b[r+i*d[0]][c+i*d[1]] = PlayerOne
				}
				for i := 0; i < WinLength; i++ {
					lr, lc := r+i*d[0], c+i*d[1]
					assert.True(t, CheckWin(b, lr, lc, PlayerOne),
						"dir %v start (%d,%d) last (%d,%d)", d, r, c, lr, lc)
					assert.False(t, CheckWin(b, lr, lc, PlayerTwo))
				}
			}
		}
	}
}

func TestCheckWinIgnoresOtherPlayersLine(t *testing.T) {
	b := boardFrom(t,
		".......",
		".......",
		".......",
		".......",
		"1......",
		"12222..",
	)
	assert.False(t, CheckWin(b, 4, 0, PlayerOne))
	assert.True(t, CheckWin(b, 5, 4, PlayerTwo))
}

func TestCheckWinThreeIsNotEnough(t *testing.T) {
	b := boardFrom(t,
		".......",
		".......",
		".......",
		"...1...",
		"..11...",
		".111222",
	)
	assert.False(t, CheckWin(b, 5, 3, PlayerOne))
	assert.False(t, CheckWin(b, 3, 3, PlayerOne))
	assert.False(t, CheckWin(b, 5, 6, PlayerTwo))
}

func TestCheckWinDiagonals(t *testing.T) {
	rising := boardFrom(t,
		".......",
		".......",
		"...1...",
		"..12...",
		".122...",
		"1222...",
	)
	assert.True(t, CheckWin(rising, 2, 3, PlayerOne))
	assert.True(t, CheckWin(rising, 5, 0, PlayerOne))

	falling := boardFrom(t,
		".......",
		".......",
		"2......",
		"12.....",
		"112....",
		"1112...",
	)
	assert.True(t, CheckWin(falling, 5, 3, PlayerTwo))
	assert.True(t, CheckWin(falling, 3, 1, PlayerTwo))
}

func TestBoardValidate(t *testing.T) {
	assert.NoError(t, NewBoard().Validate())

	floating := NewBoard()
	floating[3][2] = PlayerOne
	assert.Error(t, floating.Validate())

	bogus := NewBoard()
	bogus[5][0] = Player(7)
	assert.Error(t, bogus.Validate())
}

func TestBoardUnmarshalRejectsWrongShape(t *testing.T) {
	var b Board
	assert.Error(t, b.UnmarshalJSON([]byte(`[[0,0,0,0,0,0,0]]`)))
	assert.Error(t, b.UnmarshalJSON([]byte(`[[0],[0],[0],[0],[0],[0]]`)))
	assert.Error(t, b.UnmarshalJSON([]byte(`"board"`)))
}

func TestBoardFull(t *testing.T) {
	b := NewBoard()
	assert.False(t, b.Full())
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			b[r][c] = Player((r+c)%2 + 1)
		}
	}
	assert.True(t, b.Full())
	assert.True(t, b.ColumnFull(Cols))
}
