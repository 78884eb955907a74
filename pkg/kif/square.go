package kif

import "fmt"

const (
	boardSize = 9
	// NumCells is the number of cells in a snapshot.
	NumCells = boardSize * boardSize
)

// Square is a board coordinate in native notation: File counts 1..9 from
// the right edge, Rank 1..9 from the top.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid() bool {
	return s.File >= 1 && s.File <= boardSize && s.Rank >= 1 && s.Rank <= boardSize
}

func (s Square) row() int { return s.Rank - 1 }
func (s Square) col() int { return boardSize - s.File }

// Index is the 0-based row-major position of the square in a Snapshot.
func (s Square) Index() int {
	return s.row()*boardSize + s.col()
}

// Cell is the 1-based cell number used by persisted board columns (c1..c81).
func (s Square) Cell() int {
	return s.Index() + 1
}

// Mirror rotates the square 180 degrees.
func (s Square) Mirror() Square {
	return Square{File: boardSize + 1 - s.File, Rank: boardSize + 1 - s.Rank}
}

func (s Square) String() string {
	return fmt.Sprintf("%d%d", s.File, s.Rank)
}

// SquareAt is the inverse of Square.Index.
func SquareAt(index int) Square {
	return Square{File: boardSize - index%boardSize, Rank: index/boardSize + 1}
}

// MirrorCell maps a 1-based cell to the cell seen from the other side of
// the board. Together with SwapCase it turns a sente-perspective pattern
// into the equivalent gote-perspective one.
func MirrorCell(cell int) int {
	return NumCells + 1 - cell
}
