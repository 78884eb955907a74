package kif

import (
	"fmt"
	"strings"
)

// Board is the 9x9 grid replayed for one game. It is not safe for
// concurrent use; each game owns its own Board.
type Board struct {
	squares [boardSize][boardSize]*Piece
}

var backRank = [boardSize]Kind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}

// NewBoard returns a board in the standard starting arrangement.
func NewBoard() *Board {
	b := &Board{}
	for f := 1; f <= boardSize; f++ {
		b.set(Square{File: f, Rank: 1}, &Piece{Kind: backRank[f-1], Color: White})
		b.set(Square{File: f, Rank: 3}, &Piece{Kind: Pawn, Color: White})
		b.set(Square{File: f, Rank: 7}, &Piece{Kind: Pawn, Color: Black})
		b.set(Square{File: f, Rank: 9}, &Piece{Kind: backRank[f-1], Color: Black})
	}
	b.set(Square{File: 8, Rank: 2}, &Piece{Kind: Rook, Color: White})
	b.set(Square{File: 2, Rank: 2}, &Piece{Kind: Bishop, Color: White})
	b.set(Square{File: 8, Rank: 8}, &Piece{Kind: Bishop, Color: Black})
	b.set(Square{File: 2, Rank: 8}, &Piece{Kind: Rook, Color: Black})
	return b
}

// At returns the piece on s, if any.
func (b *Board) At(s Square) (Piece, bool) {
	p := b.pieceAt(s)
	if p == nil {
		return Piece{}, false
	}
	return *p, true
}

// Apply mutates the board by one decoded move. Drops overwrite the
// destination unconditionally. Board moves take whatever occupies the
// origin; a captured piece simply disappears.
func (b *Board) Apply(m Move) error {
	if !m.To.Valid() {
		return fmt.Errorf("destination %s off board", m.To)
	}
	if m.Drop {
		piece := m.Piece
		b.set(m.To, &piece)
		return nil
	}
	piece := b.pieceAt(m.From)
	if piece == nil {
		return fmt.Errorf("%w at %s", ErrEmptySourceSquare, m.From)
	}
	b.set(m.From, nil)
	b.set(m.To, piece)
	return nil
}

// Snapshot captures the current occupancy.
func (b *Board) Snapshot() Snapshot {
	var snap Snapshot
	for r := 0; r < boardSize; r++ {
		for c := 0; c < boardSize; c++ {
			if p := b.squares[r][c]; p != nil {
				snap[r*boardSize+c] = p.Code()
			}
		}
	}
	return snap
}

func (b *Board) pieceAt(s Square) *Piece {
	if !s.Valid() {
		return nil
	}
	return b.squares[s.row()][s.col()]
}

func (b *Board) set(s Square, piece *Piece) {
	if !s.Valid() {
		return
	}
	if piece == nil {
		b.squares[s.row()][s.col()] = nil
		return
	}
	copy := *piece
	b.squares[s.row()][s.col()] = &copy
}

// Snapshot is a flat row-major copy of the board: rank 1 first, and
// within a rank file 9 first. Zero means an empty cell.
type Snapshot [NumCells]byte

// At returns the code stored for the 0-based index. Indexes off the board
// read as empty.
func (s Snapshot) At(index int) (byte, bool) {
	if index < 0 || index >= NumCells {
		return 0, false
	}
	c := s[index]
	return c, c != 0
}

// Cells renders the snapshot as one string per cell, "" for empty cells.
func (s Snapshot) Cells() []string {
	cells := make([]string, NumCells)
	for i, c := range s {
		if c != 0 {
			cells[i] = string(c)
		}
	}
	return cells
}

// Occupied counts non-empty cells.
func (s Snapshot) Occupied() int {
	n := 0
	for _, c := range s {
		if c != 0 {
			n++
		}
	}
	return n
}

// SFEN returns the board field of an SFEN string.
func (s Snapshot) SFEN() string {
	rows := make([]string, 0, boardSize)
	for r := 0; r < boardSize; r++ {
		var b strings.Builder
		empty := 0
		for c := 0; c < boardSize; c++ {
			code := s[r*boardSize+c]
			if code == 0 {
				empty++
				continue
			}
			if empty > 0 {
				fmt.Fprintf(&b, "%d", empty)
				empty = 0
			}
			b.WriteByte(code)
		}
		if empty > 0 {
			fmt.Fprintf(&b, "%d", empty)
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "/")
}

// SnapshotFromCells is the inverse of Snapshot.Cells.
func SnapshotFromCells(cells []string) (Snapshot, error) {
	var snap Snapshot
	if len(cells) != NumCells {
		return snap, fmt.Errorf("expected %d cells, got %d", NumCells, len(cells))
	}
	for i, cell := range cells {
		switch len(cell) {
		case 0:
		case 1:
			snap[i] = cell[0]
		default:
			return snap, fmt.Errorf("cell %d: invalid code %q", i+1, cell)
		}
	}
	return snap, nil
}
