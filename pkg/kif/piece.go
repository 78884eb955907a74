package kif

import "fmt"

// Color is the side a piece belongs to. Black moves first.
type Color int

const (
	Black Color = iota
	White
)

func (c Color) String() string {
	if c == White {
		return "gote"
	}
	return "sente"
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// ColorForPly derives the side to move from ply parity: odd plies are Black's.
func ColorForPly(ply int) Color {
	if ply%2 == 1 {
		return Black
	}
	return White
}

type Kind int

const (
	NoKind Kind = iota
	Pawn
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	// Unknown is what an unrecognized piece designator decodes to.
	Unknown
)

var kindLetters = map[Kind]byte{
	Pawn:    'P',
	Lance:   'L',
	Knight:  'N',
	Silver:  'S',
	Gold:    'G',
	Bishop:  'B',
	Rook:    'R',
	King:    'K',
	Unknown: '?',
}

func (k Kind) String() string {
	if l, ok := kindLetters[k]; ok {
		return string(l)
	}
	return "-"
}

type Piece struct {
	Kind  Kind
	Color Color
}

// Code serializes the piece to the single byte stored per board cell:
// uppercase for Black, lowercase for White.
func (p Piece) Code() byte {
	l, ok := kindLetters[p.Kind]
	if !ok {
		return 0
	}
	if p.Color == White {
		return toLower(l)
	}
	return l
}

func (p Piece) String() string {
	return fmt.Sprintf("%s:%s", p.Color, p.Kind)
}

// PieceFromCode is the inverse of Piece.Code.
func PieceFromCode(c byte) (Piece, bool) {
	color := Black
	if c >= 'a' && c <= 'z' {
		color = White
		c = toUpper(c)
	}
	for kind, l := range kindLetters {
		if l == c && kind != Unknown {
			return Piece{Kind: kind, Color: color}, true
		}
	}
	return Piece{}, false
}

// SwapCase flips the side encoded in a cell code. It is the code half of
// the mirrored-query convention, see MirrorCell.
func SwapCase(c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return toUpper(c)
	case c >= 'A' && c <= 'Z':
		return toLower(c)
	default:
		return c
	}
}

func toLower(c byte) byte { return c + ('a' - 'A') }
func toUpper(c byte) byte { return c - ('a' - 'A') }
