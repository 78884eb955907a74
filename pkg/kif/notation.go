package kif

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	sameSquareGlyph = "同"
	dropGlyph       = "打"
	promoteGlyph    = "成"
	noPromoteGlyph  = "不成"
)

// Move is one decoded ply.
type Move struct {
	Ply  int
	To   Square
	From Square // zero for drops
	// Piece carries the kind named by the notation and the side derived
	// from ply parity. Board moves ignore it and move whatever occupies From.
	Piece Piece
	Drop  bool
	// Promote is parsed but never applied to the board.
	Promote  bool
	Notation string
}

// moveRe is the move grammar: destination file and rank glyphs, a one or
// two glyph piece designator, an optional ASCII-digit origin and an
// optional drop marker. Promotion glyphs are removed before matching.
var moveRe = regexp.MustCompile(`^(.)(.)([^\s()（）打]{1,2})(?:[(（]([1-9])([1-9])[)）])?(打)?$`)

var destRe = regexp.MustCompile(`^([１２３４５６７８９])([一二三四五六七八九])`)

// promoteRe finds a promotion: 成 directly after a promotable piece. A
// leading 成 names an already promoted piece, as in 成銀.
var promoteRe = regexp.MustCompile(`[歩香桂銀角飛]成`)

var spaceStripper = strings.NewReplacer(" ", "", "　", "")

var fileGlyphs = map[string]int{
	"１": 1, "２": 2, "３": 3, "４": 4, "５": 5,
	"６": 6, "７": 7, "８": 8, "９": 9,
}

var rankGlyphs = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9,
}

var pieceGlyphs = map[rune]Kind{
	'歩': Pawn,
	'香': Lance,
	'桂': Knight,
	'銀': Silver,
	'金': Gold,
	'角': Bishop,
	'飛': Rook,
	'玉': King,
	'王': King,
}

// Normalize resolves the same-square shorthand against the previous ply's
// notation. Spaces are always removed. When there is no usable previous
// destination the shorthand is left in place for Decode to reject.
func Normalize(notation, prev string) string {
	work := spaceStripper.Replace(notation)
	if !strings.Contains(work, sameSquareGlyph) {
		return work
	}
	match := destRe.FindString(spaceStripper.Replace(prev))
	if match == "" {
		return work
	}
	return strings.Replace(work, sameSquareGlyph, match, 1)
}

// DecodePly decodes a notation for the given ply, taking the side to move
// from ply parity.
func DecodePly(ply int, notation string) (Move, error) {
	move, err := Decode(notation, ColorForPly(ply))
	if err != nil {
		return Move{}, err
	}
	move.Ply = ply
	return move, nil
}

// Decode parses a normalized notation such as "７六歩(77)" or "５五角打".
func Decode(notation string, color Color) (Move, error) {
	work := strings.TrimSpace(notation)
	promote := false
	if strings.Contains(work, noPromoteGlyph) {
		work = strings.Replace(work, noPromoteGlyph, "", 1)
	} else {
		promote = promoteRe.MatchString(work)
	}
	work = strings.ReplaceAll(work, promoteGlyph, "")

	match := moveRe.FindStringSubmatch(work)
	if match == nil {
		return Move{}, &NotationError{Notation: notation, Err: ErrMalformedNotation}
	}
	file, ok := fileGlyphs[match[1]]
	if !ok {
		return Move{}, &NotationError{Notation: notation, Token: match[1], Err: ErrUnrecognizedGlyph}
	}
	rank, ok := rankGlyphs[match[2]]
	if !ok {
		return Move{}, &NotationError{Notation: notation, Token: match[2], Err: ErrUnrecognizedGlyph}
	}

	move := Move{
		To:       Square{File: file, Rank: rank},
		Piece:    Piece{Kind: designatorKind(match[3]), Color: color},
		Promote:  promote,
		Notation: notation,
	}
	hasFrom := match[4] != ""
	switch {
	case match[6] != "":
		move.Drop = true
	case hasFrom:
		move.From = Square{File: int(match[4][0] - '0'), Rank: int(match[5][0] - '0')}
		if move.From == move.To {
			return Move{}, &NotationError{Notation: notation, Err: ErrMalformedNotation}
		}
	default:
		return Move{}, &NotationError{Notation: notation, Err: ErrUnsupportedNotation}
	}
	return move, nil
}

func designatorKind(designator string) Kind {
	r, _ := utf8.DecodeRuneInString(designator)
	if kind, ok := pieceGlyphs[r]; ok {
		return kind
	}
	return Unknown
}
