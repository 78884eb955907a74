package kif_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"kifdb/pkg/kif"
)

func TestDecodeBoardMove(t *testing.T) {
	is := is.New(t)
	move, err := kif.DecodePly(1, "７六歩(77)")
	is.NoErr(err)
	is.Equal(move.Ply, 1)
	is.Equal(move.To, kif.Square{File: 7, Rank: 6})
	is.Equal(move.From, kif.Square{File: 7, Rank: 7})
	is.Equal(move.Piece, kif.Piece{Kind: kif.Pawn, Color: kif.Black})
	is.True(!move.Drop)
	is.True(!move.Promote)
}

func TestDecodeDrop(t *testing.T) {
	is := is.New(t)
	move, err := kif.Decode("７四歩打", kif.White)
	is.NoErr(err)
	is.True(move.Drop)
	is.Equal(move.To, kif.Square{File: 7, Rank: 4})
	is.Equal(move.From, kif.Square{})
	is.Equal(move.Piece, kif.Piece{Kind: kif.Pawn, Color: kif.White})
}

func TestDecodePromotionIsParsedOnly(t *testing.T) {
	is := is.New(t)
	move, err := kif.DecodePly(11, "２二飛成(24)")
	is.NoErr(err)
	is.True(move.Promote)
	is.Equal(move.Piece.Kind, kif.Rook)
	is.Equal(move.From, kif.Square{File: 2, Rank: 4})

	move, err = kif.DecodePly(12, "２二角不成(88)")
	is.NoErr(err)
	is.True(!move.Promote)
	is.Equal(move.Piece, kif.Piece{Kind: kif.Bishop, Color: kif.White})
}

func TestDecodeAlreadyPromotedPiece(t *testing.T) {
	is := is.New(t)
	for notation, kind := range map[string]kif.Kind{
		"５五成銀(44)": kif.Silver,
		"１一成香(12)": kif.Lance,
		"５三成桂(45)": kif.Knight,
	} {
		move, err := kif.DecodePly(21, notation)
		is.NoErr(err)
		is.True(!move.Promote) // moving a promoted piece is not a promotion
		is.Equal(move.Piece.Kind, kind)
	}

	move, err := kif.DecodePly(21, "５五銀成(44)")
	is.NoErr(err)
	is.True(move.Promote)
	is.Equal(move.Piece.Kind, kif.Silver)
}

func TestDecodeKingGlyphs(t *testing.T) {
	is := is.New(t)
	for _, notation := range []string{"５八玉(59)", "５八王(59)"} {
		move, err := kif.DecodePly(1, notation)
		is.NoErr(err)
		is.Equal(move.Piece.Kind, kif.King)
	}
}

func TestDecodeUnknownDesignator(t *testing.T) {
	is := is.New(t)
	move, err := kif.DecodePly(30, "２一龍(28)")
	is.NoErr(err)
	is.Equal(move.Piece, kif.Piece{Kind: kif.Unknown, Color: kif.White})
	is.Equal(move.Piece.Code(), byte('?'))
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		notation string
		want     error
		token    string
	}{
		{notation: "７六歩", want: kif.ErrUnsupportedNotation},
		{notation: "投了", want: kif.ErrMalformedNotation},
		{notation: "", want: kif.ErrMalformedNotation},
		{notation: "同銀(48)", want: kif.ErrMalformedNotation},
		{notation: "７六歩(76)", want: kif.ErrMalformedNotation},
		{notation: "7六歩(77)", want: kif.ErrUnrecognizedGlyph, token: "7"},
		{notation: "７x歩(77)", want: kif.ErrUnrecognizedGlyph, token: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.notation, func(t *testing.T) {
			is := is.New(t)
			_, err := kif.Decode(tt.notation, kif.Black)
			is.True(errors.Is(err, tt.want))
			var nerr *kif.NotationError
			is.True(errors.As(err, &nerr))
			is.Equal(nerr.Notation, tt.notation)
			is.Equal(nerr.Token, tt.token)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		notation string
		prev     string
		want     string
	}{
		{name: "full-width space", notation: "同　銀(48)", prev: "３七歩成(36)", want: "３七銀(48)"},
		{name: "half-width space", notation: "同 銀(48)", prev: "３七歩成(36)", want: "３七銀(48)"},
		{name: "no space", notation: "同銀(48)", prev: "３七歩成(36)", want: "３七銀(48)"},
		{name: "drop previous", notation: "同　歩(23)", prev: "２四歩打", want: "２四歩(23)"},
		{name: "no previous", notation: "同　銀(48)", prev: "", want: "同銀(48)"},
		{name: "undecodable previous", notation: "同　銀(48)", prev: "投了", want: "同銀(48)"},
		{name: "no shorthand", notation: "７六歩(77)", prev: "３四歩(33)", want: "７六歩(77)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(kif.Normalize(tt.notation, tt.prev), tt.want)
		})
	}
}

func TestNormalizeThenDecodeKeepsDestination(t *testing.T) {
	is := is.New(t)
	prev, err := kif.DecodePly(5, "３七歩成(36)")
	is.NoErr(err)
	move, err := kif.DecodePly(6, kif.Normalize("同　銀(28)", prev.Notation))
	is.NoErr(err)
	is.Equal(move.To, prev.To)
	is.True(move.From != move.To)
}
