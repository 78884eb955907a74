package kif_test

import (
	"testing"

	"github.com/matryer/is"

	"kifdb/pkg/kif"
)

func TestResolveOutcomeResignation(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		senteWon bool
		ply      int
	}{
		{
			name:     "odd ply resigns",
			lines:    []string{"44 ３三角成(77)   ( 0:01/00:00:10)", "45 投了   ( 0:05/00:00:20)"},
			senteWon: false,
			ply:      45,
		},
		{
			name:     "even ply resigns",
			lines:    []string{"45 ３三角成(77)", "46 投了"},
			senteWon: true,
			ply:      46,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got := kif.ResolveOutcome(tt.lines)
			is.Equal(got, kif.Outcome{SenteWon: tt.senteWon, Reason: kif.ReasonResign, Ply: tt.ply})
		})
	}
}

func TestResolveOutcomeMarkerPolarity(t *testing.T) {
	is := is.New(t)
	base := []string{
		"先手：Alice",
		"  29 ７六歩(77)   ( 0:01/00:00:10)",
		"  30 ３四歩(33)   ( 0:01/00:00:10)",
	}
	illegal := kif.ResolveOutcome(append(append([]string{}, base...), "*反則手"))
	timeout := kif.ResolveOutcome(append(append([]string{}, base...), "*時間切れ"))

	is.Equal(illegal, kif.Outcome{SenteWon: true, Reason: kif.ReasonIllegal, Ply: 30})
	is.Equal(timeout, kif.Outcome{SenteWon: false, Reason: kif.ReasonTimeout, Ply: 30})
	is.True(illegal.SenteWon != timeout.SenteWon)
}

func TestResolveOutcomeStopsAtFirstMarker(t *testing.T) {
	is := is.New(t)
	lines := []string{
		"11 ７六歩(77)",
		"*反則手",
		"12 投了",
	}
	is.Equal(kif.ResolveOutcome(lines), kif.Outcome{SenteWon: false, Reason: kif.ReasonIllegal, Ply: 11})
}

func TestResolveOutcomeIgnoresMarkerWordsOutsideAnnotations(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{
			name:  "header",
			lines: []string{"棋戦：時間切れ負けあり 10分切れ負け", "1 ７六歩(77)", "2 ３四歩(33)", "3 投了"},
		},
		{
			name:  "comment",
			lines: []string{"1 ７六歩(77)", "*次に反則手を指すと負け", "2 ３四歩(33)", "3 投了"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(kif.ResolveOutcome(tt.lines), kif.Outcome{SenteWon: false, Reason: kif.ReasonResign, Ply: 3})
		})
	}
}

func TestResolveOutcomeMainLineOnly(t *testing.T) {
	is := is.New(t)
	lines := []string{
		"1 ７六歩(77)",
		"2 ３四歩(33)",
		"3 ２六歩(27)",
		"4 ８四歩(83)",
		"",
		"変化：3手",
		"3 投了",
	}
	is.Equal(kif.ResolveOutcome(lines), kif.Outcome{SenteWon: false, Reason: kif.ReasonLastMove, Ply: 4})

	restarted := []string{"1 ７六歩(77)", "2 ３四歩(33)", "2 投了"}
	is.Equal(kif.ResolveOutcome(restarted), kif.Outcome{SenteWon: false, Reason: kif.ReasonLastMove, Ply: 2})
}

func TestResolveOutcomeFallback(t *testing.T) {
	is := is.New(t)
	even := []string{"11 ７六歩(77)", "12 ３四歩(33)", "まで12手で中断"}
	is.Equal(kif.ResolveOutcome(even), kif.Outcome{SenteWon: false, Reason: kif.ReasonLastMove, Ply: 12})

	odd := []string{"13 ２六歩(27)"}
	is.Equal(kif.ResolveOutcome(odd), kif.Outcome{SenteWon: true, Reason: kif.ReasonLastMove, Ply: 13})
}

func TestResolveOutcomeNoMoves(t *testing.T) {
	is := is.New(t)
	is.Equal(kif.ResolveOutcome([]string{"先手：Alice"}), kif.Outcome{SenteWon: true, Reason: kif.ReasonNone})
	is.Equal(kif.ResolveOutcome([]string{"*時間切れ"}), kif.Outcome{SenteWon: true, Reason: kif.ReasonNone})
}

func TestParseHeader(t *testing.T) {
	is := is.New(t)
	h := kif.ParseHeader("kakugawari.kif", readLines(t, "kakugawari.kif"))
	is.Equal(h.Filename, "kakugawari.kif")
	is.Equal(h.Sente, "Ringosky")
	is.Equal(h.Gote, "opponent")
	is.Equal(h.StartedAt, "2025-07-10 11:28:32")
	is.Equal(h.EndedAt, "2025-07-10 11:40:05")
	is.True(h.SenteWon)
}

func TestParseHeaderMissingFields(t *testing.T) {
	is := is.New(t)
	h := kif.ParseHeader("x.kif", []string{"先手: Alice ", "後手の持駒：なし"})
	is.Equal(h.Sente, "Alice")
	is.Equal(h.Gote, "")
	is.Equal(h.StartedAt, "")
	is.Equal(h.EndedAt, "")
}

func TestHeaderWonBy(t *testing.T) {
	is := is.New(t)
	h := kif.Header{Sente: "Alice", Gote: "Bob", SenteWon: false}

	won, ok := h.WonBy([]string{"Bob"})
	is.True(ok)
	is.True(won)

	won, ok = h.WonBy([]string{"Carol", "Alice"})
	is.True(ok)
	is.True(!won)

	_, ok = h.WonBy([]string{"", "Carol"})
	is.True(!ok)
}
