package kif

import (
	"strings"
	"time"
)

const (
	resignMarker  = "投了"
	illegalMarker = "反則手"
	timeoutMarker = "時間切れ"

	annotationPrefix = "*"
)

// terminalWords end a replay when they appear as a move.
var terminalWords = []string{
	"投了", "中断", "持将棋", "千日手", "詰み", "切れ負け",
	"反則勝ち", "反則負け", "入玉勝ち", "勝ち宣言",
}

// IsTerminal reports whether a move notation is a game-ending word rather
// than a move.
func IsTerminal(notation string) bool {
	for _, w := range terminalWords {
		if strings.Contains(notation, w) {
			return true
		}
	}
	return false
}

// Reason names how the winner was determined.
type Reason string

const (
	ReasonResign   Reason = "resign"
	ReasonIllegal  Reason = "illegal"
	ReasonTimeout  Reason = "timeout"
	ReasonLastMove Reason = "last_move"
	ReasonNone     Reason = "none"
)

// Outcome is the result of scanning a kifu for terminal markers.
type Outcome struct {
	SenteWon bool
	Reason   Reason
	// Ply is the ply the decision was attributed to, 0 when none.
	Ply int
}

// ResolveOutcome decides which side won.
//
// A "*" annotation line containing 反則手 or 時間切れ carries no ply of its
// own, so it is attributed to the last ply seen before it. After an
// illegal move the mover of that ply lost; a timeout is read the other way
// round. A move line with 投了 means its mover resigned. With no marker at
// all the mover of the last ply is taken to have won. Variation blocks
// and any ply number that does not increase end the scan.
func ResolveOutcome(lines []string) Outcome {
	lastPly := 0
	for _, line := range MainLine(lines) {
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, annotationPrefix) {
			switch {
			case strings.Contains(trim, illegalMarker):
				return markerOutcome(lastPly, ReasonIllegal, lastPly%2 == 0)
			case strings.Contains(trim, timeoutMarker):
				return markerOutcome(lastPly, ReasonTimeout, lastPly%2 == 1)
			}
			continue
		}
		if trim == "" || trim[0] < '0' || trim[0] > '9' {
			continue
		}
		ply, rest, ok := splitPly(trim)
		if !ok {
			continue
		}
		if ply <= lastPly {
			break
		}
		if strings.Contains(rest, resignMarker) {
			return Outcome{SenteWon: ply%2 == 0, Reason: ReasonResign, Ply: ply}
		}
		lastPly = ply
	}
	if lastPly == 0 {
		return Outcome{SenteWon: true, Reason: ReasonNone}
	}
	return Outcome{SenteWon: lastPly%2 == 1, Reason: ReasonLastMove, Ply: lastPly}
}

// markerOutcome handles a terminal marker with no ply of its own. Without
// any preceding ply the marker cannot be attributed to a side.
func markerOutcome(ply int, reason Reason, senteWon bool) Outcome {
	if ply == 0 {
		return Outcome{SenteWon: true, Reason: ReasonNone}
	}
	return Outcome{SenteWon: senteWon, Reason: reason, Ply: ply}
}

// Header is the per-game record persisted next to the ply bodies.
type Header struct {
	Filename  string
	Sente     string
	Gote      string
	SenteWon  bool
	StartedAt string // empty when absent
	EndedAt   string // empty when absent
	CreatedAt time.Time
	CreatedBy string
}

// TimestampLayout is the layout of header timestamps once normalized.
const TimestampLayout = "2006-01-02 15:04:05"

// ParseHeader reads the player and date headers and resolves the outcome.
func ParseHeader(filename string, lines []string) Header {
	return Header{
		Filename:  filename,
		Sente:     headerValue(lines, "先手"),
		Gote:      headerValue(lines, "後手"),
		SenteWon:  ResolveOutcome(lines).SenteWon,
		StartedAt: normalizeDate(headerValue(lines, "開始日時")),
		EndedAt:   normalizeDate(headerValue(lines, "終了日時")),
	}
}

// WonBy projects the outcome onto a set of player names: ok is false when
// none of the names played the game.
func (h Header) WonBy(names []string) (won bool, ok bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		switch name {
		case h.Sente:
			return h.SenteWon, true
		case h.Gote:
			return !h.SenteWon, true
		}
	}
	return false, false
}

func headerValue(lines []string, key string) string {
	prefixes := []string{key + "：", key + ":"}
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		for _, prefix := range prefixes {
			if strings.HasPrefix(trim, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(trim, prefix))
			}
		}
	}
	return ""
}

func normalizeDate(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "/", "-")
}
