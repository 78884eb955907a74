package kif

import (
	"iter"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// MoveLine is one ply as written in the record, before normalization.
type MoveLine struct {
	Ply      int
	Notation string
}

// MoveLines yields the move lines of a kifu body in order. Lines that do
// not start with a ply number are skipped, as are lines whose number does
// not parse or is not followed by whitespace.
func MoveLines(lines []string) iter.Seq[MoveLine] {
	return func(yield func(MoveLine) bool) {
		for _, line := range lines {
			ml, ok := parseMoveLine(line)
			if !ok {
				continue
			}
			if !yield(ml) {
				return
			}
		}
	}
}

// variationMarker opens a branch block; plies after it restart from the
// branch point and are not part of the game as played.
const variationMarker = "変化"

// MainLine returns the lines before the first variation block.
func MainLine(lines []string) []string {
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), variationMarker) {
			return lines[:i]
		}
	}
	return lines
}

// ExtractMoves collects MoveLines.
func ExtractMoves(lines []string) []MoveLine {
	return slices.Collect(MoveLines(lines))
}

func parseMoveLine(line string) (MoveLine, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] < '0' || line[0] > '9' {
		return MoveLine{}, false
	}
	ply, rest, ok := splitPly(line)
	if !ok {
		return MoveLine{}, false
	}
	return MoveLine{Ply: ply, Notation: notationFrom(rest)}, true
}

// splitPly separates the leading ply number from the rest of the line.
func splitPly(line string) (int, string, bool) {
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx < 0 {
		return 0, "", false
	}
	ply, err := strconv.Atoi(line[:idx])
	if err != nil {
		return 0, "", false
	}
	return ply, line[idx:], true
}

// notationFrom cuts the notation out of the text following the ply number.
// Origin squares and elapsed times both use parentheses, so a board move
// is cut after the first closing one; drops carry no origin and end at
// the first whitespace.
func notationFrom(rest string) string {
	if strings.Contains(rest, dropGlyph) {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	if idx := strings.Index(rest, ")"); idx >= 0 {
		return strings.TrimSpace(rest[:idx+1])
	}
	return strings.TrimSpace(rest)
}
