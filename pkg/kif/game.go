package kif

import (
	"fmt"
	"time"
)

// Record is one replayed ply: the normalized notation and the board after it.
type Record struct {
	Ply      int
	Notation string
	Board    Snapshot
}

// Game is a parsed kifu ready for persistence.
type Game struct {
	Header  Header
	Records []Record
}

// Replay runs the move pipeline over a kifu body: extract, normalize,
// decode, apply. It stops at the first terminal word, at a variation
// block, or at a ply number that does not increase. On a decode or apply
// error the records replayed so far are returned with the error; the
// board cannot be trusted past that point.
func Replay(lines []string) ([]Record, error) {
	board := NewBoard()
	var records []Record
	prev := ""
	lastPly := 0
	for ml := range MoveLines(MainLine(lines)) {
		if IsTerminal(ml.Notation) || ml.Ply <= lastPly {
			break
		}
		notation := Normalize(ml.Notation, prev)
		move, err := DecodePly(ml.Ply, notation)
		if err != nil {
			return records, fmt.Errorf("move %d: %w", ml.Ply, err)
		}
		if err := board.Apply(move); err != nil {
			return records, fmt.Errorf("move %d: %w", ml.Ply, err)
		}
		records = append(records, Record{Ply: ml.Ply, Notation: notation, Board: board.Snapshot()})
		prev = notation
		lastPly = ml.Ply
	}
	return records, nil
}

// ParseGame builds the header and ply records for one kifu. createdAt and
// createdBy are stamped onto the header as given.
func ParseGame(filename string, lines []string, createdAt time.Time, createdBy string) (Game, error) {
	header := ParseHeader(filename, lines)
	header.CreatedAt = createdAt
	header.CreatedBy = createdBy
	records, err := Replay(lines)
	if err != nil {
		return Game{Header: header, Records: records}, fmt.Errorf("%s: %w", filename, err)
	}
	return Game{Header: header, Records: records}, nil
}
