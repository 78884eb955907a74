package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"kifdb/pkg/kif"
)

// ErrInvalidCondition is returned for a search condition outside the
// board or naming no piece.
var ErrInvalidCondition = errors.New("invalid search condition")

// Condition pins one cell (1..81, see kif.Square.Cell) to a piece code
// as seen from the sente side.
type Condition struct {
	Cell int
	Code byte
}

// ParseCondition builds a condition from its wire form, e.g. ("77", "P").
func ParseCondition(cell, code string) (Condition, error) {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil {
		return Condition{}, fmt.Errorf("%w: cell %q", ErrInvalidCondition, cell)
	}
	if len(code) != 1 {
		return Condition{}, fmt.Errorf("%w: code %q", ErrInvalidCondition, code)
	}
	c := Condition{Cell: n, Code: code[0]}
	return c, c.Validate()
}

func (c Condition) Validate() error {
	if c.Cell < 1 || c.Cell > kif.NumCells {
		return fmt.Errorf("%w: cell %d", ErrInvalidCondition, c.Cell)
	}
	if _, ok := kif.PieceFromCode(c.Code); !ok {
		return fmt.Errorf("%w: code %q", ErrInvalidCondition, c.Code)
	}
	return nil
}

// Mirror is the same pattern seen from the gote side.
func (c Condition) Mirror() Condition {
	return Condition{Cell: kif.MirrorCell(c.Cell), Code: kif.SwapCase(c.Code)}
}

func (c Condition) String() string {
	return fmt.Sprintf("%d=%c", c.Cell, c.Code)
}

// Hit is one game matching a search. Ply is the first matching ply and
// IsWin is from the point of view of the searching player.
type Hit struct {
	Filename  string
	Ply       int
	IsWin     bool
	StartedAt string
	IsSente   bool
}

// Search finds games in which the board matched every condition at some
// ply. With usernames it runs twice: once for games the users played as
// sente with the conditions as given, and once for games they played as
// gote with the conditions mirrored. Without usernames only the
// unrestricted sente query runs. Hits are ordered by start time, newest
// first, with undated games last.
func (s *Store) Search(ctx context.Context, conds []Condition, usernames []string) ([]Hit, error) {
	for _, c := range conds {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	usernames = lo.Compact(usernames)

	hits, err := s.search(ctx, conds, "sente_player", usernames, true)
	if err != nil {
		return nil, err
	}
	if len(usernames) > 0 {
		mirrored := lo.Map(conds, func(c Condition, _ int) Condition { return c.Mirror() })
		gote, err := s.search(ctx, mirrored, "gote_player", usernames, false)
		if err != nil {
			return nil, err
		}
		hits = append(hits, gote...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.StartedAt != b.StartedAt {
			return a.StartedAt > b.StartedAt
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.IsSente && !b.IsSente
	})
	return hits, nil
}

func (s *Store) search(ctx context.Context, conds []Condition, playerColumn string, usernames []string, sente bool) ([]Hit, error) {
	where := []string{"1 = 1"}
	args := make([]any, 0, len(conds)+len(usernames))
	for _, c := range conds {
		where = append(where, "b."+cellColumn(c.Cell)+" = ?")
		args = append(args, string(c.Code))
	}
	if len(usernames) > 0 {
		placeholders := strings.Join(lo.Map(usernames, func(string, int) string { return "?" }), ", ")
		where = append(where, fmt.Sprintf("h.%s IN (%s)", playerColumn, placeholders))
		args = append(args, lo.ToAnySlice(usernames)...)
	}

	query := fmt.Sprintf(`
		SELECT h.kif_filename, MIN(b.te), h.is_sente_win, h.started_at
		FROM kif_bodies b
		JOIN kif_headers h ON b.kif_id = h.id
		WHERE %s
		GROUP BY h.id`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit      Hit
			senteWon bool
			started  sql.NullString
		)
		if err := rows.Scan(&hit.Filename, &hit.Ply, &senteWon, &started); err != nil {
			return nil, err
		}
		hit.StartedAt = started.String
		hit.IsSente = sente
		hit.IsWin = senteWon == sente
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
