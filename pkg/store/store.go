// Package store persists parsed games in SQLite: one header row per game
// and one body row per ply carrying the 81 board cells.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"kifdb/pkg/kif"
)

// ErrNotFound is returned when no game is stored under a filename.
var ErrNotFound = errors.New("game not found")

// hotCells get their own index; they are the squares most searches pin.
var hotCells = []int{21, 25, 29, 53, 57, 61, 77, 81}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func cellColumn(cell int) string {
	return fmt.Sprintf("c%d", cell)
}

var cellColumns = lo.Map(lo.RangeFrom(1, kif.NumCells), func(cell int, _ int) string {
	return cellColumn(cell)
})

func (s *Store) initialize(ctx context.Context) error {
	headers := `
	CREATE TABLE IF NOT EXISTS kif_headers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kif_filename TEXT NOT NULL UNIQUE,
		sente_player TEXT NOT NULL,
		gote_player TEXT NOT NULL,
		is_sente_win INTEGER NOT NULL,
		started_at TEXT,
		ended_at TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kif_headers_sente ON kif_headers(sente_player);
	CREATE INDEX IF NOT EXISTS idx_kif_headers_gote ON kif_headers(gote_player);
	`

	cols := lo.Map(cellColumns, func(col string, _ int) string {
		return "\t\t" + col + " TEXT"
	})
	bodies := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS kif_bodies (
		kif_id INTEGER NOT NULL REFERENCES kif_headers(id) ON DELETE CASCADE,
		te INTEGER NOT NULL,
		fugo TEXT NOT NULL,
%s,
		PRIMARY KEY (kif_id, te)
	);
	`, strings.Join(cols, ",\n"))

	var indexes strings.Builder
	for _, cell := range hotCells {
		col := cellColumn(cell)
		fmt.Fprintf(&indexes, "CREATE INDEX IF NOT EXISTS idx_kif_bodies_%s ON kif_bodies(%s);\n", col, col)
	}

	for _, stmt := range []string{headers, bodies, indexes.String()} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

var insertBodySQL = fmt.Sprintf(
	"INSERT INTO kif_bodies (kif_id, te, fugo, %s) VALUES (?, ?, ?%s)",
	strings.Join(cellColumns, ", "),
	strings.Repeat(", ?", kif.NumCells),
)

// SaveGame stores a game in one transaction, replacing any game already
// stored under the same filename. It returns the new header id.
func (s *Store) SaveGame(ctx context.Context, game kif.Game) (int64, error) {
	h := game.Header
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kif_bodies WHERE kif_id IN (SELECT id FROM kif_headers WHERE kif_filename = ?)`,
		h.Filename); err != nil {
		return 0, fmt.Errorf("delete bodies of %s: %w", h.Filename, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kif_headers WHERE kif_filename = ?`, h.Filename); err != nil {
		return 0, fmt.Errorf("delete header of %s: %w", h.Filename, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO kif_headers (kif_filename, sente_player, gote_player, is_sente_win, started_at, ended_at, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Filename, h.Sente, h.Gote, h.SenteWon,
		nullString(h.StartedAt), nullString(h.EndedAt),
		h.CreatedAt.Format(kif.TimestampLayout), h.CreatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert header of %s: %w", h.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, insertBodySQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	args := make([]any, 0, 3+kif.NumCells)
	for _, rec := range game.Records {
		args = append(args[:0], id, rec.Ply, rec.Notation)
		for _, cell := range rec.Board.Cells() {
			args = append(args, nullString(cell))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert move %d of %s: %w", rec.Ply, h.Filename, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Game loads one stored game with its plies in order.
func (s *Store) Game(ctx context.Context, filename string) (kif.Game, error) {
	var (
		id             int64
		h              kif.Header
		started, ended sql.NullString
		createdAt      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kif_filename, sente_player, gote_player, is_sente_win, started_at, ended_at, created_at, created_by
		FROM kif_headers WHERE kif_filename = ?`, filename).
		Scan(&id, &h.Filename, &h.Sente, &h.Gote, &h.SenteWon, &started, &ended, &createdAt, &h.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return kif.Game{}, fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	if err != nil {
		return kif.Game{}, err
	}
	h.StartedAt = started.String
	h.EndedAt = ended.String
	if h.CreatedAt, err = time.ParseInLocation(kif.TimestampLayout, createdAt, time.Local); err != nil {
		return kif.Game{}, fmt.Errorf("%s: created_at: %w", filename, err)
	}

	records, err := s.records(ctx, id)
	if err != nil {
		return kif.Game{}, fmt.Errorf("%s: %w", filename, err)
	}
	return kif.Game{Header: h, Records: records}, nil
}

func (s *Store) records(ctx context.Context, id int64) ([]kif.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT te, fugo, %s FROM kif_bodies WHERE kif_id = ? ORDER BY te", strings.Join(cellColumns, ", ")),
		id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []kif.Record
	cells := make([]sql.NullString, kif.NumCells)
	dest := make([]any, 0, 2+kif.NumCells)
	for rows.Next() {
		var rec kif.Record
		dest = append(dest[:0], &rec.Ply, &rec.Notation)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := lo.Map(cells, func(c sql.NullString, _ int) string { return c.String })
		if rec.Board, err = kif.SnapshotFromCells(values); err != nil {
			return nil, fmt.Errorf("move %d: %w", rec.Ply, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Filenames lists stored games by filename.
func (s *Store) Filenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kif_filename FROM kif_headers ORDER BY kif_filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Games calls fn for every stored game in filename order, stopping at
// the first error.
func (s *Store) Games(ctx context.Context, fn func(kif.Game) error) error {
	names, err := s.Filenames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		game, err := s.Game(ctx, name)
		if err != nil {
			return err
		}
		if err := fn(game); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored games.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kif_headers`).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
