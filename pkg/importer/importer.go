// Package importer moves kifu files from the inbox into the store. Files
// are parsed concurrently; a single writer saves each game and archives
// its file.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"kifdb/pkg/config"
	"kifdb/pkg/kif"
	"kifdb/pkg/library"
	"kifdb/pkg/store"
)

// Failure is one file that could not be imported.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary reports one import run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Imported []string  `json:"imported"`
	Failed   []Failure `json:"failed"`
}

type Importer struct {
	store     *store.Store
	lib       *library.Library
	workers   int
	createdBy string
	now       func() time.Time

	// mu serializes runs so a file is never imported twice concurrently.
	mu sync.Mutex
}

func New(cfg config.Config, st *store.Store, lib *library.Library) *Importer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Importer{
		store:     st,
		lib:       lib,
		workers:   workers,
		createdBy: cfg.CreatedBy,
		now:       time.Now,
	}
}

type parsed struct {
	path string
	game kif.Game
	err  error
}

// Run imports every kifu currently in the inbox. A file that fails to
// decode, replay or save is logged and reported in the summary and stays
// in the inbox; it never stops the rest of the run. The returned error is
// non-nil only when the inbox cannot be listed or ctx is cancelled.
func (im *Importer) Run(ctx context.Context) (Summary, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	summary := Summary{RunID: uuid.NewString(), Imported: []string{}, Failed: []Failure{}}
	logger := log.With().Str("run", summary.RunID).Logger()

	files, err := im.lib.Collect()
	if err != nil {
		return summary, fmt.Errorf("list inbox: %w", err)
	}
	if len(files) == 0 {
		logger.Info().Str("inbox", im.lib.Inbox).Msg("no kifu files to import")
		return summary, nil
	}
	workers := min(im.workers, len(files))
	logger.Info().Int("files", len(files)).Int("workers", workers).Msg("import started")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string)
	results := make(chan parsed, workers)

	g.Go(func() error {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for path := range jobs {
				select {
				case results <- im.parse(path):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		im.write(ctx, logger, res, &summary)
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	logger.Info().Int("imported", len(summary.Imported)).Int("failed", len(summary.Failed)).Msg("import finished")
	return summary, nil
}

// ImportFile imports a single kifu the same way Run does.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	summary := Summary{RunID: uuid.NewString(), Imported: []string{}, Failed: []Failure{}}
	logger := log.With().Str("run", summary.RunID).Logger()
	im.write(ctx, logger, im.parse(path), &summary)
	return summary, ctx.Err()
}

func (im *Importer) parse(path string) parsed {
	name, lines, err := library.Read(path)
	if err != nil {
		return parsed{path: path, err: err}
	}
	game, err := kif.ParseGame(name, lines, im.now(), im.createdBy)
	return parsed{path: path, game: game, err: err}
}

// write runs on the single writer goroutine.
func (im *Importer) write(ctx context.Context, logger zerolog.Logger, res parsed, summary *Summary) {
	fail := func(err error) {
		logger.Error().Err(err).Str("file", res.path).Msg("import failed")
		summary.Failed = append(summary.Failed, Failure{File: res.path, Error: err.Error()})
	}
	if res.err != nil {
		fail(res.err)
		return
	}
	id, err := im.store.SaveGame(ctx, res.game)
	if err != nil {
		fail(err)
		return
	}
	dst, err := im.lib.Archive(res.path)
	if err != nil {
		fail(err)
		return
	}
	logger.Debug().
		Int64("id", id).
		Str("file", dst).
		Int("moves", len(res.game.Records)).
		Bool("sente_won", res.game.Header.SenteWon).
		Msg("imported")
	summary.Imported = append(summary.Imported, res.game.Header.Filename)
}
