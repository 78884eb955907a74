// Package export writes stored games to parquet and summarizes exports.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"

	"kifdb/pkg/kif"
	"kifdb/pkg/store"
)

type PlyRecord struct {
	Ply      int32  `parquet:"name=te, type=INT32"`
	Notation string `parquet:"name=fugo, type=BYTE_ARRAY, convertedtype=UTF8"`
	Board    string `parquet:"name=board, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type GameRecord struct {
	Filename    string      `parquet:"name=kif_filename, type=BYTE_ARRAY, convertedtype=UTF8"`
	SentePlayer string      `parquet:"name=sente_player, type=BYTE_ARRAY, convertedtype=UTF8"`
	GotePlayer  string      `parquet:"name=gote_player, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsSenteWin  bool        `parquet:"name=is_sente_win, type=BOOLEAN"`
	StartedAt   string      `parquet:"name=started_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	EndedAt     string      `parquet:"name=ended_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount   int32       `parquet:"name=move_count, type=INT32"`
	Plies       []PlyRecord `parquet:"name=plies, type=LIST"`
}

// FromGame flattens a game; each ply carries the board as an SFEN field.
func FromGame(g kif.Game) GameRecord {
	plies := make([]PlyRecord, 0, len(g.Records))
	for _, rec := range g.Records {
		plies = append(plies, PlyRecord{
			Ply:      int32(rec.Ply),
			Notation: rec.Notation,
			Board:    rec.Board.SFEN(),
		})
	}
	return GameRecord{
		Filename:    g.Header.Filename,
		SentePlayer: g.Header.Sente,
		GotePlayer:  g.Header.Gote,
		IsSenteWin:  g.Header.SenteWon,
		StartedAt:   g.Header.StartedAt,
		EndedAt:     g.Header.EndedAt,
		MoveCount:   int32(len(g.Records)),
		Plies:       plies,
	}
}

// Export streams every stored game into a parquet file at path and
// returns the number of games written.
func Export(ctx context.Context, st *store.Store, path string, parallel int64) (int, error) {
	if parallel <= 0 {
		parallel = 1
	}
	records := make(chan GameRecord, parallel)
	written := 0
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(records)
		return st.Games(gctx, func(game kif.Game) error {
			select {
			case records <- FromGame(game):
				written++
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		err := WriteParquet(path, records, parallel)
		if err != nil {
			// Unblock the producer.
			for range records {
			}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return written, nil
}

func WriteParquet(path string, records <-chan GameRecord, parallel int64) error {
	log.Info().Str("path", path).Msg("writing parquet")

	schema, err := parseSchema(schemaJSON)
	if err != nil {
		return err
	}
	if err := schema.check(reflect.TypeFor[GameRecord]()); err != nil {
		return err
	}

	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(GameRecord), parallel)
	if err != nil {
		return err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for record := range records {
		if err := parquetWriter.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", record.Filename, err)
		}
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return err
	}
	return fileWriter.Close()
}

func ReadParquet(path string, parallel int64) ([]GameRecord, error) {
	absPath := path
	if !filepath.IsAbs(path) {
		if resolved, err := filepath.Abs(path); err == nil {
			absPath = resolved
		}
	}
	fileReader, err := local.NewLocalFileReader(absPath)
	if err != nil {
		return nil, err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(GameRecord), parallel)
	if err != nil {
		return nil, err
	}
	defer parquetReader.ReadStop()

	num := int(parquetReader.GetNumRows())
	records := make([]GameRecord, 0, num)
	batchSize := 1024
	for offset := 0; offset < num; offset += batchSize {
		remain := num - offset
		if remain < batchSize {
			batchSize = remain
		}
		batch := make([]GameRecord, batchSize)
		if err := parquetReader.Read(&batch); err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	return records, nil
}
