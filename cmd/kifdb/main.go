// Command kifdb imports shogi kifu files into a searchable position
// database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kifdb/pkg/config"
	"kifdb/pkg/importer"
	"kifdb/pkg/library"
	"kifdb/pkg/store"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "kifdb",
	Short:         "Import shogi kifu files and search them by position",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "dotenv file (default: nearest .env above the working directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(importCmd, watchCmd, serveCmd, searchCmd, replayCmd, exportCmd, statsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("kifdb failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	logger.Debug().Msg("Debug logging is on")
}

// app bundles what the database-backed commands share.
type app struct {
	cfg   config.Config
	store *store.Store
	lib   *library.Library
	imp   *importer.Importer
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Debug && !debug {
		setupLogging(true)
	}
	log.Debug().
		Str("kif_path", cfg.KIFPath).
		Str("database", cfg.DatabasePath).
		Strs("usernames", cfg.Usernames).
		Int("workers", cfg.Workers).
		Msg("loaded config")

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	lib := library.New(cfg)
	return &app{cfg: cfg, store: st, lib: lib, imp: importer.New(cfg, st, lib)}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}
}
