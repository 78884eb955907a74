package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kifdb/pkg/export"
	"kifdb/pkg/importer"
	"kifdb/pkg/kif"
	"kifdb/pkg/library"
	"kifdb/pkg/server"
	"kifdb/pkg/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import every kifu in the inbox once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.imp.Run(cmd.Context())
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	},
}

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import the inbox, then keep importing files as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.imp.Watch(cmd.Context(), watchDebounce)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import and search API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.store, a.lib, a.imp, a.cfg.Usernames)
		return srv.ListenContext(ctx, a.cfg.ListenAddr)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search CELL=CODE ...",
	Short: "Search stored games for a board pattern",
	Long: `Each argument pins one board cell (1-81, rank 1 first, file 9 first
within a rank) to a piece code: uppercase for sente, lowercase for gote.
Patterns are written from your own side of the board.`,
	Example: "  kifdb search 77=P 88=B",
	RunE: func(cmd *cobra.Command, args []string) error {
		conds := make([]store.Condition, 0, len(args))
		for _, arg := range args {
			cell, code, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("%w: %q, want CELL=CODE", store.ErrInvalidCondition, arg)
			}
			cond, err := store.ParseCondition(cell, code)
			if err != nil {
				return err
			}
			conds = append(conds, cond)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		hits, err := a.store.Search(cmd.Context(), conds, a.cfg.Usernames)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSIDE\tRESULT\tPLY\tFILE")
		for _, h := range hits {
			side, result := "gote", "loss"
			if h.IsSente {
				side = "sente"
			}
			if h.IsWin {
				result = "win"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", h.StartedAt, side, result, h.Ply, a.lib.Link(h.Filename))
		}
		return w.Flush()
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode one kifu and print the board after every ply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, lines, err := library.Read(args[0])
		if err != nil {
			return err
		}
		outcome := kif.ResolveOutcome(lines)
		game, replayErr := kif.ParseGame(name, lines, time.Now(), "replay")

		h := game.Header
		fmt.Printf("file:    %s\n", h.Filename)
		fmt.Printf("sente:   %s\n", h.Sente)
		fmt.Printf("gote:    %s\n", h.Gote)
		fmt.Printf("started: %s\n", h.StartedAt)
		fmt.Printf("ended:   %s\n", h.EndedAt)
		fmt.Printf("winner:  %s (%s at ply %d)\n", winner(h.SenteWon), outcome.Reason, outcome.Ply)
		fmt.Printf("%4d %-12s %s\n", 0, "", kif.NewBoard().Snapshot().SFEN())
		for _, rec := range game.Records {
			fmt.Printf("%4d %-12s %s\n", rec.Ply, rec.Notation, rec.Board.SFEN())
		}
		return replayErr
	},
}

var (
	exportOut      string
	exportParallel int64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored game to a parquet file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := export.Export(cmd.Context(), a.store, exportOut, exportParallel)
		if err != nil {
			return err
		}
		log.Info().Int("games", n).Str("path", exportOut).Msg("export finished")
		return nil
	},
}

var (
	statsIn  string
	statsTop int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-player wins and losses from a parquet export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsTop <= 0 {
			return errors.New("top must be > 0")
		}
		records, err := export.ReadParquet(statsIn, 4)
		if err != nil {
			return err
		}
		stats := export.PlayerStats(records)
		fmt.Printf("games: %d\n", len(records))
		fmt.Printf("players: %d\n", len(stats))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLAYER\tGAMES\tWINS\tLOSSES\tSENTE\tGOTE\tWIN%")
		for _, s := range stats[:min(statsTop, len(stats))] {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f\n",
				s.Name, s.Games, s.Wins, s.Losses, s.AsSente, s.AsGote, 100*s.WinRate())
		}
		return w.Flush()
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", importer.DefaultDebounce, "quiet period before a new file is imported")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "kifdb.parquet", "output parquet file")
	exportCmd.Flags().Int64Var(&exportParallel, "parallel", 4, "parquet writer parallelism")
	statsCmd.Flags().StringVarP(&statsIn, "input", "i", "kifdb.parquet", "input parquet file")
	statsCmd.Flags().IntVar(&statsTop, "top", 20, "number of players to list")
}

func printSummary(s importer.Summary) {
	fmt.Printf("run:      %s\n", s.RunID)
	fmt.Printf("imported: %d\n", len(s.Imported))
	fmt.Printf("failed:   %d\n", len(s.Failed))
	for _, f := range s.Failed {
		fmt.Printf("  %s: %s\n", f.File, f.Error)
	}
}

func winner(senteWon bool) string {
	if senteWon {
		return kif.Black.String()
	}
	return kif.White.String()
}
