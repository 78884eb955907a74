// Package server exposes import and search over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"kifdb/pkg/importer"
	"kifdb/pkg/library"
	"kifdb/pkg/store"
)

const maxJSONBodyBytes int64 = 1 << 20

// Server wires the HTTP layer to the store, the library and the importer.
type Server struct {
	store     *store.Store
	lib       *library.Library
	imp       *importer.Importer
	usernames []string

	// gatherMu guards the collected directory, which each search rebuilds.
	gatherMu sync.Mutex

	srvMu sync.Mutex
	srv   *http.Server
}

func New(st *store.Store, lib *library.Library, imp *importer.Importer, usernames []string) *Server {
	return &Server{store: st, lib: lib, imp: imp, usernames: usernames}
}

// Listen starts the HTTP server and blocks until it is closed.
func (s *Server) Listen(addr string) error {
	return s.ListenContext(context.Background(), addr)
}

// ListenContext is Listen with a graceful shutdown once ctx is done.
func (s *Server) ListenContext(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// An import run can take a while on a full inbox.
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown")
		}
	})
	defer stop()

	log.Info().Str("addr", addr).Msg("HTTP listening")
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close attempts a graceful shutdown of the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/import", s.withJSON(s.handleImport))
	mux.HandleFunc("/api/search", s.withJSON(s.handleSearch))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux)
}

// ---- JSON helpers ----

func (s *Server) withJSON(h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": msg})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// ---- API: import ----

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.imp.Run(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("import run failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, summary)
}

// ---- API: search ----

type searchCondition struct {
	Cell string `json:"c"`
	Code string `json:"sfen"`
}

type kifLink struct {
	Link      string  `json:"link"`
	Ply       int     `json:"te"`
	IsWin     bool    `json:"is_win"`
	StartedAt *string `json:"started_at"`
	IsSente   bool    `json:"is_sente"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()
	var body []searchCondition
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	conds := make([]store.Condition, 0, len(body))
	for _, c := range body {
		cond, err := store.ParseCondition(c.Cell, c.Code)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		conds = append(conds, cond)
	}

	hits, err := s.store.Search(r.Context(), conds, s.usernames)
	if err != nil {
		log.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	log.Info().Int("conditions", len(conds)).Int("hits", len(hits)).Msg("search")

	filenames := lo.Uniq(lo.Map(hits, func(h store.Hit, _ int) string { return h.Filename }))
	s.gatherMu.Lock()
	_, err = s.lib.Gather(filenames)
	s.gatherMu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("gather failed")
		writeError(w, http.StatusInternalServerError, "collect failed")
		return
	}

	links := lo.Map(hits, func(h store.Hit, _ int) kifLink {
		return kifLink{
			Link:      s.lib.Link(h.Filename),
			Ply:       h.Ply,
			IsWin:     h.IsWin,
			StartedAt: lo.EmptyableToPtr(h.StartedAt),
			IsSente:   h.IsSente,
		}
	})
	writeJSON(w, links)
}
