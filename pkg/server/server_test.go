package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kifdb/pkg/config"
	"kifdb/pkg/importer"
	"kifdb/pkg/kif"
	"kifdb/pkg/library"
	"kifdb/pkg/store"
)

const kakugawari = `開始日時：2025/07/10 11:28:32
先手：Ringosky
後手：opponent
   1 ７六歩(77)   ( 0:03/00:00:03)
   2 ３四歩(33)   ( 0:02/00:00:02)
   3 ２二角成(88)   ( 0:05/00:00:08)
   4 同　銀(31)   ( 0:01/00:00:03)
   5 ４五角打   ( 0:04/00:00:12)
   6 投了   ( 0:10/00:00:13)
`

func newTestServer(t *testing.T) (*Server, config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		KIFPath:      root,
		ImportedDir:  filepath.Join(root, "imported"),
		CollectedDir: filepath.Join(root, "collected"),
		DatabasePath: filepath.Join(t.TempDir(), "kifdb.sqlite"),
		Usernames:    []string{"Ringosky"},
		Workers:      2,
		CreatedBy:    "system",
	}
	st, err := store.Open(context.Background(), cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	lib := library.New(cfg)
	return New(st, lib, importer.New(cfg, st, lib), cfg.Usernames), cfg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)
	return rr
}

func TestImportThenSearch(t *testing.T) {
	s, cfg := newTestServer(t)
	if err := os.WriteFile(filepath.Join(cfg.KIFPath, "g.kif"), []byte(kakugawari), 0o644); err != nil {
		t.Fatalf("write kifu: %v", err)
	}

	rr := do(t, s, http.MethodPost, "/api/admin/import", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var summary importer.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Imported) != 1 || summary.Imported[0] != "g.kif" || summary.RunID == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	cell := kif.Square{File: 4, Rank: 5}.Cell()
	rr = do(t, s, http.MethodPost, "/api/search", fmt.Sprintf(`[{"c":"%d","sfen":"B"}]`, cell))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var links []kifLink
	if err := json.Unmarshal(rr.Body.Bytes(), &links); err != nil {
		t.Fatalf("decode links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	got := links[0]
	if got.Link != filepath.Join(cfg.ImportedDir, "g.kif") || got.Ply != 5 || !got.IsWin || !got.IsSente {
		t.Fatalf("unexpected link: %+v", got)
	}
	if got.StartedAt == nil || *got.StartedAt != "2025-07-10 11:28:32" {
		t.Fatalf("unexpected started_at: %v", got.StartedAt)
	}
	if _, err := os.Stat(filepath.Join(cfg.CollectedDir, "g.kif")); err != nil {
		t.Fatalf("expected hit copied into collected dir: %v", err)
	}

	rr = do(t, s, http.MethodPost, "/api/search", `[{"c":"1","sfen":"K"}]`)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty result, got %d %s", rr.Code, rr.Body.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.CollectedDir, "g.kif")); !os.IsNotExist(err) {
		t.Fatalf("expected collected dir to be reset, got %v", err)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		body string
		code int
	}{
		{body: `{`, code: http.StatusBadRequest},
		{body: `[{"c":"0","sfen":"P"}]`, code: http.StatusBadRequest},
		{body: `[{"c":"77","sfen":"Q"}]`, code: http.StatusBadRequest},
		{body: `[{"c":"77","sfen":"` + strings.Repeat("P", 1<<20) + `"}]`, code: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		rr := do(t, s, http.MethodPost, "/api/search", tt.body)
		if rr.Code != tt.code {
			t.Fatalf("expected status %d, got %d", tt.code, rr.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil || payload["error"] == "" {
			t.Fatalf("expected JSON error body, got %q", rr.Body.String())
		}
	}
}

func TestMethodsAndCORS(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/search", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header")
	}

	rr = do(t, s, http.MethodOptions, "/api/search", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}

	rr = do(t, s, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestListenContextStops(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close before listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenContext(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
