// Package library manages the kifu files on disk: the inbox that new
// games land in, the imported directory they are archived to, and the
// collected directory that search hits are copied into.
package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"kifdb/pkg/config"
	"kifdb/pkg/kif"
)

// Library is rooted at the three directories of a Config.
type Library struct {
	Inbox        string
	ImportedDir  string
	CollectedDir string
}

func New(cfg config.Config) *Library {
	return &Library{
		Inbox:        cfg.KIFPath,
		ImportedDir:  cfg.ImportedDir,
		CollectedDir: cfg.CollectedDir,
	}
}

// IsKIF reports whether path names a kifu file.
func IsKIF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".kif")
}

// Collect lists the kifu files directly inside the inbox, sorted by name.
// Subdirectories, including the imported and collected ones, are skipped.
func (l *Library) Collect() ([]string, error) {
	entries, err := os.ReadDir(l.Inbox)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsKIF(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(l.Inbox, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Read loads and decodes one kifu, returning its base filename and lines.
func Read(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	text, err := kif.DecodeText(data)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	return filepath.Base(path), kif.SplitLines(text), nil
}

// Archive moves an imported file into the imported directory, replacing
// any previous file of the same name, and returns the new path.
func (l *Library) Archive(path string) (string, error) {
	if err := os.MkdirAll(l.ImportedDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(l.ImportedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dst, nil
}

// Link is the path a stored game is served under.
func (l *Library) Link(filename string) string {
	return filepath.Join(l.ImportedDir, filename)
}

// Gather recreates the collected directory and copies each named file
// into it from the imported directory. Files that are no longer on disk
// are skipped. It returns the number of files copied.
func (l *Library) Gather(filenames []string) (int, error) {
	if err := os.RemoveAll(l.CollectedDir); err != nil {
		return 0, fmt.Errorf("clear %s: %w", l.CollectedDir, err)
	}
	if err := os.MkdirAll(l.CollectedDir, 0o755); err != nil {
		return 0, err
	}
	copied := 0
	for _, name := range filenames {
		src := l.Link(name)
		err := copyFile(src, filepath.Join(l.CollectedDir, name))
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("file", src).Msg("search hit missing from imported dir")
			continue
		}
		if err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
