package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// DefaultFile is the dotenv file searched for when no path is given.
const DefaultFile = ".env"

// Config holds the settings shared by every kifdb command. Directory
// fields are absolute once loaded.
type Config struct {
	KIFPath      string
	ImportedDir  string
	CollectedDir string
	Usernames    []string
	DatabasePath string
	ListenAddr   string
	Workers      int
	CreatedBy    string
	Debug        bool
}

// FindConfigPath walks up from the working directory looking for name and
// returns the file path and the directory holding it.
func FindConfigPath(name string) (string, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	dir := cwd
	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("%s not found from %s", name, cwd)
}

// Load reads settings from the dotenv file at path, or from the nearest
// .env above the working directory when path is empty, and overlays the
// process environment. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetDefault("IMPORTED_DIR", "imported")
	v.SetDefault("COLLECTED_DIR", "collected")
	v.SetDefault("LISTEN_ADDR", "127.0.0.1:3000")
	v.SetDefault("WORKERS", runtime.NumCPU())
	v.SetDefault("CREATED_BY", "system")
	v.SetDefault("DEBUG", false)

	if path == "" {
		if found, _, err := FindConfigPath(DefaultFile); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	kifPath := strings.TrimSpace(v.GetString("KIF_PATH"))
	if kifPath == "" {
		return Config{}, errors.New("KIF_PATH is required")
	}
	kifPath, err := filepath.Abs(kifPath)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		KIFPath:      kifPath,
		ImportedDir:  underRoot(kifPath, v.GetString("IMPORTED_DIR")),
		CollectedDir: underRoot(kifPath, v.GetString("COLLECTED_DIR")),
		Usernames:    SplitUsernames(v.GetString("MY_USERNAMES")),
		ListenAddr:   v.GetString("LISTEN_ADDR"),
		Workers:      v.GetInt("WORKERS"),
		CreatedBy:    v.GetString("CREATED_BY"),
		Debug:        v.GetBool("DEBUG"),
	}
	if db := strings.TrimSpace(v.GetString("DATABASE_PATH")); db != "" {
		cfg.DatabasePath = underRoot(kifPath, db)
	} else {
		cfg.DatabasePath = filepath.Join(kifPath, "kifdb.sqlite")
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("WORKERS must be > 0, got %d", cfg.Workers)
	}
	if cfg.ImportedDir == cfg.KIFPath || cfg.CollectedDir == cfg.KIFPath {
		return Config{}, errors.New("IMPORTED_DIR and COLLECTED_DIR must differ from KIF_PATH")
	}
	if cfg.ImportedDir == cfg.CollectedDir {
		return Config{}, errors.New("IMPORTED_DIR and COLLECTED_DIR must differ")
	}
	return cfg, nil
}

// SplitUsernames parses a comma separated list, dropping blanks.
func SplitUsernames(raw string) []string {
	names := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(names))
}

func underRoot(root, dir string) string {
	dir = strings.TrimSpace(dir)
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}
