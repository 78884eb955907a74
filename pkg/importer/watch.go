package importer

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"kifdb/pkg/library"
)

// DefaultDebounce is how long a file must stay quiet before it is imported.
const DefaultDebounce = 500 * time.Millisecond

// Watch imports the inbox once, then imports kifu files as they are
// created or rewritten in it, until ctx is done.
func (im *Importer) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := os.MkdirAll(im.lib.Inbox, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(im.lib.Inbox); err != nil {
		return err
	}
	log.Info().Str("inbox", im.lib.Inbox).Msg("watching for kifu files")

	if _, err := im.Run(ctx); err != nil {
		return err
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(debounce/5, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !library.IsKIF(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < debounce {
					continue
				}
				delete(pending, path)
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					continue
				}
				// ImportFile only fails once ctx is done.
				if _, err := im.ImportFile(ctx, path); err != nil {
					return nil
				}
			}
		}
	}
}
