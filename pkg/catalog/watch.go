package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/BitPonyLLC/huematch/pkg/util"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before
// reloading, so an editor writing several files triggers one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the catalog into store whenever the catalog file or its
// reference directory changes. It returns once the watch is established and
// keeps running until ctx is canceled.
func Watch(ctx context.Context, store *Store, loader *Loader, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create catalog watcher: %w", err)
	}

	catalogPath, err := filepath.Abs(loader.Path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("unable to resolve %s: %w", loader.Path, err)
	}

	// watch the parent so editors that replace the file by renaming are seen
	watched := map[string]bool{}
	add := func(dir string) error {
		if dir == "" || watched[dir] {
			return nil
		}
		err := watcher.Add(dir)
		if err != nil {
			return fmt.Errorf("unable to watch %s: %w", dir, err)
		}
		watched[dir] = true
		return nil
	}

	err = add(filepath.Dir(catalogPath))
	if err != nil {
		watcher.Close()
		return err
	}

	refDir := ""
	if dir, err := loader.ReferenceDir(); err == nil && dir != "" {
		refDir, _ = filepath.Abs(dir)
		err = add(refDir)
		if err != nil {
			watcher.Close()
			return err
		}
	}

	relevant := func(name string) bool {
		abs, err := filepath.Abs(name)
		if err != nil {
			return false
		}
		return abs == catalogPath || (refDir != "" && filepath.Dir(abs) == refDir && isImageFile(abs))
	}

	log := loader.logger().With().Str("path", catalogPath).Logger()

	go func() {
		defer func() {
			util.LogRecover()
			watcher.Close()
			log.Debug().Msg("catalog watcher stopped")
		}()

		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !relevant(ev.Name) {
					continue
				}
				log.Trace().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("catalog change")
				stopTimer(timer)
				timer.Reset(debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Err(err).Msg("catalog watcher error")
			case <-timer.C:
				if loader.Reload(store) != nil {
					continue
				}

				// the reference directory may have been added or moved
				dir, err := loader.ReferenceDir()
				if err == nil && dir != "" {
					abs, _ := filepath.Abs(dir)
					if abs != refDir {
						err = add(abs)
						if err != nil {
							log.Err(err).Msg("unable to watch new reference directory")
							continue
						}
						refDir = abs
					}
				}
			}
		}
	}()

	log.Debug().Str("refdir", refDir).Msg("watching catalog")
	return nil
}

// stopTimer stops t and discards a pending fire, so a following Reset starts
// a clean wait. It does not block when the fire was already received.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
