package command

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/tomatool/stepindex/internal/config"
)

const debounce = 200 * time.Millisecond

// watch calls onChange once right away with no files, and again after
// every burst of source changes below path, until ctx is done.
func watch(ctx context.Context, path string, onChange func(files []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchPath(watcher, path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	onChange(nil)
	return watchLoop(ctx, watcher, func(files []string) {
		log.Info().Strs("files", files).Msg("sources changed")
		onChange(files)
	})
}

func watchPath(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return watcher.Add(filepath.Dir(path))
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
		name == "vendor" || name == "testdata" || name == "node_modules"
}

// watchLoop batches changes to .go files and hands them to update. update
// runs on the loop's goroutine, so calls never overlap and each one sees
// every change made before it started.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, update func(files []string)) error {
	// Debounce timer to batch rapid changes
	var debounceTimer *time.Timer
	var debounceMux sync.Mutex
	changedFiles := make(map[string]bool)
	ready := make(chan struct{}, 1)

	triggerUpdate := func(filePath string) {
		debounceMux.Lock()
		defer debounceMux.Unlock()

		changedFiles[filePath] = true

		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(debounce, func() {
			select {
			case ready <- struct{}{}:
			default:
			}
		})
	}
	takeChanged := func() []string {
		debounceMux.Lock()
		defer debounceMux.Unlock()

		files := make([]string, 0, len(changedFiles))
		for f := range changedFiles {
			files = append(files, f)
		}
		sort.Strings(files)
		changedFiles = make(map[string]bool)
		return files
	}
	defer func() {
		debounceMux.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceMux.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ready:
			if files := takeChanged(); len(files) > 0 {
				update(files)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Handle new directories - add them to watcher
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(filepath.Base(event.Name)) {
					if err := watcher.Add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("couldn't watch new directory")
					}
				}
			}

			if relevant(event) {
				triggerUpdate(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// relevant reports changes to Go sources, go.mod and the config file.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	return strings.HasSuffix(base, ".go") || base == "go.mod" || base == config.FileName
}
