package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/pipeskills/pkg/logger"
	"github.com/jingkaihe/pipeskills/pkg/presenter"
	"github.com/jingkaihe/pipeskills/pkg/skills"
	"github.com/pkg/errors"
)

// FileEvent is a change relevant to the catalog.
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// skipOnWatch lists directory names never watched for artifacts.
var skipOnWatch = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// watchCatalog validates the document once and again after every change to
// it or to an artifact in its directory tree, until ctx is cancelled.
func watchCatalog(ctx context.Context, path string, config *CatalogValidateConfig) error {
	if config.Debounce < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", config.Debounce)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	dirs, err := watchDirs(filepath.Dir(path))
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}

	events := make(chan FileEvent)
	debounced := make(chan FileEvent)
	go debounceFileEvents(ctx, events, debounced, time.Duration(config.Debounce)*time.Millisecond)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					addCreatedDir(ctx, watcher, event.Name)
				}
				if !relevantChange(path, event) {
					continue
				}
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.G(ctx).WithError(err).Error("error watching catalog")
			case <-ctx.Done():
				return
			}
		}
	}()

	presenter.Section("Validating " + path)
	revalidate(ctx, path, config.Strict)
	presenter.Info("Watching for catalog changes... Press Ctrl+C to stop")

	for {
		select {
		case event := <-debounced:
			logger.G(ctx).WithField("file", event.Path).
				WithField("operation", event.Op.String()).
				Debug("catalog change detected")
			presenter.Separator()
			presenter.Info("Change detected: " + event.Path)
			revalidate(ctx, path, config.Strict)
		case <-ctx.Done():
			return nil
		}
	}
}

// revalidate runs a validation pass whose failure must not end the watch.
func revalidate(ctx context.Context, path string, strict bool) {
	if _, err := validateCatalog(ctx, path, strict); err != nil {
		presenter.Error(err, "")
	}
}

// watchDirs returns root and every directory below it that may hold
// artifacts.
func watchDirs(root string) ([]string, error) {
	dirs := []string{root}
	err := doublestar.GlobWalk(os.DirFS(root), "**", func(p string, d fs.DirEntry) error {
		if !d.IsDir() || p == "." {
			return nil
		}
		if skipOnWatch[d.Name()] {
			return doublestar.SkipDir
		}
		dirs = append(dirs, filepath.Join(root, filepath.FromSlash(p)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list directories under %s", root)
	}
	return dirs, nil
}

// addCreatedDir starts watching a directory created after the watch began,
// along with anything already inside it.
func addCreatedDir(ctx context.Context, watcher *fsnotify.Watcher, name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() || skipOnWatch[info.Name()] {
		return
	}
	dirs, err := watchDirs(name)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to watch new directory")
		return
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", dir).Warn("failed to watch new directory")
		}
	}
}

// relevantChange reports whether event touches the document or a packed
// artifact.
func relevantChange(doc string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if filepath.Clean(event.Name) == filepath.Clean(doc) {
		return true
	}
	return strings.HasSuffix(event.Name, skills.ArtifactExt)
}

// debounceFileEvents collapses bursts of events into one: an event is
// forwarded once no further event arrived for delay. Editors typically emit
// several writes per save.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var timer *time.Timer
	var fire <-chan time.Time
	var last FileEvent

	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case event, ok := <-input:
			if !ok {
				stop()
				return
			}
			last = event
			stop()
			timer = time.NewTimer(delay)
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case output <- last:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			stop()
			return
		}
	}
}
