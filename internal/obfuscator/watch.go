package obfuscator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchEvent reports one file synced (or removed) by a Watcher.
type WatchEvent struct {
	Path string // source path
	Op   string // obfuscate, copy, keep or remove
	Err  error
}

// Watcher keeps a target directory in sync with a source directory by
// re-processing files as they change.
type Watcher struct {
	octx     *ObfuscationContext
	source   string
	target   string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]time.Time

	// OnEvent, when set, is called after every sync from the Run goroutine.
	OnEvent func(WatchEvent)
}

// NewWatcher creates a watcher over sourceDir and every directory below it
// that is not skipped.
func (octx *ObfuscationContext) NewWatcher(sourceDir, targetDir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		octx:     octx,
		source:   sourceDir,
		target:   targetDir,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}
	if err := w.addTree(sourceDir, false); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes file events until ctx is cancelled. It closes the watcher
// before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.octx.Logger.Debug("watcher stopped", zap.String("source", w.source))
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.octx.Logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.octx.Logger.Debug("watch event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name, true); err != nil {
				w.emit(WatchEvent{Path: event.Name, Op: "watch", Err: err})
			}
			return
		}
		w.pending[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(w.pending, event.Name)
		w.remove(event.Name)
	}
}

// flush syncs the files that have been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, seen := range w.pending {
		if now.Sub(seen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		w.sync(ctx, path)
	}
}

func (w *Watcher) sync(ctx context.Context, path string) {
	rel, err := filepath.Rel(w.source, path)
	if err != nil {
		w.emit(WatchEvent{Path: path, Err: err})
		return
	}
	if skipped, _ := matchesAny(rel, w.octx.Config.SkipPaths); skipped {
		return
	}
	dst := filepath.Join(w.target, rel)

	kept, _ := matchesAny(rel, w.octx.Config.KeepPaths)
	switch {
	case kept:
		w.emit(WatchEvent{Path: path, Op: "keep", Err: copyFile(path, dst)})
	case w.octx.IsScript(path):
		w.emit(WatchEvent{Path: path, Op: "obfuscate", Err: w.octx.obfuscateTo(ctx, path, dst, rel)})
	default:
		w.emit(WatchEvent{Path: path, Op: "copy", Err: copyFile(path, dst)})
	}
}

func (w *Watcher) remove(path string) {
	rel, err := filepath.Rel(w.source, path)
	if err != nil {
		return
	}
	dst := filepath.Join(w.target, rel)
	if _, err := os.Lstat(dst); err != nil {
		return
	}
	err = os.RemoveAll(dst)
	w.emit(WatchEvent{Path: path, Op: "remove", Err: err})
}

func (w *Watcher) emit(ev WatchEvent) {
	if ev.Err != nil {
		w.octx.Logger.Warn("watch sync failed", zap.String("path", ev.Path), zap.String("op", ev.Op), zap.Error(ev.Err))
	} else {
		w.octx.info("Synced (%s): %s\n", ev.Op, ev.Path)
	}
	if w.OnEvent != nil {
		w.OnEvent(ev)
	}
}

// addTree watches root and its subdirectories, leaving out skipped ones and
// the target directory. With schedule set, the files found are queued for
// syncing.
func (w *Watcher) addTree(root string, schedule bool) error {
	targetAbs, _ := filepath.Abs(w.target)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if schedule {
				w.pending[path] = time.Now()
			}
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == targetAbs {
			return filepath.SkipDir
		}
		if rel, err := filepath.Rel(w.source, path); err == nil && rel != "." {
			if skipped, _ := matchesAny(rel, w.octx.Config.SkipPaths); skipped {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
