package obfuscator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whit3rabbit/jsmixer/internal/config"
)

// DirResult counts what happened to the entries of a directory run.
type DirResult struct {
	Obfuscated int
	Copied     int
	Kept       int
	Skipped    int
	Symlinks   int
}

// fileJob is a JavaScript file waiting to be obfuscated.
type fileJob struct {
	src, dst, rel string
}

// ProcessDirectory mirrors sourceDir into targetDir, obfuscating every file
// with a configured extension and copying everything else. JavaScript files
// are processed concurrently by up to Config.Workers goroutines.
//
// When Config.AbortOnError is false, failing entries are skipped and all
// errors are returned together once the walk is done.
func (octx *ObfuscationContext) ProcessDirectory(ctx context.Context, sourceDir, targetDir string) (*DirResult, error) {
	if targetDir == "" {
		return nil, errors.New("target directory is not specified")
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source directory '%s' not found", sourceDir)
		}
		return nil, fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path '%s' is not a directory", sourceDir)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory %s: %w", targetDir, err)
	}

	w := &dirWalker{
		octx:    octx,
		cfg:     octx.Config,
		target:  targetDir,
		visited: make(map[string]bool),
	}
	if canonical, err := filepath.EvalSymlinks(targetDir); err == nil {
		w.targetCanonical = canonical
	}

	octx.info("Info: Starting directory walk of %s...\n", sourceDir)
	if err := w.walk(sourceDir, ""); err != nil {
		return &w.result, err
	}
	if err := w.runJobs(ctx); err != nil {
		return &w.result, err
	}
	if w.errs != nil {
		return &w.result, w.errs
	}
	octx.info("Directory processing finished: %d obfuscated, %d copied, %d kept, %d skipped.\n",
		w.result.Obfuscated, w.result.Copied, w.result.Kept, w.result.Skipped)
	return &w.result, nil
}

type dirWalker struct {
	octx            *ObfuscationContext
	cfg             *config.Config
	target          string
	targetCanonical string
	visited         map[string]bool // canonical paths, guards against link loops
	keptDirs        []string

	jobs   []fileJob
	mu     sync.Mutex
	errs   error
	result DirResult
}

// fail records err. It returns err when the run must stop.
func (w *dirWalker) fail(err error) error {
	w.mu.Lock()
	w.errs = multierr.Append(w.errs, err)
	w.mu.Unlock()
	w.octx.Logger.Warn("directory entry failed", zap.Error(err))
	if w.cfg.AbortOnError {
		return err
	}
	return nil
}

// walk visits root, whose entries map to prefix under the source directory.
func (w *dirWalker) walk(root, prefix string) error {
	return filepath.WalkDir(root, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return w.fail(fmt.Errorf("error accessing path %q: %w", entryPath, err))
		}

		isLink := d.Type()&fs.ModeSymlink != 0
		canonicalPath := entryPath
		if !isLink || w.cfg.FollowSymlinks {
			canonicalPath, err = filepath.EvalSymlinks(entryPath)
			if err != nil {
				var pathErr *os.PathError
				if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.ENOENT) {
					w.octx.info("Warning: Skipping broken symlink/path %q: %v\n", entryPath, err)
					return nil
				}
				return w.fail(fmt.Errorf("error resolving path %q: %w", entryPath, err))
			}
		}

		rel, err := filepath.Rel(root, entryPath)
		if err != nil {
			return w.fail(fmt.Errorf("error calculating relative path for %q: %w", entryPath, err))
		}
		if rel == "." {
			if prefix == "" {
				w.visited[canonicalPath] = true
				return nil
			}
			rel = ""
		}
		rel = filepath.Join(prefix, rel)
		targetPath := filepath.Join(w.target, rel)

		if d.IsDir() && canonicalPath == w.targetCanonical {
			return filepath.SkipDir
		}
		if w.visited[canonicalPath] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		skipped, err := matchesAny(rel, w.cfg.SkipPaths)
		if err != nil {
			if err := w.fail(fmt.Errorf("error matching skip pattern for '%s': %w", rel, err)); err != nil {
				return err
			}
		} else if skipped {
			w.octx.info("Skipping: %s\n", entryPath)
			w.count(&w.result.Skipped)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		kept, err := w.isKept(rel)
		if err != nil {
			if err := w.fail(fmt.Errorf("error matching keep pattern for '%s': %w", rel, err)); err != nil {
				return err
			}
		} else if kept && d.IsDir() {
			w.keptDirs = append(w.keptDirs, rel)
		} else if kept && !isLink {
			w.visited[canonicalPath] = true
			w.octx.info("Keeping (Copying): %s -> %s\n", entryPath, targetPath)
			if err := copyFile(entryPath, targetPath); err != nil {
				return w.fail(fmt.Errorf("error copying kept file %s to %s: %w", entryPath, targetPath, err))
			}
			w.count(&w.result.Kept)
			return nil
		}

		if isLink {
			if !w.cfg.FollowSymlinks {
				w.visited[canonicalPath] = true
			}
			return w.symlink(entryPath, targetPath, rel, kept)
		}

		w.visited[canonicalPath] = true
		if d.IsDir() {
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return w.fail(fmt.Errorf("error creating directory %q: %w", targetPath, err))
			}
			return nil
		}
		return w.file(entryPath, targetPath, rel, kept)
	})
}

// isKept reports whether rel matches a keep pattern or lies in a kept directory.
func (w *dirWalker) isKept(rel string) (bool, error) {
	for _, dir := range w.keptDirs {
		if strings.HasPrefix(rel, dir+string(filepath.Separator)) {
			return true, nil
		}
	}
	return matchesAny(rel, w.cfg.KeepPaths)
}

// symlink either recreates the link or, with FollowSymlinks, processes what
// it points to as if it lived at the link's place.
func (w *dirWalker) symlink(entryPath, targetPath, rel string, kept bool) error {
	w.count(&w.result.Symlinks)
	linkTarget, err := os.Readlink(entryPath)
	if err != nil {
		return w.fail(fmt.Errorf("error reading symlink %q: %w", entryPath, err))
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return w.fail(fmt.Errorf("error creating directory for symlink %s: %w", targetPath, err))
	}

	if !w.cfg.FollowSymlinks {
		w.octx.info("Copying symlink: %s -> %s\n", entryPath, linkTarget)
		if err := os.Symlink(linkTarget, targetPath); err != nil {
			if !os.IsExist(err) {
				return w.fail(fmt.Errorf("error creating symlink %s -> %s: %w", targetPath, linkTarget, err))
			}
			w.octx.info("Info: Symlink %s already exists, skipping creation.\n", targetPath)
		}
		return nil
	}

	resolved := linkTarget
	if !filepath.IsAbs(linkTarget) {
		resolved = filepath.Join(filepath.Dir(entryPath), linkTarget)
	}
	canonical, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		return w.fail(fmt.Errorf("error resolving symlink target path %q (from %q): %w", resolved, entryPath, err))
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return w.fail(fmt.Errorf("error following symlink %q -> %q: %w", entryPath, resolved, err))
	}
	w.octx.info("Following symlink: %s -> %s\n", entryPath, canonical)
	if info.IsDir() {
		if w.visited[canonical] {
			w.octx.Logger.Debug("skipping symlink to visited directory", zap.String("path", entryPath))
			return nil
		}
		return w.walk(canonical, rel)
	}
	if w.visited[canonical] {
		return nil
	}
	w.visited[canonical] = true
	return w.file(canonical, targetPath, rel, kept)
}

// file schedules a JavaScript file for obfuscation or copies any other file.
func (w *dirWalker) file(entryPath, targetPath, rel string, kept bool) error {
	sourceInfo, err := os.Stat(entryPath)
	if err != nil {
		return w.fail(fmt.Errorf("error getting source file info for %s: %w", entryPath, err))
	}
	if targetInfo, err := os.Stat(targetPath); err == nil {
		if targetInfo.ModTime().After(sourceInfo.ModTime()) {
			w.octx.info("Skipping (target newer): %s\n", entryPath)
			w.count(&w.result.Skipped)
			return nil
		}
	} else if !os.IsNotExist(err) {
		return w.fail(fmt.Errorf("error stating target file %s: %w", targetPath, err))
	}

	if !kept && w.octx.IsScript(entryPath) {
		w.jobs = append(w.jobs, fileJob{src: entryPath, dst: targetPath, rel: rel})
		return nil
	}
	w.octx.info("Copying file: %s -> %s\n", entryPath, targetPath)
	if err := copyFile(entryPath, targetPath); err != nil {
		return w.fail(fmt.Errorf("error copying file %s to %s: %w", entryPath, targetPath, err))
	}
	if kept {
		w.count(&w.result.Kept)
	} else {
		w.count(&w.result.Copied)
	}
	return nil
}

func (w *dirWalker) count(n *int) {
	w.mu.Lock()
	*n++
	w.mu.Unlock()
}

// runJobs obfuscates the collected files concurrently.
func (w *dirWalker) runJobs(ctx context.Context) error {
	if w.cfg.AbortOnError && w.errs != nil {
		return w.errs
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.octx.workers())
	for _, job := range w.jobs {
		job := job
		g.Go(func() error {
			w.octx.info("Processing JS: %s -> %s\n", job.src, job.dst)
			if err := w.octx.obfuscateTo(gctx, job.src, job.dst, job.rel); err != nil {
				return w.fail(err)
			}
			w.count(&w.result.Obfuscated)
			return nil
		})
	}
	return g.Wait()
}

// obfuscateTo obfuscates src into dst. rel seeds the per-file random source.
func (octx *ObfuscationContext) obfuscateTo(ctx context.Context, src, dst, rel string) error {
	opts := octx.Config.Obfuscation
	opts.Seed = FileSeed(opts.Seed, rel)
	out, err := octx.processFile(ctx, src, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("error creating directory for file %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, []byte(out), 0644); err != nil {
		return fmt.Errorf("error writing output file %s: %w", dst, err)
	}
	return nil
}

// FileSeed derives the seed of one file of a directory run from the base seed.
// A zero base seed stays zero, meaning every file gets a random seed.
func FileSeed(base int64, rel string) int64 {
	if base == 0 {
		return 0
	}
	h := fnv.New64a()
	io.WriteString(h, filepath.ToSlash(rel))
	seed := base ^ int64(h.Sum64()&^(1<<63))
	if seed == 0 {
		seed = base
	}
	return seed
}

// IsScript reports whether path has one of the configured JavaScript extensions.
func (octx *ObfuscationContext) IsScript(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	for _, e := range octx.Config.Extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

func (octx *ObfuscationContext) workers() int {
	if octx.Config.Workers > 0 {
		return octx.Config.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (octx *ObfuscationContext) info(format string, args ...interface{}) {
	if !octx.Silent {
		config.PrintInfo(format, args...)
	}
}

// CleanTarget removes targetDir before a run. It refuses to remove the file
// system root, the working directory or its parent.
func CleanTarget(targetDir string) error {
	if targetDir == "" {
		return fmt.Errorf("cannot clean: target directory is not specified")
	}
	if _, err := os.Stat(targetDir); os.IsNotExist(err) {
		return nil
	}
	cleaned := filepath.Clean(targetDir)
	isRoot := cleaned == filepath.VolumeName(cleaned)+string(filepath.Separator)
	if isRoot || cleaned == "." || cleaned == ".." {
		return fmt.Errorf("refusing to clean potentially dangerous path: %s", targetDir)
	}
	if err := os.RemoveAll(cleaned); err != nil {
		return fmt.Errorf("failed to clean target directory %s: %w", targetDir, err)
	}
	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", src, err)
	}
	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer source.Close()

	destination, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, sourceFileStat.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy data from %s to %s: %w", src, dst, err)
	}
	return nil
}

// matchesAny reports whether relPath, or its base name, matches one of the
// glob patterns. Paths are matched with forward slashes.
func matchesAny(relPath string, patterns []string) (bool, error) {
	pathNormalized := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, pathNormalized)
		if err != nil {
			return false, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if !matched && !strings.Contains(pattern, "/") {
			matched, _ = filepath.Match(pattern, base)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
