package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/bookpress/internal/book"
)

// Watcher rebuilds a set of formats whenever project sources change.
// Bursts of events within the delay collapse into one rebuild.
type Watcher struct {
	builder *Builder
	builds  []Options
	delay   time.Duration
	log     *slog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnBuild, when set, is called after each rebuild round.
	OnBuild func([]*Job)
}

// NewWatcher returns a Watcher for builds.
func NewWatcher(b *Builder, builds []Options, delay time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		builder: b,
		builds:  builds,
		delay:   delay,
		log:     log.With("component", "watch"),
	}
}

// Start watches the project directories and launches the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range w.builder.project.WatchPaths() {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.Debug("watching", "dir", dir)
	}
	w.fsw = fsw

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(loopCtx)
	}()

	// Start job history cleanup.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				w.builder.jobs.Cleanup()
			}
		}
	}()
	return nil
}

// Stop ends the event loop and waits for a running rebuild to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		sources = true
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addDir(ev.Name)
			}
			w.log.Debug("change", "file", ev.Name, "op", ev.Op.String())
			sources = sources && w.isSource(ev.Name)
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.rebuild(ctx, sources)
			sources = true
		}
	}
}

// addDir starts watching a directory created under a watched one.
func (w *Watcher) addDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("watch new directory", "dir", path, "error", err)
		return
	}
	w.log.Debug("watching", "dir", path)
}

// relevant filters out events the build itself causes and editor noise.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	root := w.builder.project.Root
	for _, dir := range []string{"builds", "tmp"} {
		prefix := filepath.Join(root, dir)
		if ev.Name == prefix || strings.HasPrefix(ev.Name, prefix+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

// isSource reports whether name only affects the converted markup, so an
// unchanged markup hash means nothing to rebuild.
func (w *Watcher) isSource(name string) bool {
	p := w.builder.project
	if filepath.Base(name) == book.ManifestFile {
		return true
	}
	return strings.HasPrefix(name, p.ManuscriptDir()+string(filepath.Separator))
}

func (w *Watcher) rebuild(ctx context.Context, sources bool) {
	jobs := make([]*Job, 0, len(w.builds))
	for _, opts := range w.builds {
		if ctx.Err() != nil {
			return
		}
		opts.SkipUnchanged = sources
		job, err := w.builder.Build(ctx, opts)
		if err != nil {
			// The builder already logged it; keep watching.
			w.log.Debug("rebuild failed", "format", opts.Format, "error", err)
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	if w.OnBuild != nil {
		w.OnBuild(jobs)
	}
}
