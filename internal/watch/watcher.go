// Package watch reruns generation when Go sources under the scanned
// directories change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config configures the file watcher.
type Config struct {
	// Paths are the directories to watch, recursively.
	Paths []string

	// Ignore lists globs matched against each path element below a
	// watched root.
	Ignore []string

	// Debounce is the quiet period before a batch of changes is reported.
	Debounce time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	"*_test.go",
	".git",
	"node_modules",
	"vendor",
	"testdata",
	"*.tmp",
	"*.swp",
	"*~",
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher reports batches of changed Go files.
type Watcher struct {
	config   Config
	onChange func([]string)
	fs       *fsnotify.Watcher
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	pending map[string]struct{}
}

// New creates a watcher calling onChange with the sorted paths of every
// batch of changes.
func New(config Config, onChange func([]string), opts ...Option) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = 100 * time.Millisecond
	}
	config.Ignore = append(append([]string(nil), DefaultIgnore...), config.Ignore...)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:   config,
		onChange: onChange,
		fs:       fsw,
		logger:   zap.NewNop(),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, p := range w.config.Paths {
		if err := w.addTree(p); err != nil {
			return err
		}
	}
	w.logger.Info("watching for changes", zap.Strings("paths", w.config.Paths))

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.handle(event) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.config.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			w.flush()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// addTree watches root and every directory below it that is not ignored.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

// handle records a relevant event and reports whether it was one.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if w.shouldIgnore(event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("cannot watch directory", zap.String("path", event.Name), zap.Error(err))
			}
			return false
		}
	}
	if !relevant(event.Name) {
		return false
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	w.logger.Debug("file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.mu.Lock()
	w.pending[filepath.Clean(event.Name)] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(changed) == 0 || w.onChange == nil {
		return
	}
	sort.Strings(changed)
	w.onChange(changed)
}

func relevant(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".go") || base == "go.mod"
}

// shouldIgnore reports whether p, taken relative to the watched root that
// contains it, has an element matching an ignore pattern. Patterns are
// path.Match globs over one element: "vendor" skips that directory at any
// depth and "*_test.go" skips files.
func (w *Watcher) shouldIgnore(p string) bool {
	rel := filepath.ToSlash(w.relative(p))
	for _, elem := range strings.Split(rel, "/") {
		if elem == "" || elem == "." {
			continue
		}
		for _, pattern := range w.config.Ignore {
			if ok, _ := path.Match(pattern, elem); ok {
				return true
			}
		}
	}
	return false
}

// relative trims the watched root from p so directories above it never match.
func (w *Watcher) relative(p string) string {
	for _, root := range w.config.Paths {
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	return p
}
