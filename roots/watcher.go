package roots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// Watcher exposes a fixed set of directories as roots. Only directories that
// currently exist are listed. The parent of each directory is watched with
// fsnotify so that creating, removing or renaming a root directory signals a
// list change.
type Watcher struct {
	ChangeNotifier

	l    *slog.Logger
	dirs []string // absolute, cleaned

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher returns a Watcher over dirs. Call Run to start watching.
func NewWatcher(l *slog.Logger, dirs ...string) (*Watcher, error) {
	if l == nil {
		l = slog.Default()
	}
	if len(dirs) == 0 {
		return nil, errors.New("roots: at least one directory is required")
	}
	w := &Watcher{l: l}
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("roots: resolve %q: %w", d, err)
		}
		w.dirs = append(w.dirs, filepath.Clean(abs))
	}
	return w, nil
}

func (w *Watcher) ListRoots(ctx context.Context) ([]mcp.Root, error) {
	out := make([]mcp.Root, 0, len(w.dirs))
	for _, d := range w.dirs {
		fi, err := os.Stat(d)
		if err != nil || !fi.IsDir() {
			continue
		}
		r, err := DirRoot(d)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Run watches until ctx is done. It returns an error only if the fsnotify
// watcher cannot be created.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("roots: fsnotify: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	parents := make([]string, 0, len(w.dirs))
	for _, d := range w.dirs {
		p := filepath.Dir(d)
		if slices.Contains(parents, p) {
			continue
		}
		parents = append(parents, p)
		if err := fw.Add(p); err != nil {
			w.l.DebugContext(ctx, "roots.watch.add.fail", slog.String("dir", p), slog.String("err", err.Error()))
		}
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if !slices.Contains(w.dirs, filepath.Clean(ev.Name)) {
				continue
			}
			w.l.DebugContext(ctx, "roots.changed", slog.String("dir", ev.Name), slog.String("op", ev.Op.String()))
			w.Notify()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.l.DebugContext(ctx, "roots.watch.err", slog.String("err", err.Error()))
		}
	}
}

// Watching reports whether Run has registered its watches.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watcher != nil
}

var (
	_ Provider         = (*Watcher)(nil)
	_ ChangeSubscriber = (*Watcher)(nil)
)
