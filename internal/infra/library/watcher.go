package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// settleDelay gives writers a moment to finish before a new file is reported.
const settleDelay = 200 * time.Millisecond

// Watcher reports audio files created below a set of folders.
type Watcher struct {
	watcher *fsnotify.Watcher
	exts    []string
	settle  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches roots and all their subfolders.
func NewWatcher(roots []string, extensions []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		watcher: fsw,
		exts:    NormalizeExtensions(extensions),
		settle:  settleDelay,
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addTree watches dir and every non-hidden folder below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		zlog.Debug().Msgf("library: watching: dir=%s", path)
		return nil
	})
}

// Run delivers new files to handle until ctx is done or the watcher is
// closed. handle is called from timer goroutines, one file at a time per path.
func (w *Watcher) Run(ctx context.Context, handle func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, handle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zlog.Warn().Msgf("library: watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, handle func(string)) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(event.Name); err != nil {
				zlog.Warn().Msgf("library: failed to watch new folder: %v", err)
			}
		}
		return
	}
	if !Matches(event.Name, w.exts) {
		return
	}

	// Writes restart the timer so a file is reported once it settles
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(w.settle)
		return
	}
	if !event.Has(fsnotify.Create) {
		return
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			zlog.Debug().Msgf("library: new file: path=%s", path)
			handle(path)
		}
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, t := range w.pending {
			t.Stop()
		}
		w.pending = nil
		w.mu.Unlock()

		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
