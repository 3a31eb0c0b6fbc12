// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It watches a fixtures directory tree and reports changes to parcel fixture
// files (*.json). Editors often write several times per save, so events for
// the same file are debounced.
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Editor and OS droppings that sit next to fixtures.
var ignoreSuffixes = []string{".swp", ".swx", ".tmp", ".bak", "~"}

const fixtureExt = ".json"

// DefaultDebounce is how long a file must stay quiet before its change is
// reported.
const DefaultDebounce = 50 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	done     chan struct{}
	debounce time.Duration
	stopped  bool
	mu       sync.Mutex
}

// NewWatcher creates a fixtures watcher with the default debounce window.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		done:     make(chan struct{}),
		debounce: DefaultDebounce,
	}, nil
}

// Watch starts monitoring dir and its subdirectories.
// onChange receives the absolute path of each changed fixture file.
func (w *Watcher) Watch(dir string, onChange func(filePath string)) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "watch", Path: absDir, Err: os.ErrInvalid}
	}

	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != absDir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop(onChange)
	return nil
}

// loop debounces on the trailing edge: each event for a path restarts its
// timer, and onChange runs once the path has been quiet for the window. A
// save written in several chunks is reported after its last write.
func (w *Watcher) loop(onChange func(string)) {
	pending := make(map[string]*time.Timer)
	fire := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			// New subdirectories join the watch list.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !isHidden(info.Name()) {
						w.fw.Add(path)
					}
					continue
				}
			}

			if !IsFixture(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if t, ok := pending[path]; ok {
				t.Reset(w.debounce)
				continue
			}
			pending[path] = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- path:
				case <-w.done:
				}
			})

		case path := <-fire:
			delete(pending, path)
			onChange(path)

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// fsnotify recovers on its own; a missed event only delays a reload.

		case <-w.done:
			return
		}
	}
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// IsFixture reports whether path names a fixture file worth reloading for.
func IsFixture(path string) bool {
	base := filepath.Base(path)
	if isHidden(base) {
		return false
	}
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return strings.EqualFold(filepath.Ext(base), fixtureExt)
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}
