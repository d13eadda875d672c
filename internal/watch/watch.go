// Package watch provides file system change notifications for the
// synchronization controller. It uses fsnotify for cross-platform event
// monitoring.
package watch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op represents the type of file system operation.
type Op int

const (
	// OpCreate indicates a new file was created.
	OpCreate Op = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event represents one file system change notification.
type Event struct {
	// Path is the path of the file that changed.
	Path string
	// Op is the operation that occurred.
	Op Op
}

// Watcher monitors document roots (recursively) and marker directories
// (flat) for changes and emits Events. Events for the same path arrive in
// order; no ordering is guaranteed across paths.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a Watcher. It must be started with Start before it emits
// events.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: fsw,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. Roots are watched recursively, including
// directories created later; markerDirs are watched flat. Missing marker
// directories are skipped silently since a repository may gain them later.
func (w *Watcher) Start(roots, markerDirs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch root %s: %w", root, err)
		}
	}
	for _, dir := range markerDirs {
		// Skipped when absent; a repository may gain its VCS dir later.
		_ = w.watcher.Add(dir)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and cleans up. It blocks until the event processing
// goroutine has exited; the Events and Errors channels are closed.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel emitting change notifications. Closed on Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel emitting watcher errors. Closed on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning reports whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addRecursive registers a directory and all its subdirectories, skipping
// hidden ones.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			ev, ok := convertEvent(event)
			if !ok {
				continue
			}

			// Newly created directories join the recursive watch so
			// documents inside them are seen.
			if ev.Op == OpCreate {
				if base := filepath.Base(ev.Path); !strings.HasPrefix(base, ".") {
					// Add fails harmlessly for plain files.
					_ = w.watcher.Add(ev.Path)
				}
			}

			select {
			case w.events <- ev:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event to an Event. Chmod-only events are
// dropped; renames read as deletes since the new name triggers its own
// create.
func convertEvent(event fsnotify.Event) (Event, bool) {
	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return Event{}, false
	}

	return Event{Path: event.Name, Op: op}, true
}
