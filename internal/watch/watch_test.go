package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor reads events until one matching the predicate arrives or the
// timeout elapses.
func waitFor(t *testing.T, w *Watcher, timeout time.Duration, match func(Event) bool) (Event, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return Event{}, false
			}
			if match(ev) {
				return ev, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

// TestNew verifies watcher construction.
func TestNew(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	if w.IsRunning() {
		t.Error("newly created watcher should not be running")
	}
}

// TestStartStop verifies clean start/stop and double-start rejection.
func TestStartStop(t *testing.T) {
	root := t.TempDir()

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}

	if err := w.Start([]string{root}, nil); err == nil {
		t.Error("second Start() should fail")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
}

// TestFileCreated verifies document creation emits an event.
func TestFileCreated(t *testing.T) {
	root := t.TempDir()

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(root, "story-1.md")
	if err := os.WriteFile(path, []byte("---\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	ev, ok := waitFor(t, w, 2*time.Second, func(ev Event) bool {
		return ev.Path == path && ev.Op == OpCreate
	})
	if !ok {
		t.Fatal("no create event received")
	}
	if ev.Op.String() != "create" {
		t.Errorf("Op.String() = %q", ev.Op.String())
	}
}

// TestFileDeleted verifies document removal emits a delete event.
func TestFileDeleted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "story-1.md")
	if err := os.WriteFile(path, []byte("---\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	os.Remove(path)

	if _, ok := waitFor(t, w, 2*time.Second, func(ev Event) bool {
		return ev.Path == path && ev.Op == OpDelete
	}); !ok {
		t.Fatal("no delete event received")
	}
}

// TestNewDirectoryJoinsWatch verifies files inside directories created after
// Start are still observed.
func TestNewDirectoryJoinsWatch(t *testing.T) {
	root := t.TempDir()

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	sub := filepath.Join(root, "feature-1-login")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "story-1.md")
	if err := os.WriteFile(path, []byte("---\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, ok := waitFor(t, w, 2*time.Second, func(ev Event) bool {
		return ev.Path == path
	}); !ok {
		t.Fatal("no event for file in newly created directory")
	}
}

// TestDirectoryMarkerActivity verifies changes to files inside a flat-watched
// marker directory are reported, the way jj rewrites working_copy/tree_state.
func TestDirectoryMarkerActivity(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, ".jj", "working_copy")
	if err := os.MkdirAll(marker, 0755); err != nil {
		t.Fatalf("failed to create marker dir: %v", err)
	}

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start([]string{root}, []string{marker}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	inside := filepath.Join(marker, "tree_state")
	if err := os.WriteFile(inside, []byte("state"), 0644); err != nil {
		t.Fatalf("failed to write marker file: %v", err)
	}

	if _, ok := waitFor(t, w, 2*time.Second, func(ev Event) bool {
		return ev.Path == inside
	}); !ok {
		t.Fatal("no event for file inside marker directory")
	}
}

// TestMissingMarkerDirIgnored verifies Start succeeds when a marker
// directory does not exist.
func TestMissingMarkerDirIgnored(t *testing.T) {
	root := t.TempDir()

	w, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	missing := filepath.Join(root, ".git")
	if err := w.Start([]string{root}, []string{missing}); err != nil {
		t.Fatalf("Start() with missing marker dir failed: %v", err)
	}
}
