// Package suppress detects multi-document batch operations and holds back
// per-file classification while one is in flight.
//
// Batch operations (branch checkouts, working-copy restores) rewrite many
// documents at once and reliably touch a small set of VCS marker files while
// doing so. On marker activity the suppressor raises an in-progress flag and
// arms a dedicated quiet-period timer, longer than the normal refresh
// debounce. While the flag is up, the controller still invalidates per-file
// cache entries but skips classifying and scheduling for them. When the
// quiet period elapses the flag drops and the flush callback runs: the whole
// metadata cache is cleared (suppressed notifications were never
// individually classified) and an immediate full refresh is forced.
package suppress

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultQuiet is the marker quiet period, deliberately longer than the
// normal refresh debounce so a checkout's trailing file events still land
// inside the window.
const DefaultQuiet = 500 * time.Millisecond

// Suppressor tracks one batch-operation window at a time.
type Suppressor struct {
	markers []string
	quiet   time.Duration
	onFlush func()

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	active bool
}

// New creates a suppressor over the given marker paths. onFlush runs once
// per batch window, after the quiet period, on the timer goroutine.
func New(markers []string, quiet time.Duration, onFlush func()) *Suppressor {
	cleaned := make([]string, 0, len(markers))
	for _, m := range markers {
		cleaned = append(cleaned, filepath.Clean(m))
	}
	return &Suppressor{markers: cleaned, quiet: quiet, onFlush: onFlush}
}

// IsMarker reports whether a path is one of the watched marker locations or
// lies underneath one. Markers may be directories (jj's working_copy and
// op_heads/heads); the VCS rewrites files inside them, so the match must
// cover descendants, not just the marker path itself.
func (s *Suppressor) IsMarker(path string) bool {
	clean := filepath.Clean(path)
	for _, m := range s.markers {
		if clean == m || strings.HasPrefix(clean, m+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// MarkerDirs returns the directories the watcher must observe to see marker
// activity: each marker's parent (events for file markers arrive as events
// in the containing directory) and the marker itself (directory markers
// report events for the files the VCS rewrites inside them). Deduplicated;
// the watcher tolerates entries that are files or do not exist yet.
func (s *Suppressor) MarkerDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, m := range s.markers {
		add(filepath.Dir(m))
		add(m)
	}
	return dirs
}

// MarkerChanged records marker activity: raises the in-progress flag and
// (re)starts the quiet-period timer. Each call extends the window.
func (s *Suppressor) MarkerChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quiet, func() { s.fire(gen) })
}

// Active reports whether a batch operation window is currently open.
func (s *Suppressor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel drops the window without flushing. Used on disposal.
func (s *Suppressor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.active = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Suppressor) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.timer = nil
	s.mu.Unlock()

	if s.onFlush != nil {
		s.onFlush()
	}
}

// DefaultMarkers derives the marker set for a workspace by probing for VCS
// metadata directories, walking up from the workspace root the way the
// repository root is normally found. Git and jj are both recognized;
// colocated repositories contribute both sets.
func DefaultMarkers(workspace string) []string {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil
	}

	var markers []string
	current := abs
	for {
		gitDir := filepath.Join(current, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			markers = append(markers,
				filepath.Join(gitDir, "HEAD"),
				filepath.Join(gitDir, "index"),
			)
		}
		// Both jj markers are directories: checkouts rewrite
		// working_copy/tree_state and add files under op_heads/heads/,
		// so the directories themselves are watched and matched by
		// prefix.
		jjDir := filepath.Join(current, ".jj")
		if info, err := os.Stat(jjDir); err == nil && info.IsDir() {
			markers = append(markers,
				filepath.Join(jjDir, "working_copy"),
				filepath.Join(jjDir, "repo", "op_heads", "heads"),
			)
		}
		if len(markers) > 0 {
			return markers
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}
		current = parent
	}
}
