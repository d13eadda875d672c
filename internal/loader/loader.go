// Package loader scans the configured document roots and produces the flat
// work-item list for one refresh cycle.
//
// The loader keeps a single-slot, whole-workspace cache: one full rescan per
// declared refresh buys O(1) reuse for every consumer that needs the item
// set within that cycle. The slot is dropped wholesale by InvalidateAll.
package loader

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/planboard/planboard/internal/item"
	"github.com/planboard/planboard/internal/metastore"
)

// Loader converts the document set under the configured roots into sorted
// WorkItems. Not safe for concurrent use; runs on the controller loop.
type Loader struct {
	roots  []string
	store  *metastore.Store
	logger *log.Logger

	cached []item.WorkItem
	valid  bool
}

// New creates a loader over the given document roots.
func New(roots []string, store *metastore.Store, logger *log.Logger) *Loader {
	return &Loader{roots: roots, store: store, logger: logger}
}

// Load returns the work items for the current cycle. While issued from the
// same cycle (no InvalidateAll in between), repeated calls return the cached
// slice without rescanning. The returned slice is a shared snapshot and must
// not be mutated.
func (l *Loader) Load() []item.WorkItem {
	if l.valid {
		return l.cached
	}

	var items []item.WorkItem
	for _, root := range l.roots {
		items = append(items, l.scanRoot(root)...)
	}

	sort.Slice(items, func(i, j int) bool { return item.Less(items[i], items[j]) })

	l.cached = items
	l.valid = true
	return items
}

// InvalidateAll drops the single-slot cache so the next Load rescans.
func (l *Loader) InvalidateAll() {
	l.cached = nil
	l.valid = false
}

// scanRoot walks one document root collecting parsable work items. Missing
// roots and unreadable documents are skipped with a log line; no per-item
// failure aborts the scan.
func (l *Loader) scanRoot(root string) []item.WorkItem {
	var items []item.WorkItem

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			l.logf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		rec := l.store.Get(path)
		if rec == nil {
			// Unreadable or malformed: the item is simply absent this cycle.
			l.logf("skipping unparsable document %s", path)
			return nil
		}

		items = append(items, item.FromRecord(rec, path))
		return nil
	})
	if err != nil {
		l.logf("failed to scan root %s: %v", root, err)
	}

	return items
}

func (l *Loader) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
