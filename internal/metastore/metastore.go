// Package metastore provides the per-document metadata cache with mtime
// staleness detection.
//
// The store wraps the document parser: Get returns the cached record while
// the on-disk mtime is unchanged and transparently refetches when it is not.
// Because staleness checking always surfaces the NEW content, the store can
// never be used to obtain "before" state after an edit; old/new comparison
// belongs to the classifier's snapshot store, never here.
//
// The store is not safe for concurrent use. All mutation is expected to run
// on the synchronization controller's event loop.
package metastore

import (
	"log"
	"os"
	"time"

	"github.com/planboard/planboard/internal/item"
)

// DefaultMaxEntries bounds the cache when no explicit size is configured.
const DefaultMaxEntries = 1000

// ParseFunc turns raw document bytes into a metadata record. It is the only
// point where the store touches document semantics, so any parser satisfying
// the work-item field schema can back it.
type ParseFunc func(content []byte) (*item.Record, error)

// Stats holds cumulative cache counters.
type Stats struct {
	// Hits counts Gets answered from a valid cache entry.
	Hits uint64
	// Misses counts Gets that had to read and parse the document.
	Misses uint64
	// Evictions counts entries dropped to stay within the size bound.
	Evictions uint64
}

type entry struct {
	record   *item.Record
	mtime    time.Time
	loadedAt time.Time
}

// Store caches parsed metadata records keyed by document path.
//
// Eviction is insertion-order, not true LRU: the oldest inserted entry goes
// first. Hot entries survive in practice because invalidation removes them
// and the next Get re-inserts them at the back.
type Store struct {
	parse      ParseFunc
	maxEntries int
	entries    map[string]*entry
	order      []string
	stats      Stats
	logger     *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries overrides the cache size bound.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithLogger routes cache diagnostics to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a metadata store around the given parser.
func New(parse ParseFunc, opts ...Option) *Store {
	s := &Store{
		parse:      parse,
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the metadata record for a document, or nil when the document
// cannot be read or parsed. A cached entry is used only while the stored
// mtime matches the current on-disk mtime; otherwise the document is re-read
// and re-parsed. Failed reads and parses are never cached.
func (s *Store) Get(path string) *item.Record {
	info, err := os.Stat(path)
	if err != nil {
		// Document vanished or is unreadable: drop any stale entry.
		s.stats.Misses++
		s.remove(path)
		return nil
	}

	if e, ok := s.entries[path]; ok && e.mtime.Equal(info.ModTime()) {
		s.stats.Hits++
		return e.record
	}

	s.stats.Misses++

	content, err := os.ReadFile(path)
	if err != nil {
		s.logf("failed to read %s: %v", path, err)
		s.remove(path)
		return nil
	}

	rec, err := s.parse(content)
	if err != nil {
		s.logf("failed to parse %s: %v", path, err)
		s.remove(path)
		return nil
	}

	s.insert(path, &entry{record: rec, mtime: info.ModTime(), loadedAt: time.Now()})
	return rec
}

// Invalidate removes the entry for a path unconditionally. Safe to call for
// paths that were never cached.
func (s *Store) Invalidate(path string) {
	s.remove(path)
}

// Clear drops every cache entry. Used after a batch operation window, where
// suppressed notifications were never individually classified.
func (s *Store) Clear() {
	s.entries = make(map[string]*entry)
	s.order = s.order[:0]
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Stats returns the cumulative hit/miss/eviction counters.
func (s *Store) Stats() Stats {
	return s.stats
}

func (s *Store) insert(path string, e *entry) {
	if _, ok := s.entries[path]; ok {
		s.removeFromOrder(path)
	}
	s.entries[path] = e
	s.order = append(s.order, path)

	for len(s.entries) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
		s.stats.Evictions++
	}
}

func (s *Store) remove(path string) {
	if _, ok := s.entries[path]; !ok {
		return
	}
	delete(s.entries, path)
	s.removeFromOrder(path)
}

func (s *Store) removeFromOrder(path string) {
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
