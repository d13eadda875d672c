package classify

import "github.com/planboard/planboard/internal/item"

// Snapshots is the PreviousSnapshotStore: the last accepted projection of
// every document, used only for diffing. It persists across refresh cycles
// and must be seeded from current state at startup; otherwise the first
// external edit diffs against nothing and reads as "no change".
//
// Not safe for concurrent use; mutation runs on the controller loop.
type Snapshots struct {
	byPath map[string]Snapshot
}

// NewSnapshots creates an empty snapshot store.
func NewSnapshots() *Snapshots {
	return &Snapshots{byPath: make(map[string]Snapshot)}
}

// Seed replaces the store contents with projections of the given items.
// Called at startup and after every full rebuild so subsequent diffs compare
// against the state the board actually shows.
func (s *Snapshots) Seed(items []item.WorkItem) {
	s.byPath = make(map[string]Snapshot, len(items))
	for _, it := range items {
		s.byPath[it.Path] = Snapshot{
			Present:   true,
			ID:        it.ID,
			Status:    it.Status,
			Title:     it.Title,
			Priority:  it.Priority,
			Parent:    it.Parent,
			DependsOn: it.DependsOn,
		}
	}
}

// Get returns the last accepted snapshot for a path. An absent entry is
// returned as a non-present snapshot, which Classify treats as "did not
// exist".
func (s *Snapshots) Get(path string) Snapshot {
	return s.byPath[path]
}

// Accept persists a replacement snapshot. Non-present snapshots remove the
// entry, covering deletions.
func (s *Snapshots) Accept(path string, snap Snapshot) {
	if !snap.Present {
		delete(s.byPath, path)
		return
	}
	s.byPath[path] = snap
}

// Len returns the number of tracked documents.
func (s *Snapshots) Len() int {
	return len(s.byPath)
}
