// Package classify decides how much of the board a document edit can
// affect.
//
// Classification compares the last accepted snapshot of a document against a
// freshly derived record. The "old" side must come from the snapshot store,
// never from the metadata cache: the cache's staleness check transparently
// refetches new content, which would collapse every diff to "no change".
package classify

import (
	"slices"

	"github.com/planboard/planboard/internal/item"
)

// Kind is the three-tier classification of a document edit by its display
// impact.
type Kind int

const (
	// KindBody means none of the watched metadata fields differ; the edit
	// touched only document body text.
	KindBody Kind = iota
	// KindContent means title or priority differ: display-only impact, the
	// node re-renders but keeps its position.
	KindContent
	// KindStructure means the item appeared, disappeared, or changed a
	// field that can move it between groups or hierarchy positions.
	KindStructure
)

// String returns a human-readable classification name.
func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindContent:
		return "content"
	case KindStructure:
		return "structure"
	default:
		return "unknown"
	}
}

// Snapshot is the per-document projection kept for diffing. Only the
// watched fields are retained.
type Snapshot struct {
	// Present is false when the document had no parsable record.
	Present bool

	ID        string
	Status    item.Status
	Title     string
	Priority  item.Priority
	Parent    string
	DependsOn []string
}

// Take projects a record into a snapshot. A nil record yields an absent
// snapshot.
func Take(rec *item.Record) Snapshot {
	if rec == nil {
		return Snapshot{}
	}
	return Snapshot{
		Present:   true,
		ID:        rec.ID,
		Status:    rec.Status,
		Title:     rec.Title,
		Priority:  rec.Priority,
		Parent:    rec.Parent,
		DependsOn: slices.Clone(rec.DependsOn),
	}
}

// Result carries the classification plus the replacement snapshot to
// persist. Next is returned for every call, including first-observed edits
// and deletions, so the snapshot store always reflects the accepted state.
type Result struct {
	Kind Kind
	Next Snapshot
}

// Classify compares the prior snapshot against a fresh record.
//
// Structure: presence flipped, or id/status/parent/dependency-list differ.
// Content: title or priority differ with no structure condition.
// Body: no watched field differs.
//
// The parent field is not named by the original three-tier rules; a parent
// change moves the item's hierarchy position, so it lands in the ambiguous
// bucket and defaults to structure (safe over-refresh).
func Classify(prev Snapshot, rec *item.Record) Result {
	next := Take(rec)

	if prev.Present != next.Present {
		return Result{Kind: KindStructure, Next: next}
	}
	if !prev.Present {
		// Never existed and still doesn't.
		return Result{Kind: KindBody, Next: next}
	}

	if prev.ID != next.ID ||
		prev.Status != next.Status ||
		prev.Parent != next.Parent ||
		!slices.Equal(prev.DependsOn, next.DependsOn) {
		return Result{Kind: KindStructure, Next: next}
	}

	if prev.Title != next.Title || prev.Priority != next.Priority {
		return Result{Kind: KindContent, Next: next}
	}

	return Result{Kind: KindBody, Next: next}
}
