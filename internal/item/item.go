// Package item provides the work-item data model for planboard.
//
// A work item is backed by one markdown document whose metadata lives in a
// YAML frontmatter block at the top of the file. Constrained fields (type,
// status, priority) are validated into closed enums at the parse boundary;
// documents that fail validation are rejected as a whole rather than carried
// around as loosely-typed data.
package item

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Type classifies a work item within the planning hierarchy.
type Type string

const (
	// TypeProject is a top-level container.
	TypeProject Type = "project"
	// TypeEpic is a container grouping features under a project.
	TypeEpic Type = "epic"
	// TypeFeature is a container grouping stories and bugs under an epic.
	TypeFeature Type = "feature"
	// TypeStory is a leaf work item.
	TypeStory Type = "story"
	// TypeBug is a leaf work item tracking a defect.
	TypeBug Type = "bug"
)

// validTypes lists all accepted work-item types.
var validTypes = []Type{TypeProject, TypeEpic, TypeFeature, TypeStory, TypeBug}

// ParseType validates a raw type string into a Type.
func ParseType(s string) (Type, error) {
	for _, t := range validTypes {
		if Type(s) == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// IsContainer reports whether items of this type may own children.
func (t Type) IsContainer() bool {
	return t == TypeProject || t == TypeEpic || t == TypeFeature
}

// Category returns the sort rank for this type: containers sort before
// leaves, projects before epics before features, stories before bugs.
func (t Type) Category() int {
	switch t {
	case TypeProject:
		return 0
	case TypeEpic:
		return 1
	case TypeFeature:
		return 2
	case TypeStory:
		return 3
	case TypeBug:
		return 4
	default:
		return 5
	}
}

// ParentType returns the expected container type one level up, used when
// resolving container parents through the dependency list. Leaves attach to
// features; projects have no parent.
func (t Type) ParentType() (Type, bool) {
	switch t {
	case TypeEpic:
		return TypeProject, true
	case TypeFeature:
		return TypeEpic, true
	case TypeStory, TypeBug:
		return TypeFeature, true
	default:
		return "", false
	}
}

// Status is the lifecycle state stored in a work-item document.
type Status string

const (
	// StatusNotStarted is the initial state.
	StatusNotStarted Status = "not_started"
	// StatusInPlanning marks an item being broken down.
	StatusInPlanning Status = "in_planning"
	// StatusReady marks an item ready to be picked up.
	StatusReady Status = "ready"
	// StatusInProgress marks active work.
	StatusInProgress Status = "in_progress"
	// StatusCompleted marks finished work.
	StatusCompleted Status = "completed"
	// StatusArchived is terminal; archived items never leave this state.
	StatusArchived Status = "archived"
)

// validStatuses lists all accepted lifecycle states.
var validStatuses = []Status{
	StatusNotStarted, StatusInPlanning, StatusReady,
	StatusInProgress, StatusCompleted, StatusArchived,
}

// ParseStatus validates a raw status string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range validStatuses {
		if Status(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Statuses returns all lifecycle states in display order.
func Statuses() []Status {
	out := make([]Status, len(validStatuses))
	copy(out, validStatuses)
	return out
}

// Priority ranks a work item from P0 (critical) to P4 (backlog).
type Priority int

// ParsePriority validates a raw priority value.
func ParsePriority(p int) (Priority, error) {
	if p < 0 || p > 4 {
		return 0, fmt.Errorf("priority must be between 0 and 4 (got %d)", p)
	}
	return Priority(p), nil
}

// String returns the P-notation form, e.g. "P1".
func (p Priority) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// WorkItem is one unit in the planning hierarchy, backed by one document.
// The full item set is rebuilt wholesale every refresh cycle; a WorkItem is
// never mutated in place after construction.
type WorkItem struct {
	// ID is the type-prefixed identifier, e.g. "story-12". Identity.
	ID string

	// Title is the human-readable summary line.
	Title string

	// Type classifies the item (project/epic/feature/story/bug).
	Type Type

	// Status is the lifecycle state as stored in the document.
	Status Status

	// Priority ranks the item P0..P4.
	Priority Priority

	// Path is the document path backing this item.
	Path string

	// Parent is the explicit parent item ID, empty when unset.
	Parent string

	// DependsOn lists item IDs this item depends on.
	DependsOn []string

	// SpecPath is an optional linked specification document.
	SpecPath string

	// Modified is the last-modified stamp from the metadata block.
	Modified time.Time
}

// EffectiveStatus returns the status used for grouping and progress
// counting. Items whose document lives under an archive directory are
// reported as archived regardless of their stored status.
func (w WorkItem) EffectiveStatus() Status {
	if InArchive(w.Path) {
		return StatusArchived
	}
	return w.Status
}

// NumericID extracts the numeric portion of a type-prefixed identifier,
// e.g. 12 from "story-12". Returns -1 when the ID has no numeric suffix so
// malformed IDs sort ahead of well-formed ones deterministically.
func NumericID(id string) int {
	idx := strings.LastIndex(id, "-")
	if idx < 0 || idx == len(id)-1 {
		return -1
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

// Less orders work items deterministically: type category first, then
// numeric ID, then raw ID as the final tiebreak.
func Less(a, b WorkItem) bool {
	if ca, cb := a.Type.Category(), b.Type.Category(); ca != cb {
		return ca < cb
	}
	if na, nb := NumericID(a.ID), NumericID(b.ID); na != nb {
		return na < nb
	}
	return a.ID < b.ID
}

// InArchive reports whether a document path contains an "archive" directory
// segment, which forces the item's effective status to archived.
func InArchive(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == "archive" {
			return true
		}
	}
	return false
}
