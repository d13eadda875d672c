// Package propagate recomputes container statuses bottom-up from child
// statuses and persists the result into the container documents.
//
// The engine applies a one-way ratchet: a completed container never
// regresses, regardless of later child states, which keeps transient edits
// from oscillating parent statuses. Writes are targeted rewrites of only the
// status and modified lines; every other byte of the document is preserved.
package propagate

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/planboard/planboard/internal/hierarchy"
	"github.com/planboard/planboard/internal/item"
)

// Update records one applied container status change.
type Update struct {
	// ID is the container's item ID.
	ID string
	// Path is the rewritten document.
	Path string
	// Status is the newly persisted status.
	Status item.Status
	// Modified is the stamp written alongside the status.
	Modified time.Time
}

// Engine walks a forest bottom-up and persists container status changes.
type Engine struct {
	logger *log.Logger
	now    func() time.Time
	write  func(path string, data []byte) error
}

// New creates a propagation engine. A nil logger silences per-container
// failure lines.
func New(logger *log.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
		write:  writeAtomic,
	}
}

// writeAtomic replaces a document atomically so a crashed write never leaves
// a half-rewritten metadata block behind.
func writeAtomic(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Run performs one propagation pass over the forest. Children are always
// decided before their parents, so a completing feature can cascade into its
// epic within the same pass.
//
// The decision table, applied to each container's stored status:
//
//	all children completed            -> completed (unless already)
//	>=1 child in progress             -> in_progress (from not_started/in_planning)
//	some but not all completed        -> in_progress (from not_started/in_planning)
//	otherwise                         -> no change
//
// Containers with zero children are never touched. Per-container write
// failures are logged and do not abort propagation for siblings; the next
// cycle retries them. A second pass with no intervening edits writes
// nothing.
func (e *Engine) Run(f *hierarchy.Forest) []Update {
	var updates []Update

	f.Walk(func(n *hierarchy.Node) {
		if !n.Item.Type.IsContainer() || len(n.Children) == 0 {
			return
		}

		next, ok := decide(n)
		if !ok {
			return
		}

		stamp := e.now().UTC().Truncate(time.Second)
		if err := e.persist(n.Item.Path, next, stamp); err != nil {
			e.logf("failed to propagate status for %s: %v", n.Item.ID, err)
			return
		}

		// Keep the in-memory node coherent for ancestors deciding later in
		// this same pass.
		n.Item.Status = next

		updates = append(updates, Update{
			ID:       n.Item.ID,
			Path:     n.Item.Path,
			Status:   next,
			Modified: stamp,
		})
	})

	return updates
}

// decide returns the status a container should move to, or false for no
// change.
func decide(n *hierarchy.Node) (item.Status, bool) {
	current := n.Item.Status

	// One-way ratchet: completed never regresses.
	if current == item.StatusCompleted {
		return "", false
	}

	// Archived children drop out of the tally the same way the progress
	// aggregator drops them.
	counted := 0
	completed := 0
	inProgress := 0
	for _, c := range n.Children {
		switch c.Item.EffectiveStatus() {
		case item.StatusArchived:
			continue
		case item.StatusCompleted:
			completed++
		case item.StatusInProgress:
			inProgress++
		}
		counted++
	}
	if counted == 0 {
		return "", false
	}

	if completed == counted {
		return item.StatusCompleted, true
	}

	eligible := current == item.StatusNotStarted || current == item.StatusInPlanning
	if eligible && (inProgress > 0 || completed > 0) {
		return item.StatusInProgress, true
	}

	return "", false
}

// persist rewrites only the status and modified lines of the container's
// document.
func (e *Engine) persist(path string, status item.Status, stamp time.Time) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	updated, err := item.RewriteStatus(doc, status, stamp)
	if err != nil {
		return err
	}

	if err := e.write(path, updated); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
