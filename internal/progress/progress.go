// Package progress computes per-container completion counts over direct
// children.
//
// Counting uses each child's effective status: children living in an archive
// location are reclassified into the archived bucket first and drop out of
// the completed/total tally entirely. A container with zero countable
// children has no progress data, which is distinct from 0%.
package progress

import (
	"fmt"

	"github.com/planboard/planboard/internal/hierarchy"
	"github.com/planboard/planboard/internal/item"
)

// Info is the derived completion summary for one container.
type Info struct {
	// Completed is the number of direct children with effective status
	// completed.
	Completed int
	// Total is the number of direct, non-archived children.
	Total int
	// Percent is Completed/Total rounded down, 0..100.
	Percent int
	// Display is the rendered form, e.g. "3/5 (60%)".
	Display string
}

// Aggregator caches computed Info per item ID for one refresh cycle. Reset
// must be called at the start of every cycle; the cache is only valid within
// one.
type Aggregator struct {
	cache map[string]Info
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{cache: make(map[string]Info)}
}

// Reset drops all cached entries for a new refresh cycle.
func (a *Aggregator) Reset() {
	a.cache = make(map[string]Info)
}

// For returns the progress summary for a node. The second result is false
// when the node has no countable children and therefore no progress data.
func (a *Aggregator) For(n *hierarchy.Node) (Info, bool) {
	if n == nil || len(n.Children) == 0 {
		return Info{}, false
	}

	if info, ok := a.cache[n.Item.ID]; ok {
		return info, info.Total > 0
	}

	info := compute(n)
	a.cache[n.Item.ID] = info
	return info, info.Total > 0
}

// compute tallies direct children only; descendants are their own
// containers' concern.
func compute(n *hierarchy.Node) Info {
	var info Info
	for _, c := range n.Children {
		status := c.Item.EffectiveStatus()
		if status == item.StatusArchived {
			continue
		}
		info.Total++
		if status == item.StatusCompleted {
			info.Completed++
		}
	}

	if info.Total > 0 {
		info.Percent = info.Completed * 100 / info.Total
		info.Display = fmt.Sprintf("%d/%d (%d%%)", info.Completed, info.Total, info.Percent)
	}
	return info
}
