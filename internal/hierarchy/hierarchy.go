// Package hierarchy builds the parent/child forest over a flat work-item
// set.
//
// Parent resolution combines an explicit parent field with a documented
// directory-naming convention: a container lives in a directory named
// <kind>-<number>-<slug>/ and the structural key <kind>-<number> derived
// from that name identifies it. The explicit field always wins when both are
// present; the directory-derived key remains supported as a fallback for
// documents written before the field existed.
//
// Build is a pure function: the same item set always yields the same forest
// shape and ordering. Unresolvable parent references demote an item to a
// root; they are never an error.
package hierarchy

import (
	"log"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/planboard/planboard/internal/item"
)

// Node wraps one work item plus its position in the forest. Children are
// owned; Parent is a non-owning back reference, nil for roots.
type Node struct {
	Item     item.WorkItem
	Children []*Node
	Parent   *Node
}

// Forest is the fully linked hierarchy for one refresh cycle. It is rebuilt
// wholesale per cycle and never mutated afterwards.
type Forest struct {
	Roots []*Node

	byID map[string]*Node
}

// Lookup returns the node for an item ID, or nil when absent.
func (f *Forest) Lookup(id string) *Node {
	return f.byID[id]
}

// Len returns the total number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.byID)
}

// Walk visits every node children-before-parents (post-order), roots in
// display order. The propagation engine depends on this ordering.
func (f *Forest) Walk(visit func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			walk(c)
		}
		visit(n)
	}
	for _, r := range f.Roots {
		walk(r)
	}
}

// dirKeyRe matches container directory names of the documented convention
// <kind>-<number>-<slug>; the slug is optional.
var dirKeyRe = regexp.MustCompile(`^(project|epic|feature)-(\d+)(?:-[^/]*)?$`)

// StructuralKey derives the container key <kind>-<number> from a directory
// name following the naming convention. Returns false for names outside the
// convention.
func StructuralKey(dirName string) (string, bool) {
	m := dirKeyRe.FindStringSubmatch(dirName)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}

// ancestorKeys returns the structural keys of every convention-named
// directory on a document's path, nearest ancestor first. A container's own
// directory appears here too; the linker skips self-references.
func ancestorKeys(docPath string) []string {
	dir := filepath.Dir(docPath)
	segs := strings.Split(filepath.ToSlash(dir), "/")

	var keys []string
	for i := len(segs) - 1; i >= 0; i-- {
		if key, ok := StructuralKey(segs[i]); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Builder constructs forests. It only carries a logger; Build itself holds
// no state between calls.
type Builder struct {
	logger *log.Logger
}

// NewBuilder creates a Builder. A nil logger silences resolution warnings.
func NewBuilder(logger *log.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build links a flat item set into a forest in a single index-then-link
// pass.
//
// Resolution per item, in order:
//  1. explicit parent field (wins silently when the directory disagrees)
//  2. directory-derived structural key of the nearest convention-named
//     ancestor directory
//  3. for containers only: first dependency whose target is of the expected
//     parent type
//  4. no parent: the item becomes a root
//
// A parent reference that resolves to no known item also yields a root.
func (b *Builder) Build(items []item.WorkItem) *Forest {
	f := &Forest{byID: make(map[string]*Node, len(items))}

	nodes := make([]*Node, 0, len(items))
	byKey := make(map[string]*Node)

	// Index pass: every item by ID, containers additionally by the
	// structural key of their own directory.
	for _, it := range items {
		n := &Node{Item: it}
		nodes = append(nodes, n)

		if _, dup := f.byID[it.ID]; dup {
			b.logf("duplicate item id %s (%s); keeping first occurrence", it.ID, it.Path)
			continue
		}
		f.byID[it.ID] = n

		if it.Type.IsContainer() {
			dirName := filepath.Base(filepath.Dir(it.Path))
			if key, ok := StructuralKey(dirName); ok {
				if _, dup := byKey[key]; !dup {
					byKey[key] = n
				}
			}
		}
	}

	// Link pass.
	for _, n := range nodes {
		if f.byID[n.Item.ID] != n {
			// Dropped duplicate.
			continue
		}

		parent := b.resolveParent(n, f.byID, byKey)
		if parent == nil {
			f.Roots = append(f.Roots, n)
			continue
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}

	// Cycle break pass: items naming each other as parents form a chain
	// reachable from no root, which would silently drop them from every
	// walk. Demote one member per cycle so the rest hang off it.
	reachesRoot := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		if f.byID[n.Item.ID] != n {
			continue
		}
		seen := make(map[*Node]bool)
		cur := n
		for cur != nil && !reachesRoot[cur] && !seen[cur] {
			seen[cur] = true
			cur = cur.Parent
		}
		if cur != nil && seen[cur] {
			b.logf("item %s is in a parent cycle; treating as root", cur.Item.ID)
			detach(cur)
			cur.Parent = nil
			f.Roots = append(f.Roots, cur)
		}
		for m := range seen {
			reachesRoot[m] = true
		}
	}

	// Deterministic ordering at every level.
	sortNodes(f.Roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}

	return f
}

// detach removes a node from its parent's child list.
func detach(n *Node) {
	p := n.Parent
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return
		}
	}
}

// resolveParent applies the resolution chain for one node.
func (b *Builder) resolveParent(n *Node, byID, byKey map[string]*Node) *Node {
	it := n.Item

	if it.Parent != "" {
		if p, ok := byID[it.Parent]; ok && p != n {
			return p
		}
		b.logf("item %s has unresolvable parent %s; treating as root", it.ID, it.Parent)
		return nil
	}

	for _, key := range ancestorKeys(it.Path) {
		if key == it.ID {
			// The item's own container directory, not an ancestor.
			continue
		}
		if p, ok := byKey[key]; ok && p != n {
			return p
		}
	}

	// Deepest fallback, containers only: first dependency matching the
	// expected parent type.
	if parentType, ok := it.Type.ParentType(); ok && it.Type.IsContainer() {
		for _, dep := range it.DependsOn {
			if p, ok := byID[dep]; ok && p.Item.Type == parentType {
				return p
			}
		}
	}

	return nil
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return item.Less(nodes[i].Item, nodes[j].Item)
	})
}

func (b *Builder) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
