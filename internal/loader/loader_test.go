package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/planboard/planboard/internal/item"
	"github.com/planboard/planboard/internal/metastore"
)

// writeItem creates the directories for path and writes a minimal document.
func writeItem(t *testing.T, path, id, typ, status string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	doc := fmt.Sprintf("---\nid: %s\ntitle: %s\ntype: %s\nstatus: %s\npriority: 2\n---\n", id, id, typ, status)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write doc: %v", err)
	}
}

func newLoader(roots ...string) *Loader {
	return New(roots, metastore.New(item.Parse), nil)
}

// TestLoad_SortedDeterministically verifies type-category then numeric-ID
// ordering regardless of on-disk layout.
func TestLoad_SortedDeterministically(t *testing.T) {
	root := t.TempDir()
	writeItem(t, filepath.Join(root, "story-10.md"), "story-10", "story", "ready")
	writeItem(t, filepath.Join(root, "epic-1-auth", "epic.md"), "epic-1", "epic", "not_started")
	writeItem(t, filepath.Join(root, "story-2.md"), "story-2", "story", "ready")
	writeItem(t, filepath.Join(root, "project-1-core", "project.md"), "project-1", "project", "not_started")
	writeItem(t, filepath.Join(root, "bug-1.md"), "bug-1", "bug", "ready")

	l := newLoader(root)
	items := l.Load()

	want := []string{"project-1", "epic-1", "story-2", "story-10", "bug-1"}
	if len(items) != len(want) {
		t.Fatalf("Load() returned %d items, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, items[i].ID, id)
		}
	}
}

// TestLoad_SkipsMalformed verifies malformed documents are absent without
// aborting the scan.
func TestLoad_SkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeItem(t, filepath.Join(root, "story-1.md"), "story-1", "story", "ready")
	if err := os.WriteFile(filepath.Join(root, "broken.md"), []byte("no metadata\n"), 0644); err != nil {
		t.Fatalf("failed to write broken doc: %v", err)
	}

	items := newLoader(root).Load()
	if len(items) != 1 || items[0].ID != "story-1" {
		t.Errorf("Load() = %v, want just story-1", items)
	}
}

// TestLoad_IgnoresNonMarkdown verifies only .md documents are considered.
func TestLoad_IgnoresNonMarkdown(t *testing.T) {
	root := t.TempDir()
	writeItem(t, filepath.Join(root, "story-1.md"), "story-1", "story", "ready")
	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644)

	items := newLoader(root).Load()
	if len(items) != 1 {
		t.Errorf("Load() returned %d items, want 1", len(items))
	}
}

// TestLoad_MissingRoot verifies a missing root yields an empty set, not an
// error.
func TestLoad_MissingRoot(t *testing.T) {
	items := newLoader(filepath.Join(t.TempDir(), "nope")).Load()
	if len(items) != 0 {
		t.Errorf("Load() = %v, want empty", items)
	}
}

// TestLoad_SingleSlotCache verifies repeated Loads within a cycle reuse the
// cached slice and InvalidateAll forces a rescan.
func TestLoad_SingleSlotCache(t *testing.T) {
	root := t.TempDir()
	writeItem(t, filepath.Join(root, "story-1.md"), "story-1", "story", "ready")

	l := newLoader(root)
	first := l.Load()

	// A new document appears, but without InvalidateAll the slot is reused.
	writeItem(t, filepath.Join(root, "story-2.md"), "story-2", "story", "ready")
	second := l.Load()
	if len(second) != len(first) {
		t.Error("Load() rescanned without InvalidateAll")
	}

	l.InvalidateAll()
	third := l.Load()
	if len(third) != 2 {
		t.Errorf("Load() after InvalidateAll returned %d items, want 2", len(third))
	}
}

// TestLoad_SkipsHiddenDirs verifies dot-directories (VCS metadata) are not
// scanned for documents.
func TestLoad_SkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeItem(t, filepath.Join(root, "story-1.md"), "story-1", "story", "ready")
	writeItem(t, filepath.Join(root, ".git", "story-9.md"), "story-9", "story", "ready")

	items := newLoader(root).Load()
	if len(items) != 1 || items[0].ID != "story-1" {
		t.Errorf("Load() = %v, want just story-1", items)
	}
}

// TestLoad_MultipleRoots verifies items from all roots merge into one sorted
// set.
func TestLoad_MultipleRoots(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeItem(t, filepath.Join(rootA, "story-2.md"), "story-2", "story", "ready")
	writeItem(t, filepath.Join(rootB, "story-1.md"), "story-1", "story", "ready")

	items := newLoader(rootA, rootB).Load()
	if len(items) != 2 || items[0].ID != "story-1" || items[1].ID != "story-2" {
		t.Errorf("Load() = %v, want [story-1 story-2]", items)
	}
}
