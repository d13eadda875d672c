package item

import (
	"strings"
	"testing"
	"time"
)

// TestRewriteStatus verifies that only the status and modified lines change.
func TestRewriteStatus(t *testing.T) {
	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	out, err := RewriteStatus([]byte(sampleDoc), StatusCompleted, stamp)
	if err != nil {
		t.Fatalf("RewriteStatus() failed: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, "status: completed\n") {
		t.Error("status line was not rewritten")
	}
	if !strings.Contains(s, "modified: 2026-08-30T12:00:00Z\n") {
		t.Error("modified line was not rewritten")
	}

	// Every other line must be byte-identical.
	if !strings.Contains(s, "title: Login form validation\n") {
		t.Error("title line was altered")
	}
	if !strings.Contains(s, "depends_on: [story-9]\n") {
		t.Error("depends_on line was altered")
	}
	if !strings.Contains(s, "Free-form body text.\n") {
		t.Error("body was altered")
	}

	rec, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() of rewritten doc failed: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
}

// TestRewriteStatus_InsertsModified verifies that a missing modified line is
// inserted after the status line.
func TestRewriteStatus_InsertsModified(t *testing.T) {
	doc := "---\nid: epic-1\ntitle: Auth\ntype: epic\nstatus: not_started\npriority: 2\n---\nbody\n"
	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	out, err := RewriteStatus([]byte(doc), StatusInProgress, stamp)
	if err != nil {
		t.Fatalf("RewriteStatus() failed: %v", err)
	}

	if !strings.Contains(string(out), "status: in_progress\nmodified: 2026-08-30T12:00:00Z\n") {
		t.Errorf("modified line not inserted after status:\n%s", out)
	}

	rec, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() of rewritten doc failed: %v", err)
	}
	if !rec.Modified.Equal(stamp) {
		t.Errorf("Modified = %v, want %v", rec.Modified, stamp)
	}
}

// TestRewriteStatus_BodyStatusUntouched verifies that a "status:" line in the
// document body is never rewritten.
func TestRewriteStatus_BodyStatusUntouched(t *testing.T) {
	doc := "---\nid: story-1\ntitle: X\ntype: story\nstatus: ready\n---\nstatus: not a field\n"

	out, err := RewriteStatus([]byte(doc), StatusCompleted, time.Now())
	if err != nil {
		t.Fatalf("RewriteStatus() failed: %v", err)
	}

	if !strings.Contains(string(out), "status: not a field\n") {
		t.Error("body status line was rewritten")
	}
}

// TestRewriteStatus_Failures verifies pattern-match failures are reported.
func TestRewriteStatus_Failures(t *testing.T) {
	if _, err := RewriteStatus([]byte("no frontmatter\n"), StatusCompleted, time.Now()); err == nil {
		t.Error("RewriteStatus() should fail without a frontmatter block")
	}

	noStatus := "---\nid: story-1\ntitle: X\ntype: story\n---\nbody\n"
	if _, err := RewriteStatus([]byte(noStatus), StatusCompleted, time.Now()); err == nil {
		t.Error("RewriteStatus() should fail when the status line is missing")
	}
}

// TestRewriteStatus_Idempotent verifies rewriting to the same value with the
// same stamp reproduces identical bytes.
func TestRewriteStatus_Idempotent(t *testing.T) {
	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	once, err := RewriteStatus([]byte(sampleDoc), StatusCompleted, stamp)
	if err != nil {
		t.Fatalf("first RewriteStatus() failed: %v", err)
	}
	twice, err := RewriteStatus(once, StatusCompleted, stamp)
	if err != nil {
		t.Fatalf("second RewriteStatus() failed: %v", err)
	}
	if string(once) != string(twice) {
		t.Error("second rewrite changed bytes")
	}
}

// TestRewriteStatus_CRLF verifies Windows line endings survive the rewrite
// and the status still changes.
func TestRewriteStatus_CRLF(t *testing.T) {
	stamp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	doc := strings.ReplaceAll(sampleDoc, "\n", "\r\n")

	out, err := RewriteStatus([]byte(doc), StatusCompleted, stamp)
	if err != nil {
		t.Fatalf("RewriteStatus() with CRLF failed: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, "status: completed\r\n") {
		t.Error("status line was not rewritten with CRLF preserved")
	}
	if !strings.Contains(s, "modified: 2026-08-30T12:00:00Z\r\n") {
		t.Error("modified line was not rewritten with CRLF preserved")
	}
	if !strings.Contains(s, "title: Login form validation\r\n") {
		t.Error("title line was altered")
	}
	if strings.Contains(strings.ReplaceAll(s, "\r\n", ""), "\n") {
		t.Error("rewrite introduced bare LF endings")
	}

	rec, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() of rewritten CRLF doc failed: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("rewritten status = %s, want completed", rec.Status)
	}
}
