package item

import (
	"bytes"
	"fmt"
	"regexp"
	"time"
)

// Field-line patterns scoped to the metadata block. Anchored per line so a
// "status:" occurrence in the document body is never touched.
var (
	statusLineRe   = regexp.MustCompile(`(?m)^status:[ \t]*\S.*$`)
	modifiedLineRe = regexp.MustCompile(`(?m)^modified:[ \t]*\S.*$`)
)

// RewriteStatus returns a copy of doc with only the status and modified
// lines of the frontmatter block replaced. Every other byte of the document,
// including formatting and comments inside the block, is preserved exactly.
//
// Returns an error when the document has no frontmatter block or the block
// has no status line; callers treat that as a propagation write failure for
// this document alone.
//
// CRLF documents are rewritten in normalized form and re-expanded at the
// end, so their line endings survive; a document with mixed endings comes
// back uniformly CRLF.
func RewriteStatus(doc []byte, status Status, modified time.Time) ([]byte, error) {
	crlf := bytes.Contains(doc, []byte("\r\n"))
	work := doc
	if crlf {
		work = bytes.ReplaceAll(doc, []byte("\r\n"), []byte("\n"))
	}

	meta, _, err := splitFrontmatter(work)
	if err != nil {
		return nil, err
	}

	// Locate the block inside the document so offsets line up even when
	// the body contains its own fences.
	start := bytes.Index(work, meta)
	if start < 0 {
		return nil, fmt.Errorf("failed to locate metadata block for rewrite")
	}
	end := start + len(meta)
	block := work[start:end]

	loc := statusLineRe.FindIndex(block)
	if loc == nil {
		return nil, fmt.Errorf("status field not found in metadata block")
	}

	newStatus := []byte("status: " + string(status))
	newModified := []byte("modified: " + modified.UTC().Format(time.RFC3339))

	updated := make([]byte, 0, len(block)+len(newModified)+1)
	updated = append(updated, block[:loc[0]]...)
	updated = append(updated, newStatus...)
	updated = append(updated, block[loc[1]:]...)

	if mloc := modifiedLineRe.FindIndex(updated); mloc != nil {
		replaced := make([]byte, 0, len(updated))
		replaced = append(replaced, updated[:mloc[0]]...)
		replaced = append(replaced, newModified...)
		replaced = append(replaced, updated[mloc[1]:]...)
		updated = replaced
	} else {
		// No modified line yet: insert one directly after the status line.
		sloc := statusLineRe.FindIndex(updated)
		insertAt := sloc[1]
		inserted := make([]byte, 0, len(updated)+len(newModified)+1)
		inserted = append(inserted, updated[:insertAt]...)
		inserted = append(inserted, '\n')
		inserted = append(inserted, newModified...)
		inserted = append(inserted, updated[insertAt:]...)
		updated = inserted
	}

	out := make([]byte, 0, len(work)-len(block)+len(updated))
	out = append(out, work[:start]...)
	out = append(out, updated...)
	out = append(out, work[end:]...)
	if crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}
