package item

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is the validated metadata block of one work-item document. It is
// the tagged "valid" half of a parse result; parse failures are returned as
// errors and never carried forward as untyped data.
type Record struct {
	ID        string
	Title     string
	Type      Type
	Status    Status
	Priority  Priority
	Parent    string
	DependsOn []string
	SpecPath  string
	Modified  time.Time
}

// Frontmatter parse errors.
var (
	// ErrMissingFrontmatter indicates the document does not start with a
	// YAML fence.
	ErrMissingFrontmatter = errors.New("missing frontmatter block")
	// ErrUnterminatedFrontmatter indicates the opening fence has no close.
	ErrUnterminatedFrontmatter = errors.New("unterminated frontmatter block")
)

// rawMetadata is the wire shape of the frontmatter block before validation.
type rawMetadata struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Type      string   `yaml:"type"`
	Status    string   `yaml:"status"`
	Priority  int      `yaml:"priority"`
	Parent    string   `yaml:"parent,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Spec      string   `yaml:"spec,omitempty"`
	Modified  string   `yaml:"modified,omitempty"`
}

var fence = []byte("---")

// splitFrontmatter returns the bytes between the opening and closing fences
// and the remaining body. Line endings are tolerated in both CRLF and LF
// form.
func splitFrontmatter(content []byte) (meta, body []byte, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, append(append([]byte{}, fence...), '\n')) {
		return nil, nil, ErrMissingFrontmatter
	}
	rest := normalized[len(fence)+1:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, nil, ErrUnterminatedFrontmatter
	}
	meta = rest[:end+1]
	body = rest[end+1:]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}
	return meta, body, nil
}

// Parse extracts and validates the metadata block of a work-item document.
// Returns an error for any document that is not a well-formed work item;
// callers treat such documents as absent.
func Parse(content []byte) (*Record, error) {
	meta, _, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	var raw rawMetadata
	if err := yaml.Unmarshal(meta, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata block: %w", err)
	}

	if raw.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if raw.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	typ, err := ParseType(raw.Type)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(raw.Status)
	if err != nil {
		return nil, err
	}
	priority, err := ParsePriority(raw.Priority)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:        raw.ID,
		Title:     raw.Title,
		Type:      typ,
		Status:    status,
		Priority:  priority,
		Parent:    raw.Parent,
		DependsOn: raw.DependsOn,
		SpecPath:  raw.Spec,
	}

	if raw.Modified != "" {
		ts, err := time.Parse(time.RFC3339, raw.Modified)
		if err != nil {
			return nil, fmt.Errorf("invalid modified stamp %q: %w", raw.Modified, err)
		}
		rec.Modified = ts
	}

	return rec, nil
}

// FromRecord projects a parsed record onto a WorkItem bound to its document
// path.
func FromRecord(rec *Record, path string) WorkItem {
	return WorkItem{
		ID:        rec.ID,
		Title:     rec.Title,
		Type:      rec.Type,
		Status:    rec.Status,
		Priority:  rec.Priority,
		Path:      path,
		Parent:    rec.Parent,
		DependsOn: rec.DependsOn,
		SpecPath:  rec.SpecPath,
		Modified:  rec.Modified,
	}
}

// Serialize renders a record plus body back into document form. Used by
// tests and tooling; the propagation engine rewrites documents in place via
// RewriteStatus instead to preserve untouched content byte-for-byte.
func Serialize(rec *Record, body []byte) ([]byte, error) {
	raw := rawMetadata{
		ID:        rec.ID,
		Title:     rec.Title,
		Type:      string(rec.Type),
		Status:    string(rec.Status),
		Priority:  int(rec.Priority),
		Parent:    rec.Parent,
		DependsOn: rec.DependsOn,
		Spec:      rec.SpecPath,
	}
	if !rec.Modified.IsZero() {
		raw.Modified = rec.Modified.UTC().Format(time.RFC3339)
	}

	data, err := yaml.Marshal(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
