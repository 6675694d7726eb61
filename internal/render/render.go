package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/id"
	"github.com/lherron/discuss/internal/thread"
)

// Format represents an output format
type Format string

const (
	FormatTable  Format = "table"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatYAML   Format = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatNDJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (table, json, ndjson, yaml)", s)
	}
}

// Options for rendering
type Options struct {
	Format    Format
	Porcelain bool
	// SnippetLen bounds the parent preview shown next to replies.
	SnippetLen int
	// Now anchors relative timestamps in table output.
	Now func() time.Time
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	opts   Options
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	if opts.SnippetLen == 0 {
		opts.SnippetLen = 32
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{writer: writer, opts: opts}
}

// RenderJSON renders data as JSON
func (r *Renderer) RenderJSON(data any) error {
	encoder := json.NewEncoder(r.writer)
	if !r.opts.Porcelain {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// RenderNDJSON renders each item on its own line
func (r *Renderer) RenderNDJSON(items []any) error {
	encoder := json.NewEncoder(r.writer)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data any) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(data)
}

// RenderTable renders data as a formatted table
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if r.opts.Porcelain {
		for _, row := range rows {
			if _, err := fmt.Fprintln(r.writer, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	r.renderTableRow(headers, widths)
	r.renderTableSeparator(widths)
	for _, row := range rows {
		r.renderTableRow(row, widths)
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int) {
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		if i == len(cells)-1 {
			fmt.Fprint(r.writer, cell)
		} else {
			fmt.Fprintf(r.writer, "%-*s  ", widths[i], cell)
		}
	}
	fmt.Fprintln(r.writer)
}

func (r *Renderer) renderTableSeparator(widths []int) {
	for i, width := range widths {
		fmt.Fprint(r.writer, strings.Repeat("-", width))
		if i < len(widths)-1 {
			fmt.Fprint(r.writer, "  ")
		}
	}
	fmt.Fprintln(r.writer)
}

// CommentOutput is the structured form of one listed comment.
type CommentOutput struct {
	domain.Comment `yaml:",inline"`
	Pending        bool   `json:"pending,omitempty" yaml:"pending,omitempty"`
	ParentSnippet  string `json:"parent_snippet,omitempty" yaml:"parent_snippet,omitempty"`
	CanModify      bool   `json:"can_modify" yaml:"can_modify"`
}

// Thread renders a discussion flat and chronologically. Replies show a
// back-reference to their parent; a reply whose parent is not in the view is
// shown as top-level. canModify may be nil.
func (r *Renderer) Thread(view *thread.View, canModify func(string) bool) error {
	entries := view.Entries()
	outputs := make([]CommentOutput, len(entries))
	for i, e := range entries {
		out := CommentOutput{Comment: e.Comment, Pending: id.IsPlaceholder(e.Comment.ID)}
		if e.Parent != nil {
			out.ParentSnippet = thread.Snippet(*e.Parent, r.opts.SnippetLen)
		}
		if canModify != nil {
			out.CanModify = canModify(e.Comment.CanonicalID())
		}
		outputs[i] = out
	}

	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(outputs)
	case FormatNDJSON:
		items := make([]any, len(outputs))
		for i := range outputs {
			items[i] = outputs[i]
		}
		return r.RenderNDJSON(items)
	case FormatYAML:
		return r.RenderYAML(outputs)
	}

	if len(outputs) == 0 && !r.opts.Porcelain {
		_, err := fmt.Fprintln(r.writer, "No comments yet.")
		return err
	}
	rows := make([][]string, len(outputs))
	for i, out := range outputs {
		rows[i] = []string{
			out.CanonicalID(),
			out.AuthorName(),
			r.when(out),
			r.replyTo(out),
			thread.Snippet(out.Comment, 0),
		}
	}
	return r.RenderTable([]string{"ID", "AUTHOR", "WHEN", "REPLY TO", "BODY"}, rows)
}

func (r *Renderer) replyTo(out CommentOutput) string {
	if out.ParentSnippet == "" {
		return ""
	}
	return fmt.Sprintf("%s %q", out.ParentID, out.ParentSnippet)
}

func (r *Renderer) when(out CommentOutput) string {
	if out.Pending {
		return "sending..."
	}
	s := Relative(out.CreatedAt, r.opts.Now())
	if out.IsEdited() {
		s += " (edited)"
	}
	return s
}

// Relative formats t relative to now in coarse units.
func Relative(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// BodyDiff returns a unified diff between two comment bodies, or "" when
// they are equal.
func BodyDiff(commentID, current, proposed string) (string, error) {
	if current == proposed {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(current)),
		B:        difflib.SplitLines(ensureNewline(proposed)),
		FromFile: commentID + " (current)",
		ToFile:   commentID + " (proposed)",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
