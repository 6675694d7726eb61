package thread

import (
	"strings"

	"github.com/lherron/discuss/internal/domain"
)

// View is a read-only, chronologically ordered projection of a discussion.
// Display is flat: replies are not nested but carry a back-reference to
// their parent, resolved through Lookup.
type View struct {
	records  []domain.Comment
	byID     map[string]int
	children map[string][]int
}

// Entry pairs a comment with its resolved parent, if any.
type Entry struct {
	Comment domain.Comment
	Parent  *domain.Comment
}

// NewView builds a view over records. The input is copied and sorted.
func NewView(records []domain.Comment) *View {
	v := &View{
		records:  cloneAll(records),
		byID:     make(map[string]int, len(records)),
		children: make(map[string][]int),
	}
	sortChronological(v.records)

	for i := range v.records {
		if cid := v.records[i].CanonicalID(); cid != "" {
			v.byID[cid] = i
		}
	}
	for i := range v.records {
		rec := &v.records[i]
		if p, ok := v.parentIndex(rec); ok {
			pid := v.records[p].CanonicalID()
			v.children[pid] = append(v.children[pid], i)
		}
	}
	return v
}

// Len returns the number of comments.
func (v *View) Len() int {
	return len(v.records)
}

// Records returns the comments in display order.
func (v *View) Records() []domain.Comment {
	return cloneAll(v.records)
}

// Lookup finds a comment by id.
func (v *View) Lookup(id string) (domain.Comment, bool) {
	i, ok := v.byID[id]
	if !ok {
		return domain.Comment{}, false
	}
	return v.records[i].Clone(), true
}

// ParentOf resolves rec's parent. A parent id that no longer resolves, or
// that points at rec itself, yields false and rec displays as top-level.
func (v *View) ParentOf(rec domain.Comment) (domain.Comment, bool) {
	i, ok := v.parentIndex(&rec)
	if !ok {
		return domain.Comment{}, false
	}
	return v.records[i].Clone(), true
}

// IsTopLevel reports whether rec is displayed without a back-reference.
func (v *View) IsTopLevel(rec domain.Comment) bool {
	_, ok := v.parentIndex(&rec)
	return !ok
}

// Replies returns the direct replies to id in chronological order.
func (v *View) Replies(id string) []domain.Comment {
	idx := v.children[id]
	out := make([]domain.Comment, 0, len(idx))
	for _, i := range idx {
		out = append(out, v.records[i].Clone())
	}
	return out
}

// Entries returns every comment with its resolved parent.
func (v *View) Entries() []Entry {
	out := make([]Entry, len(v.records))
	for i := range v.records {
		out[i].Comment = v.records[i].Clone()
		if p, ok := v.parentIndex(&v.records[i]); ok {
			parent := v.records[p].Clone()
			out[i].Parent = &parent
		}
	}
	return out
}

func (v *View) parentIndex(rec *domain.Comment) (int, bool) {
	if rec.ParentID == "" || rec.ParentID == rec.CanonicalID() {
		return 0, false
	}
	i, ok := v.byID[rec.ParentID]
	return i, ok
}

// Snippet returns a single-line preview of a comment body, at most max
// runes long.
func Snippet(rec domain.Comment, max int) string {
	preview := strings.Join(strings.Fields(rec.Body), " ")
	runes := []rune(preview)
	if max <= 3 || len(runes) <= max {
		return preview
	}
	return string(runes[:max-3]) + "..."
}
