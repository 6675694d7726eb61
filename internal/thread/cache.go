// Package thread holds the per-task comment cache and the derived,
// chronologically ordered views built from it.
package thread

import (
	"sort"

	"github.com/lherron/discuss/internal/domain"
)

// Cache is the in-memory comment collection for one task. Every mutation
// keeps records unique by identity and sorted by CreatedAt.
//
// Cache is not safe for concurrent use; its owner serializes access.
type Cache struct {
	taskID  string
	records []domain.Comment
	index   map[string]int
	version uint64
}

// Snapshot is an immutable copy of a cache's contents.
type Snapshot struct {
	records []domain.Comment
}

// Records returns a copy of the snapshot's records.
func (s Snapshot) Records() []domain.Comment {
	return cloneAll(s.records)
}

// NewCache creates a cache for taskID seeded with initial records.
func NewCache(taskID string, initial []domain.Comment) *Cache {
	c := &Cache{taskID: taskID}
	c.ReplaceAll(initial)
	c.version = 0
	return c
}

// TaskID returns the task the cache is scoped to.
func (c *Cache) TaskID() string {
	return c.taskID
}

// Version increments on every mutation.
func (c *Cache) Version() uint64 {
	return c.version
}

// Len returns the number of records.
func (c *Cache) Len() int {
	return len(c.records)
}

// Records returns a sorted copy of the cached records.
func (c *Cache) Records() []domain.Comment {
	return cloneAll(c.records)
}

// Get returns the record whose canonical id or client token is id.
func (c *Cache) Get(id string) (domain.Comment, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Comment{}, false
	}
	return c.records[i].Clone(), true
}

// View builds a resolver over the current contents.
func (c *Cache) View() *View {
	return NewView(c.records)
}

// ReplaceAll swaps the whole collection. Duplicate identities in records
// collapse to the last occurrence.
func (c *Cache) ReplaceAll(records []domain.Comment) {
	c.records = make([]domain.Comment, 0, len(records))
	for _, rec := range records {
		c.put(rec.Clone())
	}
	c.changed()
}

// Upsert replaces the record with the same identity or appends rec.
func (c *Cache) Upsert(rec domain.Comment) {
	c.put(rec.Clone())
	c.changed()
}

// Replace substitutes the record identified by oldID with rec at the same
// position in the collection. Any other record sharing rec's identity is
// dropped. Returns false, after upserting rec, when oldID was not present.
func (c *Cache) Replace(oldID string, rec domain.Comment) bool {
	i, ok := c.index[oldID]
	if !ok {
		c.Upsert(rec)
		return false
	}

	rec = rec.Clone()
	kept := c.records[:0]
	for j, existing := range c.records {
		switch {
		case j == i:
			kept = append(kept, rec)
		case existing.SameRecord(&rec):
			// A refetch already delivered the confirmed record.
		default:
			kept = append(kept, existing)
		}
	}
	c.records = kept
	c.changed()
	return true
}

// Remove deletes the record with the given id.
func (c *Cache) Remove(id string) bool {
	if _, ok := c.index[id]; !ok {
		return false
	}
	c.removeSet(map[string]bool{id: true})
	return true
}

// RemoveWithDescendants deletes id and every record whose parent chain
// reaches it, returning the removed ids in chronological order.
func (c *Cache) RemoveWithDescendants(id string) []string {
	doomed := map[string]bool{id: true}
	if i, ok := c.index[id]; ok {
		doomed[c.records[i].CanonicalID()] = true
	}

	for changed := true; changed; {
		changed = false
		for i := range c.records {
			rec := &c.records[i]
			cid := rec.CanonicalID()
			if doomed[cid] || rec.ParentID == "" {
				continue
			}
			if doomed[rec.ParentID] {
				doomed[cid] = true
				changed = true
			}
		}
	}

	return c.removeSet(doomed)
}

// Snapshot captures a deep copy of the current contents.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{records: cloneAll(c.records)}
}

// Restore replaces the contents with a previously captured snapshot.
func (c *Cache) Restore(s Snapshot) {
	c.records = cloneAll(s.records)
	c.changed()
}

func (c *Cache) put(rec domain.Comment) {
	for i := range c.records {
		if c.records[i].SameRecord(&rec) {
			c.records[i] = rec
			return
		}
	}
	c.records = append(c.records, rec)
}

func (c *Cache) removeSet(doomed map[string]bool) []string {
	var removed []string
	kept := c.records[:0]
	for _, rec := range c.records {
		if doomed[rec.CanonicalID()] || (rec.ClientToken != "" && doomed[rec.ClientToken]) {
			removed = append(removed, rec.CanonicalID())
			continue
		}
		kept = append(kept, rec)
	}
	c.records = kept
	if len(removed) > 0 {
		c.changed()
	}
	return removed
}

// changed re-sorts, re-indexes and bumps the version.
func (c *Cache) changed() {
	sortChronological(c.records)
	c.index = make(map[string]int, len(c.records)*2)
	for i := range c.records {
		rec := &c.records[i]
		if rec.ClientToken != "" {
			c.index[rec.ClientToken] = i
		}
	}
	for i := range c.records {
		if cid := c.records[i].CanonicalID(); cid != "" {
			c.index[cid] = i
		}
	}
	c.version++
}

// sortChronological orders by CreatedAt ascending. The zero time sorts
// first, so records with missing timestamps appear at the top.
func sortChronological(records []domain.Comment) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

func cloneAll(records []domain.Comment) []domain.Comment {
	out := make([]domain.Comment, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
