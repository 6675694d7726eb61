package discussion

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/id"
	"github.com/lherron/discuss/internal/thread"
)

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	Logger         *log.Logger
	Now            func() time.Time
	NewPlaceholder func() string
}

// Coordinator owns one task's comment cache and serializes the optimistic
// add/edit/delete protocol against a Store. Store calls run without the
// lock held, so independent mutations may overlap; conflicting ones are
// rejected with domain.ErrInFlight.
type Coordinator struct {
	mu       sync.Mutex
	taskID   string
	viewer   domain.Viewer
	store    Store
	cache    *thread.Cache
	view     *thread.View
	composer Composer

	submitting bool
	busy       map[string]bool
	pending    map[string]domain.Comment

	listeners      []func(*thread.View)
	logger         *log.Logger
	now            func() time.Time
	newPlaceholder func() string
}

// NewCoordinator creates a coordinator for taskID seeded with initial records.
func NewCoordinator(taskID string, viewer domain.Viewer, store Store, initial []domain.Comment, opts Options) *Coordinator {
	c := &Coordinator{
		taskID:         taskID,
		viewer:         viewer,
		store:          store,
		cache:          thread.NewCache(taskID, initial),
		busy:           make(map[string]bool),
		pending:        make(map[string]domain.Comment),
		logger:         opts.Logger,
		now:            opts.Now,
		newPlaceholder: opts.NewPlaceholder,
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newPlaceholder == nil {
		c.newPlaceholder = id.NewPlaceholder
	}
	c.view = c.cache.View()
	return c
}

// TaskID returns the task this coordinator serves.
func (c *Coordinator) TaskID() string {
	return c.taskID
}

// OnChange registers fn to be called with a fresh view after every change.
func (c *Coordinator) OnChange(fn func(*thread.View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// View returns the current derived view.
func (c *Coordinator) View() *thread.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Records returns the current comments in chronological order.
func (c *Coordinator) Records() []domain.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Records()
}

// Viewer returns the acting identity.
func (c *Coordinator) Viewer() domain.Viewer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

// SetViewer swaps the acting identity. Ownership is re-checked against it
// on the next submission.
func (c *Coordinator) SetViewer(v domain.Viewer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewer = v
}

// Submitting reports whether an add is in flight.
func (c *Coordinator) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Busy reports whether an edit or delete of commentID is in flight.
func (c *Coordinator) Busy(commentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[commentID]
}

// CanModify reports whether edit/delete affordances apply to commentID.
func (c *Coordinator) CanModify(commentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cache.Get(commentID)
	return ok && c.modifiableLocked(rec) == nil
}

// modifiableLocked checks ownership and confirmation of rec.
func (c *Coordinator) modifiableLocked(rec domain.Comment) error {
	if id.IsPlaceholder(rec.ID) {
		return domain.ErrPendingComment
	}
	if c.viewer.ID == "" || rec.AuthorID() != c.viewer.ID {
		return domain.ErrNotOwner
	}
	return nil
}

// Add submits a new comment. The comment appears in the cache before the
// store is called; on failure the cache and composer are restored.
func (c *Coordinator) Add(ctx context.Context, body, parentID string) (Result, error) {
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "add", Err: err}
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "add", Err: domain.ErrInFlight}
	}
	if parentID != "" {
		parent, ok := c.cache.Get(parentID)
		if !ok {
			c.mu.Unlock()
			return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "add", Err: domain.ErrCommentNotFound}
		}
		if id.IsPlaceholder(parent.ID) {
			c.mu.Unlock()
			return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "add", Err: domain.ErrPendingComment}
		}
		parentID = parent.ID
	}

	token := c.newPlaceholder()
	optimistic := domain.Comment{
		ID:          token,
		ClientToken: token,
		TaskID:      c.taskID,
		Body:        body,
		ParentID:    parentID,
		Author:      c.viewer.AsAuthor(),
		CreatedAt:   c.now(),
	}

	snapshot := c.cache.Snapshot()
	prevComposer := c.composer
	c.cache.Upsert(optimistic)
	appliedVersion := c.cache.Version()
	c.pending[token] = optimistic
	c.composer.Draft = ""
	c.composer.ReplyTo = ""
	c.submitting = true
	c.changedLocked()

	confirmed, err := c.store.Add(ctx, c.taskID, domain.NewComment{
		Body:        body,
		ParentID:    parentID,
		ClientToken: token,
	})

	c.mu.Lock()
	c.submitting = false
	delete(c.pending, token)

	if err != nil {
		if c.cache.Version() == appliedVersion {
			c.cache.Restore(snapshot)
		} else if rec, ok := c.cache.Get(token); ok && id.IsPlaceholder(rec.ID) {
			c.cache.RemoveWithDescendants(token)
		}
		if c.composer.Draft == "" {
			c.composer.Draft = prevComposer.Draft
		}
		if c.composer.ReplyTo == "" {
			c.composer.ReplyTo = prevComposer.ReplyTo
		}
		c.logger.Printf("discussion: add to task %s rolled back: %v", c.taskID, err)
		c.changedLocked()
		return Result{Status: StatusRolledBack}, &domain.TransportError{Op: "add", TaskID: c.taskID, Err: err}
	}

	if !confirmed.IsUsable() {
		c.logger.Printf("discussion: add to task %s returned an unusable response; keeping local comment %s", c.taskID, token)
		kept, ok := c.cache.Get(token)
		if !ok {
			kept = optimistic
		}
		c.mu.Unlock()
		return Result{Status: StatusApplied, Comment: &kept, Ambiguous: true}, nil
	}

	rec := domain.Merge(optimistic, confirmed)
	if rec.ClientToken == "" {
		rec.ClientToken = token
	}
	if rec.ParentID != "" {
		if _, ok := c.cache.Get(rec.ParentID); !ok {
			// The parent was deleted while the reply was in flight; the
			// store cascades the reply with it.
			c.cache.Remove(token)
			c.logger.Printf("discussion: reply %s on task %s lost its parent %s", rec.ID, c.taskID, rec.ParentID)
			c.changedLocked()
			return Result{Status: StatusApplied, Comment: &rec, Removed: []string{rec.ID}}, nil
		}
	}
	c.cache.Replace(token, rec)
	c.changedLocked()
	return Result{Status: StatusApplied, Comment: &rec}, nil
}

// Submit sends the composer's draft, as a reply when a target is set.
func (c *Coordinator) Submit(ctx context.Context) (Result, error) {
	c.mu.Lock()
	draft, replyTo := c.composer.Draft, c.composer.ReplyTo
	c.mu.Unlock()
	return c.Add(ctx, draft, replyTo)
}

// Edit replaces the body of a comment the viewer owns. The cache is only
// updated once the store confirms.
func (c *Coordinator) Edit(ctx context.Context, commentID, body string) (Result, error) {
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "edit", Err: err}
	}

	c.mu.Lock()
	existing, err := c.beginMutationLocked(commentID)
	if err != nil {
		c.mu.Unlock()
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "edit", Err: err}
	}
	target := existing.ID
	c.mu.Unlock()

	resp, err := c.store.Edit(ctx, c.taskID, target, body)

	c.mu.Lock()
	delete(c.busy, target)

	if err != nil {
		c.logger.Printf("discussion: edit of %s on task %s failed: %v", target, c.taskID, err)
		c.mu.Unlock()
		return Result{Status: StatusUnchanged}, &domain.TransportError{Op: "edit", TaskID: c.taskID, Err: err}
	}

	ambiguous := !resp.IsUsable() || resp.ID != target
	var patch domain.Comment
	switch {
	case resp == nil:
	case resp.ID != "" && resp.ID != target:
		// Another record's identity must not leak into this one; only
		// edit provenance is taken from it.
		patch = domain.Comment{Edited: resp.Edited, EditedAt: resp.EditedAt, UpdatedAt: resp.UpdatedAt}
	default:
		patch = resp.Clone()
	}
	patch.ID = ""
	patch.ClientToken = ""
	if ambiguous {
		c.logger.Printf("discussion: edit of %s on task %s returned an unmatched response; merging locally", target, c.taskID)
	}

	current, ok := c.cache.Get(target)
	if !ok {
		current = existing
	}
	merged := domain.Merge(current, &patch)
	if patch.Body == "" {
		merged.Body = body
	}
	if merged.Author == nil || merged.Author.ID == "" {
		merged.Author = c.viewer.AsAuthor()
	} else if merged.Author.Name == "" && merged.Author.ID == c.viewer.ID {
		merged.Author.Name = c.viewer.AsAuthor().Name
	}
	merged.Edited = true
	if merged.EditedAt == nil {
		t := c.now()
		merged.EditedAt = &t
	}

	if c.composer.Editing == target {
		c.composer.Editing = ""
		c.composer.EditDraft = ""
	}
	if !ok {
		// Removed by a concurrent refresh; do not resurrect it.
		c.changedLocked()
		return Result{Status: StatusApplied, Comment: &merged, Ambiguous: ambiguous}, nil
	}
	c.cache.Upsert(merged)
	c.changedLocked()
	return Result{Status: StatusApplied, Comment: &merged, Ambiguous: ambiguous}, nil
}

// SubmitEdit sends the composer's edit draft for the comment being edited.
func (c *Coordinator) SubmitEdit(ctx context.Context) (Result, error) {
	c.mu.Lock()
	target, draft := c.composer.Editing, c.composer.EditDraft
	c.mu.Unlock()
	if target == "" {
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "edit", Err: domain.ErrCommentNotFound}
	}
	return c.Edit(ctx, target, draft)
}

// Delete removes a comment the viewer owns together with its reply subtree.
// Nothing is removed locally until the store confirms.
func (c *Coordinator) Delete(ctx context.Context, commentID string) (Result, error) {
	c.mu.Lock()
	existing, err := c.beginMutationLocked(commentID)
	if err != nil {
		c.mu.Unlock()
		return Result{Status: StatusUnchanged}, &domain.ValidationError{Op: "delete", Err: err}
	}
	target := existing.ID
	c.mu.Unlock()

	_, err = c.store.Delete(ctx, c.taskID, target)

	c.mu.Lock()
	delete(c.busy, target)

	if err != nil {
		c.logger.Printf("discussion: delete of %s on task %s failed: %v", target, c.taskID, err)
		c.mu.Unlock()
		return Result{Status: StatusUnchanged}, &domain.TransportError{Op: "delete", TaskID: c.taskID, Err: err}
	}

	removed := c.cache.RemoveWithDescendants(target)
	gone := make(map[string]bool, len(removed))
	for _, rid := range removed {
		gone[rid] = true
	}
	if gone[c.composer.ReplyTo] {
		c.composer.ReplyTo = ""
	}
	if gone[c.composer.Editing] {
		c.composer.Editing = ""
		c.composer.EditDraft = ""
	}
	c.changedLocked()
	return Result{Status: StatusApplied, Comment: &existing, Removed: removed}, nil
}

// beginMutationLocked validates an edit/delete target and marks it busy.
func (c *Coordinator) beginMutationLocked(commentID string) (domain.Comment, error) {
	existing, ok := c.cache.Get(commentID)
	if !ok {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	if err := c.modifiableLocked(existing); err != nil {
		return domain.Comment{}, err
	}
	if c.busy[existing.ID] {
		return domain.Comment{}, domain.ErrInFlight
	}
	c.busy[existing.ID] = true
	return existing, nil
}

// Refresh refetches the whole collection and replaces the cache with it.
// Whichever refresh completes last wins. Comments still awaiting their add
// confirmation are carried over.
func (c *Coordinator) Refresh(ctx context.Context) (Result, error) {
	records, err := c.store.List(ctx, c.taskID)
	if err != nil {
		c.logger.Printf("discussion: refresh of task %s failed: %v", c.taskID, err)
		return Result{Status: StatusUnchanged}, &domain.TransportError{Op: "list", TaskID: c.taskID, Err: err}
	}

	c.mu.Lock()
	c.cache.ReplaceAll(records)
	for token, rec := range c.pending {
		if _, ok := c.cache.Get(token); ok {
			continue
		}
		if rec.ParentID != "" {
			if _, ok := c.cache.Get(rec.ParentID); !ok {
				continue
			}
		}
		c.cache.Upsert(rec)
	}
	c.changedLocked()
	return Result{Status: StatusApplied}, nil
}

// Composer returns the current editor state.
func (c *Coordinator) Composer() Composer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composer
}

// SetDraft updates the composer text.
func (c *Coordinator) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.Draft = text
}

// ReplyTo targets the next submission at commentID.
func (c *Coordinator) ReplyTo(commentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cache.Get(commentID)
	if !ok {
		return &domain.ValidationError{Op: "reply", Err: domain.ErrCommentNotFound}
	}
	if id.IsPlaceholder(rec.ID) {
		return &domain.ValidationError{Op: "reply", Err: domain.ErrPendingComment}
	}
	c.composer.ReplyTo = rec.ID
	return nil
}

// ClearReply drops the reply target.
func (c *Coordinator) ClearReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.ReplyTo = ""
}

// BeginEdit enters edit mode for a comment the viewer owns.
func (c *Coordinator) BeginEdit(commentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.cache.Get(commentID)
	if !ok {
		return &domain.ValidationError{Op: "edit", Err: domain.ErrCommentNotFound}
	}
	if err := c.modifiableLocked(rec); err != nil {
		return &domain.ValidationError{Op: "edit", Err: err}
	}
	c.composer.Editing = rec.ID
	c.composer.EditDraft = rec.Body
	return nil
}

// SetEditDraft updates the text of the comment being edited.
func (c *Coordinator) SetEditDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.EditDraft = text
}

// CancelEdit leaves edit mode.
func (c *Coordinator) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.Editing = ""
	c.composer.EditDraft = ""
}

// changedLocked rebuilds the view, releases the lock and notifies
// listeners. Callers must hold c.mu and must not touch state afterwards.
func (c *Coordinator) changedLocked() {
	c.view = c.cache.View()
	view := c.view
	listeners := append([]func(*thread.View){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
