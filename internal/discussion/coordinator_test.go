package discussion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/thread"
)

var (
	t0    = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	alice = domain.Viewer{ID: "U1", Name: "Alice", Role: "hr"}
	bob   = domain.Viewer{ID: "U2", Name: "Bob", Role: "manager"}
)

func testOptions() Options {
	var mu sync.Mutex
	seq := 0
	return Options{
		Now: func() time.Time { return t0.Add(time.Hour) },
		NewPlaceholder: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("tmp-%d-test", seq)
		},
	}
}

func newTestCoordinator(store Store, viewer domain.Viewer, initial ...domain.Comment) *Coordinator {
	return NewCoordinator("T1", viewer, store, initial, testOptions())
}

func authored(id, body, parent string, author *domain.Author, minute int) domain.Comment {
	return domain.Comment{
		ID:        id,
		Body:      body,
		ParentID:  parent,
		Author:    author,
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func TestAdd_OptimisticSuccess(t *testing.T) {
	store := &fakeStore{
		addFn: func(taskID string, c domain.NewComment) (*domain.Comment, error) {
			return &domain.Comment{
				ID:        "c1",
				Body:      "Hello",
				Author:    &domain.Author{ID: "U1", Name: "Alice"},
				CreatedAt: t0,
			}, nil
		},
	}
	c := newTestCoordinator(store, domain.Viewer{ID: "U1"})
	c.SetDraft("Hello")

	res, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.False(t, res.Ambiguous)
	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, "Hello", records[0].Body)
	assert.Equal(t, "Alice", records[0].AuthorName())
	assert.Equal(t, "", c.Composer().Draft)
	require.Len(t, store.adds, 1)
	assert.Equal(t, "tmp-1-test", store.adds[0].ClientToken)
}

func TestAdd_VisibleBeforeStoreReturns(t *testing.T) {
	store := &fakeStore{
		gate:    make(chan struct{}),
		entered: make(chan string, 1),
		addFn: func(taskID string, c domain.NewComment) (*domain.Comment, error) {
			return &domain.Comment{ID: "c1", Body: c.Body, ClientToken: c.ClientToken, CreatedAt: t0}, nil
		},
	}
	c := newTestCoordinator(store, domain.Viewer{ID: "U1"})
	c.SetDraft("Hello")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-store.entered

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "tmp-1-test", records[0].ID)
	assert.Equal(t, domain.ViewerFallbackName, records[0].AuthorName())
	assert.Equal(t, "", c.Composer().Draft)
	assert.True(t, c.Submitting())
	assert.False(t, c.CanModify("tmp-1-test"), "pending comments are not editable")

	close(store.gate)
	require.NoError(t, <-done)
	assert.Equal(t, "c1", c.Records()[0].ID)
}

func TestAdd_FailureRollsBack(t *testing.T) {
	store := &fakeStore{
		addFn: func(string, domain.NewComment) (*domain.Comment, error) {
			return nil, errors.New("network down")
		},
	}
	c := newTestCoordinator(store, domain.Viewer{ID: "U1"})
	c.SetDraft("Hello")
	before := c.Records()

	res, err := c.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, StatusRolledBack, res.Status)
	assert.Equal(t, before, c.Records())
	assert.Empty(t, c.Records())
	assert.Equal(t, "Hello", c.Composer().Draft)
	assert.False(t, c.Submitting())
}

func TestAdd_FailureRestoresReplyTarget(t *testing.T) {
	root := authored("a", "root", "", &domain.Author{ID: "U2", Name: "Bob"}, 0)
	store := &fakeStore{
		addFn: func(string, domain.NewComment) (*domain.Comment, error) {
			return nil, errors.New("boom")
		},
	}
	c := newTestCoordinator(store, alice, root)
	require.NoError(t, c.ReplyTo("a"))
	c.SetDraft("answer")
	before := c.Records()

	_, err := c.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, before, c.Records())
	assert.Equal(t, Composer{Draft: "answer", ReplyTo: "a"}, c.Composer())
}

func TestAdd_EmptyBodyNoCall(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, alice)
	c.SetDraft("   \n\t")

	res, err := c.Submit(context.Background())

	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.Zero(t, store.callCount())
	assert.Empty(t, c.Records())
	assert.Equal(t, "   \n\t", c.Composer().Draft)
}

func TestAdd_UnusableResponseKeepsOptimistic(t *testing.T) {
	for name, resp := range map[string]*domain.Comment{
		"nil":      nil,
		"empty id": {Body: "Hello"},
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{
				addFn: func(string, domain.NewComment) (*domain.Comment, error) { return resp, nil },
			}
			c := newTestCoordinator(store, alice)

			res, err := c.Add(context.Background(), "Hello", "")

			require.NoError(t, err)
			assert.Equal(t, StatusApplied, res.Status)
			assert.True(t, res.Ambiguous)
			records := c.Records()
			require.Len(t, records, 1)
			assert.Equal(t, "tmp-1-test", records[0].ID)
			assert.Equal(t, "Hello", records[0].Body)
			assert.Equal(t, "Alice", records[0].AuthorName())
		})
	}
}

func TestAdd_IdenticalTextNotMerged(t *testing.T) {
	n := 0
	store := &fakeStore{
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			n++
			return &domain.Comment{ID: fmt.Sprintf("c%d", n), Body: c.Body, CreatedAt: t0.Add(time.Duration(n) * time.Second)}, nil
		},
	}
	c := newTestCoordinator(store, alice)

	_, err := c.Add(context.Background(), "same", "")
	require.NoError(t, err)
	_, err = c.Add(context.Background(), "same", "")
	require.NoError(t, err)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, "c2", records[1].ID)
	assert.Equal(t, "tmp-1-test", records[0].ClientToken)
	assert.Equal(t, "tmp-2-test", records[1].ClientToken)
}

func TestAdd_SecondAddWhileInFlight(t *testing.T) {
	store := &fakeStore{
		gate:    make(chan struct{}),
		entered: make(chan string, 2),
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			return &domain.Comment{ID: "c1", Body: c.Body, CreatedAt: t0}, nil
		},
	}
	c := newTestCoordinator(store, alice)

	done := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), "first", "")
		done <- err
	}()
	<-store.entered

	res, err := c.Add(context.Background(), "second", "")
	assert.ErrorIs(t, err, domain.ErrInFlight)
	assert.Equal(t, StatusUnchanged, res.Status)

	close(store.gate)
	require.NoError(t, <-done)
	assert.Len(t, c.Records(), 1)
	assert.Equal(t, 1, store.callCount())
}

func TestAdd_ReplyResolution(t *testing.T) {
	root := authored("a", "root", "", &domain.Author{ID: "U2", Name: "Bob"}, 0)
	store := &fakeStore{
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			return &domain.Comment{ID: "b", Body: c.Body, ParentID: c.ParentID, CreatedAt: t0.Add(time.Minute)}, nil
		},
	}
	c := newTestCoordinator(store, alice, root)
	require.NoError(t, c.ReplyTo("a"))
	c.SetDraft("reply")

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	view := c.View()
	b, ok := view.Lookup("b")
	require.True(t, ok)
	parent, ok := view.ParentOf(b)
	require.True(t, ok)
	assert.Equal(t, "a", parent.ID)
	assert.Equal(t, "root", parent.Body)
	assert.Equal(t, "", c.Composer().ReplyTo)
}

func TestAdd_ReplyToUnknownOrPending(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, alice,
		domain.Comment{ID: "tmp-9-x", ClientToken: "tmp-9-x", CreatedAt: t0})

	_, err := c.Add(context.Background(), "hi", "missing")
	assert.ErrorIs(t, err, domain.ErrCommentNotFound)
	_, err = c.Add(context.Background(), "hi", "tmp-9-x")
	assert.ErrorIs(t, err, domain.ErrPendingComment)
	assert.ErrorIs(t, c.ReplyTo("tmp-9-x"), domain.ErrPendingComment)
	assert.Zero(t, store.callCount())
}

func TestEdit_MergesPartialResponse(t *testing.T) {
	existing := authored("c1", "old", "", &domain.Author{ID: "U1", Name: "Alice"}, 0)
	store := &fakeStore{
		editFn: func(_, commentID, body string) (*domain.Comment, error) {
			return &domain.Comment{ID: commentID, Body: body}, nil
		},
	}
	c := newTestCoordinator(store, domain.Viewer{ID: "U1"}, existing)
	require.NoError(t, c.BeginEdit("c1"))
	assert.Equal(t, "old", c.Composer().EditDraft)
	c.SetEditDraft("new")

	res, err := c.SubmitEdit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	got, ok := c.View().Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Body)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Alice", got.Author.Name)
	assert.True(t, got.IsEdited())
	assert.Equal(t, existing.CreatedAt, got.CreatedAt)
	assert.Equal(t, Composer{}, c.Composer())
}

func TestEdit_FillsMissingAuthorFromViewer(t *testing.T) {
	existing := authored("c1", "old", "", &domain.Author{ID: "U1"}, 0)
	store := &fakeStore{
		editFn: func(_, commentID, body string) (*domain.Comment, error) {
			return &domain.Comment{ID: commentID, Body: body, Author: &domain.Author{ID: "U1"}}, nil
		},
	}
	c := newTestCoordinator(store, alice, existing)

	_, err := c.Edit(context.Background(), "c1", "new")

	require.NoError(t, err)
	got, _ := c.View().Lookup("c1")
	assert.Equal(t, "Alice", got.AuthorName())
}

func TestEdit_AmbiguousResponseTrustsLocal(t *testing.T) {
	existing := authored("c1", "old", "", &domain.Author{ID: "U1", Name: "Alice"}, 0)
	store := &fakeStore{
		editFn: func(string, string, string) (*domain.Comment, error) {
			return &domain.Comment{ID: "other", Body: "server text"}, nil
		},
	}
	c := newTestCoordinator(store, alice, existing)

	res, err := c.Edit(context.Background(), "c1", "new")

	require.NoError(t, err)
	assert.True(t, res.Ambiguous)
	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, "new", records[0].Body)
	assert.True(t, records[0].IsEdited())
}

func TestEdit_ForeignResponseKeepsIdentity(t *testing.T) {
	existing := authored("c1", "old", "", &domain.Author{ID: "U1", Name: "Alice"}, 0)
	editedAt := t0.Add(2 * time.Hour)
	store := &fakeStore{
		editFn: func(string, string, string) (*domain.Comment, error) {
			return &domain.Comment{
				ID:        "C-99",
				Body:      "someone else",
				ParentID:  "c0",
				Author:    &domain.Author{ID: "U2", Name: "Bob"},
				CreatedAt: t0.Add(-100 * time.Minute),
				EditedAt:  &editedAt,
				Edited:    true,
			}, nil
		},
	}
	c := newTestCoordinator(store, alice, existing)

	res, err := c.Edit(context.Background(), "c1", "new")

	require.NoError(t, err)
	assert.True(t, res.Ambiguous)
	records := c.Records()
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "new", got.Body)
	assert.Empty(t, got.ParentID)
	require.NotNil(t, got.Author)
	assert.Equal(t, "U1", got.Author.ID)
	assert.Equal(t, "Alice", got.Author.Name)
	assert.True(t, got.CreatedAt.Equal(existing.CreatedAt))
	require.NotNil(t, got.EditedAt)
	assert.True(t, got.EditedAt.Equal(editedAt))
	assert.True(t, c.CanModify("c1"))
}

func TestEdit_FailureLeavesRecord(t *testing.T) {
	existing := authored("c1", "old", "", &domain.Author{ID: "U1", Name: "Alice"}, 0)
	store := &fakeStore{
		editFn: func(string, string, string) (*domain.Comment, error) {
			return nil, errors.New("500")
		},
	}
	c := newTestCoordinator(store, alice, existing)
	require.NoError(t, c.BeginEdit("c1"))
	before := c.Records()

	res, err := c.Edit(context.Background(), "c1", "new")

	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.Equal(t, before, c.Records())
	assert.Equal(t, "c1", c.Composer().Editing, "edit mode survives a failed save")
	assert.False(t, c.Busy("c1"))
}

func TestOwnershipGating(t *testing.T) {
	theirs := authored("c1", "mine?", "", &domain.Author{ID: "U2", Name: "Bob"}, 0)
	anon := authored("c2", "legacy", "", nil, 1)
	store := &fakeStore{}
	c := newTestCoordinator(store, alice, theirs, anon)
	before := c.Records()

	for _, target := range []string{"c1", "c2"} {
		_, err := c.Edit(context.Background(), target, "hijack")
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		_, err = c.Delete(context.Background(), target)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		assert.ErrorIs(t, c.BeginEdit(target), domain.ErrNotOwner)
		assert.False(t, c.CanModify(target))
	}

	assert.Zero(t, store.callCount())
	assert.Equal(t, before, c.Records())
}

func TestOwnershipRevalidatedAfterViewerChange(t *testing.T) {
	mine := authored("c1", "text", "", &domain.Author{ID: "U1", Name: "Alice"}, 0)
	store := &fakeStore{}
	c := newTestCoordinator(store, alice, mine)
	require.True(t, c.CanModify("c1"))

	c.SetViewer(bob)

	_, err := c.Delete(context.Background(), "c1")
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.Zero(t, store.callCount())
}

func TestDelete_Cascades(t *testing.T) {
	me := &domain.Author{ID: "U1", Name: "Alice"}
	store := &fakeStore{}
	c := newTestCoordinator(store, alice,
		authored("A", "top", "", me, 0),
		authored("B", "reply", "A", &domain.Author{ID: "U2"}, 1),
		authored("C", "reply to reply", "B", me, 2),
		authored("D", "unrelated", "", me, 3),
	)
	require.NoError(t, c.ReplyTo("C"))
	require.NoError(t, c.BeginEdit("D"))

	res, err := c.Delete(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, []string{"A", "B", "C"}, res.Removed)
	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "D", records[0].ID)
	assert.Equal(t, "", c.Composer().ReplyTo)
	assert.Equal(t, "D", c.Composer().Editing)
}

func TestDelete_ClearsEditModeForRemovedComment(t *testing.T) {
	me := &domain.Author{ID: "U1", Name: "Alice"}
	c := newTestCoordinator(&fakeStore{}, alice, authored("A", "top", "", me, 0))
	require.NoError(t, c.BeginEdit("A"))

	_, err := c.Delete(context.Background(), "A")

	require.NoError(t, err)
	assert.Equal(t, Composer{}, c.Composer())
}

func TestDelete_FailureLeavesCache(t *testing.T) {
	me := &domain.Author{ID: "U1", Name: "Alice"}
	store := &fakeStore{
		deleteFn: func(string, string) (string, error) { return "", errors.New("timeout") },
	}
	c := newTestCoordinator(store, alice, authored("A", "top", "", me, 0), authored("B", "r", "A", me, 1))
	before := c.Records()

	res, err := c.Delete(context.Background(), "A")

	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.Equal(t, before, c.Records())
}

func TestEditDelete_InFlightGuard(t *testing.T) {
	me := &domain.Author{ID: "U1", Name: "Alice"}
	store := &fakeStore{
		gate:    make(chan struct{}),
		entered: make(chan string, 2),
		editFn: func(_, commentID, body string) (*domain.Comment, error) {
			return &domain.Comment{ID: commentID, Body: body}, nil
		},
	}
	c := newTestCoordinator(store, alice, authored("A", "a", "", me, 0), authored("B", "b", "", me, 1))

	done := make(chan error, 2)
	go func() {
		_, err := c.Edit(context.Background(), "A", "a2")
		done <- err
	}()
	<-store.entered
	assert.True(t, c.Busy("A"))

	_, err := c.Edit(context.Background(), "A", "a3")
	assert.ErrorIs(t, err, domain.ErrInFlight)
	_, err = c.Delete(context.Background(), "A")
	assert.ErrorIs(t, err, domain.ErrInFlight)

	// A different comment is not serialized behind A.
	go func() {
		_, err := c.Delete(context.Background(), "B")
		done <- err
	}()
	<-store.entered

	close(store.gate)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "a2", records[0].Body)
}

func TestRefresh_ReplacesAndKeepsPending(t *testing.T) {
	server := []domain.Comment{
		authored("X", "from someone else", "", &domain.Author{ID: "U2"}, 5),
	}
	addGate := make(chan struct{})
	entered := make(chan string, 1)
	store := &fakeStore{
		listFn: func(string) ([]domain.Comment, error) { return server, nil },
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			entered <- "add"
			<-addGate
			return &domain.Comment{ID: "c9", Body: c.Body, ClientToken: c.ClientToken, CreatedAt: t0.Add(2 * time.Hour)}, nil
		},
	}
	c := newTestCoordinator(store, alice, authored("stale", "old", "", nil, 0))

	done := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), "mine", "")
		done <- err
	}()
	<-entered

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	var got []string
	for _, r := range c.Records() {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"X", "tmp-1-test"}, got)

	close(addGate)
	require.NoError(t, <-done)
	got = got[:0]
	for _, r := range c.Records() {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"X", "c9"}, got)
}

func TestRefresh_FailureUnchanged(t *testing.T) {
	store := &fakeStore{
		listFn: func(string) ([]domain.Comment, error) { return nil, errors.New("offline") },
	}
	c := newTestCoordinator(store, alice, authored("A", "a", "", nil, 0))
	before := c.Records()

	res, err := c.Refresh(context.Background())

	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.Equal(t, before, c.Records())
}

func TestAdd_FailureAfterConcurrentRefreshRemovesOnlyPlaceholder(t *testing.T) {
	entered := make(chan string, 1)
	gate := make(chan struct{})
	store := &fakeStore{
		listFn: func(string) ([]domain.Comment, error) {
			return []domain.Comment{authored("N", "new from server", "", nil, 1)}, nil
		},
		addFn: func(string, domain.NewComment) (*domain.Comment, error) {
			entered <- "add"
			<-gate
			return nil, errors.New("rejected")
		},
	}
	c := newTestCoordinator(store, alice)
	c.SetDraft("doomed")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-entered
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	close(gate)

	require.Error(t, <-done)
	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "N", records[0].ID)
	assert.Equal(t, "doomed", c.Composer().Draft)
}

func TestAdd_FailureKeepsRecordConfirmedByConcurrentRefresh(t *testing.T) {
	entered := make(chan string, 1)
	gate := make(chan struct{})
	store := &fakeStore{
		listFn: func(string) ([]domain.Comment, error) {
			confirmed := authored("C-5", "committed", "", &domain.Author{ID: "U1", Name: "Alice"}, 1)
			confirmed.ClientToken = "tmp-1-test"
			reply := authored("C-6", "reply from bob", "C-5", &domain.Author{ID: "U2", Name: "Bob"}, 2)
			return []domain.Comment{confirmed, reply}, nil
		},
		addFn: func(string, domain.NewComment) (*domain.Comment, error) {
			entered <- "add"
			<-gate
			return nil, errors.New("timeout")
		},
	}
	c := newTestCoordinator(store, alice)

	done := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), "committed", "")
		done <- err
	}()
	<-entered
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Records(), 2)
	close(gate)

	require.True(t, domain.IsTransport(<-done))
	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "C-5", records[0].ID)
	assert.Equal(t, "C-6", records[1].ID)
}

func TestAdd_ReplyWhoseParentWasDeletedInFlight(t *testing.T) {
	me := &domain.Author{ID: "U1", Name: "Alice"}
	entered := make(chan string, 1)
	gate := make(chan struct{})
	store := &fakeStore{
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			entered <- "add"
			<-gate
			return &domain.Comment{ID: "R", Body: c.Body, ParentID: c.ParentID, CreatedAt: t0.Add(time.Hour)}, nil
		},
	}
	c := newTestCoordinator(store, alice, authored("A", "top", "", me, 0))

	done := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), "reply", "A")
		done <- err
	}()
	<-entered
	res, err := c.Delete(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "tmp-1-test"}, res.Removed)

	close(gate)
	require.NoError(t, <-done)
	assert.Empty(t, c.Records())
}

func TestOnChangeNotifies(t *testing.T) {
	store := &fakeStore{
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			return &domain.Comment{ID: "c1", Body: c.Body, CreatedAt: t0}, nil
		},
	}
	c := newTestCoordinator(store, alice)
	var lens []int
	c.OnChange(func(v *thread.View) {
		lens = append(lens, v.Len())
		// Listeners may read back without deadlocking.
		_ = c.Records()
	})

	_, err := c.Add(context.Background(), "hi", "")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1}, lens)
}

func TestMutationSequence_NoDuplicateIdentityAndChronological(t *testing.T) {
	n := 0
	store := &fakeStore{
		addFn: func(_ string, c domain.NewComment) (*domain.Comment, error) {
			n++
			switch n % 3 {
			case 0:
				return nil, errors.New("flaky")
			case 1:
				return &domain.Comment{ID: fmt.Sprintf("c%d", n), Body: c.Body, ParentID: c.ParentID, CreatedAt: t0.Add(time.Duration(n) * time.Minute)}, nil
			default:
				return nil, nil
			}
		},
		editFn: func(_, commentID, body string) (*domain.Comment, error) {
			return &domain.Comment{ID: commentID, Body: body}, nil
		},
	}
	c := newTestCoordinator(store, alice)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		parent := ""
		if recs := c.Records(); len(recs) > 0 && i%2 == 0 && recs[0].ID[0] == 'c' {
			parent = recs[0].ID
		}
		_, _ = c.Add(ctx, fmt.Sprintf("message %d", i), parent)
		if i%4 == 3 {
			for _, r := range c.Records() {
				if c.CanModify(r.ID) {
					_, _ = c.Edit(ctx, r.ID, "edited")
					break
				}
			}
		}
		if i == 9 {
			for _, r := range c.Records() {
				if c.CanModify(r.ID) {
					_, _ = c.Delete(ctx, r.ID)
					break
				}
			}
		}

		records := c.Records()
		seen := make(map[string]bool)
		for j, r := range records {
			require.False(t, seen[r.CanonicalID()], "duplicate id %s after step %d", r.CanonicalID(), i)
			seen[r.CanonicalID()] = true
			if j > 0 {
				require.False(t, r.CreatedAt.Before(records[j-1].CreatedAt), "out of order after step %d", i)
			}
		}
	}
}
