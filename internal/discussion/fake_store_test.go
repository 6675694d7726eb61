package discussion

import (
	"context"
	"sync"

	"github.com/lherron/discuss/internal/domain"
)

// fakeStore records calls and returns canned responses.
type fakeStore struct {
	mu sync.Mutex

	listFn   func(taskID string) ([]domain.Comment, error)
	addFn    func(taskID string, c domain.NewComment) (*domain.Comment, error)
	editFn   func(taskID, commentID, body string) (*domain.Comment, error)
	deleteFn func(taskID, commentID string) (string, error)

	// gate, when set, blocks every call until it is closed.
	gate chan struct{}
	// entered receives once per call after the call starts.
	entered chan string

	calls []string
	adds  []domain.NewComment
}

func (f *fakeStore) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- op
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) List(ctx context.Context, taskID string) ([]domain.Comment, error) {
	f.record("list")
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(taskID)
}

func (f *fakeStore) Add(ctx context.Context, taskID string, c domain.NewComment) (*domain.Comment, error) {
	f.mu.Lock()
	f.adds = append(f.adds, c)
	f.mu.Unlock()
	f.record("add")
	return f.addFn(taskID, c)
}

func (f *fakeStore) Edit(ctx context.Context, taskID, commentID, body string) (*domain.Comment, error) {
	f.record("edit")
	return f.editFn(taskID, commentID, body)
}

func (f *fakeStore) Delete(ctx context.Context, taskID, commentID string) (string, error) {
	f.record("delete")
	if f.deleteFn == nil {
		return commentID, nil
	}
	return f.deleteFn(taskID, commentID)
}
