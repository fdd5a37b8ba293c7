package tui

import (
	"context"
	"sync"

	"github.com/ajramos/echomail/internal/services"
)

// fakeNav records the calls the UI makes
type fakeNav struct {
	mu       sync.Mutex
	state    services.ListState
	calls    []string
	sentinel chan string
}

func newFakeNav(st services.ListState) *fakeNav {
	return &fakeNav{state: st, sentinel: make(chan string, 4)}
}

func (f *fakeNav) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeNav) Start(ctx context.Context) error { f.record("start"); return nil }
func (f *fakeNav) Navigate(ctx context.Context, view services.View) error {
	f.record("navigate:" + string(view))
	return nil
}
func (f *fakeNav) Refresh(ctx context.Context) error { f.record("refresh"); return nil }
func (f *fakeNav) Search(ctx context.Context, query string) error {
	f.record("search:" + query)
	return nil
}
func (f *fakeNav) ClearSearch(ctx context.Context) error { f.record("clear-search"); return nil }
func (f *fakeNav) OpenMessage(ctx context.Context, id string) error {
	f.record("open:" + id)
	return nil
}
func (f *fakeNav) OpenCompose(ctx context.Context) error { f.record("compose"); return nil }
func (f *fakeNav) Reply(ctx context.Context) error       { f.record("reply"); return nil }
func (f *fakeNav) SendDraft(ctx context.Context) error   { f.record("send"); return nil }
func (f *fakeNav) Back(ctx context.Context) error        { f.record("back"); return nil }
func (f *fakeNav) Logout(ctx context.Context) error      { f.record("logout"); return nil }
func (f *fakeNav) SentinelVisible(ctx context.Context, lastID string) error {
	f.record("sentinel:" + lastID)
	f.sentinel <- lastID
	return nil
}
func (f *fakeNav) State() services.ListState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
func (f *fakeNav) Subscribe(fn func(services.ListState)) func() { return func() {} }
