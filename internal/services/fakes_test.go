package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
)

// fakeBackend is a MailBackend whose page fetches can be held until the test releases them
type fakeBackend struct {
	mu       sync.Mutex
	pages    map[string]mailbox.PageResult
	pageErrs map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
	started  chan string

	details   map[string]*mailbox.MessageDetail
	sent      []mailbox.SendRequest
	sendErr   error
	auth      mailbox.AuthStatus
	logoutErr error
	logouts   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pages:    make(map[string]mailbox.PageResult),
		pageErrs: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
		started:  make(chan string, 64),
		details:  make(map[string]*mailbox.MessageDetail),
		auth:     mailbox.AuthStatus{Authenticated: true, Email: "me@x.io"},
	}
}

func pageKey(sel mailbox.Selector, cursor string) string {
	return sel.String() + "@" + cursor
}

func (f *fakeBackend) setPage(sel mailbox.Selector, cursor string, page mailbox.PageResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey(sel, cursor)] = page
}

func (f *fakeBackend) setPageErr(sel mailbox.Selector, cursor string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.pageErrs, pageKey(sel, cursor))
		return
	}
	f.pageErrs[pageKey(sel, cursor)] = err
}

// hold makes the next fetch of sel/cursor block until the returned release func is called
func (f *fakeBackend) hold(sel mailbox.Selector, cursor string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[pageKey(sel, cursor)] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeBackend) callCount(sel mailbox.Selector, cursor string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageKey(sel, cursor)]
}

func (f *fakeBackend) FetchPage(ctx context.Context, sel mailbox.Selector, cursor string) (mailbox.PageResult, error) {
	key := pageKey(sel, cursor)
	f.mu.Lock()
	f.calls[key]++
	gate := f.gates[key]
	delete(f.gates, key)
	f.mu.Unlock()

	select {
	case f.started <- key:
	default:
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pageErrs[key]; err != nil {
		return mailbox.PageResult{}, err
	}
	page, ok := f.pages[key]
	if !ok {
		return mailbox.PageResult{Messages: []mailbox.MessageSummary{}}, nil
	}
	return page.Clone(), nil
}

func (f *fakeBackend) FetchMessage(ctx context.Context, id string) (*mailbox.MessageDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, &mailbox.NetworkError{Op: "fetch message", StatusCode: 404}
	}
	cp := *d
	return &cp, nil
}

func (f *fakeBackend) Send(ctx context.Context, req mailbox.SendRequest) (*mailbox.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, req)
	return &mailbox.SendResult{ID: fmt.Sprintf("sent-%d", len(f.sent)), Scheduled: !req.ScheduledAt.IsZero()}, nil
}

func (f *fakeBackend) AuthStatus(ctx context.Context) (*mailbox.AuthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.auth
	return &st, nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeBackend) sentRequests() []mailbox.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailbox.SendRequest(nil), f.sent...)
}

// waitStarted blocks until a fetch of key has begun
func waitStarted(t *testing.T, f *fakeBackend, key string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.started:
			if got == key {
				return
			}
		case <-timeout:
			t.Fatalf("fetch %s never started", key)
		}
	}
}

// drainStarted forgets fetches that began before the test's next step
func drainStarted(f *fakeBackend) {
	for {
		select {
		case <-f.started:
		default:
			return
		}
	}
}

func summaries(ids ...string) []mailbox.MessageSummary {
	out := make([]mailbox.MessageSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, mailbox.MessageSummary{ID: id, Subject: "subject " + id, Unread: true})
	}
	return out
}

func ids(msgs []mailbox.MessageSummary) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
