package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ajramos/echomail/internal/mailbox"
)

// Background loops started at login and stopped at logout
type sessionLoop interface {
	Start(ctx context.Context) error
	Stop()
}

// NavigatorOptions wires the collaborators of a Navigator
type NavigatorOptions struct {
	Cache       *LabelCache
	History     *History
	Compose     ComposeService
	Session     sessionLoop
	InitialView View
	Logger      *log.Logger
}

// Navigator owns the active view, drives the label cache and gates every list commit on the
// view token captured when the fetch was issued.
type Navigator struct {
	backend     MailBackend
	cache       *LabelCache
	history     *History
	compose     ComposeService
	session     sessionLoop
	initialView View
	logger      *log.Logger

	mu       sync.Mutex
	tokens   tokenSource
	seq      *Sequencer
	state    ListState
	loadedBy uint64 // epoch that owns state.Loading
	openGen  uint64

	subsMu  sync.Mutex
	subs    map[int]func(ListState)
	nextSub int
}

// NewNavigator creates a navigator on top of backend
func NewNavigator(backend MailBackend, opts NavigatorOptions) *Navigator {
	cache := opts.Cache
	if cache == nil {
		cache = NewLabelCache(opts.Logger)
	}
	history := opts.History
	if history == nil {
		history = NewHistory()
	}
	initial := opts.InitialView
	if !initial.IsLabelView() {
		initial = ViewInbox
	}
	label, _ := initial.Label()
	return &Navigator{
		backend:     backend,
		cache:       cache,
		history:     history,
		compose:     opts.Compose,
		session:     opts.Session,
		initialView: initial,
		logger:      opts.Logger,
		seq:         NewSequencer(),
		state:       ListState{View: initial, Label: label},
		subs:        make(map[int]func(ListState)),
	}
}

// Cache exposes the label cache
func (n *Navigator) Cache() *LabelCache { return n.cache }

// Start checks the remote session, starts the session loops and enters the initial view
func (n *Navigator) Start(ctx context.Context) error {
	st, err := n.backend.AuthStatus(ctx)
	if err != nil {
		n.setStatus("Failed to check session")
		return fmt.Errorf("failed to check auth status: %w", err)
	}
	if !st.Authenticated {
		n.mu.Lock()
		n.state.Authenticated = false
		n.state.Status = "Not signed in"
		n.mu.Unlock()
		n.notify()
		return ErrNotAuthenticated
	}

	n.mu.Lock()
	n.state.Authenticated = true
	n.state.Account = *st
	n.mu.Unlock()
	n.logf("session started for %s", st.Email)

	if n.session != nil {
		if err := n.session.Start(ctx); err != nil {
			n.logf("failed to start session loop: %v", err)
		}
	}
	return n.Navigate(ctx, n.initialView)
}

// Navigate enters a view. Label views are served from the cache when possible.
func (n *Navigator) Navigate(ctx context.Context, view View) error {
	switch {
	case view.IsLabelView():
		return n.enterLabel(ctx, view, false, true)
	case view == ViewCompose:
		return n.openCompose(ctx, true)
	case view == ViewSearch, view == ViewMessage:
		return fmt.Errorf("%w: %s needs a query or message id", ErrInvalidInput, view)
	}
	return fmt.Errorf("%w: %q", ErrUnknownView, view)
}

// Refresh refetches the first page of the current list, bypassing and then overwriting the cache
func (n *Navigator) Refresh(ctx context.Context) error {
	n.mu.Lock()
	searching, query, label := n.state.Searching, n.state.Query, n.state.Label
	n.mu.Unlock()

	if searching {
		return n.search(ctx, query, false)
	}
	for _, v := range LabelViews {
		if l, _ := v.Label(); l == label {
			return n.enterLabel(ctx, v, true, false)
		}
	}
	return fmt.Errorf("%w: nothing to refresh", ErrInvalidInput)
}

// Search lists the results of query
func (n *Navigator) Search(ctx context.Context, query string) error {
	return n.search(ctx, query, true)
}

// ClearSearch leaves search results and returns to the inbox
func (n *Navigator) ClearSearch(ctx context.Context) error {
	return n.enterLabel(ctx, ViewInbox, false, true)
}

func (n *Navigator) enterLabel(ctx context.Context, view View, force, push bool) error {
	label, _ := view.Label()

	n.mu.Lock()
	if !n.state.Authenticated {
		n.mu.Unlock()
		return ErrNotAuthenticated
	}
	tok := n.tokens.advance(view)
	n.resetListLocked(view, label, force)
	if push {
		n.history.Push(HistoryEntry{View: view})
	}

	if !force {
		if page, ok := n.cache.Get(label); ok {
			n.state.Messages = page.Messages
			n.seq.Reset(page, label.Paginated())
			n.state.NextPageToken = n.seq.Cursor()
			n.mu.Unlock()
			n.closeCompose()
			n.logf("navigate %s: served %d messages from cache", tok, len(page.Messages))
			n.notify()
			return nil
		}
		n.state.Messages = nil
	}
	n.state.Loading = true
	n.loadedBy = tok.Epoch
	n.mu.Unlock()
	n.closeCompose()
	n.notify()

	page, err := n.backend.FetchPage(ctx, mailbox.LabelSelector(label), "")
	return n.commitFirstPage(tok, page, err, true)
}

// search fetches the first page of results for query. The response is gated by the view epoch
// like a label fetch, so a newer search or any navigation started meanwhile drops it instead of
// letting the last response to arrive win.
func (n *Navigator) search(ctx context.Context, query string, push bool) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("%w: empty search query", ErrInvalidInput)
	}

	n.mu.Lock()
	if !n.state.Authenticated {
		n.mu.Unlock()
		return ErrNotAuthenticated
	}
	tok := n.tokens.advance(ViewSearch)
	n.resetListLocked(ViewSearch, "", false)
	n.state.Query = query
	n.state.Searching = true
	n.state.Messages = nil
	n.state.Loading = true
	n.loadedBy = tok.Epoch
	if push {
		n.history.Push(HistoryEntry{View: ViewSearch, Query: query})
	}
	n.mu.Unlock()
	n.closeCompose()
	n.notify()

	page, err := n.backend.FetchPage(ctx, mailbox.QuerySelector(query), "")
	return n.commitFirstPage(tok, page, err, false)
}

// resetListLocked clears everything that belongs to the previous list. A refresh keeps the
// displayed list and its cursor until the new first page commits.
func (n *Navigator) resetListLocked(view View, label mailbox.Label, keepList bool) {
	n.state.View = view
	n.state.Label = label
	n.state.Query = ""
	n.state.Searching = false
	n.state.Selected = nil
	n.state.ComposeOpen = false
	n.state.Status = ""
	n.state.Loading = false
	n.state.LoadingMore = false
	n.state.Epoch = n.tokens.current.Epoch
	n.loadedBy = 0
	if keepList {
		n.seq.Abandon()
		return
	}
	n.seq.Reset(mailbox.PageResult{}, label.Paginated())
	n.state.NextPageToken = ""
}

// commitFirstPage installs a first page if tok is still current
func (n *Navigator) commitFirstPage(tok ViewToken, page mailbox.PageResult, fetchErr error, cacheable bool) error {
	n.mu.Lock()
	if n.loadedBy == tok.Epoch {
		n.state.Loading = false
	}
	if !tok.Admits(n.tokens.current) {
		n.mu.Unlock()
		n.logf("discarding response for %s, active view is %s", tok, n.currentToken())
		return ErrStaleResponse
	}
	if fetchErr != nil {
		n.state.Status = "Failed to load messages"
		n.mu.Unlock()
		n.logf("fetch %s failed: %v", tok, fetchErr)
		n.notify()
		return fetchErr
	}

	page = page.Clone()
	paginated := tok.Label == "" || tok.Label.Paginated()
	n.seq.Reset(page, paginated)
	n.state.LoadingMore = false
	n.state.Messages = page.Messages
	n.state.NextPageToken = n.seq.Cursor()
	if cacheable && tok.Label != "" {
		n.cache.Put(tok.Label, page)
	}
	n.mu.Unlock()
	n.notify()
	return nil
}

// SentinelVisible is called when the last rendered row becomes visible. At most one continuation
// fetch is in flight and each cursor is requested once.
func (n *Navigator) SentinelVisible(ctx context.Context, lastID string) error {
	n.mu.Lock()
	msgs := n.state.Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].ID != lastID {
		n.mu.Unlock()
		return nil
	}
	if !n.state.Searching && !n.state.Label.Paginated() {
		n.mu.Unlock()
		return ErrNoMorePages
	}
	cursor, err := n.seq.Begin()
	if err != nil {
		n.mu.Unlock()
		return err
	}
	gen := n.seq.Generation()
	tok := n.tokens.current
	sel := mailbox.LabelSelector(n.state.Label)
	if n.state.Searching {
		sel = mailbox.QuerySelector(n.state.Query)
	}
	n.state.LoadingMore = true
	n.mu.Unlock()
	n.notify()

	page, err := n.backend.FetchPage(ctx, sel, cursor)

	n.mu.Lock()
	if !tok.Admits(n.tokens.current) || !n.seq.Owns(gen) {
		n.mu.Unlock()
		n.logf("discarding continuation %s for %s", cursor, tok)
		return ErrStaleResponse
	}
	n.state.LoadingMore = false
	if err != nil {
		n.seq.Fail(cursor)
		n.state.Status = "Failed to load more messages"
		n.mu.Unlock()
		n.logf("continuation %s for %s failed: %v", cursor, tok, err)
		n.notify()
		return err
	}
	n.state.Messages = n.seq.Complete(n.state.Messages, page.Clone())
	n.state.NextPageToken = n.seq.Cursor()
	n.mu.Unlock()
	n.notify()
	return nil
}

// OpenMessage loads a message and shows it
func (n *Navigator) OpenMessage(ctx context.Context, id string) error {
	return n.openMessage(ctx, id, true)
}

func (n *Navigator) openMessage(ctx context.Context, id string, push bool) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: message id cannot be empty", ErrInvalidInput)
	}
	n.mu.Lock()
	if !n.state.Authenticated {
		n.mu.Unlock()
		return ErrNotAuthenticated
	}
	n.openGen++
	gen, epoch := n.openGen, n.tokens.current.Epoch
	n.mu.Unlock()

	detail, err := n.backend.FetchMessage(ctx, id)

	n.mu.Lock()
	if gen != n.openGen || epoch != n.tokens.current.Epoch {
		n.mu.Unlock()
		return ErrStaleResponse
	}
	if err != nil {
		n.state.Status = "Failed to load message"
		n.mu.Unlock()
		n.logf("open message %s failed: %v", id, err)
		n.notify()
		return err
	}
	if detail.ThreadID == "" {
		detail.ThreadID = detail.ID
	}
	n.tokens.setView(ViewMessage)
	n.state.View = ViewMessage
	n.state.Selected = detail
	n.state.ComposeOpen = false
	for i := range n.state.Messages {
		if n.state.Messages[i].ID == id {
			n.state.Messages[i].Unread = false
		}
	}
	n.cache.MarkRead(id)
	if push {
		n.history.Push(HistoryEntry{View: ViewMessage, MessageID: id})
	}
	n.mu.Unlock()
	n.closeCompose()
	n.notify()
	return nil
}

// OpenCompose shows an empty draft
func (n *Navigator) OpenCompose(ctx context.Context) error {
	return n.openCompose(ctx, true)
}

func (n *Navigator) openCompose(ctx context.Context, push bool) error {
	if !n.enterCompose(push) {
		return ErrNotAuthenticated
	}
	if n.compose == nil {
		return nil
	}
	return n.compose.Open(ctx)
}

// showCompose re-shows the draft left behind by a navigation without discarding it
func (n *Navigator) showCompose() error {
	if !n.enterCompose(false) {
		return ErrNotAuthenticated
	}
	if n.compose != nil {
		n.compose.Show()
	}
	return nil
}

// Reply opens a draft addressed to the sender of the open message
func (n *Navigator) Reply(ctx context.Context) error {
	n.mu.Lock()
	sel := n.state.Selected
	n.mu.Unlock()
	if sel == nil {
		return ErrNoMessageOpen
	}
	if !n.enterCompose(true) {
		return ErrNotAuthenticated
	}
	if n.compose == nil {
		return nil
	}
	return n.compose.OpenReply(ctx, sel)
}

func (n *Navigator) enterCompose(push bool) bool {
	n.mu.Lock()
	if !n.state.Authenticated {
		n.mu.Unlock()
		return false
	}
	n.tokens.setView(ViewCompose)
	n.state.View = ViewCompose
	n.state.ComposeOpen = true
	if push {
		n.history.Push(HistoryEntry{View: ViewCompose})
	}
	n.mu.Unlock()
	n.notify()
	return true
}

// SendDraft sends or schedules the draft and returns to the inbox
func (n *Navigator) SendDraft(ctx context.Context) error {
	if n.compose == nil {
		return ErrComposeClosed
	}
	res, err := n.compose.Send(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			n.setStatus("Please fill in recipient and subject")
		} else {
			n.setStatus("Failed: " + err.Error())
		}
		return err
	}
	if err := n.Navigate(ctx, ViewInbox); err != nil && !IsSkippedError(err) {
		n.logf("navigate after send failed: %v", err)
	}
	if res.Scheduled {
		n.setStatus("Email successfully scheduled!")
	} else {
		n.setStatus("Email sent successfully!")
	}
	return nil
}

// Back returns to the previous history entry
func (n *Navigator) Back(ctx context.Context) error {
	entry, ok := n.history.Back()
	if !ok {
		return nil
	}
	switch {
	case entry.View.IsLabelView():
		return n.enterLabel(ctx, entry.View, false, false)
	case entry.View == ViewSearch:
		return n.search(ctx, entry.Query, false)
	case entry.View == ViewMessage:
		return n.openMessage(ctx, entry.MessageID, false)
	case entry.View == ViewCompose:
		return n.showCompose()
	}
	return fmt.Errorf("%w: %q", ErrUnknownView, entry.View)
}

// Logout ends the session. Local state is wiped even when the remote call fails, and the epoch
// advances so responses to requests issued before logout are dropped.
func (n *Navigator) Logout(ctx context.Context) error {
	remoteErr := n.backend.Logout(ctx)
	if remoteErr != nil {
		n.logf("remote logout failed: %v", remoteErr)
	}
	if n.session != nil {
		n.session.Stop()
	}

	n.mu.Lock()
	n.tokens.advance(n.initialView)
	label, _ := n.initialView.Label()
	n.seq.Reset(mailbox.PageResult{}, true)
	n.state = ListState{
		View:   n.initialView,
		Label:  label,
		Status: "Logged out",
		Epoch:  n.tokens.current.Epoch,
	}
	n.loadedBy = 0
	n.cache.Clear()
	n.history.Reset()
	n.mu.Unlock()

	if n.compose != nil {
		n.compose.Reset()
	}
	n.notify()
	if remoteErr != nil {
		return fmt.Errorf("logout: %w", remoteErr)
	}
	return nil
}

// State returns a copy of the render state
func (n *Navigator) State() ListState {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := n.state
	st.Messages = append([]mailbox.MessageSummary(nil), n.state.Messages...)
	if n.state.Selected != nil {
		sel := *n.state.Selected
		sel.Attachments = append([]mailbox.AttachmentInfo(nil), n.state.Selected.Attachments...)
		st.Selected = &sel
	}
	return st
}

// Subscribe registers fn to receive the render state after every change
func (n *Navigator) Subscribe(fn func(ListState)) (unsubscribe func()) {
	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.subsMu.Unlock()
	return func() {
		n.subsMu.Lock()
		delete(n.subs, id)
		n.subsMu.Unlock()
	}
}

func (n *Navigator) notify() {
	n.subsMu.Lock()
	fns := make([]func(ListState), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.subsMu.Unlock()
	if len(fns) == 0 {
		return
	}
	st := n.State()
	for _, fn := range fns {
		fn(st)
	}
}

func (n *Navigator) setStatus(msg string) {
	n.mu.Lock()
	n.state.Status = msg
	n.mu.Unlock()
	n.notify()
}

func (n *Navigator) closeCompose() {
	if n.compose != nil {
		n.compose.Close()
	}
}

func (n *Navigator) currentToken() ViewToken {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.current
}

func (n *Navigator) logf(format string, args ...interface{}) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}
