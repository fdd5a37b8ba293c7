package gmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/ajramos/echomail/internal/mailbox"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gmail API quota units, see https://developers.google.com/gmail/api/reference/quota
const (
	quotaMessagesList = 5
	quotaMessagesGet  = 5
	quotaMessagesSend = 100
	quotaGetProfile   = 1

	quotaUnitsPerSecond = 250
	defaultWorkers      = 10
	maxWorkers          = 15
	user                = "me"
)

var listHeaders = []string{"From", "To", "Subject", "Date"}

// Options configures a Backend
type Options struct {
	PageSize int64
	Workers  int
	// Limiter overrides the default quota limiter
	Limiter *rate.Limiter
	// OnLogout runs when the user signs out, typically to delete the cached token
	OnLogout func() error
	Logger   *log.Logger
}

// Backend serves the mailbox contract straight from the Gmail API
type Backend struct {
	svc      *gmailapi.Service
	limiter  *rate.Limiter
	pageSize int64
	workers  int
	onLogout func() error
	logger   *log.Logger

	mu      sync.Mutex
	account string
}

// NewService builds a Gmail API service over an authorized HTTP client. extra options are
// appended, which lets tests point the service at a fake endpoint.
func NewService(ctx context.Context, client *http.Client, extra ...option.ClientOption) (*gmailapi.Service, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, extra...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// New creates a Backend
func New(svc *gmailapi.Service, opts Options) *Backend {
	b := &Backend{
		svc:      svc,
		limiter:  opts.Limiter,
		pageSize: opts.PageSize,
		workers:  opts.Workers,
		onLogout: opts.OnLogout,
		logger:   opts.Logger,
	}
	if b.limiter == nil {
		b.limiter = rate.NewLimiter(quotaUnitsPerSecond*0.8, quotaUnitsPerSecond)
	}
	if b.pageSize <= 0 {
		b.pageSize = mailbox.DefaultPageSize
	}
	if b.workers <= 0 {
		b.workers = defaultWorkers
	}
	if b.workers > maxWorkers {
		b.workers = maxWorkers
	}
	return b
}

// FetchPage lists one page of a label or a query and resolves each id to a summary in parallel.
// Gmail does not expose scheduled sends, so the scheduled label is always empty.
func (b *Backend) FetchPage(ctx context.Context, sel mailbox.Selector, cursor string) (mailbox.PageResult, error) {
	if !sel.IsSearch() && !sel.Label.Valid() {
		return mailbox.PageResult{}, &mailbox.ProtocolError{Op: "list", Reason: fmt.Sprintf("unknown label %q", sel.Label)}
	}
	if sel.Label == mailbox.LabelScheduled {
		return mailbox.PageResult{}, nil
	}

	call := b.svc.Users.Messages.List(user).MaxResults(b.pageSize).Context(ctx)
	if sel.IsSearch() {
		call = call.Q(sel.Query)
	} else {
		call = call.LabelIds(string(sel.Label))
		if sel.Label == mailbox.LabelSpam {
			call = call.IncludeSpamTrash(true)
		}
	}
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	if err := b.limiter.WaitN(ctx, quotaMessagesList); err != nil {
		return mailbox.PageResult{}, wrapErr("list", err)
	}
	res, err := call.Do()
	if err != nil {
		return mailbox.PageResult{}, wrapErr("list", err)
	}

	ids := make([]string, len(res.Messages))
	for i, m := range res.Messages {
		ids[i] = m.Id
	}
	summaries, err := b.metadata(ctx, ids)
	if err != nil {
		return mailbox.PageResult{}, err
	}
	b.logf("gmail: listed %s cursor=%q -> %d messages", sel, cursor, len(summaries))
	return mailbox.PageResult{Messages: summaries, NextPageToken: res.NextPageToken}, nil
}

// metadata fetches list headers for ids with a bounded worker pool, keeping the input order
func (b *Backend) metadata(ctx context.Context, ids []string) ([]mailbox.MessageSummary, error) {
	out := make([]mailbox.MessageSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := b.limiter.WaitN(gctx, quotaMessagesGet); err != nil {
				return wrapErr("metadata", err)
			}
			msg, err := b.svc.Users.Messages.Get(user, id).
				Format("metadata").
				MetadataHeaders(listHeaders...).
				Context(gctx).
				Do()
			if err != nil {
				return wrapErr("metadata", err)
			}
			out[i] = summaryOf(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMessage returns the full content of one message, preferring the HTML body
func (b *Backend) FetchMessage(ctx context.Context, id string) (*mailbox.MessageDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &mailbox.ProtocolError{Op: "detail", Reason: "empty message id"}
	}
	if err := b.limiter.WaitN(ctx, quotaMessagesGet); err != nil {
		return nil, wrapErr("detail", err)
	}
	msg, err := b.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("detail", err)
	}

	d := &mailbox.MessageDetail{MessageSummary: summaryOf(msg)}
	if body := ExtractHTML(msg); body != "" {
		d.Body, d.IsHTML = body, true
	} else {
		d.Body = ExtractPlainText(msg)
	}
	d.Attachments = collectAttachments(msg.Payload)
	return d, nil
}

// Send delivers req immediately. The Gmail API has no scheduled send.
func (b *Backend) Send(ctx context.Context, req mailbox.SendRequest) (*mailbox.SendResult, error) {
	if !req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("schedule send: %w", mailbox.ErrUnsupported)
	}
	raw, err := BuildRaw(req)
	if err != nil {
		return nil, err
	}
	msg := &gmailapi.Message{Raw: raw, ThreadId: req.ThreadID}
	if err := b.limiter.WaitN(ctx, quotaMessagesSend); err != nil {
		return nil, wrapErr("send", err)
	}
	sent, err := b.svc.Users.Messages.Send(user, msg).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr("send", err)
	}
	return &mailbox.SendResult{ID: sent.Id}, nil
}

// AuthStatus reports the signed-in account. A 401 from Gmail means signed out, not an error.
func (b *Backend) AuthStatus(ctx context.Context) (*mailbox.AuthStatus, error) {
	b.mu.Lock()
	account := b.account
	b.mu.Unlock()
	if account != "" {
		return &mailbox.AuthStatus{Authenticated: true, Email: account}, nil
	}

	if err := b.limiter.WaitN(ctx, quotaGetProfile); err != nil {
		return nil, wrapErr("auth status", err)
	}
	profile, err := b.svc.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		err = wrapErr("auth status", err)
		if mailbox.IsUnauthorized(err) {
			return &mailbox.AuthStatus{}, nil
		}
		return nil, err
	}
	b.mu.Lock()
	b.account = profile.EmailAddress
	b.mu.Unlock()
	return &mailbox.AuthStatus{Authenticated: true, Email: profile.EmailAddress}, nil
}

// Logout forgets the cached account and runs the configured logout hook
func (b *Backend) Logout(ctx context.Context) error {
	b.mu.Lock()
	b.account = ""
	b.mu.Unlock()
	if b.onLogout != nil {
		return b.onLogout()
	}
	return nil
}

// SearchContacts is not available through the Gmail API
func (b *Backend) SearchContacts(ctx context.Context, term string) ([]mailbox.Contact, error) {
	return nil, mailbox.ErrUnsupported
}

func summaryOf(msg *gmailapi.Message) mailbox.MessageSummary {
	s := mailbox.MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     extractHeader(msg, "From"),
		To:       extractHeader(msg, "To"),
		Subject:  extractHeader(msg, "Subject"),
		Date:     extractHeader(msg, "Date"),
		Snippet:  html.UnescapeString(msg.Snippet),
	}
	for _, l := range msg.LabelIds {
		if l == "UNREAD" {
			s.Unread = true
		}
	}
	return s
}

func wrapErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return mailbox.ErrAborted
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &mailbox.NetworkError{Op: op, StatusCode: gerr.Code, Err: err}
	}
	return &mailbox.NetworkError{Op: op, Err: err}
}

func (b *Backend) logf(format string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
