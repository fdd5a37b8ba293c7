package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is where the remote mailbox service listens by default
	DefaultBaseURL = "http://localhost:5000/api"
	// DefaultPageSize is the number of summaries requested per page
	DefaultPageSize = 20

	sessionCookieName = "session"
	scheduledPath     = "/scheduled/messages"
)

// Options configures a Client
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	PageSize          int
	SessionCookie     string
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// Client talks to the remote mailbox service over its JSON/HTTP contract
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	pageSize int
	logger   *log.Logger
}

// NewClient creates a client for the service rooted at baseURL
func NewClient(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing scheme or host", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	if opts.SessionCookie != "" {
		httpClient.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookieName, Value: opts.SessionCookie, Path: "/"}})
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{
		baseURL:  u,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		pageSize: pageSize,
		logger:   opts.Logger,
	}, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends req and decodes a 2xx JSON body into out
func (c *Client) do(req *http.Request, op string, out interface{}) error {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrAborted
		}
		return &NetworkError{Op: op, Err: err}
	}

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrAborted
		}
		c.logf("%s %s [%s] failed: %v", req.Method, req.URL.Path, reqID, err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.logf("%s %s [%s] -> %d in %s", req.Method, req.URL.Path, reqID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(b)))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrAborted
		}
		return &ProtocolError{Op: op, Reason: "malformed response body", Err: err}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (e envelope) check(op string) error {
	if e.Success == nil {
		return &ProtocolError{Op: op, Reason: "missing success flag"}
	}
	if !*e.Success {
		reason := e.Error
		if reason == "" {
			reason = "service reported failure"
		}
		return &ProtocolError{Op: op, Reason: reason}
	}
	return nil
}

type pageResponse struct {
	envelope
	Messages      []MessageSummary `json:"messages"`
	NextPageToken *string          `json:"nextPageToken"`
}

// FetchPage lists one page of the selected label or query. The scheduled label ignores cursor
// and always returns a terminal page.
func (c *Client) FetchPage(ctx context.Context, sel Selector, cursor string) (PageResult, error) {
	const op = "fetch page"
	path := "/inbox/messages"
	q := url.Values{}
	switch {
	case sel.IsSearch():
		q.Set("q", sel.Query)
	case sel.Label == LabelScheduled:
		path = scheduledPath
	case sel.Label.Valid():
		q.Set("label", string(sel.Label))
	default:
		return PageResult{}, fmt.Errorf("%s: unknown label %q", op, sel.Label)
	}
	if path != scheduledPath {
		q.Set("maxResults", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("pageToken", cursor)
		}
	}

	var resp pageResponse
	if err := c.getJSON(ctx, op, path, q, &resp); err != nil {
		return PageResult{}, err
	}
	if err := resp.check(op); err != nil {
		return PageResult{}, err
	}

	page := PageResult{Messages: resp.Messages}
	if page.Messages == nil {
		page.Messages = []MessageSummary{}
	}
	if resp.NextPageToken != nil && path != scheduledPath {
		page.NextPageToken = *resp.NextPageToken
	}
	return page, nil
}

type detailResponse struct {
	envelope
	Message *MessageDetail `json:"message"`
}

// FetchMessage loads the full content of one message
func (c *Client) FetchMessage(ctx context.Context, id string) (*MessageDetail, error) {
	const op = "fetch message"
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%s: message id cannot be empty", op)
	}
	var resp detailResponse
	if err := c.getJSON(ctx, op, "/inbox/message/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(op); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, &ProtocolError{Op: op, Reason: "missing message"}
	}
	return resp.Message, nil
}

type sendResponse struct {
	envelope
	ID        string `json:"id"`
	Scheduled bool   `json:"scheduled"`
	DBID      string `json:"db_id"`
}

// Send posts a draft as multipart form data. A non-zero ScheduledAt schedules it instead.
func (c *Client) Send(ctx context.Context, r SendRequest) (*SendResult, error) {
	const op = "send email"
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"to", r.To},
		{"subject", r.Subject},
		{"body", r.Body},
		{"cc", r.CC},
		{"bcc", r.BCC},
		{"threadId", r.ThreadID},
		{"messageId", r.MessageID},
	}
	for _, f := range fields {
		if f.value == "" && f.key != "body" {
			continue
		}
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if !r.ScheduledAt.IsZero() {
		if err := w.WriteField("scheduledTime", r.ScheduledAt.UTC().Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	for _, a := range r.Attachments {
		if err := writeAttachment(w, a); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/email/send", nil), &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp sendResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(op); err != nil {
		return nil, err
	}
	id := resp.ID
	if id == "" {
		id = resp.DBID
	}
	return &SendResult{ID: id, Scheduled: resp.Scheduled || !r.ScheduledAt.IsZero()}, nil
}

func writeAttachment(w *multipart.Writer, a OutgoingAttachment) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("failed to open attachment %s: %w", a.Path, err)
	}
	defer f.Close()
	name := a.Filename
	if name == "" {
		name = filepath.Base(a.Path)
	}
	part, err := w.CreateFormFile("attachments", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", a.Path, err)
	}
	return nil
}

// MediatorState polls the assistant conversation state
func (c *Client) MediatorState(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	if err := c.getJSON(ctx, "mediator state", "/mediator/state", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type advanceResponse struct {
	envelope
	State json.RawMessage `json:"state"`
}

// AdvanceMediator submits free-text input to the assistant conversation
func (c *Client) AdvanceMediator(ctx context.Context, input string) error {
	const op = "advance mediator"
	input = strings.TrimSpace(input)
	if input == "" {
		return fmt.Errorf("%s: input cannot be empty", op)
	}
	var resp advanceResponse
	if err := c.postJSON(ctx, op, "/mediator/advance", map[string]string{"input": input}, &resp); err != nil {
		return err
	}
	return resp.check(op)
}

// ComposeContext fetches the recipient and description gathered by the assistant so far
func (c *Client) ComposeContext(ctx context.Context) (*ComposeContext, error) {
	var cc ComposeContext
	if err := c.getJSON(ctx, "compose context", "/compose/context", nil, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

type generateResponse struct {
	envelope
	GeneratedEmail
}

// GenerateEmail asks the service to write an email from the current assistant description
func (c *Client) GenerateEmail(ctx context.Context) (*GeneratedEmail, error) {
	const op = "generate email"
	var resp generateResponse
	if err := c.postJSON(ctx, op, "/email/generate", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(op); err != nil {
		return nil, err
	}
	return &resp.GeneratedEmail, nil
}

type summarizeResponse struct {
	envelope
	Summary string `json:"summary"`
}

// Summarize returns an AI summary of text
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	const op = "summarize"
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: text cannot be empty", op)
	}
	var resp summarizeResponse
	if err := c.postJSON(ctx, op, "/email/summarize", map[string]string{"text": text}, &resp); err != nil {
		return "", err
	}
	if err := resp.check(op); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

// SearchContacts looks up recipients whose name or address matches term
func (c *Client) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	var resp contactsResponse
	q := url.Values{"q": []string{term}}
	if err := c.getJSON(ctx, "search contacts", "/contacts/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// AuthStatus reports whether the service holds an authenticated session
func (c *Client) AuthStatus(ctx context.Context) (*AuthStatus, error) {
	var s AuthStatus
	if err := c.getJSON(ctx, "auth status", "/auth/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout ends the remote session
func (c *Client) Logout(ctx context.Context) error {
	const op = "logout"
	var resp envelope
	if err := c.postJSON(ctx, op, "/auth/logout", nil, &resp); err != nil {
		return err
	}
	return resp.check(op)
}
