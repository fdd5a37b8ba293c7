package services

import (
	"context"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/mediator"
)

// PageFetcher lists one page of a label or a search query
type PageFetcher interface {
	FetchPage(ctx context.Context, sel mailbox.Selector, cursor string) (mailbox.PageResult, error)
}

// MailBackend is the mailbox contract the navigator and compose service depend on
type MailBackend interface {
	PageFetcher
	FetchMessage(ctx context.Context, id string) (*mailbox.MessageDetail, error)
	Send(ctx context.Context, req mailbox.SendRequest) (*mailbox.SendResult, error)
	AuthStatus(ctx context.Context) (*mailbox.AuthStatus, error)
	Logout(ctx context.Context) error
}

// AssistantBackend exposes the assistant conversation used to pre-fill drafts
type AssistantBackend interface {
	mediator.StateSource
	AdvanceMediator(ctx context.Context, input string) error
	ComposeContext(ctx context.Context) (*mailbox.ComposeContext, error)
	GenerateEmail(ctx context.Context) (*mailbox.GeneratedEmail, error)
}

// ContactSearcher looks up recipient suggestions
type ContactSearcher interface {
	SearchContacts(ctx context.Context, term string) ([]mailbox.Contact, error)
}

// RecipientLog remembers the recipients of sent mail
type RecipientLog interface {
	RecordRecipients(ctx context.Context, addrs []string, at time.Time) error
}

// RecentRecipients searches the local recipient history
type RecentRecipients interface {
	SearchRecipients(ctx context.Context, term string, limit int) ([]mailbox.Contact, error)
}

// Summarizer produces an AI summary of a text
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummaryStore persists summaries per account and message
type SummaryStore interface {
	LoadSummary(ctx context.Context, accountEmail, messageID string) (string, bool, error)
	SaveSummary(ctx context.Context, accountEmail, messageID, summary string) error
	DeleteSummary(ctx context.Context, accountEmail, messageID string) error
}

// NavigationService owns the active view and the list pipeline
type NavigationService interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, view View) error
	Refresh(ctx context.Context) error
	Search(ctx context.Context, query string) error
	ClearSearch(ctx context.Context) error
	OpenMessage(ctx context.Context, id string) error
	OpenCompose(ctx context.Context) error
	Reply(ctx context.Context) error
	SendDraft(ctx context.Context) error
	Back(ctx context.Context) error
	Logout(ctx context.Context) error
	SentinelVisible(ctx context.Context, lastID string) error
	State() ListState
	Subscribe(fn func(ListState)) (unsubscribe func())
}

// ComposeService owns the draft
type ComposeService interface {
	Open(ctx context.Context) error
	OpenReply(ctx context.Context, msg *mailbox.MessageDetail) error
	Close()
	Show()
	Reset()
	IsOpen() bool
	Draft() Draft
	SetField(field Field, value string) error
	ToggleCCBCC()
	AddAttachment(path string) error
	RemoveAttachment(index int) error
	SetSchedule(at time.Time) error
	ClearSchedule()
	ApplyDiff(d mediator.Diff)
	MaybeGenerate(ctx context.Context) (bool, error)
	Advance(ctx context.Context, input string) error
	Send(ctx context.Context) (*mailbox.SendResult, error)
	SendInlineReply(ctx context.Context, msg *mailbox.MessageDetail, body string) error
}

// SuggestionService offers contact completions for recipient fields
type SuggestionService interface {
	Update(field Field, text string)
	Suggestions() (Field, []mailbox.Contact)
	Choose(text string, contact mailbox.Contact) string
	Close()
}

// SummaryService summarizes the open message
type SummaryService interface {
	Summarize(ctx context.Context, accountEmail string, msg *mailbox.MessageDetail) (*SummaryResult, error)
	Forget(ctx context.Context, accountEmail, messageID string) error
}

// ListState is a snapshot of everything the list pipeline renders
type ListState struct {
	View          View
	Label         mailbox.Label
	Query         string
	Searching     bool
	Messages      []mailbox.MessageSummary
	NextPageToken string
	Loading       bool
	LoadingMore   bool
	Selected      *mailbox.MessageDetail
	ComposeOpen   bool
	Status        string
	Authenticated bool
	Account       mailbox.AuthStatus
	Epoch         uint64
}

// Field names a draft input
type Field string

const (
	FieldTo      Field = "to"
	FieldCC      Field = "cc"
	FieldBCC     Field = "bcc"
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
)

// IsRecipient reports whether f holds comma-separated addresses
func (f Field) IsRecipient() bool {
	return f == FieldTo || f == FieldCC || f == FieldBCC
}

// Draft is the content of the compose form
type Draft struct {
	To          string
	CC          string
	BCC         string
	Subject     string
	Body        string
	Attachments []mailbox.OutgoingAttachment
	ScheduleAt  time.Time
	ShowCCBCC   bool
	Generated   bool
	ThreadID    string
	ReplyToID   string
}

// SummaryResult is a summary and where it came from
type SummaryResult struct {
	Summary   string
	FromCache bool
	Duration  time.Duration
}
