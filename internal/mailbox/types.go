package mailbox

import (
	"encoding/json"
	"strings"
	"time"
)

// Label is a server-defined mailbox partition
type Label string

const (
	LabelInbox     Label = "INBOX"
	LabelSent      Label = "SENT"
	LabelScheduled Label = "SCHEDULED"
	LabelSpam      Label = "SPAM"
)

// Labels lists every label the client knows about, in sidebar order
var Labels = []Label{LabelInbox, LabelSent, LabelScheduled, LabelSpam}

// Valid reports whether l is one of the known labels
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Paginated reports whether listings of this label carry continuation cursors.
// The scheduled listing is always returned whole.
func (l Label) Paginated() bool {
	return l != LabelScheduled
}

// Selector picks what a page request lists: a label or a free-text query, never both
type Selector struct {
	Label Label
	Query string
}

// LabelSelector selects the contents of a label
func LabelSelector(l Label) Selector { return Selector{Label: l} }

// QuerySelector selects the results of a search query
func QuerySelector(q string) Selector { return Selector{Query: strings.TrimSpace(q)} }

// IsSearch reports whether the selector is a query
func (s Selector) IsSearch() bool { return s.Query != "" }

func (s Selector) String() string {
	if s.IsSearch() {
		return "q=" + s.Query
	}
	return "label=" + string(s.Label)
}

// MessageSummary is one row of a message listing
type MessageSummary struct {
	ID        string `json:"id"`
	ThreadID  string `json:"threadId,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
	Unread    bool   `json:"isUnread"`
	Scheduled bool   `json:"isScheduled,omitempty"`
}

// PageResult is one page of a listing. An empty NextPageToken means there are no more pages.
type PageResult struct {
	Messages      []MessageSummary `json:"messages"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// HasMore reports whether a continuation page exists
func (p PageResult) HasMore() bool { return p.NextPageToken != "" }

// Clone returns a copy whose message slice does not alias p's
func (p PageResult) Clone() PageResult {
	out := PageResult{NextPageToken: p.NextPageToken}
	if p.Messages != nil {
		out.Messages = make([]MessageSummary, len(p.Messages))
		copy(out.Messages, p.Messages)
	}
	return out
}

// AttachmentInfo describes an attachment of a received message
type AttachmentInfo struct {
	AttachmentID string `json:"attachmentId"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

// MessageDetail is the full content of a single message
type MessageDetail struct {
	MessageSummary
	Body        string           `json:"body"`
	IsHTML      bool             `json:"isHtml"`
	Attachments []AttachmentInfo `json:"attachments,omitempty"`
}

// OutgoingAttachment is a local file queued on a draft
type OutgoingAttachment struct {
	Filename string
	Path     string
	Size     int64
}

// SendRequest is the multipart payload of a send or schedule
type SendRequest struct {
	To          string
	Subject     string
	Body        string
	CC          string
	BCC         string
	ThreadID    string
	MessageID   string
	Attachments []OutgoingAttachment
	ScheduledAt time.Time
}

// SendResult reports the outcome of a send
type SendResult struct {
	ID        string `json:"id,omitempty"`
	Scheduled bool   `json:"scheduled,omitempty"`
}

// Snapshot is the assistant conversation state polled from the mediator
type Snapshot struct {
	RecipientName     string          `json:"recipient_name,omitempty"`
	RecipientRelation string          `json:"recipient_relation,omitempty"`
	RecipientOptions  json.RawMessage `json:"recipient_options,omitempty"`
	CC                []string        `json:"cc,omitempty"`
	BCC               []string        `json:"bcc,omitempty"`
	Description       string          `json:"description,omitempty"`
	MailRevision      string          `json:"mail_revision,omitempty"`
}

// ComposeContext pre-fills a new draft
type ComposeContext struct {
	RecipientName string          `json:"recipient_name,omitempty"`
	RecipientOpts json.RawMessage `json:"recipient_option_index,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// GeneratedEmail is an AI-written subject and body
type GeneratedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Contact is a recipient suggestion
type Contact struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

// AuthStatus reports the session held by the remote service
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}
