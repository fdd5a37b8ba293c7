package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/mediator"
)

var angleAddr = regexp.MustCompile(`<([^>]+)>`)

// ComposeServiceImpl implements ComposeService
type ComposeServiceImpl struct {
	backend   MailBackend
	assistant AssistantBackend
	cache     *LabelCache
	logger    *log.Logger
	onChange  func()
	recents   RecipientLog

	mu         sync.Mutex
	draft      Draft
	open       bool
	generating bool
	descGen    uint64
	snapshot   *mailbox.Snapshot
	composeCtx *mailbox.ComposeContext
}

// NewComposeService creates a compose service. assistant may be nil when the backend has no
// assistant; merges still apply but generation and context lookups are skipped.
func NewComposeService(backend MailBackend, assistant AssistantBackend, cache *LabelCache, logger *log.Logger) *ComposeServiceImpl {
	return &ComposeServiceImpl{
		backend:   backend,
		assistant: assistant,
		cache:     cache,
		logger:    logger,
	}
}

// SetRecipientLog records the recipients of every successful send into rl
func (s *ComposeServiceImpl) SetRecipientLog(rl RecipientLog) {
	s.mu.Lock()
	s.recents = rl
	s.mu.Unlock()
}

// OnChange registers a callback fired after the draft changes outside of SetField
func (s *ComposeServiceImpl) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Open shows a fresh draft, pre-fills it from the assistant and generates content if a
// description is already known
func (s *ComposeServiceImpl) Open(ctx context.Context) error {
	s.mu.Lock()
	s.draft = Draft{}
	s.open = true
	s.mu.Unlock()
	s.changed()

	if err := s.LoadContext(ctx); err != nil {
		s.logf("compose: failed to load context: %v", err)
	}
	if _, err := s.MaybeGenerate(ctx); err != nil {
		s.logf("compose: generation failed: %v", err)
	}
	return nil
}

// OpenReply shows a draft addressed to the sender of msg
func (s *ComposeServiceImpl) OpenReply(ctx context.Context, msg *mailbox.MessageDetail) error {
	if msg == nil {
		return ErrNoMessageOpen
	}
	s.mu.Lock()
	s.draft = Draft{
		To:        ReplyAddress(msg.From),
		Subject:   msg.Subject,
		ThreadID:  msg.ThreadID,
		ReplyToID: msg.ID,
	}
	s.open = true
	s.mu.Unlock()
	s.changed()
	return nil
}

// LoadContext pre-fills the recipient from the assistant's compose context
func (s *ComposeServiceImpl) LoadContext(ctx context.Context) error {
	if s.assistant == nil {
		return nil
	}
	cc, err := s.assistant.ComposeContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to load compose context: %w", err)
	}
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.composeCtx = cc
	if cc.RecipientName != "" {
		s.draft.To = cc.RecipientName
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// AssistantContext returns the last compose context loaded from the assistant, if any
func (s *ComposeServiceImpl) AssistantContext() *mailbox.ComposeContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.composeCtx == nil {
		return nil
	}
	cc := *s.composeCtx
	return &cc
}

// Close hides the draft without discarding it
func (s *ComposeServiceImpl) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// Show makes a hidden draft visible again as it was left
func (s *ComposeServiceImpl) Show() {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	s.changed()
}

// Reset discards the draft and everything learned from the assistant
func (s *ComposeServiceImpl) Reset() {
	s.mu.Lock()
	s.draft = Draft{}
	s.open = false
	s.snapshot = nil
	s.composeCtx = nil
	s.mu.Unlock()
}

// IsOpen reports whether the compose form is shown
func (s *ComposeServiceImpl) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Draft returns a copy of the draft
func (s *ComposeServiceImpl) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	d.Attachments = append([]mailbox.OutgoingAttachment(nil), s.draft.Attachments...)
	return d
}

// SetField replaces one text field of the draft
func (s *ComposeServiceImpl) SetField(field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch field {
	case FieldTo:
		s.draft.To = value
	case FieldCC:
		s.draft.CC = value
	case FieldBCC:
		s.draft.BCC = value
	case FieldSubject:
		s.draft.Subject = value
	case FieldBody:
		s.draft.Body = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	return nil
}

// ToggleCCBCC shows or hides the cc/bcc inputs
func (s *ComposeServiceImpl) ToggleCCBCC() {
	s.mu.Lock()
	s.draft.ShowCCBCC = !s.draft.ShowCCBCC
	s.mu.Unlock()
	s.changed()
}

// AddAttachment queues a local file
func (s *ComposeServiceImpl) AddAttachment(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: attachment path cannot be empty", ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidInput, path)
	}
	s.mu.Lock()
	s.draft.Attachments = append(s.draft.Attachments, mailbox.OutgoingAttachment{
		Filename: filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
	})
	s.mu.Unlock()
	s.changed()
	return nil
}

// RemoveAttachment drops the attachment at index
func (s *ComposeServiceImpl) RemoveAttachment(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.draft.Attachments) {
		s.mu.Unlock()
		return fmt.Errorf("%w: attachment index %d out of range", ErrInvalidInput, index)
	}
	s.draft.Attachments = append(s.draft.Attachments[:index:index], s.draft.Attachments[index+1:]...)
	s.mu.Unlock()
	s.changed()
	return nil
}

// SetSchedule makes Send schedule the draft for at instead of sending it now
func (s *ComposeServiceImpl) SetSchedule(at time.Time) error {
	if at.IsZero() {
		return fmt.Errorf("%w: schedule time cannot be zero", ErrInvalidInput)
	}
	s.mu.Lock()
	s.draft.ScheduleAt = at
	s.mu.Unlock()
	s.changed()
	return nil
}

// ClearSchedule makes Send deliver immediately
func (s *ComposeServiceImpl) ClearSchedule() {
	s.mu.Lock()
	s.draft.ScheduleAt = time.Time{}
	s.mu.Unlock()
	s.changed()
}

// ApplyDiff merges an assistant snapshot change into the draft. The recipient is overwritten when
// the assistant names someone new who is not already in To; cc and bcc addresses are appended;
// a new description marks the draft as not yet generated.
func (s *ComposeServiceImpl) ApplyDiff(d mediator.Diff) {
	s.mu.Lock()
	cur := d.Current
	s.snapshot = &cur
	changed := false
	if d.RecipientChanged && cur.RecipientName != s.draft.To {
		s.draft.To = cur.RecipientName
		changed = true
	}
	if d.CCChanged {
		s.draft.CC = AppendAddresses(s.draft.CC, cur.CC)
		s.draft.ShowCCBCC = true
		changed = true
	}
	if d.BCCChanged {
		s.draft.BCC = AppendAddresses(s.draft.BCC, cur.BCC)
		s.draft.ShowCCBCC = true
		changed = true
	}
	if d.DescriptionChanged {
		s.draft.Generated = false
		s.descGen++
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.changed()
	}
}

// MaybeGenerate asks the assistant to write the draft when compose is open, the draft has not
// been generated yet and a description is known. It reports whether content was generated.
func (s *ComposeServiceImpl) MaybeGenerate(ctx context.Context) (bool, error) {
	if s.assistant == nil {
		return false, nil
	}
	s.mu.Lock()
	if !s.open || s.draft.Generated || s.generating || s.snapshot == nil || s.snapshot.Description == "" {
		s.mu.Unlock()
		return false, nil
	}
	s.generating = true
	gen := s.descGen
	s.mu.Unlock()

	email, err := s.assistant.GenerateEmail(ctx)

	s.mu.Lock()
	s.generating = false
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("failed to generate email: %w", err)
	}
	if !s.open {
		s.mu.Unlock()
		return false, nil
	}
	s.draft.Subject = email.Subject
	s.draft.Body = email.Body
	// a description that arrived mid-generation still needs its own pass
	s.draft.Generated = gen == s.descGen
	s.mu.Unlock()
	s.changed()
	return true, nil
}

// Advance forwards a typed instruction to the assistant
func (s *ComposeServiceImpl) Advance(ctx context.Context, input string) error {
	if s.assistant == nil {
		return mailbox.ErrUnsupported
	}
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: instruction cannot be empty", ErrInvalidInput)
	}
	return s.assistant.AdvanceMediator(ctx, input)
}

// Send delivers or schedules the draft. On success the draft is discarded and the label it lands
// in is dropped from the cache.
func (s *ComposeServiceImpl) Send(ctx context.Context) (*mailbox.SendResult, error) {
	s.mu.Lock()
	d := s.draft
	d.Attachments = append([]mailbox.OutgoingAttachment(nil), s.draft.Attachments...)
	s.mu.Unlock()

	if strings.TrimSpace(d.To) == "" || strings.TrimSpace(d.Subject) == "" {
		return nil, fmt.Errorf("%w: recipient and subject are required", ErrMissingField)
	}

	res, err := s.backend.Send(ctx, mailbox.SendRequest{
		To:          d.To,
		Subject:     d.Subject,
		Body:        d.Body,
		CC:          d.CC,
		BCC:         d.BCC,
		ThreadID:    d.ThreadID,
		MessageID:   d.ReplyToID,
		Attachments: d.Attachments,
		ScheduledAt: d.ScheduleAt,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if res.Scheduled {
			s.cache.Invalidate(mailbox.LabelScheduled)
		} else {
			s.cache.Invalidate(mailbox.LabelSent)
		}
	}
	s.mu.Lock()
	s.draft = Draft{}
	s.open = false
	recents := s.recents
	s.mu.Unlock()
	s.logf("compose: sent to %s (scheduled=%v)", d.To, res.Scheduled)
	if recents != nil {
		addrs := append(append(SplitAddresses(d.To), SplitAddresses(d.CC)...), SplitAddresses(d.BCC)...)
		if err := recents.RecordRecipients(ctx, addrs, time.Now()); err != nil {
			s.logf("compose: record recipients: %v", err)
		}
	}
	s.changed()
	return res, nil
}

// SendInlineReply answers msg in its thread without going through the draft
func (s *ComposeServiceImpl) SendInlineReply(ctx context.Context, msg *mailbox.MessageDetail, body string) error {
	if msg == nil {
		return ErrNoMessageOpen
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: reply body cannot be empty", ErrMissingField)
	}
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = msg.ID
	}
	if _, err := s.backend.Send(ctx, mailbox.SendRequest{
		To:        ReplyAddress(msg.From),
		Subject:   msg.Subject,
		Body:      body,
		ThreadID:  threadID,
		MessageID: msg.ID,
	}); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(mailbox.LabelSent)
	}
	return nil
}

func (s *ComposeServiceImpl) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *ComposeServiceImpl) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// AppendAddresses appends addrs to a comma-separated field, keeping what the user typed and
// leaving a trailing separator for the next entry
func AppendAddresses(field string, addrs []string) string {
	if len(addrs) == 0 {
		return field
	}
	emails := strings.Join(addrs, ", ") + ", "
	c := strings.TrimSpace(field)
	switch {
	case c == "":
		return emails
	case strings.HasSuffix(c, ","):
		return c + " " + emails
	default:
		return c + ", " + emails
	}
}

// SplitAddresses splits a comma-separated field into trimmed non-empty entries
func SplitAddresses(field string) []string {
	var out []string
	for _, part := range strings.Split(field, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReplyAddress extracts the bare address from a From header such as `Alice <a@x.io>`
func ReplyAddress(from string) string {
	if m := angleAddr.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	return strings.TrimSpace(from)
}
