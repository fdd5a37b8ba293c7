package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/mediator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	mu          sync.Mutex
	snap        mailbox.Snapshot
	composeCtx  mailbox.ComposeContext
	generated   mailbox.GeneratedEmail
	generateErr error
	generations int
	advanced    []string
	genGate     chan struct{}
}

func (a *fakeAssistant) MediatorState(ctx context.Context) (*mailbox.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.snap
	return &s, nil
}

func (a *fakeAssistant) setSnapshot(s mailbox.Snapshot) {
	a.mu.Lock()
	a.snap = s
	a.mu.Unlock()
}

func (a *fakeAssistant) AdvanceMediator(ctx context.Context, input string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advanced = append(a.advanced, input)
	return nil
}

func (a *fakeAssistant) ComposeContext(ctx context.Context) (*mailbox.ComposeContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.composeCtx
	return &c, nil
}

func (a *fakeAssistant) GenerateEmail(ctx context.Context) (*mailbox.GeneratedEmail, error) {
	a.mu.Lock()
	gate := a.genGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generations++
	if a.generateErr != nil {
		return nil, a.generateErr
	}
	g := a.generated
	return &g, nil
}

func (a *fakeAssistant) generationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations
}

func TestAppendAddresses(t *testing.T) {
	tests := []struct {
		name  string
		field string
		addrs []string
		want  string
	}{
		{"empty_field", "", []string{"a@x.com"}, "a@x.com, "},
		{"trailing_separator", "b@y.com, ", []string{"a@x.com"}, "b@y.com, a@x.com, "},
		{"no_separator", "b@y.com", []string{"a@x.com", "c@x.com"}, "b@y.com, a@x.com, c@x.com, "},
		{"whitespace_only", "   ", []string{"a@x.com"}, "a@x.com, "},
		{"nothing_to_add", "b@y.com", nil, "b@y.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppendAddresses(tt.field, tt.addrs))
		})
	}
}

func TestReplyAddress(t *testing.T) {
	assert.Equal(t, "alice@x.io", ReplyAddress("Alice Smith <alice@x.io>"))
	assert.Equal(t, "bob@x.io", ReplyAddress(" bob@x.io "))
}

// cc merge is additive and keeps the user's own entries
func TestCompose_ApplyDiffAppendsCC(t *testing.T) {
	s := NewComposeService(newFakeBackend(), nil, nil, nil)
	require.NoError(t, s.SetField(FieldCC, "b@y.com, "))

	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{CC: []string{}}, mailbox.Snapshot{CC: []string{"a@x.com"}}))

	d := s.Draft()
	assert.Equal(t, "b@y.com, a@x.com, ", d.CC)
	assert.True(t, d.ShowCCBCC)
}

func TestCompose_ApplyDiffBCC(t *testing.T) {
	s := NewComposeService(newFakeBackend(), nil, nil, nil)
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{BCC: []string{"z@x.io"}}))
	assert.Equal(t, "z@x.io, ", s.Draft().BCC)

	// an unchanged list does not append again
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{BCC: []string{"z@x.io"}}, mailbox.Snapshot{BCC: []string{"z@x.io"}}))
	assert.Equal(t, "z@x.io, ", s.Draft().BCC)
}

func TestCompose_ApplyDiffRecipient(t *testing.T) {
	s := NewComposeService(newFakeBackend(), nil, nil, nil)

	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{RecipientName: "Alice"}))
	assert.Equal(t, "Alice", s.Draft().To)

	// the user edits the recipient; an unchanged snapshot leaves the edit alone
	require.NoError(t, s.SetField(FieldTo, "carol@x.io"))
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{RecipientName: "Alice"}, mailbox.Snapshot{RecipientName: "Alice"}))
	assert.Equal(t, "carol@x.io", s.Draft().To)

	// a later assistant change overwrites it again
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{RecipientName: "Alice"}, mailbox.Snapshot{RecipientName: "Bob"}))
	assert.Equal(t, "Bob", s.Draft().To)
}

func TestCompose_DescriptionResetsGenerated(t *testing.T) {
	a := &fakeAssistant{generated: mailbox.GeneratedEmail{Subject: "Lunch", Body: "Hi Alice"}}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{Description: "invite alice to lunch"}))
	ok, err := s.MaybeGenerate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	d := s.Draft()
	assert.Equal(t, "Lunch", d.Subject)
	assert.Equal(t, "Hi Alice", d.Body)
	assert.True(t, d.Generated)

	ok, err = s.MaybeGenerate(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "generated drafts are not regenerated")

	s.ApplyDiff(mediator.Compute(
		mailbox.Snapshot{Description: "invite alice to lunch"},
		mailbox.Snapshot{Description: "invite alice to dinner"},
	))
	assert.False(t, s.Draft().Generated)
	ok, err = s.MaybeGenerate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, a.generationCount())
}

func TestCompose_MaybeGenerateRequiresOpenAndDescription(t *testing.T) {
	a := &fakeAssistant{generated: mailbox.GeneratedEmail{Subject: "s", Body: "b"}}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	ctx := context.Background()

	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{Description: "d"}))
	ok, err := s.MaybeGenerate(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "compose is closed")

	s2 := NewComposeService(newFakeBackend(), a, nil, nil)
	require.NoError(t, s2.Open(ctx))
	ok, err = s2.MaybeGenerate(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no description yet")
	assert.Equal(t, 0, a.generationCount())
}

func TestCompose_OpenGeneratesFromKnownDescription(t *testing.T) {
	a := &fakeAssistant{
		composeCtx: mailbox.ComposeContext{RecipientName: "Alice"},
		generated:  mailbox.GeneratedEmail{Subject: "Hello", Body: "Body"},
	}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{Description: "say hello"}))

	require.NoError(t, s.Open(context.Background()))
	d := s.Draft()
	assert.Equal(t, "Alice", d.To)
	assert.Equal(t, "Hello", d.Subject)
	assert.True(t, d.Generated)
	require.NotNil(t, s.AssistantContext())
	assert.Equal(t, "Alice", s.AssistantContext().RecipientName)
}

func TestCompose_DescriptionDuringGenerationNeedsAnotherPass(t *testing.T) {
	gate := make(chan struct{})
	a := &fakeAssistant{generated: mailbox.GeneratedEmail{Subject: "s", Body: "b"}}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{Description: "one"}))

	a.mu.Lock()
	a.genGate = gate
	a.mu.Unlock()
	done := make(chan bool, 1)
	go func() {
		ok, _ := s.MaybeGenerate(ctx)
		done <- ok
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.generating
	}, time.Second, time.Millisecond)

	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{Description: "one"}, mailbox.Snapshot{Description: "two"}))
	close(gate)
	assert.True(t, <-done)
	assert.False(t, s.Draft().Generated)
}

func TestCompose_GenerateFailureKeepsDraft(t *testing.T) {
	a := &fakeAssistant{generateErr: &mailbox.ProtocolError{Op: "generate email", Reason: "Description not ready"}}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SetField(FieldSubject, "mine"))
	s.ApplyDiff(mediator.Compute(mailbox.Snapshot{}, mailbox.Snapshot{Description: "d"}))

	_, err := s.MaybeGenerate(ctx)
	var pe *mailbox.ProtocolError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "mine", s.Draft().Subject)
	assert.False(t, s.Draft().Generated)
}

func TestCompose_SetFieldUnknown(t *testing.T) {
	s := NewComposeService(newFakeBackend(), nil, nil, nil)
	assert.ErrorIs(t, s.SetField(Field("from"), "x"), ErrInvalidInput)
}

func TestCompose_Attachments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
	s := NewComposeService(newFakeBackend(), nil, nil, nil)

	require.NoError(t, s.AddAttachment(path))
	assert.ErrorIs(t, s.AddAttachment(dir), ErrInvalidInput)
	assert.Error(t, s.AddAttachment(filepath.Join(dir, "missing")))

	d := s.Draft()
	require.Len(t, d.Attachments, 1)
	assert.Equal(t, "report.pdf", d.Attachments[0].Filename)
	assert.Equal(t, int64(4), d.Attachments[0].Size)

	assert.ErrorIs(t, s.RemoveAttachment(3), ErrInvalidInput)
	require.NoError(t, s.RemoveAttachment(0))
	assert.Empty(t, s.Draft().Attachments)
}

func TestCompose_SendBuildsRequestAndResets(t *testing.T) {
	f := newFakeBackend()
	s := NewComposeService(f, nil, NewLabelCache(nil), nil)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SetField(FieldTo, "bob@x.io"))
	require.NoError(t, s.SetField(FieldCC, "c@x.io, "))
	require.NoError(t, s.SetField(FieldSubject, "Hi"))
	require.NoError(t, s.SetField(FieldBody, "Body"))
	at := time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetSchedule(at))
	assert.Error(t, s.SetSchedule(time.Time{}))

	res, err := s.Send(ctx)
	require.NoError(t, err)
	assert.True(t, res.Scheduled)

	sent := f.sentRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob@x.io", sent[0].To)
	assert.Equal(t, "c@x.io, ", sent[0].CC)
	assert.Equal(t, at, sent[0].ScheduledAt)

	assert.Equal(t, Draft{}, s.Draft())
	assert.False(t, s.IsOpen())
}

func TestCompose_SendFailureKeepsDraft(t *testing.T) {
	f := newFakeBackend()
	f.sendErr = &mailbox.NetworkError{Op: "send email", StatusCode: 500}
	cache := NewLabelCache(nil)
	cache.Put(mailbox.LabelSent, mailbox.PageResult{Messages: summaries("s")})
	s := NewComposeService(f, nil, cache, nil)
	require.NoError(t, s.SetField(FieldTo, "bob@x.io"))
	require.NoError(t, s.SetField(FieldSubject, "Hi"))

	_, err := s.Send(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "bob@x.io", s.Draft().To)
	_, ok := cache.Get(mailbox.LabelSent)
	assert.True(t, ok)
}

func TestCompose_SendInlineReply(t *testing.T) {
	f := newFakeBackend()
	s := NewComposeService(f, nil, nil, nil)
	msg := &mailbox.MessageDetail{MessageSummary: mailbox.MessageSummary{ID: "m1", From: "Al <al@x.io>", Subject: "Q"}}

	assert.ErrorIs(t, s.SendInlineReply(context.Background(), msg, "  "), ErrMissingField)
	require.NoError(t, s.SendInlineReply(context.Background(), msg, "Sure"))

	sent := f.sentRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, "al@x.io", sent[0].To)
	assert.Equal(t, "m1", sent[0].ThreadID)
	assert.Equal(t, "m1", sent[0].MessageID)
}

func TestCompose_Advance(t *testing.T) {
	a := &fakeAssistant{}
	s := NewComposeService(newFakeBackend(), a, nil, nil)
	require.NoError(t, s.Advance(context.Background(), "email bob about friday"))
	assert.ErrorIs(t, s.Advance(context.Background(), ""), ErrInvalidInput)
	assert.Equal(t, []string{"email bob about friday"}, a.advanced)

	noAssistant := NewComposeService(newFakeBackend(), nil, nil, nil)
	assert.ErrorIs(t, noAssistant.Advance(context.Background(), "x"), mailbox.ErrUnsupported)
}

type recordedRecipients struct {
	mu    sync.Mutex
	addrs []string
}

func (r *recordedRecipients) RecordRecipients(ctx context.Context, addrs []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = append(r.addrs, addrs...)
	return nil
}

func TestCompose_SendRecordsRecipients(t *testing.T) {
	f := newFakeBackend()
	s := NewComposeService(f, nil, nil, nil)
	rec := &recordedRecipients{}
	s.SetRecipientLog(rec)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SetField(FieldTo, "bob@x.io, Carol <c@x.io>"))
	require.NoError(t, s.SetField(FieldBCC, "d@x.io, "))
	require.NoError(t, s.SetField(FieldSubject, "Hi"))
	_, err := s.Send(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"bob@x.io", "Carol <c@x.io>", "d@x.io"}, rec.addrs)
}

func TestSplitAddresses(t *testing.T) {
	assert.Nil(t, SplitAddresses(" , "))
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, SplitAddresses("a@x.io, ,b@x.io, "))
}
