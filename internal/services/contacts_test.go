package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRecents struct {
	contacts []mailbox.Contact
	err      error
	limit    int
}

func (s *staticRecents) SearchRecipients(ctx context.Context, term string, limit int) ([]mailbox.Contact, error) {
	s.limit = limit
	return s.contacts, s.err
}

func TestContactBook_MergesAndDedupes(t *testing.T) {
	local := &staticRecents{contacts: []mailbox.Contact{
		{Email: "AL@x.io", Source: "recent"},
		{Name: "Old friend", Email: "friend@x.io", Source: "recent"},
	}}
	book := NewContactBook(&fakeContacts{}, local, nil)

	got, err := book.SearchContacts(context.Background(), "al")
	require.NoError(t, err)
	assert.Equal(t, []mailbox.Contact{
		{Name: "Match al", Email: "al@x.io"},
		{Name: "Old friend", Email: "friend@x.io", Source: "recent"},
	}, got)
	assert.Equal(t, recentSuggestionLimit, local.limit)
}

func TestContactBook_RemoteFailureFallsBackToRecents(t *testing.T) {
	boom := errors.New("server down")
	local := &staticRecents{contacts: []mailbox.Contact{{Email: "friend@x.io"}}}

	got, err := NewContactBook(&fakeContacts{err: boom}, local, nil).SearchContacts(context.Background(), "fr")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = NewContactBook(&fakeContacts{err: boom}, &staticRecents{}, nil).SearchContacts(context.Background(), "fr")
	assert.ErrorIs(t, err, boom)
}

func TestContactBook_AbortIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	local := &staticRecents{contacts: []mailbox.Contact{{Email: "friend@x.io"}}}

	_, err := NewContactBook(&fakeContacts{block: true}, local, nil).SearchContacts(ctx, "fr")
	assert.True(t, IsAborted(err))
}

func TestContactBook_LocalOnly(t *testing.T) {
	local := &staticRecents{contacts: []mailbox.Contact{{Email: "friend@x.io"}, {Email: ""}}}
	got, err := NewContactBook(nil, local, nil).SearchContacts(context.Background(), "fr")
	require.NoError(t, err)
	assert.Equal(t, []mailbox.Contact{{Email: "friend@x.io"}}, got)

	got, err = NewContactBook(nil, nil, nil).SearchContacts(context.Background(), "fr")
	require.NoError(t, err)
	assert.Empty(t, got)
}
