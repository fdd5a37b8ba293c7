package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/ajramos/echomail/internal/mailbox"
)

const recentSuggestionLimit = 5

// ContactBook merges remote contact search with the local recipient history. Remote results come
// first; local entries with an address already listed are dropped.
type ContactBook struct {
	remote ContactSearcher
	local  RecentRecipients
	logger *log.Logger
}

// NewContactBook creates a contact book. Either source may be nil.
func NewContactBook(remote ContactSearcher, local RecentRecipients, logger *log.Logger) *ContactBook {
	return &ContactBook{remote: remote, local: local, logger: logger}
}

func (b *ContactBook) SearchContacts(ctx context.Context, term string) ([]mailbox.Contact, error) {
	var remote []mailbox.Contact
	var remoteErr error
	if b.remote != nil {
		remote, remoteErr = b.remote.SearchContacts(ctx, term)
		if remoteErr != nil && (IsAborted(remoteErr) || ctx.Err() != nil) {
			return nil, remoteErr
		}
		if errors.Is(remoteErr, mailbox.ErrUnsupported) {
			remoteErr = nil
		}
	}

	var local []mailbox.Contact
	if b.local != nil {
		var err error
		local, err = b.local.SearchRecipients(ctx, term, recentSuggestionLimit)
		if err != nil && b.logger != nil {
			b.logger.Printf("contacts: recent recipients lookup failed: %v", err)
		}
	}

	if remoteErr != nil && len(local) == 0 {
		return nil, remoteErr
	}
	if remoteErr != nil && b.logger != nil {
		b.logger.Printf("contacts: remote lookup failed, using recent recipients: %v", remoteErr)
	}

	seen := make(map[string]struct{}, len(remote)+len(local))
	out := make([]mailbox.Contact, 0, len(remote)+len(local))
	for _, list := range [][]mailbox.Contact{remote, local} {
		for _, c := range list {
			key := strings.ToLower(strings.TrimSpace(c.Email))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}
