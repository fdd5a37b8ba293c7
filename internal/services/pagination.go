package services

import (
	"fmt"

	"github.com/ajramos/echomail/internal/mailbox"
)

// Sequencer tracks the continuation cursor of the active list and allows at most one continuation
// fetch in flight. It holds no lock of its own; the navigator owns it under its state mutex and
// replaces its contents whenever a new first page is committed. Every Reset starts a new
// generation; a continuation claimed under an older generation must not touch the list.
type Sequencer struct {
	gen       uint64
	cursor    string
	inFlight  bool
	pending   string
	disabled  bool
	requested map[string]struct{}
}

// NewSequencer returns a sequencer with no cursor
func NewSequencer() *Sequencer {
	return &Sequencer{requested: make(map[string]struct{})}
}

// Reset installs the cursor of a freshly committed first page. Lists that do not paginate never
// hand out a cursor.
func (s *Sequencer) Reset(first mailbox.PageResult, paginated bool) {
	s.gen++
	s.cursor = ""
	if paginated {
		s.cursor = first.NextPageToken
	}
	s.inFlight = false
	s.pending = ""
	s.disabled = !paginated
	s.requested = make(map[string]struct{})
}

// Cursor returns the cursor of the next page, or "" when the list is complete
func (s *Sequencer) Cursor() string { return s.cursor }

// Generation identifies the list the cursor belongs to
func (s *Sequencer) Generation() uint64 { return s.gen }

// Owns reports whether a continuation claimed under gen still belongs to the current list
func (s *Sequencer) Owns(gen uint64) bool { return gen == s.gen }

// InFlight reports whether a continuation fetch is outstanding
func (s *Sequencer) InFlight() bool { return s.inFlight }

// Begin claims the current cursor for one continuation fetch
func (s *Sequencer) Begin() (string, error) {
	switch {
	case s.disabled || s.cursor == "":
		return "", ErrNoMorePages
	case s.inFlight:
		return "", ErrPaginationBusy
	}
	if _, seen := s.requested[s.cursor]; seen {
		return "", fmt.Errorf("%w: %s", ErrCursorRequested, s.cursor)
	}
	s.requested[s.cursor] = struct{}{}
	s.inFlight = true
	s.pending = s.cursor
	return s.cursor, nil
}

// Complete appends a continuation page to displayed and advances the cursor. Messages whose ids
// are already displayed are skipped.
func (s *Sequencer) Complete(displayed []mailbox.MessageSummary, page mailbox.PageResult) []mailbox.MessageSummary {
	s.inFlight = false
	s.pending = ""
	s.cursor = page.NextPageToken
	return AppendUnique(displayed, page.Messages)
}

// Fail releases the in-flight claim. The cursor may be requested again by a later observation.
func (s *Sequencer) Fail(cursor string) {
	s.inFlight = false
	s.pending = ""
	delete(s.requested, cursor)
}

// Abandon forgets an in-flight continuation whose response will be discarded. The cursor is
// kept but a new generation starts, so the abandoned fetch no longer owns the list.
func (s *Sequencer) Abandon() {
	if s.inFlight {
		s.Fail(s.pending)
	}
	s.gen++
}

// AppendUnique appends the messages of next whose ids are not already in list, in order
func AppendUnique(list, next []mailbox.MessageSummary) []mailbox.MessageSummary {
	seen := make(map[string]struct{}, len(list)+len(next))
	for _, m := range list {
		seen[m.ID] = struct{}{}
	}
	for _, m := range next {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		list = append(list, m)
	}
	return list
}
