package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
)

const (
	// DefaultSuggestDelay is how long typing must pause before a contact lookup
	DefaultSuggestDelay = 300 * time.Millisecond
	// MinSuggestTerm is the shortest term that triggers a lookup
	MinSuggestTerm = 2
)

// Suggester debounces contact lookups for the recipient fields. Each keystroke cancels the
// pending timer and aborts any lookup still in flight.
type Suggester struct {
	searcher ContactSearcher
	delay    time.Duration
	logger   *log.Logger
	onUpdate func(Field, []mailbox.Contact)

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	field   Field
	results []mailbox.Contact
	closed  bool
	wg      sync.WaitGroup
}

// NewSuggester creates a suggester. A non-positive delay uses DefaultSuggestDelay.
func NewSuggester(searcher ContactSearcher, delay time.Duration, logger *log.Logger) *Suggester {
	if delay <= 0 {
		delay = DefaultSuggestDelay
	}
	return &Suggester{searcher: searcher, delay: delay, logger: logger}
}

// OnUpdate registers a callback fired whenever the suggestion list changes
func (s *Suggester) OnUpdate(fn func(Field, []mailbox.Contact)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Update reacts to the text of a recipient field changing
func (s *Suggester) Update(field Field, text string) {
	term := LastTerm(text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.gen++
	s.field = field
	if s.searcher == nil || !field.IsRecipient() || len([]rune(term)) < MinSuggestTerm {
		hadResults := len(s.results) > 0
		s.results = nil
		fn := s.onUpdate
		s.mu.Unlock()
		if hadResults && fn != nil {
			fn(field, nil)
		}
		return
	}

	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.lookup(ctx, gen, field, term)
	})
	s.mu.Unlock()
}

// stopLocked cancels the pending timer and any in-flight lookup
func (s *Suggester) stopLocked() {
	if s.timer != nil {
		if s.timer.Stop() {
			s.wg.Done()
		}
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Suggester) lookup(ctx context.Context, gen uint64, field Field, term string) {
	contacts, err := s.searcher.SearchContacts(ctx, term)
	if err != nil {
		if IsAborted(err) || ctx.Err() != nil {
			return
		}
		if s.logger != nil {
			s.logger.Printf("contact search for %q failed: %v", term, err)
		}
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.results = contacts
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn(field, contacts)
	}
}

// Suggestions returns the field the current suggestions belong to and the suggestions
func (s *Suggester) Suggestions() (Field, []mailbox.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field, append([]mailbox.Contact(nil), s.results...)
}

// Choose replaces the term being typed in text with the contact's address and clears the list
func (s *Suggester) Choose(text string, contact mailbox.Contact) string {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	s.results = nil
	s.mu.Unlock()
	return ReplaceLastTerm(text, contact.Email)
}

// Close cancels pending work and waits for running lookups to return
func (s *Suggester) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// LastTerm returns the trimmed text after the last comma
func LastTerm(text string) string {
	if text == "" {
		return ""
	}
	parts := strings.Split(text, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// ReplaceLastTerm swaps the text after the last comma for email and normalizes separators
func ReplaceLastTerm(text, email string) string {
	parts := strings.Split(text, ",")
	parts = append(parts[:len(parts)-1], " "+email)
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ") + ", "
}
