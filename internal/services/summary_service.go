package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/render"
)

const defaultSummaryInputLimit = 8000

// SummaryServiceImpl implements SummaryService
type SummaryServiceImpl struct {
	summarizer Summarizer
	cache      *SummaryCache
	maxInput   int
	logger     *log.Logger
}

// NewSummaryService creates a summary service. cache may be nil.
func NewSummaryService(summarizer Summarizer, cache *SummaryCache, maxInput int, logger *log.Logger) *SummaryServiceImpl {
	if maxInput <= 0 {
		maxInput = defaultSummaryInputLimit
	}
	return &SummaryServiceImpl{
		summarizer: summarizer,
		cache:      cache,
		maxInput:   maxInput,
		logger:     logger,
	}
}

// SummaryInput builds the text sent for summarization: the subject line, a blank line and the
// body reduced to plain text
func SummaryInput(msg *mailbox.MessageDetail) string {
	body := msg.Body
	if msg.IsHTML {
		body = render.HTMLToText(body)
	}
	return fmt.Sprintf("Subject: %s\n\n%s", msg.Subject, body)
}

func (s *SummaryServiceImpl) Summarize(ctx context.Context, accountEmail string, msg *mailbox.MessageDetail) (*SummaryResult, error) {
	if s.summarizer == nil {
		return nil, mailbox.ErrUnsupported
	}
	if msg == nil {
		return nil, ErrNoMessageOpen
	}

	start := time.Now()

	if cached, found, err := s.cache.Get(ctx, accountEmail, msg.ID); err == nil && found {
		return &SummaryResult{Summary: cached, FromCache: true, Duration: time.Since(start)}, nil
	} else if err != nil && !errors.Is(err, ErrCacheUnavailable) {
		s.logf("summary cache lookup failed: %v", err)
	}

	input := SummaryInput(msg)
	if r := []rune(input); len(r) > s.maxInput {
		input = string(r[:s.maxInput])
	}
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: nothing to summarize", ErrInvalidInput)
	}

	summary, err := s.summarizer.Summarize(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	if err := s.cache.Save(ctx, accountEmail, msg.ID, summary); err != nil && !errors.Is(err, ErrCacheUnavailable) {
		s.logf("summary cache save failed: %v", err)
	}

	return &SummaryResult{Summary: summary, Duration: time.Since(start)}, nil
}

func (s *SummaryServiceImpl) Forget(ctx context.Context, accountEmail, messageID string) error {
	return s.cache.Invalidate(ctx, accountEmail, messageID)
}

func (s *SummaryServiceImpl) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
