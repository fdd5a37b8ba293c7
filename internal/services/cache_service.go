package services

import (
	"context"
	"fmt"
	"strings"
)

// SummaryCache validates and forwards summary cache operations to a SummaryStore. A nil store
// makes every operation fail with ErrCacheUnavailable.
type SummaryCache struct {
	store SummaryStore
}

// NewSummaryCache creates a summary cache on top of store
func NewSummaryCache(store SummaryStore) *SummaryCache {
	return &SummaryCache{store: store}
}

func (s *SummaryCache) Get(ctx context.Context, accountEmail, messageID string) (string, bool, error) {
	if s == nil || s.store == nil {
		return "", false, ErrCacheUnavailable
	}

	if strings.TrimSpace(accountEmail) == "" || strings.TrimSpace(messageID) == "" {
		return "", false, fmt.Errorf("%w: accountEmail and messageID cannot be empty", ErrInvalidInput)
	}

	summary, found, err := s.store.LoadSummary(ctx, accountEmail, messageID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load summary from cache: %w", err)
	}

	return summary, found, nil
}

func (s *SummaryCache) Save(ctx context.Context, accountEmail, messageID, summary string) error {
	if s == nil || s.store == nil {
		return ErrCacheUnavailable
	}

	if strings.TrimSpace(accountEmail) == "" || strings.TrimSpace(messageID) == "" || strings.TrimSpace(summary) == "" {
		return fmt.Errorf("%w: accountEmail, messageID, and summary cannot be empty", ErrInvalidInput)
	}

	if err := s.store.SaveSummary(ctx, accountEmail, messageID, summary); err != nil {
		return fmt.Errorf("failed to save summary to cache: %w", err)
	}

	return nil
}

func (s *SummaryCache) Invalidate(ctx context.Context, accountEmail, messageID string) error {
	if s == nil || s.store == nil {
		return ErrCacheUnavailable
	}

	if strings.TrimSpace(accountEmail) == "" || strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("%w: accountEmail and messageID cannot be empty", ErrInvalidInput)
	}

	if err := s.store.DeleteSummary(ctx, accountEmail, messageID); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}

	return nil
}
