package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewSummaryCache_NilStore(t *testing.T) {
	cache := NewSummaryCache(nil)
	ctx := context.Background()

	summary, found, err := cache.Get(ctx, "test@example.com", "msg123")
	assert.Equal(t, "", summary)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Contains(t, err.Error(), "cache store not available")

	assert.ErrorIs(t, cache.Save(ctx, "test@example.com", "msg123", "s"), ErrCacheUnavailable)
	assert.ErrorIs(t, cache.Invalidate(ctx, "test@example.com", "msg123"), ErrCacheUnavailable)

	var zero *SummaryCache
	_, _, err = zero.Get(ctx, "test@example.com", "msg123")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestSummaryCache_ValidationErrors(t *testing.T) {
	store := new(MockSummaryStore)
	cache := NewSummaryCache(store)
	ctx := context.Background()

	tests := []struct {
		name          string
		call          func() error
		expectedError string
	}{
		{
			name:          "get_empty_account_email",
			call:          func() error { _, _, err := cache.Get(ctx, "", "msg123"); return err },
			expectedError: "accountEmail and messageID cannot be empty",
		},
		{
			name:          "get_whitespace_message_id",
			call:          func() error { _, _, err := cache.Get(ctx, "test@example.com", "   "); return err },
			expectedError: "accountEmail and messageID cannot be empty",
		},
		{
			name:          "save_empty_summary",
			call:          func() error { return cache.Save(ctx, "test@example.com", "msg123", "") },
			expectedError: "accountEmail, messageID, and summary cannot be empty",
		},
		{
			name:          "save_empty_message_id",
			call:          func() error { return cache.Save(ctx, "test@example.com", "", "summary") },
			expectedError: "accountEmail, messageID, and summary cannot be empty",
		},
		{
			name:          "invalidate_empty_account_email",
			call:          func() error { return cache.Invalidate(ctx, "\t", "msg123") },
			expectedError: "accountEmail and messageID cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}

	store.AssertNotCalled(t, "LoadSummary", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SaveSummary", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSummaryCache_StoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := new(MockSummaryStore)
	store.On("LoadSummary", ctx, "a@x.io", "m1").Return("", false, boom)
	store.On("SaveSummary", ctx, "a@x.io", "m1", "s").Return(boom)
	store.On("DeleteSummary", ctx, "a@x.io", "m1").Return(boom)
	cache := NewSummaryCache(store)

	_, _, err := cache.Get(ctx, "a@x.io", "m1")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to load summary from cache")

	err = cache.Save(ctx, "a@x.io", "m1", "s")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to save summary to cache")

	err = cache.Invalidate(ctx, "a@x.io", "m1")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to invalidate summary")
}

func TestSummaryCache_LongInputsPassValidation(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("a", 10000)
	store := new(MockSummaryStore)
	store.On("LoadSummary", ctx, long, "msg123").Return("", false, nil)
	store.On("SaveSummary", ctx, "test@example.com", "msg123", long).Return(nil)
	cache := NewSummaryCache(store)

	_, found, err := cache.Get(ctx, long, "msg123")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, cache.Save(ctx, "test@example.com", "msg123", long))
	store.AssertExpectations(t)
}

func BenchmarkSummaryCache_Get_ValidationOnly(b *testing.B) {
	cache := NewSummaryCache(nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = cache.Get(ctx, "test@example.com", "msg123")
	}
}
