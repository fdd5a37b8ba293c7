package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SummaryStore persists message summaries per (account, message)
type SummaryStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSummaryStore creates a summary store from a base store
func NewSummaryStore(store *Store) *SummaryStore {
	if store == nil {
		return nil
	}
	return &SummaryStore{db: store.DB(), now: time.Now}
}

// SaveSummary upserts the summary for (accountEmail, messageID)
func (ss *SummaryStore) SaveSummary(ctx context.Context, accountEmail, messageID, summary string) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("summary store not initialized")
	}
	if strings.TrimSpace(accountEmail) == "" || strings.TrimSpace(messageID) == "" || strings.TrimSpace(summary) == "" {
		return fmt.Errorf("invalid summary inputs")
	}
	_, err := ss.db.ExecContext(ctx, `INSERT INTO summaries(account_email, message_id, summary, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(account_email, message_id) DO UPDATE SET summary=excluded.summary, updated_at=excluded.updated_at;
`, accountEmail, messageID, summary, ss.now().Unix())
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// LoadSummary returns the stored summary and whether one exists
func (ss *SummaryStore) LoadSummary(ctx context.Context, accountEmail, messageID string) (string, bool, error) {
	if ss == nil || ss.db == nil {
		return "", false, fmt.Errorf("summary store not initialized")
	}
	var out string
	err := ss.db.QueryRowContext(ctx, `SELECT summary FROM summaries WHERE account_email=? AND message_id=?`, accountEmail, messageID).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load summary: %w", err)
	}
	return out, true, nil
}

// DeleteSummary removes the summary for (accountEmail, messageID). Missing rows are not an error.
func (ss *SummaryStore) DeleteSummary(ctx context.Context, accountEmail, messageID string) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("summary store not initialized")
	}
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM summaries WHERE account_email=? AND message_id=?`, accountEmail, messageID); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

// PurgeOlderThan drops summaries not refreshed since cutoff and returns how many were removed
func (ss *SummaryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if ss == nil || ss.db == nil {
		return 0, fmt.Errorf("summary store not initialized")
	}
	res, err := ss.db.ExecContext(ctx, `DELETE FROM summaries WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge summaries: %w", err)
	}
	return res.RowsAffected()
}
