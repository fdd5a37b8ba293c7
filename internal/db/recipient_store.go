package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
)

// RecipientSource tags contacts that come from the local send history
const RecipientSource = "recent"

const defaultRecipientLimit = 8

// RecipientStore remembers addresses mail was sent to, for recipient suggestions
type RecipientStore struct {
	db *sql.DB
}

// NewRecipientStore creates a recipient store from a base store
func NewRecipientStore(store *Store) *RecipientStore {
	if store == nil {
		return nil
	}
	return &RecipientStore{db: store.DB()}
}

// RecordRecipients upserts every parseable address in addrs. Entries may be bare addresses or
// "Name <addr>" forms; unparseable entries are skipped.
func (rs *RecipientStore) RecordRecipients(ctx context.Context, addrs []string, at time.Time) error {
	if rs == nil || rs.db == nil {
		return fmt.Errorf("recipient store not initialized")
	}
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, raw := range addrs {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO recent_recipients(email, name, last_used, use_count)
VALUES(?,?,?,1)
ON CONFLICT(email) DO UPDATE SET
  name = CASE WHEN excluded.name != '' THEN excluded.name ELSE recent_recipients.name END,
  last_used = excluded.last_used,
  use_count = recent_recipients.use_count + 1;`,
			strings.ToLower(addr.Address), addr.Name, at.Unix())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record recipient: %w", err)
		}
	}
	return tx.Commit()
}

// SearchRecipients returns recently used recipients whose address or name contains term,
// most recently used first
func (rs *RecipientStore) SearchRecipients(ctx context.Context, term string, limit int) ([]mailbox.Contact, error) {
	if rs == nil || rs.db == nil {
		return nil, fmt.Errorf("recipient store not initialized")
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultRecipientLimit
	}
	like := "%" + escapeLike(term) + "%"
	rows, err := rs.db.QueryContext(ctx, `SELECT email, name FROM recent_recipients
WHERE email LIKE ? ESCAPE '\' OR lower(name) LIKE ? ESCAPE '\'
ORDER BY last_used DESC, use_count DESC
LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search recipients: %w", err)
	}
	defer rows.Close()

	var out []mailbox.Contact
	for rows.Next() {
		var c mailbox.Contact
		if err := rows.Scan(&c.Email, &c.Name); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		c.Source = RecipientSource
		out = append(out, c)
	}
	return out, rows.Err()
}

// ForgetRecipient removes an address from the history
func (rs *RecipientStore) ForgetRecipient(ctx context.Context, email string) error {
	if rs == nil || rs.db == nil {
		return fmt.Errorf("recipient store not initialized")
	}
	_, err := rs.db.ExecContext(ctx, `DELETE FROM recent_recipients WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
