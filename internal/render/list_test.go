package render

import (
	"strings"
	"testing"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", SenderName("Ada Lovelace <ada@example.com>"))
	assert.Equal(t, "ada@example.com", SenderName("ada@example.com"))
	assert.Equal(t, "Broken", SenderName(`"Broken" <not an address`))
	assert.Equal(t, "", SenderName(""))
}

func TestParseDate(t *testing.T) {
	got := ParseDate("Tue, 3 Sep 2024 10:15:00 +0200")
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.September, got.Month())

	got = ParseDate("2024-09-03T08:15:00Z")
	assert.Equal(t, 8, got.Hour())

	assert.True(t, ParseDate("yesterday").IsZero())
	assert.True(t, ParseDate("").IsZero())
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-50 * time.Hour), "2d"},
		{now.Add(-30 * 24 * time.Hour), "Aug 11"},
		{now.Add(48 * time.Hour), "Sep 12"},
		{time.Time{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(tt.at, now))
	}
}

func TestFormatListRow(t *testing.T) {
	now := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	m := mailbox.MessageSummary{
		From:    "Ada Lovelace <ada@example.com>",
		To:      "bob@example.com",
		Subject: "Engines",
		Date:    "Tue, 10 Sep 2024 11:00:00 +0000",
		Unread:  true,
	}

	row := FormatListRow(m, 80, false, now)
	assert.True(t, strings.HasPrefix(row, "* Ada Lovelace"))
	assert.Contains(t, row, "| Engines")
	assert.True(t, strings.HasSuffix(strings.TrimRight(row, " "), "1h"))
	assert.Equal(t, 80, runewidth.StringWidth(row))

	sent := FormatListRow(m, 80, true, now)
	assert.Contains(t, sent, "bob@example.com")

	m.Subject = ""
	m.Scheduled = true
	row = FormatListRow(m, 10, false, now)
	assert.True(t, strings.HasPrefix(row, "@ "))
	assert.Contains(t, row, "(No subject)")
}

func TestFormatHeader(t *testing.T) {
	h := FormatHeader(&mailbox.MessageDetail{MessageSummary: mailbox.MessageSummary{
		Subject: "Hi", From: "a@x.io", Date: "not a date",
	}})
	assert.Equal(t, "Subject: Hi\nFrom: a@x.io\nDate: not a date", h)
	assert.Equal(t, "", FormatHeader(nil))
}

func TestFitWidth_Wide(t *testing.T) {
	s := fitWidth("日本語のメール件名", 10)
	assert.Equal(t, 10, runewidth.StringWidth(s))
	assert.Equal(t, "", fitWidth("x", 0))
}
