package render

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/mattn/go-runewidth"
)

// LoadMoreRow is the text of the sentinel row appended below a list that has more pages
const LoadMoreRow = "Load more..."

const (
	senderWidth = 22
	dateWidth   = 8
	minRowWidth = 40
)

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	time.RFC3339,
}

// ParseDate parses the date strings the mail server emits. The zero time is returned when none
// of the known layouts match.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SenderName returns the display name of an address like "Name <a@b>", or the address itself
func SenderName(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		if addr.Name != "" {
			return addr.Name
		}
		return addr.Address
	}
	if i := strings.Index(from, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.TrimSpace(from)
}

// FormatListRow formats a summary as a fixed-width row: marker, sender, subject and date.
// In sent views the recipient is shown in place of the sender.
func FormatListRow(m mailbox.MessageSummary, maxWidth int, showRecipient bool, now time.Time) string {
	if maxWidth < minRowWidth {
		maxWidth = minRowWidth
	}

	who := m.From
	if showRecipient {
		who = m.To
	}
	name := SenderName(who)
	if name == "" {
		name = "(No sender)"
	}
	subject := m.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(No subject)"
	}

	marker := " "
	switch {
	case m.Scheduled:
		marker = "@"
	case m.Unread:
		marker = "*"
	}

	subjectWidth := maxWidth - senderWidth - dateWidth - 8
	if subjectWidth < 10 {
		subjectWidth = 10
	}
	return fmt.Sprintf("%s %s | %s | %s",
		marker,
		fitWidth(name, senderWidth),
		fitWidth(subject, subjectWidth),
		fitWidth(RelativeTime(ParseDate(m.Date), now), dateWidth))
}

// FormatHeader renders the header block of the detail pane
func FormatHeader(m *mailbox.MessageDetail) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
	fmt.Fprintf(&b, "From: %s\n", m.From)
	if strings.TrimSpace(m.To) != "" {
		fmt.Fprintf(&b, "To: %s\n", m.To)
	}
	if t := ParseDate(m.Date); !t.IsZero() {
		fmt.Fprintf(&b, "Date: %s", t.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	} else {
		fmt.Fprintf(&b, "Date: %s", m.Date)
	}
	return b.String()
}

// RelativeTime formats t relative to now: "now", "5m", "3h", "2d", then "Jan 2". Future times
// (scheduled sends) use the date.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2")
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// fitWidth truncates by display width and pads on the right to exactly width cells
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "...")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
