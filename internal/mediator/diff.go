package mediator

import (
	"slices"

	"github.com/ajramos/echomail/internal/mailbox"
)

// Diff is the field-level change between two consecutive snapshots
type Diff struct {
	Previous mailbox.Snapshot
	Current  mailbox.Snapshot

	// RecipientChanged is set when the current recipient is non-empty and differs from the previous one
	RecipientChanged bool
	// CCChanged and BCCChanged are set when the list changed and the new list is non-empty
	CCChanged  bool
	BCCChanged bool
	// DescriptionChanged is set when the description changed to a non-empty value
	DescriptionChanged bool
}

// Compute diffs cur against prev. A nil list and an empty list compare equal.
func Compute(prev, cur mailbox.Snapshot) Diff {
	return Diff{
		Previous:           prev,
		Current:            cur,
		RecipientChanged:   cur.RecipientName != "" && cur.RecipientName != prev.RecipientName,
		CCChanged:          len(cur.CC) > 0 && !slices.Equal(prev.CC, cur.CC),
		BCCChanged:         len(cur.BCC) > 0 && !slices.Equal(prev.BCC, cur.BCC),
		DescriptionChanged: cur.Description != "" && cur.Description != prev.Description,
	}
}

// Empty reports whether the diff carries nothing to merge
func (d Diff) Empty() bool {
	return !d.RecipientChanged && !d.CCChanged && !d.BCCChanged && !d.DescriptionChanged
}
