package mediator

import (
	"testing"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		prev mailbox.Snapshot
		cur  mailbox.Snapshot
		want Diff
	}{
		{
			name: "no_change",
			prev: mailbox.Snapshot{RecipientName: "Alice", CC: []string{"a@x.io"}},
			cur:  mailbox.Snapshot{RecipientName: "Alice", CC: []string{"a@x.io"}},
			want: Diff{},
		},
		{
			name: "recipient_set",
			prev: mailbox.Snapshot{},
			cur:  mailbox.Snapshot{RecipientName: "Alice"},
			want: Diff{RecipientChanged: true},
		},
		{
			name: "recipient_cleared_is_not_a_change",
			prev: mailbox.Snapshot{RecipientName: "Alice"},
			cur:  mailbox.Snapshot{},
			want: Diff{},
		},
		{
			name: "cc_added",
			prev: mailbox.Snapshot{CC: nil},
			cur:  mailbox.Snapshot{CC: []string{"a@x.com"}},
			want: Diff{CCChanged: true},
		},
		{
			name: "nil_and_empty_lists_are_equal",
			prev: mailbox.Snapshot{CC: nil, BCC: []string{}},
			cur:  mailbox.Snapshot{CC: []string{}, BCC: nil},
			want: Diff{},
		},
		{
			name: "bcc_reordered",
			prev: mailbox.Snapshot{BCC: []string{"a@x.io", "b@x.io"}},
			cur:  mailbox.Snapshot{BCC: []string{"b@x.io", "a@x.io"}},
			want: Diff{BCCChanged: true},
		},
		{
			name: "description_changed",
			prev: mailbox.Snapshot{Description: "lunch"},
			cur:  mailbox.Snapshot{Description: "dinner"},
			want: Diff{DescriptionChanged: true},
		},
	}

	ignoreSnapshots := cmpopts.IgnoreFields(Diff{}, "Previous", "Current")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.prev, tt.cur)
			if diff := cmp.Diff(tt.want, got, ignoreSnapshots); diff != "" {
				t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
			}
			if got.Empty() != tt.want.Empty() {
				t.Errorf("Empty() = %v, want %v", got.Empty(), tt.want.Empty())
			}
		})
	}
}
