package tui

import (
	"context"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/render"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

const defaultListWidth = 100

// listRow is one rendered line of the message list
type listRow struct {
	ID        string
	Text      string
	Unread    bool
	Scheduled bool
	Sentinel  bool
}

// buildRows turns a list snapshot into table rows. The load-more sentinel is appended when the
// server returned a continuation cursor and no first-page fetch is pending.
func buildRows(st services.ListState, width int, now time.Time) []listRow {
	if width <= 0 {
		width = defaultListWidth
	}
	showRecipient := st.Label == mailbox.LabelSent || st.Label == mailbox.LabelScheduled
	if st.Searching {
		showRecipient = false
	}

	rows := make([]listRow, 0, len(st.Messages)+1)
	for _, m := range st.Messages {
		rows = append(rows, listRow{
			ID:        m.ID,
			Text:      render.FormatListRow(m, width, showRecipient, now),
			Unread:    m.Unread,
			Scheduled: m.Scheduled,
		})
	}
	if st.NextPageToken != "" && !st.Loading && len(st.Messages) > 0 {
		text := render.LoadMoreRow
		if st.LoadingMore {
			text = "Loading more..."
		}
		rows = append(rows, listRow{Text: text, Sentinel: true})
	}
	return rows
}

// listTitle names the list pane after the active view
func listTitle(st services.ListState) string {
	switch {
	case st.Searching:
		return paneTitle("Search: %s (%d)", st.Query, len(st.Messages))
	case st.Loading:
		return paneTitle("%s (loading)", viewTitle(viewFor(st)))
	}
	return paneTitle("%s (%d)", viewTitle(viewFor(st)), len(st.Messages))
}

func viewFor(st services.ListState) services.View {
	for _, v := range services.LabelViews {
		if l, _ := v.Label(); l == st.Label {
			return v
		}
	}
	return st.View
}

func (a *App) renderList(st services.ListState) {
	table := a.views["list"].(*tview.Table)
	_, _, width, _ := table.GetInnerRect()
	rows := buildRows(st, width, time.Now())

	prevRow, _ := table.GetSelection()
	prevID := ""
	a.mu.Lock()
	if prevRow >= 0 && prevRow < len(a.rows) {
		prevID = a.rows[prevRow].ID
	}
	a.rows = rows
	a.mu.Unlock()

	table.SetSelectionChangedFunc(nil)
	defer table.SetSelectionChangedFunc(func(row, _ int) { a.rowHighlighted(row) })

	table.Clear()
	table.SetTitle(listTitle(st))
	if len(rows) == 0 {
		msg := "No messages"
		if st.Loading {
			msg = "Loading..."
		} else if !st.Authenticated {
			msg = "Not signed in"
		}
		table.SetCell(0, 0, tview.NewTableCell(msg).
			SetTextColor(a.colors.List.ReadColor.Color()).
			SetSelectable(false).
			SetExpansion(1))
		return
	}

	sel := 0
	for i, r := range rows {
		table.SetCell(i, 0, tview.NewTableCell(tview.Escape(r.Text)).
			SetTextColor(a.rowColor(r)).
			SetExpansion(1))
		if r.ID != "" && r.ID == prevID {
			sel = i
		}
	}
	if prevID == "" && prevRow > 0 && prevRow < len(rows) {
		sel = prevRow
	}
	table.Select(sel, 0)
}

func (a *App) rowColor(r listRow) tcell.Color {
	switch {
	case r.Sentinel:
		return a.colors.List.SentinelColor.Color()
	case r.Scheduled:
		return a.colors.List.ScheduledColor.Color()
	case r.Unread:
		return a.colors.List.UnreadColor.Color()
	}
	return a.colors.List.ReadColor.Color()
}

func (a *App) rowAt(row int) (listRow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if row < 0 || row >= len(a.rows) {
		return listRow{}, false
	}
	return a.rows[row], true
}

// rowHighlighted fires when the cursor moves. Reaching the sentinel counts as scrolling it into view.
func (a *App) rowHighlighted(row int) {
	r, ok := a.rowAt(row)
	if !ok || !r.Sentinel {
		return
	}
	a.loadMore()
}

// rowActivated fires on Enter
func (a *App) rowActivated(row int) {
	r, ok := a.rowAt(row)
	if !ok {
		return
	}
	if r.Sentinel {
		a.loadMore()
		return
	}
	id := r.ID
	a.do("open message", func(ctx context.Context) error { return a.nav.OpenMessage(ctx, id) })
	a.SetFocus(a.views["text"])
	a.highlightFocus(a.views["text"])
}

func (a *App) loadMore() {
	st := a.currentState()
	if len(st.Messages) == 0 {
		return
	}
	lastID := st.Messages[len(st.Messages)-1].ID
	a.do("load more", func(ctx context.Context) error { return a.nav.SentinelVisible(ctx, lastID) })
}
