package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajramos/echomail/internal/render"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

func (a *App) renderDetail(st services.ListState) {
	header := a.views["header"].(*tview.TextView)
	text := a.views["text"].(*tview.TextView)
	container := a.views["textContainer"].(*tview.Flex)

	msg := st.Selected
	if msg == nil {
		header.SetText("")
		text.SetText("")
		container.SetTitle(" Message ")
		a.renderSummary("")
		return
	}

	_, _, width, _ := text.GetInnerRect()
	if width <= 0 {
		width = 80
	}
	header.SetText(tview.Escape(render.FormatHeader(msg)))
	text.SetText(tview.Escape(render.FormatMessage(msg, render.FormatOptions{WrapWidth: width})))
	text.ScrollToBeginning()
	container.SetTitle(paneTitle("%s", truncate(msg.Subject, 60)))

	a.mu.Lock()
	summary, on := a.summary[msg.ID], a.summaryOn
	a.mu.Unlock()
	if !on {
		summary = ""
	}
	a.renderSummary(summary)
}

// renderSummary shows s in the summary pane, hiding the pane when s is empty
func (a *App) renderSummary(s string) {
	container := a.views["textContainer"].(*tview.Flex)
	view := a.views["summary"].(*tview.TextView)
	if s == "" {
		view.SetText("")
		container.ResizeItem(view, 0, 0)
		return
	}
	view.SetText(tview.Escape(s))
	lines := strings.Count(s, "\n") + 3
	if lines > 10 {
		lines = 10
	}
	container.ResizeItem(view, lines, 0)
}

// summarizeSelected requests a summary of the open message and shows it when it arrives
func (a *App) summarizeSelected() {
	if a.summaries == nil {
		a.showStatus("Summaries are disabled")
		return
	}
	st := a.currentState()
	msg := st.Selected
	if msg == nil {
		a.showStatus("Open a message first")
		return
	}

	a.mu.Lock()
	if a.summaryOn {
		a.summaryOn = false
		a.mu.Unlock()
		a.renderSummary("")
		return
	}
	a.summaryOn = true
	cached, ok := a.summary[msg.ID]
	a.mu.Unlock()
	if ok {
		a.renderSummary(cached)
		return
	}

	a.renderSummary("Summarizing...")
	account := st.Account.Email
	a.do("summarize", func(ctx context.Context) error {
		res, err := a.summaries.Summarize(ctx, account, msg)
		if err != nil {
			a.QueueUpdateDraw(func() { a.renderSummary("") })
			return fmt.Errorf("summarize: %w", err)
		}
		a.mu.Lock()
		a.summary[msg.ID] = res.Summary
		current := selectedID(a.state) == msg.ID && a.summaryOn
		a.mu.Unlock()
		a.logf("summary for %s ready in %s (cached=%v)", msg.ID, res.Duration, res.FromCache)
		if current {
			a.QueueUpdateDraw(func() { a.renderSummary(res.Summary) })
		}
		return nil
	})
}

// showQuickReply opens the one-line reply box under the open message
func (a *App) showQuickReply() {
	if a.compose == nil {
		a.showStatus("Replies are not available")
		return
	}
	if a.currentState().Selected == nil {
		a.showStatus("Open a message first")
		return
	}
	container := a.views["textContainer"].(*tview.Flex)
	input := a.views["quickReply"].(*tview.InputField)
	input.SetText("")
	container.ResizeItem(input, 1, 0)
	a.SetFocus(input)
}

func (a *App) hideQuickReply() {
	container := a.views["textContainer"].(*tview.Flex)
	container.ResizeItem(a.views["quickReply"], 0, 0)
	a.SetFocus(a.views["text"])
}

func (a *App) quickReplyDone(key tcell.Key) {
	input := a.views["quickReply"].(*tview.InputField)
	body := input.GetText()
	msg := a.currentState().Selected
	a.hideQuickReply()
	if key != tcell.KeyEnter || msg == nil {
		return
	}
	a.do("quick reply", func(ctx context.Context) error {
		if err := a.compose.SendInlineReply(ctx, msg, body); err != nil {
			return err
		}
		a.showStatus("Reply sent")
		return nil
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
