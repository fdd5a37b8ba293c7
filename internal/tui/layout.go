package tui

import (
	"context"
	"fmt"

	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

const (
	pageMain    = "main"
	pageCompose = "compose"
)

// styleBox applies the shared frame colors to a bordered pane
func (a *App) styleBox(box *tview.Box, title string) {
	box.SetBackgroundColor(a.colors.Body.BgColor.Color())
	box.SetBorder(true).
		SetBorderColor(a.colors.Frame.BorderColor.Color()).
		SetBorderAttributes(tcell.AttrBold).
		SetTitle(title).
		SetTitleColor(a.colors.Frame.TitleColor.Color()).
		SetTitleAlign(tview.AlignCenter)
}

// initComponents builds the sidebar, list, detail and status panes and the compose page
func (a *App) initComponents() {
	sidebar := tview.NewList().ShowSecondaryText(false)
	a.styleBox(sidebar.Box, " Labels ")
	sidebar.SetMainTextColor(a.colors.Body.FgColor.Color())
	sidebar.SetSelectedBackgroundColor(a.colors.List.SelectedBg.Color())
	for i, v := range services.LabelViews {
		view := v
		shortcut := rune('1' + i)
		sidebar.AddItem(viewTitle(view), "", shortcut, func() {
			a.do("navigate", func(ctx context.Context) error { return a.nav.Navigate(ctx, view) })
			a.SetFocus(a.views["list"])
		})
	}

	list := tview.NewTable().SetSelectable(true, false)
	a.styleBox(list.Box, " Messages ")
	list.SetSelectedStyle(tcell.StyleDefault.
		Background(a.colors.List.SelectedBg.Color()).
		Foreground(a.colors.Body.FgColor.Color()))
	list.SetSelectionChangedFunc(func(row, _ int) { a.rowHighlighted(row) })
	list.SetSelectedFunc(func(row, _ int) { a.rowActivated(row) })

	search := tview.NewInputField().SetLabel("Search: ")
	search.SetFieldBackgroundColor(a.colors.Body.BgColor.Color())
	search.SetLabelColor(a.colors.Frame.TitleColor.Color())
	search.SetDoneFunc(func(key tcell.Key) { a.searchDone(key) })

	listContainer := tview.NewFlex().SetDirection(tview.FlexRow)
	listContainer.AddItem(search, 0, 0, false)
	listContainer.AddItem(list, 0, 1, true)

	header := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	header.SetBackgroundColor(a.colors.Body.BgColor.Color())
	header.SetTextColor(a.colors.Body.FgColor.Color())

	text := tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true)
	text.SetBackgroundColor(a.colors.Body.BgColor.Color())
	text.SetTextColor(a.colors.Body.FgColor.Color())

	summary := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	a.styleBox(summary.Box, " Summary ")

	quickReply := tview.NewInputField().SetLabel("Reply: ")
	quickReply.SetFieldBackgroundColor(a.colors.Body.BgColor.Color())
	quickReply.SetLabelColor(a.colors.Frame.TitleColor.Color())
	quickReply.SetDoneFunc(func(key tcell.Key) { a.quickReplyDone(key) })

	textContainer := tview.NewFlex().SetDirection(tview.FlexRow)
	a.styleBox(textContainer.Box, " Message ")
	textContainer.AddItem(header, 5, 0, false)
	textContainer.AddItem(summary, 0, 0, false)
	textContainer.AddItem(text, 0, 1, false)
	textContainer.AddItem(quickReply, 0, 0, false)

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBackgroundColor(a.colors.Body.BgColor.Color())
	status.SetTextColor(a.colors.Status.FgColor.Color())

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(listContainer, 0, 2, true).
		AddItem(textContainer, 0, 3, false)

	body := tview.NewFlex().
		AddItem(sidebar, 18, 0, false).
		AddItem(content, 0, 1, true)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(status, 1, 0, false)

	a.views["sidebar"] = sidebar
	a.views["list"] = list
	a.views["search"] = search
	a.views["listContainer"] = listContainer
	a.views["header"] = header
	a.views["text"] = text
	a.views["summary"] = summary
	a.views["quickReply"] = quickReply
	a.views["textContainer"] = textContainer
	a.views["status"] = status

	a.composer = NewComposePanel(a)

	a.pages = tview.NewPages().
		AddPage(pageMain, main, true, true).
		AddPage(pageCompose, a.composer, true, false)
}

func viewTitle(v services.View) string {
	switch v {
	case services.ViewInbox:
		return "Inbox"
	case services.ViewSent:
		return "Sent"
	case services.ViewScheduled:
		return "Scheduled"
	case services.ViewSpam:
		return "Spam"
	case services.ViewSearch:
		return "Search"
	}
	return string(v)
}

func (a *App) renderSidebar(st services.ListState) {
	sidebar := a.views["sidebar"].(*tview.List)
	for i, v := range services.LabelViews {
		if l, _ := v.Label(); l == st.Label {
			sidebar.SetCurrentItem(i)
			return
		}
	}
}

// showSearchBar reveals the search input above the list
func (a *App) showSearchBar() {
	container := a.views["listContainer"].(*tview.Flex)
	search := a.views["search"].(*tview.InputField)
	search.SetText(a.currentState().Query)
	container.ResizeItem(search, 1, 0)
	a.SetFocus(search)
}

func (a *App) hideSearchBar() {
	container := a.views["listContainer"].(*tview.Flex)
	container.ResizeItem(a.views["search"], 0, 0)
	a.SetFocus(a.views["list"])
}

func (a *App) searchDone(key tcell.Key) {
	search := a.views["search"].(*tview.InputField)
	query := search.GetText()
	a.hideSearchBar()
	if key != tcell.KeyEnter {
		return
	}
	a.do("search", func(ctx context.Context) error {
		if query == "" {
			return a.nav.ClearSearch(ctx)
		}
		return a.nav.Search(ctx, query)
	})
}

// cycleFocus moves focus between sidebar, list and message text
func (a *App) cycleFocus(reverse bool) {
	order := []tview.Primitive{a.views["sidebar"], a.views["list"], a.views["text"]}
	current := a.GetFocus()
	idx := 0
	for i, p := range order {
		if p == current {
			idx = i
			break
		}
	}
	step := 1
	if reverse {
		step = len(order) - 1
	}
	next := order[(idx+step)%len(order)]
	a.SetFocus(next)
	a.highlightFocus(next)
}

func (a *App) highlightFocus(focused tview.Primitive) {
	for _, name := range []string{"sidebar", "list", "textContainer"} {
		color := a.colors.Frame.BorderColor.Color()
		p := a.views[name]
		if p == focused || (name == "textContainer" && focused == a.views["text"]) {
			color = a.colors.Frame.FocusColor.Color()
		}
		switch v := p.(type) {
		case *tview.List:
			v.SetBorderColor(color)
		case *tview.Table:
			v.SetBorderColor(color)
		case *tview.Flex:
			v.SetBorderColor(color)
		}
	}
}

func paneTitle(format string, args ...interface{}) string {
	return " " + fmt.Sprintf(format, args...) + " "
}
