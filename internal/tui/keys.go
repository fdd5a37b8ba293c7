package tui

import (
	"context"
	"strings"

	"github.com/ajramos/echomail/internal/config"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

type action string

const (
	actionInbox      action = "inbox"
	actionSent       action = "sent"
	actionScheduled  action = "scheduled"
	actionSpam       action = "spam"
	actionRefresh    action = "refresh"
	actionSearch     action = "search"
	actionCompose    action = "compose"
	actionReply      action = "reply"
	actionQuickReply action = "quick-reply"
	actionSummarize  action = "summarize"
	actionBack       action = "back"
	actionLogout     action = "logout"
	actionQuit       action = "quit"
)

// keymap resolves key names to actions
type keymap map[string]action

func newKeymap(kb config.KeyBindings) keymap {
	m := keymap{}
	bind := func(key string, a action) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if _, taken := m[key]; !taken {
			m[key] = a
		}
	}
	bind(kb.Inbox, actionInbox)
	bind(kb.Sent, actionSent)
	bind(kb.Scheduled, actionScheduled)
	bind(kb.Spam, actionSpam)
	bind(kb.Refresh, actionRefresh)
	bind(kb.Search, actionSearch)
	bind(kb.Compose, actionCompose)
	bind(kb.Reply, actionReply)
	bind(kb.QuickReply, actionQuickReply)
	bind(kb.Summarize, actionSummarize)
	bind(kb.Back, actionBack)
	bind(kb.Logout, actionLogout)
	bind(kb.Quit, actionQuit)
	bind("esc", actionBack)
	return m
}

func (m keymap) lookup(ev *tcell.EventKey) (action, bool) {
	a, ok := m[keyName(ev)]
	return a, ok
}

// keyFor returns the first key bound to a, for help texts
func (m keymap) keyFor(a action) string {
	best := ""
	for k, v := range m {
		if v == a && (best == "" || k < best) {
			best = k
		}
	}
	return best
}

// keyName names an event the way bindings are written in config: a single character for
// runes, "esc"/"enter"/"tab" for the named keys and "ctrl+x" for control chords.
func keyName(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyRune:
		return string(ev.Rune())
	case tcell.KeyEscape:
		return "esc"
	case tcell.KeyEnter:
		return "enter"
	case tcell.KeyTab:
		return "tab"
	case tcell.KeyBacktab:
		return "backtab"
	}
	if ev.Key() >= tcell.KeyCtrlA && ev.Key() <= tcell.KeyCtrlZ {
		return "ctrl+" + string(rune('a'+int(ev.Key()-tcell.KeyCtrlA)))
	}
	return ""
}

var actionViews = map[action]services.View{
	actionInbox:     services.ViewInbox,
	actionSent:      services.ViewSent,
	actionScheduled: services.ViewScheduled,
	actionSpam:      services.ViewSpam,
}

// bindKeys installs the global key handler of the main page. Keys typed into inputs and the
// compose page are left to those widgets.
func (a *App) bindKeys() {
	a.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if name, _ := a.pages.GetFrontPage(); name == pageCompose {
			return ev
		}
		if _, typing := a.GetFocus().(*tview.InputField); typing {
			return ev
		}

		switch ev.Key() {
		case tcell.KeyTab:
			a.cycleFocus(false)
			return nil
		case tcell.KeyBacktab:
			a.cycleFocus(true)
			return nil
		}

		act, ok := a.keys.lookup(ev)
		if !ok {
			return ev
		}
		return a.perform(act, ev)
	})
}

func (a *App) perform(act action, ev *tcell.EventKey) *tcell.EventKey {
	if view, ok := actionViews[act]; ok {
		a.do("navigate", func(ctx context.Context) error { return a.nav.Navigate(ctx, view) })
		a.SetFocus(a.views["list"])
		return nil
	}

	switch act {
	case actionRefresh:
		a.do("refresh", a.refresh)
	case actionSearch:
		a.showSearchBar()
	case actionCompose:
		a.do("compose", a.nav.OpenCompose)
	case actionReply:
		a.do("reply", a.nav.Reply)
	case actionQuickReply:
		a.showQuickReply()
	case actionSummarize:
		a.summarizeSelected()
	case actionBack:
		a.do("back", a.nav.Back)
		a.SetFocus(a.views["list"])
	case actionLogout:
		a.do("logout", a.nav.Logout)
	case actionQuit:
		a.Stop()
	default:
		return ev
	}
	return nil
}

// refresh reloads the active label, starting the session first when the user was signed out
func (a *App) refresh(ctx context.Context) error {
	if !a.currentState().Authenticated {
		return a.nav.Start(ctx)
	}
	return a.nav.Refresh(ctx)
}
