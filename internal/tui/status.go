package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tview"
)

const flashDuration = 3 * time.Second

// statusLine builds the status bar text for a snapshot. flash overrides the navigator status.
func statusLine(st services.ListState, flash string, keys keymap) string {
	parts := []string{"echomail"}
	if st.Authenticated && st.Account.Email != "" {
		parts = append(parts, st.Account.Email)
	}

	switch {
	case st.View == services.ViewCompose:
		parts = append(parts, "Compose")
	case st.Searching:
		parts = append(parts, fmt.Sprintf("Search %q", st.Query))
	default:
		parts = append(parts, viewTitle(viewFor(st)))
	}

	switch {
	case st.Loading:
		parts = append(parts, "Loading...")
	case st.LoadingMore:
		parts = append(parts, "Loading more...")
	}

	msg := flash
	if msg == "" {
		msg = st.Status
	}
	if msg != "" {
		parts = append(parts, msg)
	}
	if q := keys.keyFor(actionQuit); q != "" {
		parts = append(parts, "Press "+q+" to quit")
	}
	return strings.Join(parts, " | ")
}

func (a *App) renderStatus() {
	a.mu.Lock()
	st, flash := a.state, a.flash
	a.mu.Unlock()
	status := a.views["status"].(*tview.TextView)
	status.SetText(tview.Escape(statusLine(st, flash, a.keys)))
}

// showStatus displays a transient message in the status bar. Safe from any goroutine.
func (a *App) showStatus(msg string) {
	a.mu.Lock()
	a.flash = msg
	a.mu.Unlock()
	a.QueueUpdateDraw(a.renderStatus)

	go func() {
		select {
		case <-time.After(flashDuration):
		case <-a.ctx.Done():
			return
		}
		a.mu.Lock()
		if a.flash != msg {
			a.mu.Unlock()
			return
		}
		a.flash = ""
		a.mu.Unlock()
		a.QueueUpdateDraw(a.renderStatus)
	}()
}

// showError shows err in the status bar in user terms
func (a *App) showError(err error) {
	a.showStatus(errorText(err))
}

func errorText(err error) string {
	var netErr *mailbox.NetworkError
	switch {
	case errors.Is(err, services.ErrNotAuthenticated), mailbox.IsUnauthorized(err):
		return "Not signed in"
	case errors.Is(err, services.ErrMissingField):
		return "Please fill in recipient and subject"
	case errors.Is(err, mailbox.ErrUnsupported):
		return "Not supported by this backend"
	case errors.As(err, &netErr):
		if netErr.StatusCode > 0 {
			return fmt.Sprintf("Server error (%d)", netErr.StatusCode)
		}
		return "Cannot reach the mail server"
	}
	return "Error: " + err.Error()
}
