package services

import (
	"fmt"

	"github.com/ajramos/echomail/internal/mailbox"
)

// View identifies the screen currently rendered
type View string

const (
	ViewInbox     View = "inbox"
	ViewSent      View = "sent"
	ViewScheduled View = "scheduled"
	ViewSpam      View = "spam"
	ViewSearch    View = "search"
	ViewMessage   View = "message"
	ViewCompose   View = "compose"
)

var viewLabels = map[View]mailbox.Label{
	ViewInbox:     mailbox.LabelInbox,
	ViewSent:      mailbox.LabelSent,
	ViewScheduled: mailbox.LabelScheduled,
	ViewSpam:      mailbox.LabelSpam,
}

// LabelViews lists the views that render a label, in sidebar order
var LabelViews = []View{ViewInbox, ViewSent, ViewScheduled, ViewSpam}

// Label returns the label a view renders. Search, message and compose render no label.
func (v View) Label() (mailbox.Label, bool) {
	l, ok := viewLabels[v]
	return l, ok
}

// IsLabelView reports whether v renders the contents of a label
func (v View) IsLabelView() bool {
	_, ok := viewLabels[v]
	return ok
}

// ParseView maps a view name (as used in config and history) to a View
func ParseView(name string) (View, error) {
	v := View(name)
	switch v {
	case ViewInbox, ViewSent, ViewScheduled, ViewSpam, ViewSearch, ViewMessage, ViewCompose:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// ViewToken identifies what the user is looking at. Every label navigation, refresh and logout
// starts a new epoch; a label fetch commits only if the token is still current when it completes.
type ViewToken struct {
	View  View
	Label mailbox.Label
	Epoch uint64
}

// Admits reports whether a fetch issued under t may still commit when current is active
func (t ViewToken) Admits(current ViewToken) bool {
	return t.Label == current.Label && t.Epoch == current.Epoch
}

func (t ViewToken) String() string {
	return fmt.Sprintf("%s/%s#%d", t.View, t.Label, t.Epoch)
}

// tokenSource hands out view tokens. It is not safe for concurrent use on its own; the navigator
// guards it with its state mutex.
type tokenSource struct {
	current ViewToken
}

// advance starts a new epoch for view and returns the token fetches should capture
func (s *tokenSource) advance(view View) ViewToken {
	label, _ := view.Label()
	s.current = ViewToken{View: view, Label: label, Epoch: s.current.Epoch + 1}
	return s.current
}

// setView changes the rendered view without starting an epoch. Opening a message or compose keeps
// the list's label fetch alive.
func (s *tokenSource) setView(view View) {
	s.current.View = view
}
