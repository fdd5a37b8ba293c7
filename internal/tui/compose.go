package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/render"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// scheduleLayout is the format accepted by the "Send at" field, in local time
const scheduleLayout = "2006-01-02 15:04"

// ComposePanel is the draft form: recipients with suggestions, subject, body, attachments,
// schedule and the assistant instruction box
type ComposePanel struct {
	*tview.Flex
	app *App

	to, cc, bcc, subject *tview.InputField
	schedule, attach     *tview.InputField
	instruction          *tview.InputField
	body                 *BodyEditor
	suggestions          *tview.List
	attachments          *tview.TextView
	hint                 *tview.TextView
	headers              *tview.Flex

	// field the suggestion list belongs to
	suggestField services.Field
	contacts     []mailbox.Contact
	// set while the form is filled from the draft so change callbacks do not echo back
	loading bool
}

// NewComposePanel creates the compose page
func NewComposePanel(app *App) *ComposePanel {
	c := &ComposePanel{Flex: tview.NewFlex().SetDirection(tview.FlexRow), app: app}
	c.createComponents()
	c.setupLayout()
	c.setupInputHandling()
	return c
}

func (c *ComposePanel) newField(label, placeholder string) *tview.InputField {
	colors := c.app.colors
	f := tview.NewInputField().SetLabel(label).SetPlaceholder(placeholder)
	f.SetFieldBackgroundColor(colors.Body.BgColor.Color())
	f.SetFieldTextColor(colors.Body.FgColor.Color())
	f.SetLabelColor(colors.Frame.TitleColor.Color())
	f.SetPlaceholderTextColor(colors.List.ReadColor.Color())
	f.SetBackgroundColor(colors.Body.BgColor.Color())
	return f
}

func (c *ComposePanel) createComponents() {
	c.to = c.newField("To:       ", "recipient@example.com")
	c.cc = c.newField("CC:       ", "cc@example.com")
	c.bcc = c.newField("BCC:      ", "bcc@example.com")
	c.subject = c.newField("Subject:  ", "Enter email subject")
	c.schedule = c.newField("Send at:  ", scheduleLayout+" (empty sends now)")
	c.attach = c.newField("Attach:   ", "path to a file, Enter to add")
	c.instruction = c.newField("Assistant: ", "describe the email you want, Enter to send")

	c.body = NewBodyEditor()
	c.app.styleBox(c.body.Box, " Body ")

	c.suggestions = tview.NewList().ShowSecondaryText(false)
	c.suggestions.SetBackgroundColor(c.app.colors.Body.BgColor.Color())
	c.suggestions.SetMainTextColor(c.app.colors.Body.FgColor.Color())
	c.suggestions.SetSelectedBackgroundColor(c.app.colors.List.SelectedBg.Color())

	c.attachments = tview.NewTextView().SetDynamicColors(true)
	c.attachments.SetBackgroundColor(c.app.colors.Body.BgColor.Color())

	c.hint = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	c.hint.SetBackgroundColor(c.app.colors.Body.BgColor.Color())
	c.hint.SetTextColor(c.app.colors.List.ReadColor.Color())
	c.hint.SetText("Tab next field | Ctrl+S send | Ctrl+T cc/bcc | Ctrl+D remove last attachment | Esc back")
}

func (c *ComposePanel) setupLayout() {
	c.app.styleBox(c.Flex.Box, " Compose ")

	c.headers = tview.NewFlex().SetDirection(tview.FlexRow)
	c.headers.AddItem(c.to, 1, 0, true)
	c.headers.AddItem(c.suggestions, 0, 0, false)
	c.headers.AddItem(c.cc, 0, 0, false)
	c.headers.AddItem(c.bcc, 0, 0, false)
	c.headers.AddItem(c.subject, 1, 0, false)
	c.headers.AddItem(c.schedule, 1, 0, false)
	c.headers.AddItem(c.attach, 1, 0, false)
	c.headers.AddItem(c.attachments, 1, 0, false)

	c.AddItem(c.headers, 5, 0, true)
	c.AddItem(c.body, 0, 1, false)
	c.AddItem(c.instruction, 1, 0, false)
	c.AddItem(c.hint, 1, 0, false)
}

func (c *ComposePanel) setupInputHandling() {
	for field, input := range map[services.Field]*tview.InputField{
		services.FieldTo:      c.to,
		services.FieldCC:      c.cc,
		services.FieldBCC:     c.bcc,
		services.FieldSubject: c.subject,
	} {
		field, input := field, input
		input.SetChangedFunc(func(text string) { c.fieldChanged(field, text) })
		if field.IsRecipient() {
			input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
				if ev.Key() == tcell.KeyDown && c.suggestField == field && len(c.contacts) > 0 {
					c.app.SetFocus(c.suggestions)
					return nil
				}
				return ev
			})
		}
	}
	c.body.SetChangedFunc(func(text string) { c.fieldChanged(services.FieldBody, text) })

	c.suggestions.SetSelectedFunc(func(i int, _, _ string, _ rune) { c.chooseSuggestion(i) })
	c.suggestions.SetDoneFunc(func() { c.app.SetFocus(c.inputFor(c.suggestField)) })

	c.attach.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.addAttachment()
		}
	})
	c.schedule.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.applySchedule()
		}
	})
	c.instruction.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.sendInstruction()
		}
	})

	c.Flex.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyTab:
			c.moveFocus(1)
			return nil
		case tcell.KeyBacktab:
			c.moveFocus(-1)
			return nil
		case tcell.KeyEscape:
			if c.app.GetFocus() == c.suggestions {
				return ev
			}
			c.app.do("back", c.app.nav.Back)
			return nil
		case tcell.KeyCtrlS:
			c.send()
			return nil
		case tcell.KeyCtrlT:
			c.app.compose.ToggleCCBCC()
			return nil
		case tcell.KeyCtrlD:
			c.removeLastAttachment()
			return nil
		}
		return ev
	})
}

func (c *ComposePanel) focusables() []tview.Primitive {
	items := []tview.Primitive{c.to}
	if c.app.compose.Draft().ShowCCBCC {
		items = append(items, c.cc, c.bcc)
	}
	return append(items, c.subject, c.schedule, c.attach, c.body, c.instruction)
}

func (c *ComposePanel) moveFocus(step int) {
	items := c.focusables()
	current := c.app.GetFocus()
	idx := 0
	for i, p := range items {
		if p == current {
			idx = i
			break
		}
	}
	next := (idx + step + len(items)) % len(items)
	c.app.SetFocus(items[next])
}

func (c *ComposePanel) focusFirst() {
	c.app.SetFocus(c.to)
}

func (c *ComposePanel) inputFor(field services.Field) tview.Primitive {
	switch field {
	case services.FieldCC:
		return c.cc
	case services.FieldBCC:
		return c.bcc
	}
	return c.to
}

func (c *ComposePanel) fieldChanged(field services.Field, text string) {
	if c.loading {
		return
	}
	if err := c.app.compose.SetField(field, text); err != nil {
		c.app.logf("set %s: %v", field, err)
		return
	}
	if field.IsRecipient() && c.app.suggest != nil {
		c.app.suggest.Update(field, text)
	}
}

// load fills the form from the draft
func (c *ComposePanel) load(d services.Draft) {
	c.loading = true
	defer func() { c.loading = false }()

	setIfChanged(c.to, d.To)
	setIfChanged(c.cc, d.CC)
	setIfChanged(c.bcc, d.BCC)
	setIfChanged(c.subject, d.Subject)
	if c.body.GetText() != d.Body {
		c.body.SetText(d.Body)
	}
	if d.ScheduleAt.IsZero() {
		if c.app.GetFocus() != c.schedule {
			c.schedule.SetText("")
		}
	} else {
		setIfChanged(c.schedule, d.ScheduleAt.Local().Format(scheduleLayout))
	}

	ccHeight := 0
	if d.ShowCCBCC {
		ccHeight = 1
	}
	c.headers.ResizeItem(c.cc, ccHeight, 0)
	c.headers.ResizeItem(c.bcc, ccHeight, 0)
	c.ResizeItem(c.headers, 5+2*ccHeight+c.suggestionHeight(), 0)

	c.attachments.SetText(tview.Escape(attachmentLine(d.Attachments)))

	title := " Compose "
	switch {
	case d.ReplyToID != "":
		title = " Reply "
	case d.Generated:
		title = " Compose (generated) "
	}
	c.SetTitle(title)
}

func setIfChanged(f *tview.InputField, text string) {
	if f.GetText() != text {
		f.SetText(text)
	}
}

func attachmentLine(atts []mailbox.OutgoingAttachment) string {
	if len(atts) == 0 {
		return "No attachments"
	}
	names := make([]string, len(atts))
	for i, a := range atts {
		names[i] = fmt.Sprintf("%s (%s)", a.Filename, render.HumanSize(a.Size))
	}
	return "Attached: " + strings.Join(names, ", ")
}

func (c *ComposePanel) suggestionHeight() int {
	if len(c.contacts) == 0 {
		return 0
	}
	return min(len(c.contacts), 5)
}

// showSuggestions replaces the suggestion list for field
func (c *ComposePanel) showSuggestions(field services.Field, contacts []mailbox.Contact) {
	c.suggestField = field
	c.contacts = contacts
	c.suggestions.Clear()
	for _, ct := range contacts {
		c.suggestions.AddItem(tview.Escape(contactLabel(ct)), "", 0, nil)
	}

	// keep the list right under the field it completes
	c.headers.Clear()
	c.headers.AddItem(c.to, 1, 0, true)
	if field == services.FieldTo {
		c.headers.AddItem(c.suggestions, c.suggestionHeight(), 0, false)
	}
	c.headers.AddItem(c.cc, 0, 0, false)
	if field == services.FieldCC {
		c.headers.AddItem(c.suggestions, c.suggestionHeight(), 0, false)
	}
	c.headers.AddItem(c.bcc, 0, 0, false)
	if field == services.FieldBCC {
		c.headers.AddItem(c.suggestions, c.suggestionHeight(), 0, false)
	}
	c.headers.AddItem(c.subject, 1, 0, false)
	c.headers.AddItem(c.schedule, 1, 0, false)
	c.headers.AddItem(c.attach, 1, 0, false)
	c.headers.AddItem(c.attachments, 1, 0, false)
	c.load(c.app.compose.Draft())
}

func contactLabel(ct mailbox.Contact) string {
	label := ct.Email
	if ct.Name != "" {
		label = fmt.Sprintf("%s <%s>", ct.Name, ct.Email)
	}
	if ct.Source == "recent" {
		label += "  (recent)"
	}
	return label
}

func (c *ComposePanel) chooseSuggestion(i int) {
	if i < 0 || i >= len(c.contacts) {
		return
	}
	input, ok := c.inputFor(c.suggestField).(*tview.InputField)
	if !ok {
		return
	}
	field := c.suggestField
	text := c.app.suggest.Choose(input.GetText(), c.contacts[i])
	c.showSuggestions(field, nil)

	c.loading = true
	input.SetText(text)
	c.loading = false
	if err := c.app.compose.SetField(field, text); err != nil {
		c.app.logf("set %s: %v", field, err)
	}
	c.app.SetFocus(input)
}

func (c *ComposePanel) addAttachment() {
	path := strings.TrimSpace(c.attach.GetText())
	if path == "" {
		return
	}
	if err := c.app.compose.AddAttachment(path); err != nil {
		c.app.showError(err)
		return
	}
	c.attach.SetText("")
	c.app.showStatus("Attached " + filepath.Base(path))
}

func (c *ComposePanel) removeLastAttachment() {
	n := len(c.app.compose.Draft().Attachments)
	if n == 0 {
		return
	}
	if err := c.app.compose.RemoveAttachment(n - 1); err != nil {
		c.app.showError(err)
	}
}

// parseSchedule reads the "Send at" field. An empty value means send immediately.
func parseSchedule(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	at, err := time.ParseInLocation(scheduleLayout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: use %s", services.ErrInvalidInput, scheduleLayout)
	}
	return at, nil
}

func (c *ComposePanel) applySchedule() {
	at, err := parseSchedule(c.schedule.GetText(), time.Local)
	if err != nil {
		c.app.showError(err)
		return
	}
	if at.IsZero() {
		c.app.compose.ClearSchedule()
		c.app.showStatus("Will send immediately")
		return
	}
	if err := c.app.compose.SetSchedule(at); err != nil {
		c.app.showError(err)
		return
	}
	c.app.showStatus("Scheduled for " + at.Format(scheduleLayout))
}

func (c *ComposePanel) sendInstruction() {
	text := strings.TrimSpace(c.instruction.GetText())
	if text == "" {
		return
	}
	c.instruction.SetText("")
	c.app.do("assistant", func(ctx context.Context) error {
		return c.app.compose.Advance(ctx, text)
	})
}

func (c *ComposePanel) send() {
	// pick up a schedule typed without pressing Enter
	if at, err := parseSchedule(c.schedule.GetText(), time.Local); err == nil && !at.IsZero() {
		if err := c.app.compose.SetSchedule(at); err != nil {
			c.app.showError(err)
			return
		}
	}
	c.app.showStatus("Sending...")
	c.app.do("send", c.app.nav.SendDraft)
}
