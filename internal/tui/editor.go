package tui

import (
	"strings"
	"unicode"

	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// textBuffer is a multi-line text with a cursor
type textBuffer struct {
	lines    [][]rune
	row, col int
}

func newTextBuffer(s string) *textBuffer {
	b := &textBuffer{}
	b.set(s)
	return b
}

// set replaces the text and parks the cursor at the end
func (b *textBuffer) set(s string) {
	parts := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	b.lines = make([][]rune, len(parts))
	for i, p := range parts {
		b.lines[i] = []rune(p)
	}
	b.row = len(b.lines) - 1
	b.col = len(b.lines[b.row])
}

func (b *textBuffer) String() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

func (b *textBuffer) insert(r rune) {
	line := b.lines[b.row]
	line = append(line[:b.col], append([]rune{r}, line[b.col:]...)...)
	b.lines[b.row] = line
	b.col++
}

func (b *textBuffer) newline() {
	line := b.lines[b.row]
	head := append([]rune(nil), line[:b.col]...)
	tail := append([]rune(nil), line[b.col:]...)
	b.lines[b.row] = head
	b.lines = append(b.lines[:b.row+1], append([][]rune{tail}, b.lines[b.row+1:]...)...)
	b.row++
	b.col = 0
}

func (b *textBuffer) backspace() {
	if b.col > 0 {
		line := b.lines[b.row]
		b.lines[b.row] = append(line[:b.col-1], line[b.col:]...)
		b.col--
		return
	}
	if b.row == 0 {
		return
	}
	prev := b.lines[b.row-1]
	b.col = len(prev)
	b.lines[b.row-1] = append(prev, b.lines[b.row]...)
	b.lines = append(b.lines[:b.row], b.lines[b.row+1:]...)
	b.row--
}

func (b *textBuffer) delete() {
	line := b.lines[b.row]
	if b.col < len(line) {
		b.lines[b.row] = append(line[:b.col], line[b.col+1:]...)
		return
	}
	if b.row == len(b.lines)-1 {
		return
	}
	b.lines[b.row] = append(line, b.lines[b.row+1]...)
	b.lines = append(b.lines[:b.row+1], b.lines[b.row+2:]...)
}

func (b *textBuffer) left() {
	switch {
	case b.col > 0:
		b.col--
	case b.row > 0:
		b.row--
		b.col = len(b.lines[b.row])
	}
}

func (b *textBuffer) right() {
	switch {
	case b.col < len(b.lines[b.row]):
		b.col++
	case b.row < len(b.lines)-1:
		b.row++
		b.col = 0
	}
}

func (b *textBuffer) vertical(delta int) {
	row := b.row + delta
	if row < 0 || row >= len(b.lines) {
		return
	}
	b.row = row
	if b.col > len(b.lines[row]) {
		b.col = len(b.lines[row])
	}
}

// handle applies an editing key. It reports whether the text changed and whether the key was used.
func (b *textBuffer) handle(ev *tcell.EventKey) (changed, used bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		b.newline()
		return true, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		b.backspace()
		return true, true
	case tcell.KeyDelete:
		b.delete()
		return true, true
	case tcell.KeyLeft:
		b.left()
	case tcell.KeyRight:
		b.right()
	case tcell.KeyUp:
		b.vertical(-1)
	case tcell.KeyDown:
		b.vertical(1)
	case tcell.KeyHome:
		b.col = 0
	case tcell.KeyEnd:
		b.col = len(b.lines[b.row])
	case tcell.KeyRune:
		if !unicode.IsPrint(ev.Rune()) {
			return false, false
		}
		b.insert(ev.Rune())
		return true, true
	default:
		return false, false
	}
	return false, true
}

// render returns the text with tview tags escaped and the cursor cell shown in reverse video
func (b *textBuffer) render() string {
	var sb strings.Builder
	for i, line := range b.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if i != b.row {
			sb.WriteString(tview.Escape(string(line)))
			continue
		}
		sb.WriteString(tview.Escape(string(line[:b.col])))
		cursor := " "
		rest := ""
		if b.col < len(line) {
			cursor = string(line[b.col])
			rest = string(line[b.col+1:])
		}
		sb.WriteString("[::r]" + tview.Escape(cursor) + "[::-]")
		sb.WriteString(tview.Escape(rest))
	}
	return sb.String()
}

// BodyEditor is a TextView that accepts multi-line input
type BodyEditor struct {
	*tview.TextView
	buf     *textBuffer
	changed func(string)
}

// NewBodyEditor creates an empty editor
func NewBodyEditor() *BodyEditor {
	e := &BodyEditor{
		TextView: tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true),
		buf:      newTextBuffer(""),
	}
	return e
}

// SetChangedFunc registers a callback for user edits
func (e *BodyEditor) SetChangedFunc(fn func(string)) {
	e.changed = fn
}

// SetText replaces the content without firing the changed callback
func (e *BodyEditor) SetText(s string) {
	e.buf.set(s)
	e.refresh()
}

// GetText returns the current content
func (e *BodyEditor) GetText() string {
	return e.buf.String()
}

// InputHandler routes editing keys to the buffer. Tab, Esc and control chords bubble up.
func (e *BodyEditor) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return e.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		changed, used := e.buf.handle(event)
		if !used {
			return
		}
		e.refresh()
		if changed && e.changed != nil {
			e.changed(e.buf.String())
		}
	})
}

func (e *BodyEditor) refresh() {
	e.TextView.SetText(e.buf.render())
	e.TextView.ScrollTo(max(e.buf.row-2, 0), 0)
}
