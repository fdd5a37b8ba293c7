package render

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// LinkRef is a hyperlink collected while rendering a body
type LinkRef struct {
	Index int
	URL   string
	Text  string
}

// FormatOptions controls terminal formatting
type FormatOptions struct {
	WrapWidth int
}

var (
	plainURLRe = regexp.MustCompile(`(?i)\bhttps?://[\w\-\._~:/%\?#\[\]@!$&'()*+,;=]+`)
	bareURLRe  = regexp.MustCompile(`(?i)^[a-z][a-z0-9+\-.]*://\S+$`)
	sanitizer  = newSanitizer()
)

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(false)
	return p
}

// SanitizeHTML strips scripts, styles, event handlers and unsafe URLs from a remote body
func SanitizeHTML(body string) string {
	return sanitizer.Sanitize(body)
}

// HTMLToText reduces an HTML body to readable plain text
func HTMLToText(body string) string {
	text, _ := htmlToText(SanitizeHTML(body))
	return text
}

// FormatMessage renders a message body for the detail pane. The output has a [BODY] section,
// followed by [ATTACHMENTS] and [LINKS] sections.
func FormatMessage(msg *mailbox.MessageDetail, opts FormatOptions) string {
	if msg == nil {
		return ""
	}

	var body string
	var links []LinkRef
	if msg.IsHTML {
		body, links = htmlToText(SanitizeHTML(msg.Body))
	} else {
		body = msg.Body
	}
	body = normalizeNewlines(body)

	if len(links) == 0 {
		links, body = extractPlainLinks(body)
	}
	if opts.WrapWidth > 0 {
		body = WrapText(body, opts.WrapWidth)
	}
	body = dropRepeatedLines(sanitizeGlyphs(body))

	out := &strings.Builder{}
	out.WriteString("[BODY]\n")
	out.WriteString(strings.TrimSpace(body))
	out.WriteString("\n\n[ATTACHMENTS]\n")
	if len(msg.Attachments) == 0 {
		out.WriteString("None\n")
	}
	for _, a := range msg.Attachments {
		name := a.Filename
		if name == "" {
			name = "(attachment)"
		}
		if a.MimeType != "" {
			name += fmt.Sprintf(" (%s)", a.MimeType)
		}
		if a.Size > 0 {
			name += " " + HumanSize(a.Size)
		}
		out.WriteString(name + "\n")
	}
	out.WriteString("\n[LINKS]\n")
	if len(links) == 0 {
		out.WriteString("None\n")
	}
	for _, l := range links {
		fmt.Fprintf(out, "(%d) %s\n", l.Index, l.URL)
	}
	return out.String()
}

// HumanSize formats a byte count the way the compose view shows attachment sizes
func HumanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// extractPlainLinks replaces bare URLs with [n] references
func extractPlainLinks(input string) ([]LinkRef, string) {
	var links []LinkRef
	replaced := plainURLRe.ReplaceAllStringFunc(input, func(m string) string {
		links = append(links, LinkRef{Index: len(links) + 1, URL: m, Text: m})
		return fmt.Sprintf("[%d]", len(links))
	})
	return links, replaced
}

func htmlToText(body string) (string, []LinkRef) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body, nil
	}

	var b strings.Builder
	var links []LinkRef
	quote := 0

	var walk func(n *html.Node)
	walkChildren := func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := collapseSpace(n.Data)
			if strings.TrimSpace(text) == "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				return
			}
			if quote > 0 && (b.Len() == 0 || strings.HasSuffix(b.String(), "\n")) {
				b.WriteString(strings.Repeat("> ", min(quote, 3)))
			}
			b.WriteString(text)
			return
		case html.ElementNode:
			switch n.Data {
			case "head", "style", "script", "title":
				return
			case "br":
				b.WriteByte('\n')
				return
			case "hr":
				b.WriteString("\n-----\n")
				return
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				walkChildren(n)
				b.WriteString("\n\n")
				return
			case "li":
				b.WriteString("- ")
				walkChildren(n)
				b.WriteByte('\n')
				return
			case "td", "th":
				walkChildren(n)
				b.WriteString(" | ")
				return
			case "blockquote":
				quote++
				b.WriteByte('\n')
				walkChildren(n)
				quote--
				b.WriteByte('\n')
				return
			case "a":
				href := attr(n, "href")
				start := b.Len()
				walkChildren(n)
				if href == "" || strings.HasPrefix(href, "mailto:") {
					return
				}
				if strings.TrimSpace(b.String()[start:]) == "" {
					b.WriteString(href)
				}
				links = append(links, LinkRef{Index: len(links) + 1, URL: href, Text: strings.TrimSpace(b.String()[start:])})
				fmt.Fprintf(&b, " [%d]", len(links))
				return
			}
		}
		walkChildren(n)
	}
	walk(doc)

	text := strings.ReplaceAll(b.String(), " | \n", "\n")
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " ")
	}
	return strings.TrimSpace(normalizeNewlines(strings.Join(lines, "\n"))), links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeftFunc(s, unicode.IsSpace) != s {
		out = " " + out
	}
	if strings.TrimRightFunc(s, unicode.IsSpace) != s {
		out += " "
	}
	return out
}

// sanitizeGlyphs swaps rich-text punctuation that terminals often render as tofu
func sanitizeGlyphs(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u00A0', '\u2002', '\u2003', '\u2009', '\u202F':
			b.WriteRune(' ')
		case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u00AD', '\u2060', '\u034F':
		case '\u2013', '\u2014':
			b.WriteRune('-')
		case '\u2018', '\u2019':
			b.WriteRune('\'')
		case '\u201C', '\u201D':
			b.WriteRune('"')
		case '\u2026':
			b.WriteString("...")
		case '\u2022', '\u25CF', '\u25E6':
			b.WriteRune('-')
		default:
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dropRepeatedLines removes consecutive duplicate non-blank lines
func dropRepeatedLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	prev := ""
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t != "" && t == prev {
			continue
		}
		out = append(out, ln)
		prev = t
	}
	return normalizeNewlines(strings.Join(out, "\n"))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
