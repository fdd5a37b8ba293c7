package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// WrapText wraps text to width display cells. Quote prefixes are repeated on continuation lines;
// URLs and fenced code are never broken.
func WrapText(input string, width int) string {
	if width <= 0 {
		return input
	}
	lines := strings.Split(normalizeNewlines(input), "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode || runewidth.StringWidth(line) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	prefix := ""
	rest := line
	for strings.HasPrefix(rest, "> ") {
		prefix += "> "
		rest = strings.TrimPrefix(rest, "> ")
	}
	avail := width - runewidth.StringWidth(prefix)
	if avail < 10 {
		avail = 10
	}

	var out []string
	cur := ""
	flush := func() {
		out = append(out, prefix+cur)
		cur = ""
	}
	for _, tok := range strings.Fields(rest) {
		w := runewidth.StringWidth(tok)
		if w > avail && !bareURLRe.MatchString(tok) {
			if cur != "" {
				flush()
			}
			for runewidth.StringWidth(tok) > avail {
				head := runewidth.Truncate(tok, avail, "")
				out = append(out, prefix+head)
				tok = tok[len(head):]
			}
			cur = tok
			continue
		}
		switch {
		case cur == "":
			cur = tok
		case runewidth.StringWidth(cur)+1+w <= avail:
			cur += " " + tok
		default:
			flush()
			cur = tok
		}
	}
	if cur != "" {
		flush()
	}
	return out
}
