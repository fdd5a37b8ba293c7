package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajramos/echomail/internal/mailbox"
	gmailapi "google.golang.org/api/gmail/v1"
)

// BuildRaw renders req as an RFC 5322 message encoded the way the Gmail send endpoint expects
func BuildRaw(req mailbox.SendRequest) (string, error) {
	if strings.TrimSpace(req.To) == "" {
		return "", fmt.Errorf("build message: empty recipient")
	}

	var buf bytes.Buffer
	header := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
		}
	}
	header("To", strings.TrimRight(strings.TrimSpace(req.To), ","))
	header("Cc", strings.TrimRight(strings.TrimSpace(req.CC), ","))
	header("Bcc", strings.TrimRight(strings.TrimSpace(req.BCC), ","))
	header("Subject", mime.QEncoding.Encode("utf-8", req.Subject))
	header("In-Reply-To", req.MessageID)
	header("References", req.MessageID)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(req.Attachments) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQP(&buf, req.Body); err != nil {
			return "", err
		}
		return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return "", err
	}
	if err := writeQP(text, req.Body); err != nil {
		return "", err
	}

	for _, a := range req.Attachments {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return "", fmt.Errorf("read attachment %s: %w", a.Filename, err)
		}
		name := a.Filename
		if name == "" {
			name = filepath.Base(a.Path)
		}
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ctype},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return "", err
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(data); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func writeQP(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func extractHeader(msg *gmailapi.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ExtractPlainText returns the first text/plain part of msg
func ExtractPlainText(msg *gmailapi.Message) string {
	if msg == nil {
		return ""
	}
	return findPart(msg.Payload, "text/plain")
}

// ExtractHTML returns the first text/html part of msg
func ExtractHTML(msg *gmailapi.Message) string {
	if msg == nil {
		return ""
	}
	return findPart(msg.Payload, "text/html")
}

// findPart walks the MIME tree depth-first. Gmail has already undone the transfer encoding, so
// part data is only base64url.
func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.Body != nil && part.Body.Data != "" && part.Filename == "" && strings.EqualFold(part.MimeType, mimeType) {
		data, err := decodeData(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}
	for _, p := range part.Parts {
		if s := findPart(p, mimeType); s != "" {
			return s
		}
	}
	return ""
}

func decodeData(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func collectAttachments(part *gmailapi.MessagePart) []mailbox.AttachmentInfo {
	var out []mailbox.AttachmentInfo
	var walk func(p *gmailapi.MessagePart)
	walk = func(p *gmailapi.MessagePart) {
		if p == nil {
			return
		}
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			out = append(out, mailbox.AttachmentInfo{
				AttachmentID: p.Body.AttachmentId,
				Filename:     p.Filename,
				MimeType:     p.MimeType,
				Size:         p.Body.Size,
			})
		}
		for _, c := range p.Parts {
			walk(c)
		}
	}
	walk(part)
	return out
}
