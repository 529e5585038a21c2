package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// BodyType selects how an outgoing body is interpreted.
type BodyType string

const (
	BodyPlain BodyType = "plain"
	BodyHTML  BodyType = "html"
)

// ParseBodyType validates a body type argument. Empty means BodyPlain.
func ParseBodyType(s string) (BodyType, error) {
	switch BodyType(strings.ToLower(strings.TrimSpace(s))) {
	case "", BodyPlain:
		return BodyPlain, nil
	case BodyHTML:
		return BodyHTML, nil
	default:
		return "", ErrInvalidBodyType
	}
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	BodyType    BodyType
	Attachments []string // local file paths
}

// Validate checks the message before anything is sent. Attachment paths
// must exist and be regular files.
func (m *EmailMessage) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if _, err := ParseBodyType(string(m.BodyType)); err != nil {
		return err
	}
	for _, p := range m.Attachments {
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			return fmt.Errorf("%w - %s", ErrAttachmentNotFound, p)
		}
	}
	return nil
}

// BuildRaw renders the message as RFC 5322 bytes, base64url encoded the way
// the provider's send endpoint expects.
func (m *EmailMessage) BuildRaw() (string, error) {
	b, err := m.Render(time.Now())
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Render builds the MIME message. HTML bodies get a generated text/plain
// alternative; attachments turn the message into multipart/mixed.
func (m *EmailMessage) Render(now time.Time) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(m.Subject)
	for _, field := range []struct {
		key   string
		addrs []string
	}{{"To", m.To}, {"Cc", m.Cc}, {"Bcc", m.Bcc}} {
		if len(field.addrs) == 0 {
			continue
		}
		list, err := mail.ParseAddressList(strings.Join(field.addrs, ", "))
		if err != nil {
			return nil, fmt.Errorf("parse %s addresses: %w", field.key, err)
		}
		h.SetAddressList(field.key, list)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	var err error
	switch {
	case len(m.Attachments) > 0:
		err = m.writeMixed(&buf, h)
	case m.BodyType == BodyHTML:
		var iw *mail.InlineWriter
		iw, err = mail.CreateInlineWriter(&buf, h)
		if err == nil {
			err = m.writeInline(iw)
		}
	default:
		h.SetContentType(mimeTextPlain, map[string]string{"charset": "utf-8"})
		var w io.WriteCloser
		w, err = mail.CreateSingleInlineWriter(&buf, h)
		if err == nil {
			err = writeAndClose(w, m.Body)
		}
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *EmailMessage) writeMixed(buf *bytes.Buffer, h mail.Header) error {
	mw, err := mail.CreateWriter(buf, h)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("create body: %w", err)
	}
	if err := m.writeInline(iw); err != nil {
		return err
	}

	for _, path := range m.Attachments {
		if err := attachFile(mw, path); err != nil {
			return err
		}
	}
	return mw.Close()
}

// writeInline writes the body parts and closes iw.
func (m *EmailMessage) writeInline(iw *mail.InlineWriter) error {
	text := m.Body
	if m.BodyType == BodyHTML {
		alt, err := HTMLToText(m.Body)
		if err != nil {
			return err
		}
		text = alt
	}

	if err := writeInlinePart(iw, mimeTextPlain, text); err != nil {
		return err
	}
	if m.BodyType == BodyHTML {
		if err := writeInlinePart(iw, mimeTextHTML, m.Body); err != nil {
			return err
		}
	}
	return iw.Close()
}

func writeInlinePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	return writeAndClose(w, body)
}

func attachFile(mw *mail.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w - %s", ErrAttachmentNotFound, path)
	}

	name := filepath.Base(path)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", ctype)
	ah.SetFilename(name)
	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("attach %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("attach %s: %w", name, err)
	}
	return w.Close()
}

func writeAndClose(w io.WriteCloser, body string) error {
	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	return w.Close()
}
