package gmail

import (
	"encoding/base64"
	"slices"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain    = "text/plain"
	mimeTextHTML     = "text/html"
	mimeMultipartAlt = "multipart/alternative"
)

// Normalize flattens a provider message into an EmailRecord. Body is always
// BodyNotIncluded; use ExtractBody for the text.
//
// Subject matching is case-insensitive; From, To and Date are matched
// exactly. The first matching header wins.
func Normalize(msg *gmail.Message) EmailRecord {
	rec := EmailRecord{
		ID:         msg.Id,
		Subject:    NoSubject,
		Sender:     NoSender,
		Recipients: NoRecipients,
		Snippet:    NoSnippet,
		Date:       NoDate,
		Starred:    slices.Contains(msg.LabelIds, starredLabelID),
		Labels:     strings.Join(msg.LabelIds, labelSeparator),
		Body:       BodyNotIncluded,
	}
	if msg.Snippet != "" {
		rec.Snippet = msg.Snippet
	}

	payload := msg.Payload
	if payload == nil {
		return rec
	}

	var gotSubject, gotFrom, gotTo, gotDate bool
	for _, h := range payload.Headers {
		if h == nil {
			continue
		}
		switch {
		case !gotSubject && strings.ToLower(h.Name) == "subject":
			rec.Subject, gotSubject = h.Value, true
		case !gotFrom && h.Name == "From":
			rec.Sender, gotFrom = h.Value, true
		case !gotTo && h.Name == "To":
			rec.Recipients, gotTo = h.Value, true
		case !gotDate && h.Name == "Date":
			rec.Date, gotDate = h.Value, true
		}
	}

	for _, p := range payload.Parts {
		if p != nil && p.Filename != "" {
			rec.HasAttachments = true
			break
		}
	}
	return rec
}

// ExtractBody returns the plain-text body of a message payload, or
// BodyNotAvailable.
//
// Top-level parts are scanned in order and the first usable text wins: a
// multipart/alternative part contributes its first text/plain sub-part with
// data, and a text/plain part contributes its own data. A payload without
// parts is decoded directly.
func ExtractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return BodyNotAvailable
	}

	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			if part == nil {
				continue
			}
			switch part.MimeType {
			case mimeMultipartAlt:
				for _, sub := range part.Parts {
					if sub != nil && sub.MimeType == mimeTextPlain && hasData(sub) {
						if text, ok := decodeBody(sub.Body.Data); ok {
							return text
						}
					}
				}
			case mimeTextPlain:
				if hasData(part) {
					if text, ok := decodeBody(part.Body.Data); ok {
						return text
					}
				}
			}
		}
		return BodyNotAvailable
	}

	if hasData(payload) {
		if text, ok := decodeBody(payload.Body.Data); ok {
			return text
		}
	}
	return BodyNotAvailable
}

// ExtractHTML returns the first text/html body found anywhere in the tree.
func ExtractHTML(payload *gmail.MessagePart) (string, bool) {
	var found string
	var ok bool
	walkParts(payload, func(p *gmail.MessagePart) bool {
		if p.MimeType == mimeTextHTML && hasData(p) {
			found, ok = decodeBody(p.Body.Data)
			return !ok
		}
		return true
	})
	return found, ok
}

// walkParts visits parts depth-first until fn returns false.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart) bool) bool {
	if part == nil {
		return true
	}
	if !fn(part) {
		return false
	}
	for _, sub := range part.Parts {
		if !walkParts(sub, fn) {
			return false
		}
	}
	return true
}

func hasData(p *gmail.MessagePart) bool {
	return p.Body != nil && p.Body.Data != ""
}

// decodeBody decodes URL-safe base64 with or without padding.
func decodeBody(data string) (string, bool) {
	data = strings.TrimSpace(data)
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), true
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b), true
	}
	return "", false
}
