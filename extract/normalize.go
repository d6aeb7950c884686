// Package extract turns raw container output into decoded, segmented emails
// and writes their attachments.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/dhcgn/mail-extract/charset"
	"github.com/dhcgn/mail-extract/model"
)

// DefaultSubject replaces a missing or empty subject.
const DefaultSubject = "No Subject"

// Normalize decodes every string of raw. Only the first non-empty text/plain
// and the first non-empty text/html part are used.
func Normalize(raw model.RawEmail, resolver *charset.Resolver) model.NormalizedEmail {
	email := model.NormalizedEmail{
		Source:    raw.Source,
		Index:     raw.Index,
		InArchive: raw.InArchive,
		Headers: model.Headers{
			Subject: resolver.DecodeHeader(raw.Headers.Subject),
			From:    resolver.DecodeHeader(raw.Headers.From),
			To:      resolver.DecodeHeader(raw.Headers.To),
			Date:    strings.TrimSpace(raw.Headers.Date),
		},
	}
	if strings.TrimSpace(email.Headers.Subject) == "" {
		email.Headers.Subject = DefaultSubject
	}

	var havePlain, haveHTML bool
	for _, part := range raw.BodyParts {
		if len(part.Payload) == 0 && !part.HasText() {
			continue
		}
		switch mediaType(part.ContentType) {
		case "text/plain":
			if !havePlain {
				email.Body = bodyText(part, resolver)
				havePlain = true
			}
		case "text/html":
			if !haveHTML {
				email.BodyHTML = bodyText(part, resolver)
				haveHTML = true
			}
		}
	}

	if len(raw.Attachments) > 0 {
		email.Attachments = make([]model.Attachment, 0, len(raw.Attachments))
		for _, att := range raw.Attachments {
			email.Attachments = append(email.Attachments, model.Attachment{
				Filename: Filename(att, resolver),
				Data:     att.Data,
			})
		}
	}

	return email
}

// Filename decodes an attachment name. Encoded words go through header
// decoding, raw 8-bit names through the charset cascade.
func Filename(att model.RawAttachment, resolver *charset.Resolver) string {
	name := att.Filename
	switch {
	case strings.Contains(name, "=?"):
		return resolver.DecodeHeader(name)
	case att.FilenameCharset != "":
		return resolver.Decode([]byte(name), att.FilenameCharset)
	case !utf8.ValidString(name):
		return resolver.DecodeFallback([]byte(name))
	}
	return name
}

func bodyText(part model.BodyPart, resolver *charset.Resolver) string {
	if part.HasText() {
		if part.FromLibrary {
			return resolver.ReencodeIfMojibake(part.DecodedText)
		}
		return part.DecodedText
	}
	return resolver.Decode(part.Payload, part.DeclaredCharset)
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
