// Package eml reads RFC 5322 message files into model.RawEmail.
//
// Text payloads are only transfer-decoded; charset conversion is left to the
// charset package so that wrong declarations can be recovered from.
package eml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-message"

	"github.com/dhcgn/mail-extract/model"
)

// maxDepth bounds nested multipart and message/rfc822 recursion.
const maxDepth = 32

var ErrTooDeep = errors.New("mime structure nested too deeply")

// ReadFile parses the message stored at path.
func ReadFile(path string) (model.RawEmail, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.RawEmail{}, fmt.Errorf("open eml: %w", err)
	}
	defer file.Close()

	raw, err := Parse(file)
	if err != nil {
		return model.RawEmail{}, err
	}
	raw.Source = path
	return raw, nil
}

// Parse reads one message from r.
func Parse(r io.Reader) (model.RawEmail, error) {
	entity, err := message.Read(r)
	if err != nil && !recoverable(err) {
		return model.RawEmail{}, fmt.Errorf("read message: %w", err)
	}

	raw := model.RawEmail{
		Headers: model.Headers{
			Subject: entity.Header.Get("Subject"),
			From:    entity.Header.Get("From"),
			To:      entity.Header.Get("To"),
			Date:    entity.Header.Get("Date"),
		},
	}

	if err := collect(entity, &raw, 0); err != nil {
		return model.RawEmail{}, err
	}
	return raw, nil
}

func recoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func collect(entity *message.Entity, raw *model.RawEmail, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}

	if mr := entity.MultipartReader(); mr != nil {
		for idx := 0; ; idx++ {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && !recoverable(err) {
				return fmt.Errorf("part %d: %w", idx, err)
			}
			if err := collect(part, raw, depth+1); err != nil {
				return err
			}
		}
	}

	mediaType, params := contentType(entity.Header)
	disposition, dispParams, _ := entity.Header.ContentDisposition()

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("read %s body: %w", mediaType, err)
	}

	if strings.EqualFold(disposition, "attachment") {
		filename := dispParams["filename"]
		if filename == "" {
			filename = params["name"]
		}
		if filename != "" {
			raw.Attachments = append(raw.Attachments, model.RawAttachment{
				Filename: filename,
				Data:     body,
			})
		}
		return nil
	}

	switch mediaType {
	case "text/plain", "text/html":
		raw.BodyParts = append(raw.BodyParts, model.BodyPart{
			ContentType:     mediaType,
			Payload:         body,
			DeclaredCharset: params["charset"],
		})
	case "message/rfc822":
		nested, err := message.Read(bytes.NewReader(body))
		if err != nil && !recoverable(err) {
			return nil
		}
		return collect(nested, raw, depth+1)
	}
	return nil
}

func contentType(h message.Header) (string, map[string]string) {
	mediaType, params, err := h.ContentType()
	if err != nil {
		mediaType, _, _ = strings.Cut(mediaType, ";")
		return strings.ToLower(strings.TrimSpace(mediaType)), map[string]string{}
	}
	if params == nil {
		params = map[string]string{}
	}
	return mediaType, params
}
