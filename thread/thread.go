// Package thread splits a flattened email body into the messages of a thread.
//
// Splitting is a heuristic over literal separators, not a parser. A quoted
// "From:" inside a reply will split the body too; that is expected. Change
// the separator list only together with a test corpus that shows the gain.
package thread

import (
	"strings"

	"github.com/dhcgn/mail-extract/model"
)

// SeparatorsVersion identifies DefaultSeparators. Bump it with every change.
const SeparatorsVersion = 1

// DefaultSeparators are applied in order.
var DefaultSeparators = []string{
	"\n________________________________\n",
	"\n-----Original Message-----\n",
	"\nFrom:",
	"\n\nOn ",
}

// Segmenter is immutable and safe for concurrent use.
type Segmenter struct {
	separators []string
}

// New returns a Segmenter using separators in order. Empty separators are
// ignored; a nil list selects DefaultSeparators.
func New(separators []string) *Segmenter {
	if separators == nil {
		separators = DefaultSeparators
	}
	s := &Segmenter{separators: make([]string, 0, len(separators))}
	for _, sep := range separators {
		if sep != "" {
			s.separators = append(s.separators, sep)
		}
	}
	return s
}

// Separators returns a copy of the separator list.
func (s *Segmenter) Separators() []string {
	return append([]string(nil), s.separators...)
}

// Segment splits the body of email. Headers are copied onto every segment.
func (s *Segmenter) Segment(email model.NormalizedEmail) []model.MessageSegment {
	segments := s.Split(email.Body, email.Attachments)
	for i := range segments {
		segments[i].Headers = email.Headers
	}
	return segments
}

// Split partitions body. The first surviving fragment gets ThreadIndex 0 and
// all attachments; the rest get none. With fewer than two non-blank
// fragments the body is returned unsplit as a single segment.
func (s *Segmenter) Split(body string, attachments []model.Attachment) []model.MessageSegment {
	fragments := []string{body}
	for _, sep := range s.separators {
		next := make([]string, 0, len(fragments))
		for _, fragment := range fragments {
			next = append(next, strings.Split(fragment, sep)...)
		}
		fragments = next
	}

	segments := make([]model.MessageSegment, 0, len(fragments))
	for _, fragment := range fragments {
		text := strings.TrimSpace(fragment)
		if text == "" {
			continue
		}
		segment := model.MessageSegment{
			BodyText:    text,
			ThreadIndex: len(segments),
			Attachments: []model.Attachment{},
		}
		if segment.ThreadIndex == 0 {
			segment.Attachments = copyAttachments(attachments)
		}
		segments = append(segments, segment)
	}

	if len(segments) < 2 {
		return []model.MessageSegment{{
			BodyText:    body,
			ThreadIndex: 0,
			Attachments: copyAttachments(attachments),
		}}
	}
	return segments
}

func copyAttachments(in []model.Attachment) []model.Attachment {
	out := make([]model.Attachment, len(in))
	copy(out, in)
	return out
}
