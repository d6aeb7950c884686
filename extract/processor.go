package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dhcgn/mail-extract/charset"
	"github.com/dhcgn/mail-extract/filter"
	"github.com/dhcgn/mail-extract/model"
	"github.com/dhcgn/mail-extract/output"
	"github.com/dhcgn/mail-extract/reader"
	"github.com/dhcgn/mail-extract/thread"
)

// ReadFunc loads every email stored in one container file.
type ReadFunc func(ctx context.Context, path string, logger *slog.Logger) ([]model.RawEmail, error)

// Processor runs the full pipeline for a single file:
// read, normalize, filter, segment, write.
type Processor struct {
	Read      ReadFunc
	Resolver  *charset.Resolver
	Segmenter *thread.Segmenter
	Filter    *filter.Filter
	Layout    output.Layout
	Writer    output.Writer
	DryRun    bool
	Logger    *slog.Logger
}

// Result describes what Process did with one file.
type Result struct {
	Path        string
	Emails      int
	Filtered    int
	Segments    int
	Attachments int
	Files       []string
	Messages    []Message
}

// Message is one email after segmentation.
type Message struct {
	Email    model.NormalizedEmail
	Segments []model.MessageSegment
}

// NewProcessor returns a Processor with default collaborators for any nil
// field of p.
func NewProcessor(p Processor) *Processor {
	if p.Read == nil {
		p.Read = reader.Read
	}
	if p.Resolver == nil {
		p.Resolver = charset.New(charset.Options{})
	}
	if p.Segmenter == nil {
		p.Segmenter = thread.New(nil)
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &p
}

// Process extracts every email found at path.
func (p *Processor) Process(ctx context.Context, path string) (Result, error) {
	result := Result{Path: path}

	raws, err := p.Read(ctx, path, p.Logger)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Emails++

		email := Normalize(raw, p.Resolver)
		if !p.Filter.Allows(email) {
			result.Filtered++
			p.Logger.Debug("email filtered", "file", path, "index", email.Index, "subject", email.Headers.Subject)
			continue
		}

		segments := p.Segmenter.Segment(email)
		result.Segments += len(segments)
		result.Messages = append(result.Messages, Message{Email: email, Segments: segments})

		if p.DryRun {
			for _, seg := range segments {
				result.Attachments += len(seg.Attachments)
			}
			continue
		}

		emailDir := p.Layout.EmailDir(email)
		for _, seg := range segments {
			files, err := p.Writer.SaveSegment(seg, p.Layout.SegmentDir(emailDir, seg.ThreadIndex))
			result.Files = append(result.Files, files...)
			result.Attachments += len(seg.Attachments)
			if err != nil {
				return result, fmt.Errorf("save segment %d of %s: %w", seg.ThreadIndex, filepath.Base(path), err)
			}
		}
	}

	return result, nil
}
