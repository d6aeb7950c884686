// Package mbox streams the messages of an mbox archive as raw emails.
package mbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mail-extract/eml"
	"github.com/dhcgn/mail-extract/model"
)

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(path string, logger *slog.Logger) (Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &fileReader{path: path, logger: logger}, nil
}

type fileReader struct {
	path   string
	logger *slog.Logger
}

func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return stream(ctx, file, f.path, f.logger, out)
}

// stream sends one envelope per message. A message that fails to parse is
// sent as an envelope error and the stream continues; only a broken archive
// or a cancelled context ends it early.
func stream(ctx context.Context, r io.Reader, source string, logger *slog.Logger, out chan<- model.Envelope) error {
	reader := mboxlib.NewReader(r)

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}

		email, err := eml.Parse(bytes.NewReader(raw))
		if err != nil {
			err = fmt.Errorf("message %d parse: %w", idx, err)
			if logger != nil {
				logger.Warn("mbox message skipped", "path", source, "err", err)
			}
			if err := emit(ctx, out, model.Envelope{Err: err}); err != nil {
				return err
			}
			continue
		}

		email.Source = source
		email.Index = idx
		email.InArchive = true

		if err := emit(ctx, out, model.Envelope{Email: email}); err != nil {
			return err
		}
	}
}

func emit(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// ReadAll collects every message of the archive at path. Messages that fail
// to parse are returned as errors next to the emails that did parse.
func ReadAll(ctx context.Context, path string, logger *slog.Logger) ([]model.RawEmail, []error, error) {
	reader, err := NewReader(path, logger)
	if err != nil {
		return nil, nil, err
	}
	return collect(ctx, reader)
}

func collect(ctx context.Context, reader Reader) ([]model.RawEmail, []error, error) {
	out := make(chan model.Envelope, 16)
	done := make(chan error, 1)

	go func() {
		done <- reader.Stream(ctx, out)
		close(out)
	}()

	var (
		emails []model.RawEmail
		errs   []error
	)
	for env := range out {
		if env.Err != nil {
			errs = append(errs, env.Err)
			continue
		}
		emails = append(emails, env.Email)
	}

	if err := <-done; err != nil {
		return emails, errs, err
	}
	return emails, errs, nil
}

// CountMessages counts the messages in an mbox file without parsing them.
func CountMessages(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return 0, fmt.Errorf("message %d read: %w", count, err)
		}
		count++
	}
}
