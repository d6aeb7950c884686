// Package reader picks the container reader for a file by its extension.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dhcgn/mail-extract/eml"
	"github.com/dhcgn/mail-extract/mbox"
	"github.com/dhcgn/mail-extract/model"
	"github.com/dhcgn/mail-extract/msg"
)

var ErrUnsupportedFormat = errors.New("unsupported email format")

// Extensions lists the supported file extensions, lower-cased.
var Extensions = []string{".eml", ".msg", ".mbox"}

// Supported reports whether path has a supported extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read returns the emails stored in path. Single-message formats yield one
// email. For mbox archives, messages that fail to parse are logged and
// skipped while the rest are returned.
func Read(ctx context.Context, path string, logger *slog.Logger) ([]model.RawEmail, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".eml":
		email, err := eml.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []model.RawEmail{email}, nil
	case ".msg":
		email, err := msg.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []model.RawEmail{email}, nil
	case ".mbox":
		emails, errs, err := mbox.ReadAll(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		if len(emails) == 0 && len(errs) > 0 {
			return nil, fmt.Errorf("no readable message in archive: %w", errors.Join(errs...))
		}
		return emails, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
