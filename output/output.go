// Package output lays out extracted segments on disk.
//
//	<base>/<file stem>/message_<threadIndex>/<attachment>
//	<base>/<file stem>/email_<n>/message_<threadIndex>/<attachment>   (mbox)
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhcgn/mail-extract/model"
)

var ErrEmptyDir = errors.New("output directory is empty")

// BodyFilename is the name used when segment bodies are written.
const BodyFilename = "body.txt"

// maxCollisions bounds the numeric suffix search.
const maxCollisions = 100000

// Layout maps emails and segments to directories under BaseDir.
type Layout struct {
	BaseDir string
}

// EmailDir returns the directory for one email of source.
func (l Layout) EmailDir(email model.NormalizedEmail) string {
	stem := strings.TrimSuffix(filepath.Base(email.Source), filepath.Ext(email.Source))
	stem = sanitize(stem, "email")
	dir := filepath.Join(l.BaseDir, stem)
	if email.InArchive {
		dir = filepath.Join(dir, "email_"+strconv.Itoa(email.Index))
	}
	return dir
}

// SegmentDir returns the directory for a segment inside emailDir.
func (l Layout) SegmentDir(emailDir string, threadIndex int) string {
	return filepath.Join(emailDir, "message_"+strconv.Itoa(threadIndex))
}

// Writer persists segments. The zero value only writes attachments.
type Writer struct {
	WriteBodies bool
	FileMode    os.FileMode
	DirMode     os.FileMode
}

// SaveSegment writes the segment's attachments, and its body when enabled,
// into dir. Nothing is created for a segment with nothing to write.
func (w Writer) SaveSegment(segment model.MessageSegment, dir string) ([]string, error) {
	if len(segment.Attachments) == 0 && !w.WriteBodies {
		return nil, nil
	}

	written, err := w.SaveAttachments(segment.Attachments, dir)
	if err != nil {
		return written, err
	}
	if w.WriteBodies {
		path, err := w.create(dir, BodyFilename, []byte(segment.BodyText))
		if err != nil {
			return written, fmt.Errorf("write body: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}

// SaveAttachments writes each attachment into dir. A name that already
// exists gets "_1", "_2", ... inserted before its extension.
func (w Writer) SaveAttachments(attachments []model.Attachment, dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrEmptyDir
	}
	if err := os.MkdirAll(dir, w.dirMode()); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	written := make([]string, 0, len(attachments))
	for _, att := range attachments {
		path, err := w.create(dir, sanitize(att.Filename, "attachment"), att.Data)
		if err != nil {
			return written, fmt.Errorf("write attachment %q: %w", att.Filename, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// create writes data to the first free name derived from filename. O_EXCL
// keeps concurrent writers from claiming the same name.
func (w Writer) create(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, w.dirMode()); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ext := extension(filename)
	base := strings.TrimSuffix(filename, ext)
	candidate := filename

	for counter := 1; counter <= maxCollisions; counter++ {
		path := filepath.Join(dir, candidate)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, w.fileMode())
		if errors.Is(err, os.ErrExist) {
			candidate = base + "_" + strconv.Itoa(counter) + ext
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return "", err
		}
		if err := file.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", filename, maxCollisions)
}

func (w Writer) fileMode() os.FileMode {
	if w.FileMode == 0 {
		return 0o644
	}
	return w.FileMode
}

func (w Writer) dirMode() os.FileMode {
	if w.DirMode == 0 {
		return 0o755
	}
	return w.DirMode
}

// extension returns the extension of filename. A dotfile such as ".bashrc"
// has none.
func extension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) == len(filename) {
		return ""
	}
	return ext
}

// sanitize reduces name to a single path element.
func sanitize(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return fallback
	}
	return name
}
