package cmd

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhcgn/mail-extract/extract"
	"github.com/dhcgn/mail-extract/model"
)

// saveSegmentReport writes one CSV row per segment to
// <dir>/report_<file stem>.csv and returns the path.
func saveSegmentReport(result extract.Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(result.Path), filepath.Ext(result.Path))
	path := filepath.Join(dir, "report_"+normalizeName(stem)+".csv")

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := writeSegmentRecords(file, result); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}

func writeSegmentRecords(w io.Writer, result extract.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Email", "ThreadIndex", "Subject", "From", "Date", "Attachments", "Text"}); err != nil {
		return err
	}

	for _, msg := range result.Messages {
		for _, seg := range msg.Segments {
			record := []string{
				strconv.Itoa(msg.Email.Index),
				strconv.Itoa(seg.ThreadIndex),
				seg.Headers.Subject,
				seg.Headers.From,
				seg.Headers.Date,
				attachmentNames(seg.Attachments),
				seg.BodyText,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func attachmentNames(atts []model.Attachment) string {
	names := make([]string, 0, len(atts))
	for _, att := range atts {
		names = append(names, att.Filename)
	}
	return strings.Join(names, "; ")
}

func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
