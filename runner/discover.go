package runner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dhcgn/mail-extract/reader"
)

// Discover lists the files to process. A file input is returned as is so an
// unsupported extension is reported by the reader. A folder yields its
// supported files in lexical order.
func Discover(input string, recursive bool) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	var paths []string
	if recursive {
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && reader.Supported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	} else {
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("read folder: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && reader.Supported(entry.Name()) {
				paths = append(paths, filepath.Join(input, entry.Name()))
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}
