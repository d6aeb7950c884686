// Package msg reads Outlook .msg files (OLE compound files holding MAPI
// property streams) into model.RawEmail.
package msg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"

	"github.com/dhcgn/mail-extract/model"
)

var ErrNotCompoundFile = errors.New("not an OLE compound file")

// maxStreamSize caps a single property stream so corrupt sizes cannot
// trigger huge allocations.
const maxStreamSize = 256 << 20

const (
	substgPrefix     = "__substg1.0_"
	attachPrefix     = "__attach_version1.0_"
	propertiesStream = "__properties_version1.0"
)

// ReadFile parses the .msg file at path.
func ReadFile(path string) (model.RawEmail, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.RawEmail{}, fmt.Errorf("open msg: %w", err)
	}
	defer file.Close()

	raw, err := Parse(file)
	if err != nil {
		return model.RawEmail{}, err
	}
	raw.Source = path
	return raw, nil
}

// Parse reads the root message of a compound file. Recipient tables and
// embedded messages are not descended into.
func Parse(ra io.ReaderAt) (model.RawEmail, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return model.RawEmail{}, fmt.Errorf("%w: %v", ErrNotCompoundFile, err)
	}

	set := newPropertySet()
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.FileInfo().IsDir() {
			continue
		}
		if len(entry.Path) > 1 {
			continue
		}
		if entry.Name != propertiesStream && !strings.HasPrefix(entry.Name, substgPrefix) {
			continue
		}
		if entry.Size > maxStreamSize {
			return model.RawEmail{}, fmt.Errorf("stream %s: size %d exceeds limit", entry.Name, entry.Size)
		}

		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, data); err != nil {
			return model.RawEmail{}, fmt.Errorf("read stream %s: %w", entry.Name, err)
		}

		storage := ""
		if len(entry.Path) == 1 {
			storage = entry.Path[0]
		}
		set.add(storage, entry.Name, data)
	}

	return set.rawEmail(), nil
}

// propertySet groups streams by their parent storage.
type propertySet struct {
	root        properties
	attachments map[string]properties
}

func newPropertySet() *propertySet {
	return &propertySet{
		root:        properties{},
		attachments: map[string]properties{},
	}
}

func (s *propertySet) add(storage, name string, data []byte) {
	var props properties
	switch {
	case storage == "":
		props = s.root
	case strings.HasPrefix(storage, attachPrefix):
		props = s.attachments[storage]
		if props == nil {
			props = properties{}
			s.attachments[storage] = props
		}
	default:
		return
	}

	if name == propertiesStream {
		props[propertiesStream] = data
		return
	}
	tag := strings.ToUpper(strings.TrimPrefix(name, substgPrefix))
	if len(tag) != 8 {
		return
	}
	props[tag] = data
}

func (s *propertySet) rawEmail() model.RawEmail {
	root := s.root
	raw := model.RawEmail{
		Headers: model.Headers{
			Subject: root.text(propSubject),
			From:    sender(root),
			To:      root.text(propDisplayTo),
			Date:    messageDate(root),
		},
	}

	if part, ok := root.bodyPart(propBody, "text/plain", false); ok {
		raw.BodyParts = append(raw.BodyParts, part)
	}
	if part, ok := root.bodyPart(propHTML, "text/html", true); ok {
		raw.BodyParts = append(raw.BodyParts, part)
	}

	names := make([]string, 0, len(s.attachments))
	for name := range s.attachments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		props := s.attachments[name]
		data, ok := props[propAttachData+typeBinary]
		if !ok {
			continue
		}
		filename := props.text(propAttachLongFilename)
		if filename == "" {
			filename = props.text(propAttachFilename)
		}
		raw.Attachments = append(raw.Attachments, model.RawAttachment{
			Filename: filename,
			Data:     data,
		})
	}
	return raw
}

func sender(root properties) string {
	name := root.text(propSenderName)
	addr := root.text(propSenderSMTPAddress)
	if addr == "" {
		addr = root.text(propSenderEmail)
	}
	switch {
	case name != "" && addr != "" && name != addr:
		return fmt.Sprintf("%s <%s>", name, addr)
	case name != "":
		return name
	default:
		return addr
	}
}
