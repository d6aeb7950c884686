package msg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/emersion/go-message/textproto"
	"golang.org/x/text/encoding/unicode"

	"github.com/dhcgn/mail-extract/model"
)

// MAPI property ids, as hex strings matching stream names.
const (
	propSubject            = "0037"
	propTransportHeaders   = "007D"
	propSenderName         = "0C1A"
	propSenderEmail        = "0C1F"
	propDisplayTo          = "0E04"
	propBody               = "1000"
	propHTML               = "1013"
	propAttachData         = "3701"
	propAttachFilename     = "3704"
	propAttachLongFilename = "3707"
	propSenderSMTPAddress  = "5D01"
)

// MAPI property types.
const (
	typeString8 = "001E"
	typeUnicode = "001F"
	typeBinary  = "0102"
)

// Fixed-size PT_SYSTIME properties stored in __properties_version1.0.
const (
	tagClientSubmitTime    uint32 = 0x00390040
	tagMessageDeliveryTime uint32 = 0x0E060040
)

// The top-level message properties stream has a 32 byte header.
const rootPropertiesHeader = 32

// properties maps an 8 digit property tag to the stream contents.
type properties map[string][]byte

// text returns the unicode value of id, or the 8-bit value as raw bytes
// for the charset resolver.
func (p properties) text(id string) string {
	if data, ok := p[id+typeUnicode]; ok {
		return decodeUTF16(data)
	}
	if data, ok := p[id+typeString8]; ok {
		return string(bytes.TrimRight(data, "\x00"))
	}
	return ""
}

// bodyPart builds a body part from whichever representation of id exists.
// Text already decoded from UTF-16 is marked as library output when
// mojibake is a concern for that property.
func (p properties) bodyPart(id, contentType string, checkMojibake bool) (model.BodyPart, bool) {
	if data, ok := p[id+typeBinary]; ok {
		return model.BodyPart{ContentType: contentType, Payload: bytes.TrimRight(data, "\x00")}, true
	}
	if data, ok := p[id+typeString8]; ok {
		return model.BodyPart{ContentType: contentType, Payload: bytes.TrimRight(data, "\x00")}, true
	}
	if data, ok := p[id+typeUnicode]; ok {
		return model.BodyPart{
			ContentType: contentType,
			DecodedText: decodeUTF16(data),
			FromLibrary: checkMojibake,
		}, true
	}
	return model.BodyPart{}, false
}

func decodeUTF16(data []byte) string {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// messageDate prefers the Date transport header and falls back to the
// submit or delivery time property.
func messageDate(root properties) string {
	if headers := root.text(propTransportHeaders); headers != "" {
		if date := headerDate(headers); date != "" {
			return date
		}
	}
	for _, tag := range []uint32{tagClientSubmitTime, tagMessageDeliveryTime} {
		if t, ok := systime(root[propertiesStream], tag); ok {
			return t.Format(time.RFC1123Z)
		}
	}
	return ""
}

func headerDate(headers string) string {
	headers = strings.TrimLeft(headers, "\r\n")
	if !strings.HasSuffix(headers, "\r\n\r\n") && !strings.HasSuffix(headers, "\n\n") {
		headers += "\r\n\r\n"
	}
	h, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(headers)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h.Get("Date"))
}

// systime scans a root properties stream for a PT_SYSTIME tag.
func systime(stream []byte, tag uint32) (time.Time, bool) {
	if len(stream) < rootPropertiesHeader {
		return time.Time{}, false
	}
	for off := rootPropertiesHeader; off+16 <= len(stream); off += 16 {
		if binary.LittleEndian.Uint32(stream[off:]) != tag {
			continue
		}
		ft := binary.LittleEndian.Uint64(stream[off+8:])
		if ft == 0 {
			return time.Time{}, false
		}
		return filetimeToTime(ft), true
	}
	return time.Time{}, false
}

// filetimeToTime converts 100ns intervals since 1601-01-01 UTC.
func filetimeToTime(ft uint64) time.Time {
	const epochDelta = 116444736000000000
	if ft < epochDelta {
		return time.Unix(0, 0).UTC()
	}
	ns := (ft - epochDelta) * 100
	return time.Unix(0, int64(ns)).UTC()
}
