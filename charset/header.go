package charset

import (
	"io"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"
)

var encodedWord = regexp.MustCompile(`=\?([^?\s]+)\?[bBqQ]\?[^?\s]*\?=`)

// DecodeHeader decodes RFC 2047 encoded words. Each word is decoded with its
// own charset and falls back through the priority list when that fails.
// Whitespace between adjacent encoded words is dropped. Undecodable words are
// kept verbatim.
func (r *Resolver) DecodeHeader(value string) string {
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "=?") {
		return r.decodeBare(value)
	}

	matches := encodedWord.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return r.decodeBare(value)
	}

	dec := &mime.WordDecoder{CharsetReader: r.charsetReader}

	var sb strings.Builder
	prevEnd := 0
	prevWasWord := false
	for _, m := range matches {
		between := value[prevEnd:m[0]]
		if !(prevWasWord && strings.TrimSpace(between) == "") {
			sb.WriteString(r.decodeBare(between))
		}

		word := value[m[0]:m[1]]
		text, err := dec.Decode(word)
		switch {
		case err != nil:
			sb.WriteString(word)
		case strings.EqualFold(charsetLabel(value[m[2]:m[3]]), "utf-8"):
			// utf-8 words are copied through without reaching the CharsetReader.
			sb.WriteString(r.decodeBare(text))
		default:
			sb.WriteString(text)
		}

		prevEnd = m[1]
		prevWasWord = true
	}
	sb.WriteString(r.decodeBare(value[prevEnd:]))
	return sb.String()
}

// charsetReader decodes one word payload with its declared charset, or
// through the fallback list when that fails.
func (r *Resolver) charsetReader(label string, input io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	if text, ok := DecodeStrict(raw, charsetLabel(label)); ok {
		return strings.NewReader(text), nil
	}
	return strings.NewReader(r.DecodeFallback(raw)), nil
}

// charsetLabel strips an RFC 2231 language suffix such as "utf-8*en".
func charsetLabel(label string) string {
	if i := strings.IndexByte(label, '*'); i >= 0 {
		return label[:i]
	}
	return label
}

func (r *Resolver) decodeBare(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return r.DecodeFallback([]byte(s))
}
