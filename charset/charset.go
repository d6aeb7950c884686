// Package charset turns bytes of unknown or unreliable encoding into text.
//
// The Resolver never fails: every decode attempt that does not validate is
// dropped and the next candidate is tried, ending in a lossy UTF-8 decode.
// A Resolver is immutable after New and safe for concurrent use.
package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncodings is the fallback priority list. It favours Cyrillic
// mailboxes; override it through Options.Encodings.
var DefaultEncodings = []string{"utf-8", "cp1251", "windows-1251", "koi8-r", "iso-8859-5", "latin-1"}

// DefaultMinConfidence is the detector confidence a guess must exceed.
const DefaultMinConfidence = 0.7

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	Encodings     []string
	Detector      Detector
	MinConfidence float64
	Mojibake      MojibakeRules
}

type Resolver struct {
	encodings     []string
	detector      Detector
	minConfidence float64
	mojibake      MojibakeRules
}

func New(opts Options) *Resolver {
	r := &Resolver{
		encodings:     append([]string(nil), opts.Encodings...),
		detector:      opts.Detector,
		minConfidence: opts.MinConfidence,
		mojibake:      opts.Mojibake.withDefaults(),
	}
	if len(r.encodings) == 0 {
		r.encodings = append([]string(nil), DefaultEncodings...)
	}
	if r.detector == nil {
		r.detector = NoopDetector{}
	}
	if r.minConfidence <= 0 {
		r.minConfidence = DefaultMinConfidence
	}
	return r
}

// Encodings returns a copy of the fallback priority list.
func (r *Resolver) Encodings() []string {
	return append([]string(nil), r.encodings...)
}

// Decode returns payload as text. The declared charset is tried first, then
// the detector's guess, then the fallback list, then lossy UTF-8.
func (r *Resolver) Decode(payload []byte, declared string) string {
	if len(payload) == 0 {
		return ""
	}

	if declared = strings.TrimSpace(declared); declared != "" {
		if text, ok := DecodeStrict(payload, declared); ok {
			return text
		}
	}

	if name, confidence, ok := r.detector.Detect(payload); ok && confidence > r.minConfidence {
		if text, ok := DecodeStrict(payload, name); ok {
			return text
		}
	}

	return r.DecodeFallback(payload)
}

// DecodeFallback runs only the fixed priority list and the lossy UTF-8 decode.
func (r *Resolver) DecodeFallback(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	for _, name := range r.encodings {
		if text, ok := DecodeStrict(payload, name); ok {
			return text
		}
	}
	return strings.ToValidUTF8(string(payload), string(utf8.RuneError))
}

// DecodeStrict decodes payload with the named charset and reports false when
// the label is unknown or payload holds bytes the charset does not define.
func DecodeStrict(payload []byte, label string) (string, bool) {
	name := canonicalName(label)
	switch name {
	case "":
		return "", false
	case "utf-8":
		if !utf8.Valid(payload) {
			return "", false
		}
		return string(payload), true
	case "us-ascii":
		for _, b := range payload {
			if b >= utf8.RuneSelf {
				return "", false
			}
		}
		return string(payload), true
	}

	enc := lookup(name)
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	// x/text maps undefined bytes to U+FFFD instead of failing.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

var aliases = map[string]string{
	"utf8":           "utf-8",
	"unicode-1-1":    "utf-8",
	"ascii":          "us-ascii",
	"cp1250":         "windows-1250",
	"cp1251":         "windows-1251",
	"cp-1251":        "windows-1251",
	"win-1251":       "windows-1251",
	"x-cp1251":       "windows-1251",
	"cp1252":         "windows-1252",
	"cp866":          "ibm866",
	"koi8r":          "koi8-r",
	"koi8u":          "koi8-u",
	"latin-1":        "iso-8859-1",
	"latin1":         "iso-8859-1",
	"l1":             "iso-8859-1",
	"iso8859-1":      "iso-8859-1",
	"iso8859-5":      "iso-8859-5",
	"iso_8859-5":     "iso-8859-5",
	"cyrillic":       "iso-8859-5",
	"x-mac-cyrillic": "macintosh-cyrillic",
}

func canonicalName(label string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.Trim(name, `"'`)
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}

// lookup prefers the IANA registry so that iso-8859-1 stays Latin-1; the
// WHATWG index only covers labels IANA does not know.
func lookup(name string) encoding.Encoding {
	switch name {
	case "iso-8859-1":
		return charmap.ISO8859_1
	case "windows-1251":
		return charmap.Windows1251
	case "macintosh-cyrillic":
		return charmap.MacintoshCyrillic
	}
	if enc, err := ianaindex.MIME.Encoding(name); err == nil && enc != nil {
		return enc
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc
	}
	return nil
}
