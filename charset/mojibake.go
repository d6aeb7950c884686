package charset

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// MojibakeRules tune ReencodeIfMojibake. They target one failure mode only:
// Cyrillic bytes that an upstream library decoded as Latin-1.
type MojibakeRules struct {
	// ScanLimit is how many leading runes are checked against CodePointThreshold.
	ScanLimit int
	// CodePointThreshold flags any scanned rune above it.
	CodePointThreshold rune
	// Markers are Latin-1 artifacts of mis-decoded Cyrillic.
	Markers []string
}

// DefaultMojibakeRules are the empirically tuned values.
var DefaultMojibakeRules = MojibakeRules{
	ScanLimit:          100,
	CodePointThreshold: 1000,
	Markers:            []string{"Ð", "Ñ"},
}

func (m MojibakeRules) withDefaults() MojibakeRules {
	out := MojibakeRules{
		ScanLimit:          m.ScanLimit,
		CodePointThreshold: m.CodePointThreshold,
		Markers:            append([]string(nil), m.Markers...),
	}
	if out.ScanLimit <= 0 {
		out.ScanLimit = DefaultMojibakeRules.ScanLimit
	}
	if out.CodePointThreshold <= 0 {
		out.CodePointThreshold = DefaultMojibakeRules.CodePointThreshold
	}
	if out.Markers == nil {
		out.Markers = append([]string(nil), DefaultMojibakeRules.Markers...)
	}
	return out
}

// Triggered reports whether text looks like mis-decoded Cyrillic.
func (m MojibakeRules) Triggered(text string) bool {
	n := 0
	for _, r := range text {
		if n >= m.ScanLimit {
			break
		}
		if r > m.CodePointThreshold {
			return true
		}
		n++
	}
	for _, marker := range m.Markers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ReencodeIfMojibake undoes a Latin-1 mis-decode of already decoded text.
// When the heuristic fires, the text is turned back into Latin-1 bytes and
// run through the fallback list. Text that cannot be represented in Latin-1
// is returned unchanged. This is a narrow fix, not a general repair routine.
func (r *Resolver) ReencodeIfMojibake(text string) string {
	if text == "" || !r.mojibake.Triggered(text) {
		return text
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		return text
	}
	return r.DecodeFallback([]byte(raw))
}
