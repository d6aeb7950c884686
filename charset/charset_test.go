package charset_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/dhcgn/mail-extract/charset"
)

func encode(t *testing.T, enc *charmap.Charmap, s string) []byte {
	t.Helper()
	out, err := enc.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func TestDecode_EmptyPayload(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	assert.Equal(t, "", r.Decode(nil, ""))
	assert.Equal(t, "", r.Decode([]byte{}, "utf-8"))
}

func TestDecode_UTF8WithoutHint(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	assert.Equal(t, "Привет, world ☺", r.Decode([]byte("Привет, world ☺"), ""))
}

func TestDecode_WrongDeclaredCharsetFallsThrough(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	payload := encode(t, charmap.Windows1251, "Привет, как дела?")

	assert.Equal(t, "Привет, как дела?", r.Decode(payload, "utf-8"))
}

func TestDecode_UnknownDeclaredCharset(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	assert.Equal(t, "plain text", r.Decode([]byte("plain text"), "x-no-such-charset"))
}

func TestDecode_DeclaredCharsetWins(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	payload := encode(t, charmap.KOI8R, "Привет")

	assert.Equal(t, "Привет", r.Decode(payload, "KOI8-R"))
}

func TestDecode_Detector(t *testing.T) {
	t.Parallel()

	payload := encode(t, charmap.KOI8R, "Привет")

	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{name: "confident guess is used", confidence: 0.9, want: "Привет"},
		// cp1251 reads KOI8-R bytes without error, just wrongly.
		{name: "weak guess is ignored", confidence: 0.5, want: string(mustDecode(t, charmap.Windows1251, payload))},
		{name: "threshold is exclusive", confidence: 0.7, want: string(mustDecode(t, charmap.Windows1251, payload))},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := charset.New(charset.Options{
				Detector: charset.DetectorFunc(func([]byte) (string, float64, bool) {
					return "koi8-r", tt.confidence, true
				}),
			})
			assert.Equal(t, tt.want, r.Decode(payload, ""))
		})
	}
}

func mustDecode(t *testing.T, enc *charmap.Charmap, b []byte) []byte {
	t.Helper()
	out, err := enc.NewDecoder().Bytes(b)
	require.NoError(t, err)
	return out
}

func TestDecode_PriorityListIsConfigurable(t *testing.T) {
	t.Parallel()

	payload := encode(t, charmap.KOI8R, "Привет")
	r := charset.New(charset.Options{Encodings: []string{"utf-8", "koi8-r"}})

	assert.Equal(t, "Привет", r.Decode(payload, ""))
	assert.Equal(t, []string{"utf-8", "koi8-r"}, r.Encodings())
}

func TestDecode_LossyFallback(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{Encodings: []string{"utf-8"}})
	got := r.Decode([]byte{'o', 'k', 0xff, '!'}, "")

	assert.Equal(t, "ok�!", got)
}

func TestDecode_NeverPanics(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{Encodings: []string{"utf-8", "no-such-charset"}})
	inputs := [][]byte{
		{0x00},
		{0xc3},
		{0xff, 0xfe, 0xfd},
		{0xe2, 0x82},
		[]byte("\x98\x98\x98"),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_ = r.Decode(in, "utf-16")
		})
	}
}

func TestDecodeStrict_UndefinedByte(t *testing.T) {
	t.Parallel()

	// 0x98 is not assigned in windows-1251.
	_, ok := charset.DecodeStrict([]byte{0xcf, 0x98}, "cp1251")
	assert.False(t, ok)

	text, ok := charset.DecodeStrict([]byte{0xcf, 0x98}, "latin-1")
	assert.True(t, ok)
	assert.Equal(t, "Ï\u0098", text)
}

func TestDecodeStrict_Aliases(t *testing.T) {
	t.Parallel()

	payload := []byte{0xcf, 0xf0, 0xe8}
	for _, label := range []string{"cp1251", "CP1251", "windows-1251", "Windows-1251", " x-cp1251 "} {
		text, ok := charset.DecodeStrict(payload, label)
		require.True(t, ok, label)
		assert.Equal(t, "При", text, label)
	}
}

func TestReencodeIfMojibake(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	// UTF-8 Cyrillic read as Latin-1 starts with Ð or Ñ.
	garbled := string(mustDecode(t, charmap.ISO8859_1, []byte("Привет, мир")))

	assert.Equal(t, "Привет, мир", r.ReencodeIfMojibake(garbled))
}

func TestReencodeIfMojibake_LeavesCleanText(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})

	assert.Equal(t, "plain ascii", r.ReencodeIfMojibake("plain ascii"))
	assert.Equal(t, "", r.ReencodeIfMojibake(""))
}

func TestReencodeIfMojibake_NotLatin1Representable(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	// Already correct Cyrillic trips the code point check but cannot be
	// encoded as Latin-1, so it is kept.
	assert.Equal(t, "Привет", r.ReencodeIfMojibake("Привет"))
}

func TestMojibakeRules_Configurable(t *testing.T) {
	t.Parallel()

	rules := charset.MojibakeRules{ScanLimit: 3, CodePointThreshold: 1000, Markers: []string{}}
	assert.False(t, rules.Triggered("abcПривет"))
	assert.True(t, rules.Triggered("abПривет"))

	rules = charset.MojibakeRules{ScanLimit: 100, CodePointThreshold: 1000, Markers: []string{"Ï"}}
	assert.True(t, rules.Triggered("Ïðèâåò"))
	assert.False(t, charset.DefaultMojibakeRules.Triggered("Ïðèâåò"))
}

func TestDecodeHeader(t *testing.T) {
	t.Parallel()

	r := charset.New(charset.Options{})
	cp1251 := base64.StdEncoding.EncodeToString(encode(t, charmap.Windows1251, "Отчёт"))
	// "И" is D0 98 in UTF-8 and 0x98 is undefined in windows-1251.
	utf8Name := base64.StdEncoding.EncodeToString([]byte("Иван"))

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "plain", value: "Quarterly report", want: "Quarterly report"},
		{name: "q encoding", value: "=?utf-8?Q?Caf=C3=A9_menu?=", want: "Café menu"},
		{name: "b encoding", value: "=?UTF-8?B?0J/RgNC40LLQtdGC?=", want: "Привет"},
		{name: "mixed with plain text", value: "Re: =?utf-8?q?Caf=C3=A9?= today", want: "Re: Café today"},
		{name: "adjacent words join", value: "=?utf-8?q?ab?= =?utf-8?q?cd?=", want: "abcd"},
		{name: "declared cp1251", value: "=?windows-1251?B?" + cp1251 + "?=", want: "Отчёт"},
		{name: "wrong declared charset", value: "=?utf-8?B?" + cp1251 + "?=", want: "Отчёт"},
		{name: "declared charset rejects bytes", value: "=?windows-1251?B?" + utf8Name + "?=", want: "Иван"},
		{name: "unknown charset", value: "=?x-unknown?Q?hello?=", want: "hello"},
		{name: "unknown charset 8-bit", value: "=?x-unknown?B?" + cp1251 + "?=", want: "Отчёт"},
		{name: "latin-1 word", value: "=?ISO-8859-1?Q?caf=E9?=", want: "café"},
		{name: "broken base64 kept", value: "=?utf-8?B?!!!?=", want: "=?utf-8?B?!!!?="},
		{name: "wrong declared charset with language", value: "=?UTF-8*ru?B?" + cp1251 + "?=", want: "Отчёт"},
		{name: "broken q escape kept", value: "=?utf-8?Q?bad=ZZ?=", want: "=?utf-8?Q?bad=ZZ?="},
		{name: "language suffix", value: "=?utf-8*en?Q?hi?=", want: "hi"},
		{name: "raw 8-bit", value: string(encode(t, charmap.Windows1251, "Тема")), want: "Тема"},
		{name: "empty", value: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.DecodeHeader(tt.value))
		})
	}
}

func TestNoopDetector(t *testing.T) {
	t.Parallel()

	_, _, ok := charset.NoopDetector{}.Detect([]byte("anything"))
	assert.False(t, ok)
}

func TestChardetDetector_UTF8(t *testing.T) {
	t.Parallel()

	name, confidence, ok := charset.ChardetDetector{}.Detect([]byte("Это длинное предложение на русском языке, записанное в кодировке UTF-8."))
	require.True(t, ok)
	assert.Equal(t, "UTF-8", name)
	assert.Greater(t, confidence, 0.7)
}
