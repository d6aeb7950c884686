package eml_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/dhcgn/mail-extract/eml"
)

func cp1251Base64(t *testing.T, s string) string {
	t.Helper()
	out, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString([]byte(out))
}

func multipartMessage(t *testing.T) string {
	return strings.Join([]string{
		"From: =?utf-8?Q?J=C3=BCrgen?= <j@example.com>",
		"To: team@example.com",
		"Subject: =?windows-1251?B?" + cp1251Base64(t, "Отчёт") + "?=",
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=windows-1251",
		"Content-Transfer-Encoding: base64",
		"",
		cp1251Base64(t, "Привет"),
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"<p>Caf=C3=A9</p>",
		"--inner--",
		"--outer",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="=?windows-1251?B?` + cp1251Base64(t, "счёт") + `?=.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		"--outer",
		"Content-Type: text/plain; name=notes.txt",
		"Content-Disposition: attachment",
		"",
		"attached notes",
		"--outer",
		"Content-Type: image/png",
		"Content-Disposition: inline",
		"",
		"not an attachment",
		"--outer--",
		"",
	}, "\r\n")
}

func TestParse_Multipart(t *testing.T) {
	t.Parallel()

	raw, err := eml.Parse(strings.NewReader(multipartMessage(t)))
	require.NoError(t, err)

	assert.Equal(t, "=?utf-8?Q?J=C3=BCrgen?= <j@example.com>", raw.Headers.From)
	assert.Equal(t, "team@example.com", raw.Headers.To)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 +0000", raw.Headers.Date)
	assert.True(t, strings.HasPrefix(raw.Headers.Subject, "=?windows-1251?B?"))

	require.Len(t, raw.BodyParts, 2)
	assert.Equal(t, "text/plain", raw.BodyParts[0].ContentType)
	assert.Equal(t, "windows-1251", raw.BodyParts[0].DeclaredCharset)
	assert.Equal(t, []byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2}, raw.BodyParts[0].Payload)
	assert.Equal(t, "text/html", raw.BodyParts[1].ContentType)
	assert.Equal(t, "<p>Café</p>", string(raw.BodyParts[1].Payload))

	require.Len(t, raw.Attachments, 2)
	assert.True(t, strings.HasPrefix(raw.Attachments[0].Filename, "=?windows-1251?B?"))
	assert.Equal(t, "%PDF-1.4", string(raw.Attachments[0].Data))
	assert.Equal(t, "notes.txt", raw.Attachments[1].Filename)
	assert.Equal(t, "attached notes", string(raw.Attachments[1].Data))
}

func TestParse_SinglePart(t *testing.T) {
	t.Parallel()

	msg := "Subject: hi\r\nContent-Type: text/plain; charset=koi8-r\r\n\r\n\xf0\xd2\xc9\xd7\xc5\xd4\r\n"
	raw, err := eml.Parse(strings.NewReader(msg))
	require.NoError(t, err)

	require.Len(t, raw.BodyParts, 1)
	assert.Equal(t, "koi8-r", raw.BodyParts[0].DeclaredCharset)
	assert.Equal(t, "\xf0\xd2\xc9\xd7\xc5\xd4\r\n", string(raw.BodyParts[0].Payload))
	assert.Empty(t, raw.Attachments)
}

func TestParse_NoContentType(t *testing.T) {
	t.Parallel()

	raw, err := eml.Parse(strings.NewReader("Subject: bare\n\nhello\n"))
	require.NoError(t, err)

	require.Len(t, raw.BodyParts, 1)
	assert.Equal(t, "text/plain", raw.BodyParts[0].ContentType)
	assert.Equal(t, "", raw.BodyParts[0].DeclaredCharset)
}

func TestParse_NestedMessage(t *testing.T) {
	t.Parallel()

	msg := strings.Join([]string{
		"Subject: fwd",
		`Content-Type: multipart/mixed; boundary="b"`,
		"",
		"--b",
		"Content-Type: message/rfc822",
		"",
		"Subject: inner",
		"Content-Type: text/plain",
		"",
		"inner body",
		"--b--",
		"",
	}, "\r\n")

	raw, err := eml.Parse(strings.NewReader(msg))
	require.NoError(t, err)

	require.Len(t, raw.BodyParts, 1)
	assert.Contains(t, string(raw.BodyParts[0].Payload), "inner body")
}

func TestParse_BrokenHeader(t *testing.T) {
	t.Parallel()

	_, err := eml.Parse(strings.NewReader("this is not a header line\r\n"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mail.eml")
	require.NoError(t, os.WriteFile(path, []byte(multipartMessage(t)), 0o600))

	raw, err := eml.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, raw.Source)
	assert.Len(t, raw.Attachments, 2)

	_, err = eml.ReadFile(filepath.Join(t.TempDir(), "missing.eml"))
	assert.Error(t, err)
}
