package reader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-extract/msg"
	"github.com/dhcgn/mail-extract/reader"
)

func TestSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, reader.Supported("a.eml"))
	assert.True(t, reader.Supported("/x/B.MSG"))
	assert.True(t, reader.Supported("archive.mbox"))
	assert.False(t, reader.Supported("notes.txt"))
	assert.False(t, reader.Supported("noext"))
}

func TestRead_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := reader.Read(context.Background(), "document.pdf", nil)
	assert.ErrorIs(t, err, reader.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), `".pdf"`)
}

func TestRead_EML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Mail.EML")
	require.NoError(t, os.WriteFile(path, []byte("Subject: hi\r\n\r\nbody\r\n"), 0o600))

	emails, err := reader.Read(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "hi", emails[0].Headers.Subject)
	assert.Equal(t, path, emails[0].Source)
}

func TestRead_MsgThatIsNotCompound(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fake.msg")
	require.NoError(t, os.WriteFile(path, []byte("Subject: not ole\r\n\r\n"), 0o600))

	_, err := reader.Read(context.Background(), path, nil)
	assert.ErrorIs(t, err, msg.ErrNotCompoundFile)
}

func TestRead_Msg(t *testing.T) {
	t.Parallel()

	emails, err := reader.Read(context.Background(), filepath.Join("..", "msg", "test_data", "sample.msg"), nil)
	require.NoError(t, err)
	require.Len(t, emails, 1)

	email := emails[0]
	assert.Equal(t, "Квартальный отчёт", email.Headers.Subject)
	assert.Equal(t, "Ivan Petrov <ivan@example.com>", email.Headers.From)
	require.Len(t, email.Attachments, 2)
	assert.Equal(t, "report.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "notes.txt", email.Attachments[1].Filename)
}

func TestRead_MboxAllBroken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.mbox")
	require.NoError(t, os.WriteFile(path, []byte("From x Mon Jan  2 15:04:05 2006\nnot a header\n"), 0o600))

	_, err := reader.Read(context.Background(), path, nil)
	assert.Error(t, err)
}
