package progress

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-extract/stats"
)

func TestBar_DisabledOutsideInfo(t *testing.T) {
	assert.False(t, New(10, "debug", io.Discard).Enabled())
	assert.False(t, New(1, "info", io.Discard).Enabled(), "single file runs have no bar")
}

func TestBar_CountsFinishedFiles(t *testing.T) {
	bar := New(3, "warn", io.Discard)

	events := make(chan stats.Event, 6)
	events <- stats.Event{Type: stats.EventTypeScanned, Path: "a.eml"}
	events <- stats.Event{Type: stats.EventTypeExtracted, Path: "a.eml"}
	events <- stats.Event{Type: stats.EventTypeScanned, Path: "b.eml"}
	events <- stats.Event{Type: stats.EventTypeDuplicate, Path: "b.eml"}
	events <- stats.Event{Type: stats.EventTypeScanned, Path: "c.eml"}
	events <- stats.Event{Type: stats.EventTypeError, Path: "c.eml", Err: errors.New("boom")}
	close(events)

	require.NoError(t, bar.Subscriber(context.Background(), events))
	assert.Equal(t, 3, bar.Done())
}

func TestBar_Enabled(t *testing.T) {
	bar := New(2, "info", io.Discard)
	require.True(t, bar.Enabled())

	bar.Update(stats.Event{Type: stats.EventTypeScanned, Path: "/in/a-very-long-file-name-that-needs-truncation-for-the-title.eml"})
	bar.Update(stats.Event{Type: stats.EventTypeExtracted, Path: "/in/a.eml"})
	assert.Equal(t, 1, bar.pb.Current)

	bar.Stop()
	assert.Equal(t, 2, bar.pb.Current)
}
