package calendar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenames(t *testing.T) {
	now := time.UnixMilli(1736494215123)

	assert.Equal(t, "giderler_1736494215123.ics", PublishFilename(now))
	assert.Equal(t, "sil_Kredi_Kart__Ekstre.ics", CancelFilename("Kredi Kartı Ekstre", ""))
	assert.Equal(t, "sil_Rent_2025__1_3__9f1c2e7a.ics", CancelFilename("Rent 2025 (1/3)", "9f1c2e7a-55d0-4c43-9b0e-1f2a3b4c5d6e"))
	assert.Equal(t, "sil_Rent_abc_123.ics", CancelFilename("Rent", "abc-123"))
	assert.NotEqual(t, CancelFilename("Rent", "9f1c2e7a-1"), CancelFilename("Rent", "0b2d4f6a-2"))

	assert.Equal(t, "sil_Rent_abc_123.ics", Filename(Document{Method: MethodCancel}, "Rent", "abc-123", now))
	assert.Equal(t, "giderler_1736494215123.ics", Filename(Document{Method: MethodPublish}, "Rent", "abc-123", now))
}

func TestDirSink_Deliver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink := &DirSink{Dir: dir}

	require.NoError(t, sink.Deliver(context.Background(), "sil_Rent.ics", []byte("BEGIN:VCALENDAR")))

	data, err := os.ReadFile(filepath.Join(dir, "sil_Rent.ics"))
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(data))

	info, err := os.Stat(filepath.Join(dir, "sil_Rent.ics"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")

	// Overwrite keeps a single file with the newest content.
	require.NoError(t, sink.Deliver(context.Background(), "sil_Rent.ics", []byte("v2")))
	data, err = os.ReadFile(filepath.Join(dir, "sil_Rent.ics"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestDirSink_RejectsBadNames(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}

	assert.Error(t, sink.Deliver(context.Background(), "", []byte("x")))
	assert.Error(t, sink.Deliver(context.Background(), "../escape.ics", []byte("x")))
	assert.Error(t, (&DirSink{}).Deliver(context.Background(), "a.ics", []byte("x")))
}

func TestDirSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&DirSink{Dir: t.TempDir()}).Deliver(ctx, "a.ics", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriterSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	sink := &WriterSink{W: &buf}

	require.NoError(t, sink.Deliver(context.Background(), "a.ics", []byte("one")))
	require.NoError(t, sink.Deliver(context.Background(), "b.ics", []byte("two")))
	assert.Equal(t, "onetwo", buf.String())
}
