package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duyuru.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS-fake"), 0o644))

	rec := NewFileRecorder(path)

	_, err := rec.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, rec.Start(context.Background()))
	blob, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS-fake"), blob.Data)
	assert.Equal(t, "audio/ogg", blob.MIME)
	assert.Equal(t, 9, blob.Size())
}

func TestFileRecorder_MissingFile(t *testing.T) {
	rec := NewFileRecorder(filepath.Join(t.TempDir(), "missing.ogg"))
	err := rec.Start(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	err = NewFileRecorder(t.TempDir()).Start(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestMIMEFromPath(t *testing.T) {
	assert.Equal(t, "audio/ogg", MIMEFromPath("a.opus"))
	assert.Equal(t, "audio/mpeg", MIMEFromPath("a.mp3"))
	assert.Equal(t, "audio/webm", MIMEFromPath("a.webm"))
	assert.Equal(t, "application/octet-stream", MIMEFromPath("a"))
}

func TestFFmpegRecorder_StopWithoutStart(t *testing.T) {
	rec := NewFFmpegRecorder("alsa", "default", zap.NewNop())
	_, err := rec.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.Contains(t, rec.args(), "libopus")
}

func TestDataURL(t *testing.T) {
	raw := Blob{Data: []byte{1, 2, 3}, MIME: "audio/webm"}.DataURL()
	assert.True(t, IsDataURL(raw))

	blob, err := ParseDataURL(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob.Data)
	assert.Equal(t, "audio/webm", blob.MIME)

	blob, err = ParseDataURL("data:text/plain,zil%20sesi")
	require.NoError(t, err)
	assert.Equal(t, "zil sesi", string(blob.Data))

	_, err = ParseDataURL("https://example.com/a.ogg")
	assert.Error(t, err)
	_, err = ParseDataURL("data:audio/ogg;base64")
	assert.Error(t, err)
}
