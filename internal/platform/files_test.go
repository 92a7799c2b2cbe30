package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestSanitizeSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[1920x1080 avc1]", "[1920x1080 avc1]"},
		{"[mp3 192kbps]", "[mp3 192kbps]"},
		{`bad<>:"/\|?*chars`, "bad_________chars"},
		{"  trailing dots... ", "trailing dots"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeSuffix(tt.in), tt.in)
	}
}

func TestScanArtifactsOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "video.mp4", 3000)
	writeFile(t, dir, "audio.m4a", 2000)
	writeFile(t, dir, "subs.en.srt", 100)
	writeFile(t, dir, "video.mp4.part", 500)
	writeFile(t, dir, "video.mp4.ytdl", 10)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	artifacts, err := ScanArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	assert.Equal(t, "mp4", artifacts[0].Ext)
	assert.Equal(t, int64(3000), artifacts[0].Size)
	assert.Equal(t, "m4a", artifacts[1].Ext)
	assert.Equal(t, "srt", artifacts[2].Ext)
}

func TestMoveToDestinationAppendsSuffix(t *testing.T) {
	work := t.TempDir()
	dest := t.TempDir()
	src := writeFile(t, work, "My Video.mp4", 100)

	out, err := MoveToDestination(src, dest, "[1920x1080 avc1]")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "My Video [1920x1080 avc1].mp4"), out)

	_, err = os.Stat(out)
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "staged file must be gone")
}

func TestMoveToDestinationNoSuffix(t *testing.T) {
	work := t.TempDir()
	dest := t.TempDir()
	src := writeFile(t, work, "track.mp3", 50)

	out, err := MoveToDestination(src, dest, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "track.mp3"), out)
}

func TestMoveToDestinationReplacesExisting(t *testing.T) {
	work := t.TempDir()
	dest := t.TempDir()
	writeFile(t, dest, "video.mp4", 10)
	src := writeFile(t, work, "video.mp4", 100)

	out, err := MoveToDestination(src, dest, "")
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Size())
}

func TestMoveToDestinationCreatesDirectory(t *testing.T) {
	work := t.TempDir()
	dest := filepath.Join(t.TempDir(), "brand", "new")
	src := writeFile(t, work, "video.mp4", 100)

	out, err := MoveToDestination(src, dest, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "video.mp4"), out)
}
