package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		bytes int64
		total *int64
		eta   *int64
	}{
		{
			name:  "complete event",
			line:  "UVDPROG|1048576|4194304|NA|524288.5|6",
			ok:    true,
			bytes: 1048576,
			total: i64(4194304),
			eta:   i64(6),
		},
		{
			name:  "estimate fallback",
			line:  "UVDPROG|500|NA|2000|NA|NA",
			ok:    true,
			bytes: 500,
			total: i64(2000),
		},
		{
			name:  "all unknown",
			line:  "UVDPROG|0|NA|NA|None|None",
			ok:    true,
			bytes: 0,
		},
		{
			name:  "float byte counts",
			line:  "UVDPROG|1536.0|3072.0|NA|NA|NA",
			ok:    true,
			bytes: 1536,
			total: i64(3072),
		},
		{name: "regular output line", line: "[download] Destination: video.mp4"},
		{name: "wrong field count", line: "UVDPROG|1|2"},
		{name: "empty line", line: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := parseProgressLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.bytes, p.DownloadedBytes)
			if tt.total != nil {
				require.NotNil(t, p.TotalBytes)
				assert.Equal(t, *tt.total, *p.TotalBytes)
			} else {
				assert.Nil(t, p.TotalBytes)
			}
			if tt.eta != nil {
				require.NotNil(t, p.ETASeconds)
				assert.Equal(t, *tt.eta, *p.ETASeconds)
			}
		})
	}
}

func i64(v int64) *int64 { return &v }

func TestDownloadArgsSingle(t *testing.T) {
	r := NewRunner("")
	args := r.downloadArgs(DownloadRequest{
		URL:            "https://example.com/watch?v=abc",
		FormatSelector: "137+bestaudio",
		OutputTemplate: "/tmp/work/%(title)s.%(ext)s",
	})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f 137+bestaudio")
	assert.Contains(t, joined, "--retries 0", "whole-download retries belong to the caller")
	assert.Contains(t, joined, "--fragment-retries 10")
	assert.Contains(t, joined, "--no-playlist")
	assert.Contains(t, joined, "--no-mtime")
	assert.NotContains(t, joined, "--limit-rate")
	assert.NotContains(t, joined, "--write-subs")
	assert.Equal(t, "https://example.com/watch?v=abc", args[len(args)-1], "url must come last")
}

func TestDownloadArgsOptions(t *testing.T) {
	r := NewRunner("")
	args := r.downloadArgs(DownloadRequest{
		URL:                "https://example.com/playlist?list=xyz",
		FormatSelector:     "bestvideo+bestaudio/best",
		OutputTemplate:     "/dl/%(playlist_index)03d - %(title)s.%(ext)s",
		Playlist:           true,
		SpeedLimitBytes:    1 << 20,
		CookiesFromBrowser: "firefox",
		SubtitleLangs:      []string{"en", "de"},
		WriteAutoSubs:      true,
		MergeContainer:     "mkv",
	})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "--yes-playlist")
	assert.Contains(t, joined, "--limit-rate 1048576")
	assert.Contains(t, joined, "--cookies-from-browser firefox")
	assert.Contains(t, joined, "--write-subs")
	assert.Contains(t, joined, "--sub-langs en,de")
	assert.Contains(t, joined, "--write-auto-subs")
	assert.Contains(t, joined, "--merge-output-format mkv")
}

func TestDownloadArgsExtractAudio(t *testing.T) {
	r := NewRunner("")
	args := r.downloadArgs(DownloadRequest{
		URL:                 "https://example.com/playlist?list=xyz",
		FormatSelector:      "bestaudio/best",
		OutputTemplate:      "/dl/%(title)s.%(ext)s",
		Playlist:            true,
		ExtractAudioFormat:  "mp3",
		ExtractAudioBitrate: "192",
	})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-x")
	assert.Contains(t, joined, "--audio-format mp3")
	assert.Contains(t, joined, "--audio-quality 192K")
}
