package model

import (
	"strings"
	"time"
)

// Mode selects what a job extracts from its source
type Mode string

const (
	// ModeVideo downloads the selected video stream plus compatible audio
	ModeVideo Mode = "Video"

	// ModeAudio extracts an audio-only file in the requested format
	ModeAudio Mode = "Audio"
)

// ParseMode matches a mode name case-insensitively, so "audio" from a flag
// or config file resolves the same as the canonical "Audio".
func ParseMode(s string) (Mode, bool) {
	switch {
	case strings.EqualFold(s, string(ModeVideo)):
		return ModeVideo, true
	case strings.EqualFold(s, string(ModeAudio)):
		return ModeAudio, true
	}
	return "", false
}

// DirectiveKind identifies one postprocessing operation
type DirectiveKind string

const (
	// DirectiveMerge muxes separate audio and video streams into one container
	DirectiveMerge DirectiveKind = "Merge"

	// DirectiveExtractAudio transcodes the download to an audio-only format
	DirectiveExtractAudio DirectiveKind = "ExtractAudio"

	// DirectiveEmbedSubtitles embeds subtitle tracks into the container
	DirectiveEmbedSubtitles DirectiveKind = "EmbedSubtitles"

	// DirectiveEmbedMetadata writes title/chapter metadata into the container
	DirectiveEmbedMetadata DirectiveKind = "EmbedMetadata"

	// DirectiveEmbedThumbnail attaches the source thumbnail as cover art
	DirectiveEmbedThumbnail DirectiveKind = "EmbedThumbnail"
)

// Directive is one ordered postprocessing operation. The coordinator executes
// directives in the fixed order Merge, ExtractAudio, EmbedSubtitles,
// EmbedMetadata, EmbedThumbnail regardless of slice order.
type Directive struct {
	Kind DirectiveKind `json:"kind"`

	// Merge
	Container string `json:"container,omitempty"`

	// ExtractAudio
	AudioFormat  string `json:"audio_format,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"` // kbit/s

	// EmbedSubtitles
	SubtitleLangs []string `json:"subtitle_langs,omitempty"`

	// EmbedMetadata
	WithChapters bool `json:"with_chapters,omitempty"`
}

// SubtitleRequest captures the user's subtitle selection. An empty Languages
// slice means no subtitles were requested.
type SubtitleRequest struct {
	Languages   []string `json:"languages,omitempty"`
	IncludeAuto bool     `json:"include_auto,omitempty"`
}

// Requested reports whether any subtitles should be fetched
func (r SubtitleRequest) Requested() bool {
	return len(r.Languages) > 0
}

// Job is one queued or executing download request. Fields up to Settings are
// fixed at enqueue time; Status, Progress, RetryCount, LastError, the
// timestamps and OutputPath are owned by the executor afterwards.
type Job struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
	Mode      Mode   `json:"mode"`
	Title     string `json:"title,omitempty"`

	FormatSelector  string      `json:"format_selector"`
	Directives      []Directive `json:"directives,omitempty"`
	DestinationPath string      `json:"destination_path"`
	TargetExt       string      `json:"target_ext"`
	FilenameSuffix  string      `json:"filename_suffix,omitempty"`
	Playlist        bool        `json:"playlist,omitempty"`

	Subtitles          SubtitleRequest `json:"subtitles"`
	CookiesFromBrowser string          `json:"cookies_from_browser,omitempty"`
	SpeedLimitBytes    int64           `json:"speed_limit_bytes,omitempty"` // bytes/s, 0 = unlimited

	// ExpectedSizeBytes is the extractor-reported size of the selected
	// format, 0 when unknown. Consumed by the disk guard.
	ExpectedSizeBytes int64 `json:"expected_size_bytes,omitempty"`

	Settings SettingsSnapshot `json:"-"`

	Status     JobStatus `json:"status"`
	Progress   *Progress `json:"progress,omitempty"`
	RetryCount int       `json:"retry_count"`
	LastError  *JobError `json:"last_error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Clone returns a deep copy safe to hand to observers while the executor
// keeps mutating the original.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Directives = append([]Directive(nil), j.Directives...)
	for i := range cp.Directives {
		cp.Directives[i].SubtitleLangs = append([]string(nil), cp.Directives[i].SubtitleLangs...)
	}
	cp.Subtitles.Languages = append([]string(nil), j.Subtitles.Languages...)
	cp.Progress = j.Progress.Clone()
	if j.LastError != nil {
		le := *j.LastError
		cp.LastError = &le
	}
	return &cp
}
