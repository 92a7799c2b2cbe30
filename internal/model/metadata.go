package model

// Format describes one downloadable stream reported by the extractor
type Format struct {
	ID            string  `json:"id"`
	Ext           string  `json:"ext"`
	VCodec        string  `json:"vcodec,omitempty"`
	ACodec        string  `json:"acodec,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	FPS           int     `json:"fps,omitempty"`
	TBR           float64 `json:"tbr,omitempty"`
	FilesizeBytes int64   `json:"filesize_bytes,omitempty"` // 0 when unknown
}

// HasVideo reports whether the format carries a video stream
func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream
func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// PlaylistEntry is one item of a probed playlist
type PlaylistEntry struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Formats []Format `json:"formats,omitempty"`
}

// Metadata is the normalized description of a probed URL
type Metadata struct {
	Title         string          `json:"title"`
	DurationSec   *float64        `json:"duration_sec,omitempty"`
	IsPlaylist    bool            `json:"is_playlist"`
	Formats       []Format        `json:"formats,omitempty"`
	Entries       []PlaylistEntry `json:"entries,omitempty"`
	Subtitles     []string        `json:"subtitles,omitempty"`      // manual subtitle languages
	AutoSubtitles []string        `json:"auto_subtitles,omitempty"` // auto-generated caption languages
}

// BestKnownSize returns the byte size the disk guard should reserve, or 0 if
// no format reports a size.
func (m *Metadata) BestKnownSize(formatID string) int64 {
	if m == nil {
		return 0
	}
	for _, f := range m.Formats {
		if f.ID == formatID {
			return f.FilesizeBytes
		}
	}
	return 0
}
