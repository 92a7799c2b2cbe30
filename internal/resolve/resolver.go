// Package resolve turns a user download intent plus probed metadata into a
// fully specified job: format-selection expression, ordered postprocessing
// directives, destination template and filename suffix tag. Resolution is
// deterministic; the queue and executor treat its output as opaque.
package resolve

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// Quality and subtitle selection sentinels
const (
	QualityBest  = "best"
	SubtitlesAll = "all"
)

// Output templates
const (
	SingleOutputTemplate   = "%(title)s.%(ext)s"
	PlaylistOutputTemplate = "%(playlist_title)s/%(playlist_index)03d - %(title)s.%(ext)s"
)

// audioCapability records which embedding steps an audio container supports.
type audioCapability struct {
	thumbnail bool
	metadata  bool
}

var audioFormats = map[string]audioCapability{
	"mp3":  {thumbnail: true, metadata: true},
	"m4a":  {thumbnail: true, metadata: true},
	"flac": {thumbnail: true, metadata: true},
	"opus": {thumbnail: false, metadata: true},
	"wav":  {thumbnail: false, metadata: true},
}

// Request is the user intent handed to the resolver. Zero values fall back
// to the settings snapshot.
type Request struct {
	URL       string
	Mode      model.Mode
	Quality   string // "1080p", "best", or a concrete format id
	Container string // video container preference: mp4, webm, mkv

	AudioFormat  string // audio mode target container
	AudioBitrate string // kbit/s

	// Subtitles selects embedded subtitles: "" for none, "all", or a
	// comma-separated language list.
	Subtitles string

	Playlist bool
}

// Resolve builds a job from the request, the probed metadata and an
// immutable settings snapshot. The returned job carries no id or status;
// the queue assigns those at enqueue time.
func Resolve(req Request, md *model.Metadata, snap model.SettingsSnapshot) (*model.Job, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("resolve: empty source URL")
	}

	mode := req.Mode
	if mode == "" {
		mode = snap.DefaultMode
	}
	if canonical, ok := model.ParseMode(string(mode)); ok {
		mode = canonical
	}

	job := &model.Job{
		SourceURL:          req.URL,
		Mode:               mode,
		Playlist:           req.Playlist,
		CookiesFromBrowser: snap.CookiesFromBrowser,
		SpeedLimitBytes:    snap.SpeedLimitBytes(),
		Settings:           snap,
	}
	if md != nil {
		job.Title = md.Title
	}

	switch mode {
	case model.ModeAudio:
		resolveAudio(req, snap, job)
	case model.ModeVideo:
		if err := resolveVideo(req, md, snap, job); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("resolve: unknown mode %q", mode)
	}

	template := SingleOutputTemplate
	if req.Playlist {
		template = PlaylistOutputTemplate
	}
	job.DestinationPath = filepath.Join(snap.DownloadDir, template)

	return job, nil
}

// resolveAudio configures an audio-extraction job: best available audio
// stream transcoded to the requested format and bitrate.
func resolveAudio(req Request, snap model.SettingsSnapshot, job *model.Job) {
	format := req.AudioFormat
	if _, ok := audioFormats[format]; !ok {
		format = snap.AudioFormat
	}
	bitrate := req.AudioBitrate
	if bitrate == "" {
		bitrate = snap.AudioBitrate
	}

	job.FormatSelector = "bestaudio/best"
	job.TargetExt = format
	job.FilenameSuffix = fmt.Sprintf("[%s %skbps]", format, bitrate)

	job.Directives = append(job.Directives, model.Directive{
		Kind:         model.DirectiveExtractAudio,
		AudioFormat:  format,
		AudioBitrate: bitrate,
	})
	caps := audioFormats[format]
	if caps.thumbnail {
		job.Directives = append(job.Directives, model.Directive{Kind: model.DirectiveEmbedThumbnail})
	}
	if caps.metadata {
		job.Directives = append(job.Directives, model.Directive{Kind: model.DirectiveEmbedMetadata})
	}
}

// resolveVideo configures a video job: the selected video stream plus a
// compatible audio stream, merged into the target container.
func resolveVideo(req Request, md *model.Metadata, snap model.SettingsSnapshot, job *model.Job) error {
	container := req.Container
	if container == "" {
		container = "mp4"
	}

	selected := selectFormat(md, req.Quality)
	if selected == nil {
		// No probed formats to choose from; delegate selection entirely.
		job.FormatSelector = "bestvideo+bestaudio/best"
		job.TargetExt = container
		job.Directives = append(job.Directives, model.Directive{
			Kind:      model.DirectiveMerge,
			Container: container,
		})
	} else {
		job.ExpectedSizeBytes = selected.FilesizeBytes
		job.FilenameSuffix = videoSuffix(*selected)
		if selected.Ext != "" {
			container = selected.Ext
		}
		if selected.HasAudio() {
			// Muxed stream, nothing to merge.
			job.FormatSelector = selected.ID
			job.TargetExt = container
		} else {
			job.FormatSelector = selected.ID + "+" + audioSelectorFor(container)
			job.TargetExt = container
			job.Directives = append(job.Directives, model.Directive{
				Kind:      model.DirectiveMerge,
				Container: container,
			})
		}
	}

	langs := subtitleLanguages(req.Subtitles, md, snap)
	if len(langs) > 0 {
		// Embedding subtitles forces the mkv container.
		job.TargetExt = "mkv"
		for i := range job.Directives {
			if job.Directives[i].Kind == model.DirectiveMerge {
				job.Directives[i].Container = "mkv"
			}
		}
		job.Subtitles = model.SubtitleRequest{Languages: langs, IncludeAuto: snap.IncludeAutoSubs}
		job.Directives = append(job.Directives,
			model.Directive{Kind: model.DirectiveEmbedSubtitles, SubtitleLangs: langs},
			model.Directive{Kind: model.DirectiveEmbedMetadata, WithChapters: true},
			model.Directive{Kind: model.DirectiveEmbedThumbnail},
		)
	}
	return nil
}

// selectFormat picks a probed format by quality: a "1080p"-style height, a
// literal format id, or best-first default. Formats arrive sorted best-first
// from the fetcher.
func selectFormat(md *model.Metadata, quality string) *model.Format {
	if md == nil || len(md.Formats) == 0 {
		return nil
	}
	if quality == "" || quality == QualityBest {
		return &md.Formats[0]
	}

	if height, ok := parseHeight(quality); ok {
		for i := range md.Formats {
			if md.Formats[i].Height == height {
				return &md.Formats[i]
			}
		}
		return &md.Formats[0]
	}

	for i := range md.Formats {
		if md.Formats[i].ID == quality {
			return &md.Formats[i]
		}
	}
	return &md.Formats[0]
}

// parseHeight accepts "1080p"-style values only; a bare number is a format id.
func parseHeight(quality string) (int, bool) {
	s := strings.ToLower(quality)
	if !strings.HasSuffix(s, "p") {
		return 0, false
	}
	height, err := strconv.Atoi(strings.TrimSuffix(s, "p"))
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}

// audioSelectorFor prefers an audio codec that muxes cleanly into the target
// container.
func audioSelectorFor(container string) string {
	switch container {
	case "mp4":
		return "bestaudio[ext=m4a]/bestaudio/best"
	case "webm":
		return "bestaudio[ext=webm]/bestaudio/best"
	default:
		return "bestaudio/best"
	}
}

// videoSuffix builds the "[1920x1080 avc1]" filename tag.
func videoSuffix(f model.Format) string {
	resolution := ""
	if f.Width > 0 && f.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	codec := f.VCodec
	if codec == "none" {
		codec = ""
	}
	switch {
	case resolution != "" && codec != "":
		return fmt.Sprintf("[%s %s]", resolution, codec)
	case resolution != "":
		return "[" + resolution + "]"
	case codec != "":
		return "[" + codec + "]"
	}
	return ""
}

// subtitleLanguages expands the request's subtitle selection against the
// probed language lists. "all" means every manual language plus, when the
// snapshot allows it, every auto-generated one.
func subtitleLanguages(selection string, md *model.Metadata, snap model.SettingsSnapshot) []string {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return nil
	}
	if selection != SubtitlesAll {
		langs := strings.Split(selection, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		return langs
	}

	if md == nil {
		return nil
	}
	set := make(map[string]struct{}, len(md.Subtitles))
	for _, lang := range md.Subtitles {
		set[lang] = struct{}{}
	}
	if snap.IncludeAutoSubs {
		for _, lang := range md.AutoSubtitles {
			set[lang] = struct{}{}
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
