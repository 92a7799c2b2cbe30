// Package postprocess drives the media processor (ffmpeg) after a raw
// download: merging streams, extracting audio and embedding subtitles,
// metadata and thumbnails. Sub-steps run in a fixed order and are
// atomic-or-fail: a failing step aborts the rest and leaves every
// intermediate file in place for diagnosis.
package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
)

// Audio codec table: container -> ffmpeg encoder
var audioEncoders = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"opus": "libopus",
	"flac": "flac",
	"wav":  "pcm_s16le",
}

// Lossless containers ignore the bitrate directive
var losslessAudio = map[string]bool{"flac": true, "wav": true}

// Input carries the raw artifacts of one job into the coordinator.
type Input struct {
	// Media artifacts, largest first. One entry means an already muxed
	// stream; two mean separate video and audio.
	Media []platform.Artifact

	SubtitleFiles []string // sidecar .srt files written by the extractor
	ThumbnailFile string   // probed thumbnail image, may be empty

	WorkDir string
	Title   string
}

// Coordinator executes postprocess directives through ffmpeg.
type Coordinator struct {
	log zerolog.Logger

	// Seams replaced in tests.
	locate  func() (string, error)
	runStep func(ctx context.Context, ffmpeg, step string, args []string) error
}

// New creates a Coordinator.
func New() *Coordinator {
	c := &Coordinator{log: uvdlog.WithComponent("postprocess")}
	c.locate = platform.FFmpegPath
	c.runStep = c.runFFmpeg
	return c
}

// Run applies the directives to the input in the fixed order Merge,
// ExtractAudio, EmbedSubtitles, EmbedMetadata, EmbedThumbnail and returns
// the path of the final artifact inside the work dir. The ffmpeg location is
// resolved once per process; if it cannot be found every call fails fast
// with ProcessorNotFound before any work happens.
func (c *Coordinator) Run(ctx context.Context, in Input, directives []model.Directive) (string, error) {
	if len(in.Media) == 0 {
		return "", model.NewJobError(model.ErrProcessing, "no raw artifacts to process")
	}
	if len(directives) == 0 {
		return in.Media[0].Path, nil
	}

	ffmpeg, err := c.locate()
	if err != nil {
		return "", err
	}

	current := in.Media[0].Path
	for _, kind := range []model.DirectiveKind{
		model.DirectiveMerge,
		model.DirectiveExtractAudio,
		model.DirectiveEmbedSubtitles,
		model.DirectiveEmbedMetadata,
		model.DirectiveEmbedThumbnail,
	} {
		d, ok := findDirective(directives, kind)
		if !ok {
			continue
		}
		next, err := c.step(ctx, ffmpeg, current, in, d)
		if err != nil {
			return "", err
		}
		if next != "" {
			current = next
		}
	}
	return current, nil
}

func findDirective(directives []model.Directive, kind model.DirectiveKind) (model.Directive, bool) {
	for _, d := range directives {
		if d.Kind == kind {
			return d, true
		}
	}
	return model.Directive{}, false
}

// step runs one directive. An empty returned path means the step was a
// no-op (for example merging an already muxed file).
func (c *Coordinator) step(ctx context.Context, ffmpeg, current string, in Input, d model.Directive) (string, error) {
	switch d.Kind {
	case model.DirectiveMerge:
		if len(in.Media) < 2 {
			// Single artifact is already muxed; nothing to merge.
			return "", nil
		}
		out := stepOutput(in.WorkDir, current, "merged", d.Container)
		// Larger artifact is the video stream, smaller the audio stream.
		args := []string{
			"-y",
			"-i", in.Media[0].Path,
			"-i", in.Media[1].Path,
			"-c", "copy",
			out,
		}
		return out, c.runStep(ctx, ffmpeg, "merge", args)

	case model.DirectiveExtractAudio:
		encoder, ok := audioEncoders[d.AudioFormat]
		if !ok {
			return "", model.NewJobError(model.ErrProcessing, "no encoder for audio format %q", d.AudioFormat)
		}
		out := stepOutput(in.WorkDir, current, "audio", d.AudioFormat)
		args := []string{"-y", "-i", current, "-vn", "-acodec", encoder}
		if !losslessAudio[d.AudioFormat] && d.AudioBitrate != "" {
			args = append(args, "-b:a", d.AudioBitrate+"k")
		}
		args = append(args, out)
		return out, c.runStep(ctx, ffmpeg, "extract-audio", args)

	case model.DirectiveEmbedSubtitles:
		if len(in.SubtitleFiles) == 0 {
			c.log.Warn().Str("event", "postprocess.skip").Msg("no subtitle files downloaded, skipping embed")
			return "", nil
		}
		out := stepOutput(in.WorkDir, current, "subbed", "mkv")
		args := []string{"-y", "-i", current}
		for _, sub := range in.SubtitleFiles {
			args = append(args, "-i", sub)
		}
		args = append(args, "-map", "0")
		for i := range in.SubtitleFiles {
			args = append(args, "-map", fmt.Sprintf("%d:0", i+1))
		}
		args = append(args, "-c", "copy", "-c:s", "srt", out)
		return out, c.runStep(ctx, ffmpeg, "embed-subtitles", args)

	case model.DirectiveEmbedMetadata:
		out := stepOutput(in.WorkDir, current, "tagged", strings.TrimPrefix(filepath.Ext(current), "."))
		args := []string{"-y", "-i", current, "-map", "0", "-c", "copy", "-map_metadata", "0"}
		if in.Title != "" {
			args = append(args, "-metadata", "title="+in.Title)
		}
		args = append(args, out)
		return out, c.runStep(ctx, ffmpeg, "embed-metadata", args)

	case model.DirectiveEmbedThumbnail:
		if in.ThumbnailFile == "" {
			c.log.Warn().Str("event", "postprocess.skip").Msg("no thumbnail downloaded, skipping embed")
			return "", nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(current), "."))
		out := stepOutput(in.WorkDir, current, "cover", ext)
		var args []string
		switch ext {
		case "mp3":
			args = []string{
				"-y", "-i", current, "-i", in.ThumbnailFile,
				"-map", "0:a", "-map", "1:v", "-c", "copy",
				"-id3v2_version", "3",
				"-metadata:s:v", "title=Album cover",
				out,
			}
		case "mkv":
			args = []string{
				"-y", "-i", current,
				"-map", "0", "-c", "copy",
				"-attach", in.ThumbnailFile,
				"-metadata:s:t", "mimetype=image/jpeg",
				out,
			}
		default: // mp4, m4a and friends carry the image as attached_pic
			args = []string{
				"-y", "-i", current, "-i", in.ThumbnailFile,
				"-map", "0", "-map", "1",
				"-c", "copy",
				"-disposition:v:1", "attached_pic",
				out,
			}
		}
		return out, c.runStep(ctx, ffmpeg, "embed-thumbnail", args)
	}
	return "", nil
}

// stepOutput derives a unique output path for one sub-step, keeping the stem
// of the current artifact so intermediates are recognisable.
func stepOutput(workDir, current, tag, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(current), filepath.Ext(current))
	return filepath.Join(workDir, fmt.Sprintf("%s.%s.%s", stem, tag, ext))
}

// runFFmpeg executes one ffmpeg invocation. A failed step removes its own
// partial output but leaves the inputs and every earlier intermediate
// untouched.
func (c *Coordinator) runFFmpeg(ctx context.Context, ffmpeg, step string, args []string) error {
	c.log.Debug().Str("event", "postprocess.step").Str("step", step).Msg("running media processor")

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		out := args[len(args)-1]
		os.Remove(out)
		if ctx.Err() == context.Canceled {
			return model.NewJobError(model.ErrCancelled, "cancelled during %s", step)
		}
		return model.NewJobError(model.ErrProcessing, "%s failed: %s", step, lastStderrLine(stderr.String(), err))
	}
	return nil
}

func lastStderrLine(stderr string, execErr error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return execErr.Error()
}
