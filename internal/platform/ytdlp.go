package platform

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// yt-dlp invocation constants
const (
	YTDLPCommand = "yt-dlp"

	// progressMarker prefixes every templated progress line so they can be
	// told apart from regular yt-dlp output.
	progressMarker = "UVDPROG"

	// progressTemplate makes yt-dlp emit machine-parseable progress lines.
	// Missing fields arrive as the literal "NA".
	progressTemplate = "download:" + progressMarker +
		"|%(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.total_bytes_estimate)s|%(progress.speed)s|%(progress.eta)s"

	// SoftCancelGrace is how long a cancelled yt-dlp process gets to exit
	// after SIGINT before it is killed.
	SoftCancelGrace = 5 * time.Second

	socketTimeoutSec    = "15"
	fragmentRetries     = "10"
	concurrentFragments = "4"
)

// RawProgress is one parsed progress event from the extraction tool. Nil
// pointer fields were not reported for this event.
type RawProgress struct {
	DownloadedBytes int64
	TotalBytes      *int64
	SpeedBytesPerS  *float64
	ETASeconds      *int64
}

// DownloadRequest describes one yt-dlp download invocation.
type DownloadRequest struct {
	URL                string
	FormatSelector     string
	OutputTemplate     string
	Playlist           bool
	SpeedLimitBytes    int64
	CookiesFromBrowser string

	// Subtitle sidecar files are written next to the media so the
	// postprocessing stage can embed them.
	SubtitleLangs []string
	WriteAutoSubs bool

	// Playlist runs delegate merging and audio extraction to the tool
	// itself; single jobs leave these empty and postprocess locally.
	MergeContainer      string
	ExtractAudioFormat  string
	ExtractAudioBitrate string
}

// Runner drives the external yt-dlp binary.
type Runner struct {
	binary string

	versionOnce sync.Once
	version     string
}

// NewRunner creates a Runner for the given binary name or path. An empty
// binary falls back to "yt-dlp" from PATH.
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = YTDLPCommand
	}
	return &Runner{binary: binary}
}

// Available reports whether the extraction binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Version returns the extractor version string, cached for the process
// lifetime. Returns "unknown" if the binary cannot be queried.
func (r *Runner) Version(ctx context.Context) string {
	r.versionOnce.Do(func() {
		out, err := exec.CommandContext(ctx, r.binary, "--version").Output()
		if err != nil {
			r.version = "unknown"
			return
		}
		r.version = strings.TrimSpace(string(out))
	})
	return r.version
}

// Probe runs a metadata-only extraction and returns the raw info JSON.
// It never writes media and never retries; retry policy belongs to callers.
func (r *Runner) Probe(ctx context.Context, url, cookiesFromBrowser string) ([]byte, error) {
	args := []string{"-J", "--no-warnings"}
	if cookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", cookiesFromBrowser)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, classifyContext(ctx)
		}
		return nil, classifyExtractorError(stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// Download runs one raw transfer. Progress events are delivered on onProgress
// as they are parsed; the callback runs on the reader goroutine and must not
// block. Cancellation of ctx sends SIGINT first and kills the process if it
// has not exited within SoftCancelGrace.
func (r *Runner) Download(ctx context.Context, req DownloadRequest, onProgress func(RawProgress)) error {
	args := r.downloadArgs(req)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Cancel = func() error {
		// Soft cancel: let yt-dlp stop at a fragment boundary.
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = SoftCancelGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if p, ok := parseProgressLine(scanner.Text()); ok && onProgress != nil {
			onProgress(p)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return classifyContext(ctx)
		}
		return classifyExtractorError(stderr.String(), err)
	}
	return nil
}

// downloadArgs builds the yt-dlp argument list for one transfer. Retries are
// disabled at the whole-download level so the executor owns the retry loop;
// fragment-level retries stay with the tool, which can resume partial
// fragments between our attempts.
func (r *Runner) downloadArgs(req DownloadRequest) []string {
	args := []string{
		"-f", req.FormatSelector,
		"-o", req.OutputTemplate,
		"--newline",
		"--no-warnings",
		"--progress-template", progressTemplate,
		"--retries", "0",
		"--fragment-retries", fragmentRetries,
		"--socket-timeout", socketTimeoutSec,
		"--concurrent-fragments", concurrentFragments,
		"--no-mtime",
	}
	if req.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	if req.MergeContainer != "" {
		args = append(args, "--merge-output-format", req.MergeContainer)
	}
	if req.ExtractAudioFormat != "" {
		args = append(args, "-x", "--audio-format", req.ExtractAudioFormat)
		if req.ExtractAudioBitrate != "" {
			args = append(args, "--audio-quality", req.ExtractAudioBitrate+"K")
		}
	}
	if req.SpeedLimitBytes > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(req.SpeedLimitBytes, 10))
	}
	if req.CookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", req.CookiesFromBrowser)
	}
	if len(req.SubtitleLangs) > 0 {
		args = append(args,
			"--write-subs",
			"--sub-langs", strings.Join(req.SubtitleLangs, ","),
			"--sub-format", "srt/best",
			"--convert-subs", "srt",
		)
		if req.WriteAutoSubs {
			args = append(args, "--write-auto-subs")
		}
	}
	// Thumbnails are embedded by the postprocessing stage; fetch the file.
	args = append(args, "--write-thumbnail", req.URL)
	return args
}

// parseProgressLine decodes one templated progress line. Returns false for
// any other output.
func parseProgressLine(line string) (RawProgress, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressMarker+"|") {
		return RawProgress{}, false
	}
	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		return RawProgress{}, false
	}

	var p RawProgress
	p.DownloadedBytes = parseInt(fields[1])
	if total := parseOptInt(fields[2]); total != nil {
		p.TotalBytes = total
	} else if est := parseOptInt(fields[3]); est != nil {
		p.TotalBytes = est
	}
	p.SpeedBytesPerS = parseOptFloat(fields[4])
	if eta := parseOptFloat(fields[5]); eta != nil {
		sec := int64(*eta)
		p.ETASeconds = &sec
	}
	return p, true
}

func parseInt(s string) int64 {
	// yt-dlp renders byte counts as floats in some versions
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

func parseOptInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func parseOptFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
