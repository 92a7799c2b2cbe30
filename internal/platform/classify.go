package platform

import (
	"context"
	"strings"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// classifyContext maps context termination onto the error taxonomy.
func classifyContext(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return model.NewJobError(model.ErrCancelled, "cancelled")
	}
	return model.NewJobError(model.ErrNetwork, "operation timed out")
}

// nonRetryablePatterns map fragments of yt-dlp stderr output to terminal
// error kinds. Matching is case-insensitive first-hit.
var nonRetryablePatterns = []struct {
	fragment string
	kind     model.ErrorKind
}{
	{"unsupported url", model.ErrUnsupportedURL},
	{"is not a valid url", model.ErrUnsupportedURL},
	{"requested format is not available", model.ErrFormatUnavailable},
	{"format is not available", model.ErrFormatUnavailable},
	{"video unavailable", model.ErrFormatUnavailable},
	{"no space left on device", model.ErrInsufficientDiskSpace},
	{"unable to extract", model.ErrExtractorOutdated},
	{"this extractor is broken", model.ErrExtractorOutdated},
}

// classifyExtractorError turns yt-dlp stderr output into a JobError. Errors
// that match no known terminal pattern are treated as transient network
// failures: the upstream tool retries everything by default, and the
// executor's bounded retry loop takes over that role here.
func classifyExtractorError(stderr string, execErr error) error {
	lowered := strings.ToLower(stderr)
	for _, p := range nonRetryablePatterns {
		if strings.Contains(lowered, p.fragment) {
			return model.NewJobError(p.kind, "%s", firstErrorLine(stderr, execErr))
		}
	}
	return model.NewJobError(model.ErrNetwork, "%s", firstErrorLine(stderr, execErr))
}

// firstErrorLine extracts the most useful single line for lastError. yt-dlp
// prefixes fatal messages with "ERROR:".
func firstErrorLine(stderr string, execErr error) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		lines := strings.Split(trimmed, "\n")
		return lines[len(lines)-1]
	}
	if execErr != nil {
		return execErr.Error()
	}
	return "unknown extractor error"
}
