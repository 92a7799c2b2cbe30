package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

func TestClassifyExtractorError(t *testing.T) {
	execErr := errors.New("exit status 1")

	tests := []struct {
		name   string
		stderr string
		kind   model.ErrorKind
	}{
		{
			"unsupported url",
			"ERROR: Unsupported URL: https://example.invalid/page",
			model.ErrUnsupportedURL,
		},
		{
			"not a valid url",
			"ERROR: 'nonsense' is not a valid URL.",
			model.ErrUnsupportedURL,
		},
		{
			"format unavailable",
			"ERROR: [youtube] abc: Requested format is not available.",
			model.ErrFormatUnavailable,
		},
		{
			"video unavailable",
			"ERROR: [youtube] abc: Video unavailable",
			model.ErrFormatUnavailable,
		},
		{
			"disk full",
			"ERROR: unable to write data: [Errno 28] No space left on device",
			model.ErrInsufficientDiskSpace,
		},
		{
			"extractor outdated",
			"ERROR: [youtube] abc: Unable to extract player version",
			model.ErrExtractorOutdated,
		},
		{
			"unknown errors default to transient",
			"ERROR: [generic] something went sideways",
			model.ErrNetwork,
		},
		{
			"empty stderr defaults to transient",
			"",
			model.ErrNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyExtractorError(tt.stderr, execErr)
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
		})
	}
}

func TestClassifyExtractorErrorMessage(t *testing.T) {
	stderr := "WARNING: some warning\nERROR: Unsupported URL: https://example.invalid\ntrailing noise"
	err := classifyExtractorError(stderr, nil)
	assert.Contains(t, err.Error(), "Unsupported URL: https://example.invalid")
	assert.NotContains(t, err.Error(), "WARNING")
}

func TestClassifyContext(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, model.ErrCancelled, model.KindOf(classifyContext(cancelled)))

	expired, cancel2 := context.WithTimeout(context.Background(), 0)
	defer cancel2()
	<-expired.Done()
	assert.Equal(t, model.ErrNetwork, model.KindOf(classifyContext(expired)))
}
