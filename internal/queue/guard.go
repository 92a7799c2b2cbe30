package queue

import (
	"context"
	"time"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
)

// Disk guard defaults
const (
	// DefaultRecheckInterval is how often free space is re-checked during a
	// download whose total size is unknown.
	DefaultRecheckInterval = 10 * time.Second

	// DefaultFreeSpaceMargin keeps a floor of free space so a download never
	// fills the volume completely.
	DefaultFreeSpaceMargin = 64 << 20 // 64 MiB
)

// DiskGuard performs the free-space preflight and the mid-transfer re-check
// for downloads of unknown size.
type DiskGuard struct {
	// Free reports available bytes on the volume containing a path.
	// Defaults to platform.FreeSpace; tests substitute their own.
	Free func(path string) (uint64, error)

	RecheckInterval time.Duration
	Margin          uint64
}

// NewDiskGuard creates a guard with production defaults.
func NewDiskGuard() *DiskGuard {
	return &DiskGuard{
		Free:            platform.FreeSpace,
		RecheckInterval: DefaultRecheckInterval,
		Margin:          DefaultFreeSpaceMargin,
	}
}

// Preflight rejects a job whose known size exceeds the free space at dir,
// before any byte is written. Unknown sizes (0) pass; the Watch re-check
// covers them. Probing errors pass too: an unreadable volume should surface
// as a download error, not a false disk-full.
func (g *DiskGuard) Preflight(dir string, expectedBytes int64) error {
	if expectedBytes <= 0 {
		return nil
	}
	free, err := g.Free(dir)
	if err != nil {
		return nil
	}
	if uint64(expectedBytes)+g.Margin > free {
		return model.NewJobError(model.ErrInsufficientDiskSpace,
			"need %d bytes, volume has %d free", expectedBytes, free)
	}
	return nil
}

// Watch polls free space under dir until ctx is done and calls onExhausted
// once if the volume drops below the margin. The caller aborts the transfer
// cooperatively; the guard itself never kills anything.
func (g *DiskGuard) Watch(ctx context.Context, dir string, onExhausted func()) {
	ticker := time.NewTicker(g.RecheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			free, err := g.Free(dir)
			if err != nil {
				continue
			}
			if free < g.Margin {
				onExhausted()
				return
			}
		}
	}
}
