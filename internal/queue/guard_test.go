package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

func TestDiskGuardPreflight(t *testing.T) {
	tests := []struct {
		name     string
		free     uint64
		expected int64
		reject   bool
	}{
		{"plenty of space", 10 << 30, 1 << 30, false},
		{"exactly too little", 1 << 30, 1 << 30, true},
		{"margin pushes over", 1<<30 + 10<<20, 1 << 30, true},
		{"unknown size passes", 0, 0, false},
		{"negative size passes", 100, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &DiskGuard{
				Free:   func(string) (uint64, error) { return tt.free, nil },
				Margin: DefaultFreeSpaceMargin,
			}
			err := g.Preflight("/downloads", tt.expected)
			if tt.reject {
				require.Error(t, err)
				assert.Equal(t, model.ErrInsufficientDiskSpace, model.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDiskGuardPreflightIgnoresProbeErrors(t *testing.T) {
	g := &DiskGuard{
		Free:   func(string) (uint64, error) { return 0, errors.New("statfs failed") },
		Margin: DefaultFreeSpaceMargin,
	}
	assert.NoError(t, g.Preflight("/downloads", 1<<30))
}

func TestDiskGuardWatchFiresOnExhaustion(t *testing.T) {
	g := &DiskGuard{
		Free:            func(string) (uint64, error) { return 1 << 10, nil },
		RecheckInterval: time.Millisecond,
		Margin:          1 << 20,
	}

	fired := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go g.Watch(ctx, "/downloads", func() { close(fired) })

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("watch never fired on an exhausted volume")
	}
}

func TestDiskGuardWatchStopsOnCancel(t *testing.T) {
	calls := make(chan struct{}, 1)
	g := &DiskGuard{
		Free: func(string) (uint64, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return 10 << 30, nil
		},
		RecheckInterval: time.Millisecond,
		Margin:          1 << 20,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Watch(ctx, "/downloads", func() { t.Error("must not fire with space available") })
		close(done)
	}()

	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on context cancellation")
	}
}
