package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/queue"
	"github.com/seeeba07/Universal-Video-Downloader/internal/resolve"
)

func newGetCmd() *cobra.Command {
	var (
		mode         string
		quality      string
		container    string
		audioFormat  string
		audioBitrate string
		subtitles    string
		playlist     bool
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download a single URL and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if outDir != "" {
				eng.settings.DownloadDir = outDir
			}
			return runGet(cmd.Context(), eng, args[0], resolve.Request{
				Mode:         model.Mode(mode),
				Quality:      quality,
				Container:    container,
				AudioFormat:  audioFormat,
				AudioBitrate: audioBitrate,
				Subtitles:    subtitles,
				Playlist:     playlist,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&mode, "mode", "", `"video" or "audio" (default from settings)`)
	f.StringVar(&quality, "quality", resolve.QualityBest, `"best", "1080p", or a format id`)
	f.StringVar(&container, "format", "", "video container: mp4, webm, mkv")
	f.StringVar(&audioFormat, "audio-format", "", "audio mode container: mp3, m4a, opus, flac, wav")
	f.StringVar(&audioBitrate, "audio-bitrate", "", "audio bitrate in kbit/s")
	f.StringVar(&subtitles, "subs", "", `embed subtitles: "all" or a comma-separated language list`)
	f.BoolVar(&playlist, "playlist", false, "download the whole playlist")
	f.StringVarP(&outDir, "out", "o", "", "destination directory (default from settings)")
	return cmd
}

func runGet(parent context.Context, eng *engine, url string, req resolve.Request) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap := eng.settings.Snapshot()
	md, err := eng.fetcher.Fetch(ctx, url, snap.CookiesFromBrowser)
	if err != nil {
		return err
	}
	req.URL = url
	req.Playlist = req.Playlist && md.IsPlaylist

	job, err := resolve.Resolve(req, md, snap)
	if err != nil {
		return err
	}
	fmt.Printf("Downloading: %s\n", job.Title)

	done := make(chan *model.Job, 1)
	bar := newTransferBar(job.ExpectedSizeBytes)
	eng.queue.Notify(func(evt queue.Event) {
		switch evt.Type {
		case queue.EventProgress:
			updateTransferBar(bar, evt.Job.Progress)
		case queue.EventStatus:
			if evt.Job.Status.IsTerminal() {
				done <- evt.Job
			}
		}
	})

	if _, err := eng.queue.Enqueue(job); err != nil {
		return err
	}
	eng.executor.Start()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go eng.executor.Run(runCtx)

	var final *model.Job
	select {
	case final = <-done:
	case <-ctx.Done():
		// Interrupt: let the executor cancel the job and report the
		// terminal state before exiting.
		eng.executor.CancelCurrent()
		final = <-done
	}
	_ = bar.Finish()
	fmt.Println()

	switch final.Status {
	case model.StatusCompleted:
		fmt.Printf("Saved to %s\n", final.OutputPath)
		return nil
	case model.StatusCancelled:
		return fmt.Errorf("download cancelled")
	default:
		if final.LastError != nil {
			return fmt.Errorf("download failed after %d retries: %s", final.RetryCount, final.LastError.Message)
		}
		return fmt.Errorf("download failed")
	}
}

// newTransferBar builds a byte-denominated progress bar. An unknown total
// renders as a spinner until the first sized progress event arrives.
func newTransferBar(expected int64) *progressbar.ProgressBar {
	if expected <= 0 {
		expected = -1
	}
	return progressbar.NewOptions64(expected,
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(0),
	)
}

func updateTransferBar(bar *progressbar.ProgressBar, p *model.Progress) {
	if p == nil {
		return
	}
	if p.Stage == model.StagePostprocessing {
		bar.Describe("processing")
		return
	}
	if p.TotalBytes != nil && *p.TotalBytes > 0 && bar.GetMax64() != *p.TotalBytes {
		bar.ChangeMax64(*p.TotalBytes)
	}
	_ = bar.Set64(p.DownloadedBytes)
}
