// Package cli wires the engine into the uvd command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/seeeba07/Universal-Video-Downloader/internal/config"
	"github.com/seeeba07/Universal-Video-Downloader/internal/fetch"
	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
	"github.com/seeeba07/Universal-Video-Downloader/internal/postprocess"
	"github.com/seeeba07/Universal-Video-Downloader/internal/queue"
)

// Version is stamped at build time.
var Version = "dev"

var (
	flagConfig  string
	flagVerbose bool
)

// NewRootCmd builds the uvd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uvd",
		Short: "Universal video downloader",
		Long: `uvd downloads video and audio from any site the extraction tool
supports, with a sequential job queue, automatic retries and local
postprocessing (merging, audio extraction, subtitle embedding).

Examples:
  # Download a video at the best available quality
  uvd get https://example.com/watch?v=abc

  # Extract audio as 192 kbps mp3
  uvd get --mode audio --audio-format mp3 --audio-bitrate 192 https://example.com/watch?v=abc

  # Run the queue as a local HTTP service
  uvd serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to the settings file (default ~/.uvd/config.yaml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// engine bundles the constructed core for one command invocation.
type engine struct {
	settings config.Settings
	runner   *platform.Runner
	fetcher  *fetch.Fetcher
	queue    *queue.Queue
	executor *queue.Executor
}

// buildEngine loads settings and assembles the queue, executor and their
// collaborators.
func buildEngine() (*engine, error) {
	settings, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	level := settings.LogLevel
	if flagVerbose {
		level = "debug"
	}
	uvdlog.Configure(uvdlog.Config{Level: level})

	runner := platform.NewRunner("")
	q := queue.New()
	ex := queue.NewExecutor(q, runner, postprocess.New(), queue.NewDiskGuard())

	return &engine{
		settings: settings,
		runner:   runner,
		fetcher:  fetch.New(runner),
		queue:    q,
		executor: ex,
	}, nil
}
