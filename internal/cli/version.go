package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seeeba07/Universal-Video-Downloader/internal/platform"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and external tool status",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("uvd %s\n", Version)

			runner := platform.NewRunner("")
			if runner.Available() {
				fmt.Printf("yt-dlp %s\n", runner.Version(cmd.Context()))
			} else {
				fmt.Println("yt-dlp not found in PATH")
			}

			if path, err := platform.FFmpegPath(); err == nil {
				fmt.Printf("ffmpeg %s\n", path)
			} else {
				fmt.Println("ffmpeg not found")
			}
			return nil
		},
	}
}
