package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe URL",
		Short: "Show the formats and subtitles available for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			snap := eng.settings.Snapshot()
			md, err := eng.fetcher.Fetch(cmd.Context(), args[0], snap.CookiesFromBrowser)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(md)
			}

			fmt.Printf("Title: %s\n", md.Title)
			if md.IsPlaylist {
				fmt.Printf("Playlist with %d entries\n", len(md.Entries))
			}
			if len(md.Formats) > 0 {
				fmt.Println("\nFormats:")
				for _, f := range md.Formats {
					size := ""
					if f.FilesizeBytes > 0 {
						size = fmt.Sprintf("  %.1f MiB", float64(f.FilesizeBytes)/(1024*1024))
					}
					fmt.Printf("  %-10s %4dx%-4d %2dfps  %s%s\n", f.ID, f.Width, f.Height, f.FPS, f.Ext, size)
				}
			}
			if len(md.Subtitles) > 0 {
				fmt.Printf("\nSubtitles: %v\n", md.Subtitles)
			}
			if len(md.AutoSubtitles) > 0 {
				fmt.Printf("Auto captions: %v\n", md.AutoSubtitles)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw normalized metadata as JSON")
	return cmd
}
