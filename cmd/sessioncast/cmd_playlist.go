/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/friendsincode/sessioncast/internal/catalog"
)

var (
	playlistSubmissions string
	playlistPapers      string
	playlistMediaDir    string
	playlistOut         string
	playlistSuffix      string
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Playlist table tools",
}

var playlistGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the playlist table from the video submissions list",
	Long: `Build the playlist table from the video submissions list.

Each submission whose video file exists in the media directory and whose
paper is assigned to a session becomes a paper item of that session.

Examples:
  # Use the configured scheduling and media directories
  sessioncast playlist generate

  # Explicit paths
  sessioncast playlist generate --submissions subs.csv --papers papers.csv --media videos --out playlist.csv
`,
	RunE: runPlaylistGenerate,
}

func init() {
	playlistGenerateCmd.Flags().StringVar(&playlistSubmissions, "submissions", "", "Video submissions CSV (default <scheduling dir>/video_submissions.csv)")
	playlistGenerateCmd.Flags().StringVar(&playlistPapers, "papers", "", "Papers CSV (default configured papers file)")
	playlistGenerateCmd.Flags().StringVar(&playlistMediaDir, "media", "", "Media directory (default configured media dir)")
	playlistGenerateCmd.Flags().StringVar(&playlistOut, "out", "", "Output playlist CSV (default configured playlist file)")
	playlistGenerateCmd.Flags().StringVar(&playlistSuffix, "suffix", "mp4", "Video file suffix")
	playlistCmd.AddCommand(playlistGenerateCmd)
	rootCmd.AddCommand(playlistCmd)
}

func runPlaylistGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	opts := catalog.GenerateOptions{
		SubmissionsFile: orDefault(playlistSubmissions, filepath.Join(cfg.SchedulingDir, "video_submissions.csv")),
		PapersFile:      orDefault(playlistPapers, cfg.PapersFile),
		MediaDir:        orDefault(playlistMediaDir, cfg.MediaDir),
		OutFile:         orDefault(playlistOut, cfg.PlaylistFile),
		VideoSuffix:     playlistSuffix,
	}
	_, submissionCycles, err := catalog.LoadCycleMaps(cfg.CyclesFile)
	if err != nil {
		return err
	}
	opts.Cycles = submissionCycles

	summary, err := catalog.GeneratePlaylist(opts, logger)
	if err != nil {
		return fmt.Errorf("generate playlist: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", opts.OutFile)
	fmt.Fprintf(out, "  submissions processed: %d\n", summary.Processed)
	fmt.Fprintf(out, "  videos found:          %d\n", summary.VideosFound)
	fmt.Fprintf(out, "  items added:           %d\n", summary.ItemsAdded)
	fmt.Fprintf(out, "  skipped:               %d\n", len(summary.Skipped))
	for _, skipped := range summary.Skipped {
		fmt.Fprintf(out, "    %v\n", skipped)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
