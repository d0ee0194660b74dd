/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

const (
	submissionURLColumn       = "URL of your paper's PCS submission page"
	submissionPresenterColumn = "Name of the Presenting Author"
)

// PlaylistColumns is the header written by GeneratePlaylist.
var PlaylistColumns = []string{"file_name", "session_number", "is_paper", "paper_id", "cycle", "presenter", "play_order"}

// GenerateOptions configures GeneratePlaylist.
type GenerateOptions struct {
	SubmissionsFile string
	PapersFile      string
	MediaDir        string
	OutFile         string
	VideoSuffix     string   // defaults to "mp4"
	Cycles          CycleMap // submission cycle -> papers cycle
}

// GenerateSummary reports what GeneratePlaylist did.
type GenerateSummary struct {
	Processed   int
	VideosFound int
	ItemsAdded  int
	Skipped     []RowError
}

// GeneratePlaylist builds the playlist table from the video submissions
// list: each submission whose video exists in the media dir and whose paper
// has a session becomes a paper item. Play orders follow input order within
// each session.
func GeneratePlaylist(opts GenerateOptions, logger zerolog.Logger) (GenerateSummary, error) {
	var summary GenerateSummary
	if opts.VideoSuffix == "" {
		opts.VideoSuffix = "mp4"
	}
	if opts.Cycles == nil {
		opts.Cycles = DefaultSubmissionCycles()
	}

	submissions, err := readTable(opts.SubmissionsFile)
	if err != nil {
		return summary, fmt.Errorf("load submissions: %w", err)
	}
	if !submissions.has(submissionURLColumn) {
		return summary, fmt.Errorf("submissions %s: missing column %q", opts.SubmissionsFile, submissionURLColumn)
	}
	papers, err := readTable(opts.PapersFile)
	if err != nil {
		return summary, fmt.Errorf("load papers: %w", err)
	}

	skip := func(line int, err error) {
		summary.Skipped = append(summary.Skipped, RowError{Line: line, Err: err})
		logger.Warn().Err(err).Int("line", line).Msg("skipping submission")
	}

	nextOrder := make(map[int]int)
	var records [][]string
	for row := range submissions.rows {
		summary.Processed++
		line := submissions.line(row)

		pcsURL := submissions.get(row, submissionURLColumn)
		if pcsURL == "" {
			skip(line, errors.New("no PCS URL"))
			continue
		}
		parts := strings.Split(pcsURL, "/")
		if len(parts) < 7 {
			skip(line, fmt.Errorf("invalid PCS URL %q", pcsURL))
			continue
		}
		submissionCycle := strings.ToLower(strings.TrimSpace(parts[3]))
		paperID := strings.TrimSpace(parts[6])
		videoFile := submissionCycle + "_" + paperID + "." + opts.VideoSuffix

		videoPath := filepath.Join(opts.MediaDir, videoFile)
		if _, err := os.Stat(videoPath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				skip(line, fmt.Errorf("video %s not found", videoPath))
			} else {
				skip(line, fmt.Errorf("stat video: %w", err))
			}
			continue
		}
		summary.VideosFound++

		cycleName, err := opts.Cycles.Map(submissionCycle)
		if err != nil {
			skip(line, err)
			continue
		}

		session, ok := sessionForPaper(papers, cycleName, paperID)
		if !ok {
			skip(line, fmt.Errorf("no session for paper %s in cycle %s", paperID, cycleName))
			continue
		}

		nextOrder[session]++
		records = append(records, []string{
			videoFile,
			strconv.Itoa(session),
			"True",
			paperID,
			cycleName,
			submissions.get(row, submissionPresenterColumn),
			strconv.Itoa(nextOrder[session]),
		})
		summary.ItemsAdded++
	}

	if err := writePlaylist(opts.OutFile, records, logger); err != nil {
		return summary, err
	}
	return summary, nil
}

func sessionForPaper(papers *table, cycle, paperID string) (int, bool) {
	for row := range papers.rows {
		if strings.ToLower(papers.get(row, "cycle")) != cycle || papers.get(row, "paper_id") != paperID {
			continue
		}
		session, err := parseInt(papers.get(row, "session_number"))
		if err != nil {
			return 0, false
		}
		return session, true
	}
	return 0, false
}

func writePlaylist(path string, records [][]string, logger zerolog.Logger) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending playlist file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending playlist file")
		}
	}()

	w := csv.NewWriter(pendingFile)
	if err := w.Write(PlaylistColumns); err != nil {
		return fmt.Errorf("write playlist header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write playlist rows: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace playlist file: %w", err)
	}
	return nil
}
