/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog reads the session playlists, papers and authors tables.
// Every lookup re-reads the files so edits made before a broadcast are used.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/rs/zerolog"
)

// authorColumnPrefix names the numbered author columns: author_1, author_2...
const authorColumnPrefix = "author_"

// minAuthorLength is the shortest cell accepted as an author name.
const minAuthorLength = 3

// Files locates the catalog tables.
type Files struct {
	Playlist string
	Papers   string
	Authors  string
}

// Reader resolves sessions into playable items from CSV tables.
type Reader struct {
	files    Files
	mediaDir string
	cycles   CycleMap
	logger   zerolog.Logger
}

// NewReader creates a catalog reader. Media file names are resolved under mediaDir.
func NewReader(files Files, mediaDir string, authorCycles CycleMap, logger zerolog.Logger) *Reader {
	if authorCycles == nil {
		authorCycles = DefaultAuthorCycles()
	}
	return &Reader{
		files:    files,
		mediaDir: mediaDir,
		cycles:   authorCycles,
		logger:   logger.With().Str("component", "catalog").Logger(),
	}
}

// ListItems returns the items of a session in play order.
func (r *Reader) ListItems(ctx context.Context, sessionID int) ([]models.SessionItem, error) {
	playlist, err := readTable(r.files.Playlist)
	if err != nil {
		return nil, fmt.Errorf("load playlist: %w", err)
	}
	for _, col := range []string{"session_number", "file_name", "play_order"} {
		if !playlist.has(col) {
			return nil, fmt.Errorf("playlist %s: missing column %q", playlist.path, col)
		}
	}

	var papers, authors *table
	items := make([]models.SessionItem, 0, 8)
	for row := range playlist.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		number, err := parseInt(playlist.get(row, "session_number"))
		if err != nil {
			r.logger.Warn().Err(err).Int("line", playlist.line(row)).Msg("skipping playlist row with invalid session number")
			continue
		}
		if number != sessionID {
			continue
		}

		order, err := parseInt(playlist.get(row, "play_order"))
		if err != nil {
			r.logger.Warn().Err(err).Int("line", playlist.line(row)).Int("session", sessionID).Msg("skipping playlist row with invalid play order")
			continue
		}

		item := models.SessionItem{
			SessionID: sessionID,
			PlayOrder: order,
			Media:     filepath.Join(r.mediaDir, playlist.get(row, "file_name")),
		}

		if parseBool(playlist.get(row, "is_paper")) {
			if papers == nil {
				if papers, err = readTable(r.files.Papers); err != nil {
					return nil, fmt.Errorf("load papers: %w", err)
				}
				if authors, err = r.loadAuthors(); err != nil {
					return nil, err
				}
			}
			item.Presentation = r.presentation(playlist, row, papers, authors)
		}

		items = append(items, item)
	}

	models.SortByPlayOrder(items)
	return items, nil
}

// ResolvePresentation looks up a paper by id and cycle. The boolean is false
// when the paper is not in the papers table.
func (r *Reader) ResolvePresentation(paperID int, cycle string) (*models.PaperPresentation, bool, error) {
	papers, err := readTable(r.files.Papers)
	if err != nil {
		return nil, false, fmt.Errorf("load papers: %w", err)
	}
	authors, err := r.loadAuthors()
	if err != nil {
		return nil, false, err
	}
	p, ok := r.findPaper(papers, authors, paperID, cycle)
	return p, ok, nil
}

func (r *Reader) presentation(playlist *table, row int, papers, authors *table) *models.PaperPresentation {
	line := playlist.line(row)
	paperID, err := parseInt(playlist.get(row, "paper_id"))
	if err != nil {
		r.logger.Warn().Err(err).Int("line", line).Msg("paper row without a valid paper_id, playing without announcement")
		return nil
	}
	cycle := playlist.get(row, "cycle")

	p, ok := r.findPaper(papers, authors, paperID, cycle)
	if !ok {
		r.logger.Warn().Int("line", line).Int("paper_id", paperID).Str("cycle", cycle).Msg("paper not found, playing without announcement")
		return nil
	}
	if p.Presenter == "" {
		p.Presenter = playlist.get(row, "presenter")
	}
	return p
}

func (r *Reader) findPaper(papers, authors *table, paperID int, cycle string) (*models.PaperPresentation, bool) {
	cycle = strings.ToLower(strings.TrimSpace(cycle))
	for row := range papers.rows {
		if strings.ToLower(papers.get(row, "cycle")) != cycle {
			continue
		}
		id, err := parseInt(papers.get(row, "paper_id"))
		if err != nil || id != paperID {
			continue
		}

		return &models.PaperPresentation{
			PaperID:    id,
			Cycle:      cycle,
			TalkNumber: papers.get(row, "talk_number"),
			Title:      papers.get(row, "title"),
			Presenter:  papers.get(row, "presenter"),
			Authors:    r.authorsFor(authors, id, cycle),
		}, true
	}
	return nil, false
}

// loadAuthors reads the optional authors table.
func (r *Reader) loadAuthors() (*table, error) {
	if r.files.Authors == "" {
		return nil, nil
	}
	authors, err := readTable(r.files.Authors)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	return authors, nil
}

// authorsFor joins the author columns of every authors row matching the
// paper. The authors table keys rows by the mapped cycle name.
func (r *Reader) authorsFor(authors *table, paperID int, cycle string) []string {
	if authors == nil {
		return nil
	}
	mapped, err := r.cycles.Map(cycle)
	if err != nil {
		if errors.Is(err, ErrUnknownCycle) {
			r.logger.Debug().Str("cycle", cycle).Int("paper_id", paperID).Msg("no author cycle mapping, omitting authors")
		}
		return nil
	}

	var names []string
	for row := range authors.rows {
		if strings.ToLower(authors.get(row, "cycle")) != mapped {
			continue
		}
		id, err := parseInt(authors.get(row, "id"))
		if err != nil || id != paperID {
			continue
		}
		for j := 1; ; j++ {
			column := authorColumnPrefix + strconv.Itoa(j)
			if !authors.has(column) {
				break
			}
			name := authors.get(row, column)
			if len(name) < minAuthorLength {
				break
			}
			names = append(names, name)
		}
	}
	return names
}
