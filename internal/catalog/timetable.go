/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/friendsincode/sessioncast/internal/models"
)

// RowError describes a timetable row that could not be used.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ReadTimetable reads the sessions table. Rows whose number or timestamps do
// not parse are returned as RowErrors and left out of the slots. Timestamps
// without a zone are taken as UTC.
func ReadTimetable(path string) ([]models.SessionSlot, []RowError, error) {
	sessions, err := readTable(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load timetable: %w", err)
	}
	for _, col := range []string{"session_number", "session_name", "w1_time_utc", "w2_time_utc"} {
		if !sessions.has(col) {
			return nil, nil, fmt.Errorf("timetable %s: missing column %q", path, col)
		}
	}

	slots := make([]models.SessionSlot, 0, len(sessions.rows))
	var rowErrs []RowError
	for row := range sessions.rows {
		line := sessions.line(row)

		number, err := parseInt(sessions.get(row, "session_number"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Errorf("session number: %w", err)})
			continue
		}
		w1, err := parseUTC(sessions.get(row, "w1_time_utc"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Errorf("week 1 time: %w", err)})
			continue
		}
		w2, err := parseUTC(sessions.get(row, "w2_time_utc"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Errorf("week 2 time: %w", err)})
			continue
		}

		slots = append(slots, models.SessionSlot{
			SessionID:   number,
			SessionName: sessions.get(row, "session_name"),
			Week1:       w1,
			Week2:       w2,
		})
	}
	return slots, rowErrs, nil
}

func parseUTC(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
