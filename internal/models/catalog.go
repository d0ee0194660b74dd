/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"sort"
	"time"
)

// PaperPresentation is the paper metadata announced before a video.
type PaperPresentation struct {
	PaperID    int
	Cycle      string
	TalkNumber string
	Title      string
	Presenter  string
	Authors    []string
}

// SessionItem is one playable video of a session.
type SessionItem struct {
	SessionID    int
	PlayOrder    int
	Media        string
	Presentation *PaperPresentation
}

// IsPaper reports whether the item carries a paper presentation.
func (i SessionItem) IsPaper() bool {
	return i.Presentation != nil
}

// SortByPlayOrder orders items ascending by play order. Ties keep their
// input order.
func SortByPlayOrder(items []SessionItem) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].PlayOrder < items[b].PlayOrder
	})
}

// SessionSlot is one timetable row: a session and its week 1 and week 2
// start instants in UTC.
type SessionSlot struct {
	SessionID   int
	SessionName string
	Week1       time.Time
	Week2       time.Time
}

// FireTimes returns the week start instants in week order.
func (s SessionSlot) FireTimes() []time.Time {
	return []time.Time{s.Week1, s.Week2}
}
