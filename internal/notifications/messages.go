/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"strconv"
	"strings"

	"github.com/friendsincode/sessioncast/internal/models"
)

// SessionMessage is the announcement sent to the broadcast destination when
// a session starts from its first item. Paper titles are numbered by their
// position in the sorted item list.
func SessionMessage(sessionName string, items []models.SessionItem) string {
	var b strings.Builder
	b.WriteString("The session ")
	b.WriteString(sessionName)
	b.WriteString(" is about to start!\n\nThe following papers will be presented:")

	for i, item := range items {
		if !item.IsPaper() || strings.TrimSpace(item.Presentation.Title) == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(item.Presentation.Title)
	}
	return b.String()
}

// PaperMessage is the announcement sent to the session destination before a
// paper video plays.
func PaperMessage(p *models.PaperPresentation) string {
	msg := "The video presentation for \"" + p.Title + "\" will be starting now!"
	if authors := FormatAuthors(p.Authors); authors != "" {
		msg += "\nAuthors: " + authors
	}
	if p.Presenter != "" {
		msg += "\nPresented by: " + p.Presenter
	}
	return msg
}

// FormatAuthors joins names as "A", "A and B" or "A, B and C".
func FormatAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
