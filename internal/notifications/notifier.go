/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notifications delivers session and paper announcements.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDestinationNotFound is returned when no destination matches the id or name.
var ErrDestinationNotFound = errors.New("destination not found")

// testSuffix is appended to destination names in test mode.
const testSuffix = "-test"

// Notifier sends text announcements. Failures are reported to the caller,
// which treats them as best effort.
type Notifier interface {
	// Send delivers text to the destination with the given id.
	Send(ctx context.Context, destinationID, text string) error
	// SendByName delivers text to the destination with the given name.
	SendByName(ctx context.Context, name, text string) error
}

// ChannelName derives the per-session destination name: the session number
// zero padded to two digits, a dash, and the lowercased session name with
// spaces turned into dashes, "&" spelled out and commas dropped.
func ChannelName(sessionName string, sessionID int, testMode bool) string {
	slug := strings.ToLower(strings.TrimSpace(sessionName))
	slug = strings.NewReplacer(" ", "-", "&", "and", ",", "").Replace(slug)

	name := fmt.Sprintf("%02d-%s", sessionID, slug)
	if testMode {
		name += testSuffix
	}
	return name
}
