/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

const (
	// IdleSessionID marks the store as not broadcasting anything.
	IdleSessionID = 0
	// IdleSessionName is the label persisted while idle.
	IdleSessionName = "idle"
)

// PlaybackStatusRowID is the fixed primary key of the single status row.
const PlaybackStatusRowID = "current"

// PlaybackStatus is the durable playback position of the broadcast engine.
//
// Position is the play order of the next (or in-flight) item. Position 0 means
// the session has not started yet.
type PlaybackStatus struct {
	ID          string    `gorm:"type:varchar(16);primaryKey" json:"-"`
	SessionName string    `gorm:"type:varchar(255)" json:"session_name"`
	SessionID   int       `gorm:"column:session_number" json:"session_number"`
	Position    int       `gorm:"column:playback_number" json:"playback_number"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName overrides for GORM.
func (PlaybackStatus) TableName() string {
	return "playback_status"
}

// IdleStatus returns the idle record.
func IdleStatus() PlaybackStatus {
	return PlaybackStatus{
		ID:          PlaybackStatusRowID,
		SessionName: IdleSessionName,
		SessionID:   IdleSessionID,
		Position:    0,
	}
}

// IsIdle reports whether no session is active or interrupted.
func (s PlaybackStatus) IsIdle() bool {
	return s.SessionID == IdleSessionID && s.Position == 0
}

// Interrupted reports whether the status records a session that never
// returned to idle.
func (s PlaybackStatus) Interrupted() bool {
	return s.Position > 0
}
