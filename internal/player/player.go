/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player plays session videos on the local output.
package player

import "context"

// Player plays one media item at a time. Play starts playback, replacing
// whatever is playing, and returns; callers poll IsPlaying until it reports
// false.
type Player interface {
	Play(ctx context.Context, media string) error
	IsPlaying() bool
}

// Nop is a Player that plays nothing. It is used for dry runs.
type Nop struct{}

func (Nop) Play(context.Context, string) error { return nil }
func (Nop) IsPlaying() bool                    { return false }
