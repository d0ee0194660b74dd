/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of sessioncast.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/sessioncast/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit and BuildDate are set at build time via ldflags.
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a one-line version description.
func String() string {
	return fmt.Sprintf("sessioncast %s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}
