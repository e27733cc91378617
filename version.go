// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerlint

// Version is set via ldflags
var Version string

// Build version is set via ldflags
var Build string

// Date is the build date, set via ldflags
var Date string

// GetVersion returns the version of the build
// It returns "unstable" if no version was set
func GetVersion() string {
	if Version == "" {
		return "unstable"
	}
	return Version
}

// GetBuild returns the git sha of the build
func GetBuild() string {
	if Build == "" {
		return "development"
	}
	return Build
}

// Info returns a human-readable version line
func Info() string {
	res := "dockerlint " + GetVersion() + " (" + GetBuild()
	if Date != "" {
		res += ", " + Date
	}
	return res + ")"
}
