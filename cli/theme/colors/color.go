// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package colors

// NOTE: this package is used by the logger and the printer and should really
// have no dependency beyond termenv

import (
	"github.com/muesli/termenv"
)

// Theme is the color theme used for terminal output
type Theme struct {
	// messages
	Primary   termenv.Color
	Secondary termenv.Color
	Disabled  termenv.Color
	Error     termenv.Color
	Success   termenv.Color

	// severity
	Critical termenv.Color
	High     termenv.Color
	Medium   termenv.Color
	Low      termenv.Color
	Info     termenv.Color
	Good     termenv.Color
	Unknown  termenv.Color
}

// DefaultColorTheme is picked for the detected terminal profile
var DefaultColorTheme = NewTheme(termenv.ColorProfile())

// NewTheme returns the default colors degraded to the given profile
func NewTheme(profile termenv.Profile) *Theme {
	return &Theme{
		Primary:   profile.Color("#5F5FFF"),
		Secondary: profile.Color("#AF87FF"),
		Disabled:  profile.Color("#626262"),
		Error:     profile.Color("#FF0000"),
		Success:   profile.Color("#00D700"),

		Critical: profile.Color("#D70000"),
		High:     profile.Color("#FF5F00"),
		Medium:   profile.Color("#FFAF00"),
		Low:      profile.Color("#FFD700"),
		Info:     profile.Color("#5FAFFF"),
		Good:     profile.Color("#00D700"),
		Unknown:  profile.Color("#8A8A8A"),
	}
}

func ProfileName(profile termenv.Profile) string {
	switch profile {
	case termenv.Ascii:
		return "Ascii"
	case termenv.ANSI:
		return "ANSI"
	case termenv.ANSI256:
		return "ANSI256"
	case termenv.TrueColor:
		return "TrueColor"
	default:
		return "unknown"
	}
}
