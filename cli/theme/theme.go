// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package theme

import (
	"go.mondoo.com/dockerlint/cli/printer"
	"go.mondoo.com/dockerlint/cli/theme/colors"
)

// Theme bundles colors and printers used by the CLI
type Theme struct {
	Colors  *colors.Theme
	List    func(...string) string
	Landing string
	Printer printer.Printer
}

// Plain returns a copy of the theme without colors
func (t *Theme) Plain() *Theme {
	return &Theme{
		Colors:  t.Colors,
		List:    t.List,
		Landing: logo,
		Printer: printer.PlainNoColorPrinter,
	}
}
