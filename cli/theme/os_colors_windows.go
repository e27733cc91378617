// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package theme

import (
	"github.com/muesli/termenv"
	"go.mondoo.com/dockerlint/cli/printer"
	"go.mondoo.com/dockerlint/cli/theme/colors"
)

// OperatingSystemTheme for windows shell
var OperatingSystemTheme = &Theme{
	Colors:  colors.DefaultColorTheme,
	List:    list,
	Landing: termenv.String("dockerlint\n" + logo + "\n").Foreground(colors.DefaultColorTheme.Primary).String(),
	Printer: printer.DefaultPrinter,
}
