// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package printer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/muesli/termenv"
	"go.mondoo.com/dockerlint/cli/theme/colors"
	"go.mondoo.com/dockerlint/lint"
)

// Printer turns lint results into human-readable strings
type Printer struct {
	Primary   func(...any) string
	Secondary func(...any) string
	Yellow    func(...any) string
	Error     func(...any) string
	Warn      func(...any) string
	Disabled  func(...any) string
	Failed    func(...any) string
	Success   func(...any) string

	// Severity colors text by severity, nil prints plain text
	severity func(lint.Severity, string) string
}

func colored(c termenv.Color) func(...any) string {
	return func(args ...any) string {
		return termenv.String(fmt.Sprint(args...)).Foreground(c).String()
	}
}

// NewPrinter creates a colored printer for the theme
func NewPrinter(theme *colors.Theme) Printer {
	return Printer{
		Primary:   colored(theme.Primary),
		Secondary: colored(theme.Secondary),
		Error: func(args ...any) string {
			return termenv.String("error: " + fmt.Sprint(args...)).Foreground(theme.Error).String()
		},
		Warn: func(args ...any) string {
			return termenv.String("warning: " + fmt.Sprint(args...)).Foreground(theme.Low).String()
		},
		Yellow:   colored(theme.Low),
		Disabled: colored(theme.Disabled),
		Failed:   colored(theme.Critical),
		Success:  colored(theme.Success),
		severity: func(s lint.Severity, text string) string {
			return termenv.String(text).Foreground(SeverityColor(theme, s)).String()
		},
	}
}

// DefaultPrinter that can be used without additional configuration
var DefaultPrinter = NewPrinter(colors.DefaultColorTheme)

// PlainNoColorPrinter is a printer without colors
var PlainNoColorPrinter = Printer{
	Primary:   fmt.Sprint,
	Secondary: fmt.Sprint,
	Yellow:    fmt.Sprint,
	Error: func(args ...any) string {
		return "error: " + fmt.Sprint(args...)
	},
	Warn: func(args ...any) string {
		return "warning: " + fmt.Sprint(args...)
	},
	Disabled: fmt.Sprint,
	Failed:   fmt.Sprint,
	Success:  fmt.Sprint,
}

// SeverityColor maps a severity onto the theme
func SeverityColor(theme *colors.Theme, s lint.Severity) termenv.Color {
	switch s.HumanReadable() {
	case "critical":
		return theme.Critical
	case "high":
		return theme.High
	case "medium":
		return theme.Medium
	case "low":
		return theme.Low
	case "info":
		return theme.Info
	default:
		return theme.Unknown
	}
}

// Severity prints the severity name padded to a fixed width
func (print *Printer) Severity(s lint.Severity) string {
	text := fmt.Sprintf("%-8s", strings.ToUpper(s.HumanReadable()))
	if print.severity == nil {
		return text
	}
	return print.severity(s, text)
}

var statusIcons = map[lint.Status]string{
	lint.StatusPass:  "✓",
	lint.StatusWarn:  "!",
	lint.StatusFail:  "✕",
	lint.StatusSkip:  "»",
	lint.StatusError: "?",
}

// Status prints the icon of a result status
func (print *Printer) Status(s lint.Status) string {
	icon := statusIcons[s]
	switch s {
	case lint.StatusPass:
		return print.Success(icon)
	case lint.StatusWarn:
		return print.Yellow(icon)
	case lint.StatusFail:
		return print.Failed(icon)
	default:
		return print.Disabled(icon)
	}
}

// H1 prints a headline
func (print *Printer) H1(headline string) string {
	var res bytes.Buffer
	res.WriteString(print.Primary(headline))
	res.WriteString("\n")
	res.WriteString(print.Primary(strings.Repeat("=", len(headline))))
	res.WriteString("\n\n")
	return res.String()
}

// H2 prints a headline
func (print *Printer) H2(headline string) string {
	var res bytes.Buffer
	res.WriteString(print.Primary(headline))
	res.WriteString("\n")
	res.WriteString(print.Primary(strings.Repeat("-", len(headline))))
	res.WriteString("\n\n")
	return res.String()
}
