// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"go.mondoo.com/dockerlint/cli/printer"
	"go.mondoo.com/dockerlint/cli/theme/colors"
	"go.mondoo.com/dockerlint/lint"
)

type Reporter struct {
	Format  Format
	Printer *printer.Printer
	Colors  *colors.Theme
	// ShowPassed prints passing rules in the cli format
	ShowPassed bool
	// IsVerbose adds rule descriptions and doc links to the cli format
	IsVerbose bool
	// Registry resolves rule metadata, optional
	Registry *lint.Registry
}

func New(typ string) (*Reporter, error) {
	format, err := ParseFormat(typ)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		Format:  format,
		Printer: &printer.DefaultPrinter,
		Colors:  colors.DefaultColorTheme,
	}, nil
}

// UseColor switches between the colored and the plain printer
func (r *Reporter) UseColor(enabled bool) {
	if enabled {
		r.Printer = &printer.DefaultPrinter
	} else {
		r.Printer = &printer.PlainNoColorPrinter
	}
}

// ColorEnabled reports whether colored output should be written to out
func ColorEnabled(out io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Reporter) Print(report *lint.Report, out io.Writer) error {
	if report == nil {
		return errors.New("no report to print")
	}

	switch r.Format {
	case CLI:
		return (&cliReporter{Reporter: r, out: out, data: report}).print()
	case Compact:
		return (&cliReporter{Reporter: r, out: out, data: report, isCompact: true}).print()
	case Summary:
		return (&cliReporter{Reporter: r, out: out, data: report, isSummary: true}).print()
	case JSON:
		return ConvertToJSON(report, out)
	case YAML:
		return ConvertToYAML(report, out)
	case CSV:
		return ConvertToCSV(report, out)
	case JUnit:
		return ConvertToJUnit(report, out)
	default:
		return errors.Newf("unsupported output format %s", r.Format)
	}
}
