// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.mondoo.com/dockerlint/lint"
)

type cliReporter struct {
	*Reporter
	isCompact bool
	isSummary bool
	out       io.Writer
	data      *lint.Report
}

func (r *cliReporter) print() error {
	if r.isCompact {
		r.printCompact()
		return nil
	}

	if !r.isSummary {
		for _, file := range r.data.Files {
			r.printFile(file)
		}
	}

	r.printSummary()
	return nil
}

// location prints path:line or path:start-end
func location(loc lint.Location) string {
	switch {
	case loc.Line <= 0:
		return loc.Path
	case loc.EndLine > loc.Line:
		return loc.Path + ":" + strconv.Itoa(loc.Line) + "-" + strconv.Itoa(loc.EndLine)
	default:
		return loc.Path + ":" + strconv.Itoa(loc.Line)
	}
}

func (r *cliReporter) write(s string) {
	io.WriteString(r.out, s)
}

func (r *cliReporter) printCompact() {
	for _, file := range r.data.Files {
		if file.Error != "" {
			r.write(file.Path + ": " + r.Printer.Error(file.Error) + "\n")
			continue
		}
		for _, res := range file.Results {
			switch res.Status {
			case lint.StatusError:
				r.write(file.Path + ": " + res.RuleID + " " + r.Printer.Error(res.Error) + "\n")
			case lint.StatusFail, lint.StatusWarn:
				for _, f := range res.Findings {
					r.write(fmt.Sprintf("%s %s %s %s\n",
						location(f.Location),
						res.RuleID,
						r.Printer.Severity(f.Severity),
						f.Message,
					))
				}
			}
		}
	}
}

func (r *cliReporter) printFile(file *lint.FileReport) {
	header := file.Path
	if file.Kind != "" {
		header += " (" + string(file.Kind) + ")"
	}
	r.write(r.Printer.H2(header))

	if file.Error != "" {
		r.write(r.Printer.Error(file.Error) + "\n\n")
		return
	}

	printed := 0
	for i := range file.Results {
		res := &file.Results[i]
		if res.Status == lint.StatusPass && !r.ShowPassed {
			continue
		}
		printed++
		r.printResult(res)
	}
	if printed == 0 {
		r.write(r.Printer.Success("No issues found.") + "\n")
	}
	r.write("\n")
}

func (r *cliReporter) printResult(res *lint.RuleResult) {
	r.write(fmt.Sprintf("%s %s %s  %s\n",
		r.Printer.Status(res.Status),
		r.Printer.Severity(res.Severity),
		res.RuleID,
		res.Title,
	))

	if res.Status == lint.StatusError {
		r.write("    " + r.Printer.Error(res.Error) + "\n")
		return
	}

	for _, f := range res.Findings {
		r.write("    " + r.Printer.Disabled(location(f.Location)) + "  " + f.Message + "\n")
	}

	if r.IsVerbose && r.Registry != nil && len(res.Findings) > 0 {
		if rule, ok := r.Registry.Get(res.RuleID); ok {
			meta := rule.Meta()
			if meta.Description != "" {
				r.write("    " + r.Printer.Secondary(meta.Description) + "\n")
			}
			if meta.DocURL != "" {
				r.write("    " + r.Printer.Secondary(meta.DocURL) + "\n")
			}
		}
	}
}

func (r *cliReporter) printSummary() {
	stats := r.data.Stats()
	r.write(r.Printer.H1("Summary (" + strconv.Itoa(stats.Files) + " files)"))

	width := 0
	for _, file := range r.data.Files {
		if len(file.Path) > width {
			width = len(file.Path)
		}
	}

	for _, file := range r.data.Files {
		path := file.Path + strings.Repeat(" ", width-len(file.Path))
		if file.Error != "" {
			r.write(path + "  " + r.Printer.Error("could not parse file") + "\n")
			continue
		}

		var failed, warned int
		for i := range file.Results {
			switch file.Results[i].Status {
			case lint.StatusFail:
				failed++
			case lint.StatusWarn:
				warned++
			}
		}
		score := fmt.Sprintf("score %3d", file.Score())
		if failed > 0 {
			score = r.Printer.Failed(score)
		} else {
			score = r.Printer.Success(score)
		}
		r.write(fmt.Sprintf("%s  %s  %d failed, %d warnings\n", path, score, failed, warned))
	}
	r.write("\n")

	r.write(fmt.Sprintf("Rules: %d passed, %d warnings, %d failed, %d errors, %d skipped\n",
		stats.Count(lint.StatusPass),
		stats.Count(lint.StatusWarn),
		stats.Count(lint.StatusFail),
		stats.Count(lint.StatusError),
		stats.Count(lint.StatusSkip),
	))
	r.write(fmt.Sprintf("Findings: %d\n", stats.Findings))
	if counts := r.severityCounts(stats); counts != "" {
		r.write("By severity: " + counts + "\n")
	}
	if stats.ParseErrors > 0 {
		r.write(r.Printer.Error(strconv.Itoa(stats.ParseErrors)+" files could not be parsed") + "\n")
	}
	if stats.Worst > lint.SeverityNone {
		r.write("Worst failed severity: " + r.Printer.Severity(stats.Worst) + "\n")
	}
}

// severityCounts lists failed and warned rules per severity, highest first
func (r *Reporter) severityCounts(stats lint.Stats) string {
	var res []string
	for i := len(lint.SeverityNames) - 1; i >= 0; i-- {
		sev, _ := lint.ParseSeverity(lint.SeverityNames[i])
		if n := stats.BySeverity[sev]; n > 0 {
			res = append(res, lint.SeverityNames[i]+" "+strconv.Itoa(n))
		}
	}
	return strings.Join(res, ", ")
}
