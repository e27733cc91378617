// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"io"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/olekukonko/tablewriter"
	"go.mondoo.com/dockerlint/cli/printer"
	"go.mondoo.com/dockerlint/lint"
)

// PrintRules renders a table of rules with their effective settings
func PrintRules(out io.Writer, rules []lint.Rule, opts lint.Options) {
	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		meta := rule.Meta()
		enabled := "yes"
		if !opts.IsEnabled(rule) {
			enabled = "no"
		}
		rows = append(rows, []string{
			rule.ID(),
			string(meta.Kind),
			opts.SeverityOf(rule).String(),
			enabled,
			meta.Title,
		})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Kind", "Severity", "Enabled", "Title"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// descriptionWidth is where rule descriptions wrap
const descriptionWidth = 80

// ExplainRule prints everything known about a rule
func ExplainRule(out io.Writer, p *printer.Printer, rule lint.Rule, opts lint.Options) {
	meta := rule.Meta()
	var b strings.Builder
	b.WriteString(p.H1(rule.ID() + ": " + meta.Title))
	b.WriteString("Kind:      " + string(meta.Kind) + "\n")
	b.WriteString("Severity:  " + p.Severity(opts.SeverityOf(rule)) + "\n")
	if opts.IsEnabled(rule) {
		b.WriteString("Enabled:   yes\n")
	} else {
		b.WriteString("Enabled:   no\n")
	}
	if meta.Feature != 0 {
		b.WriteString("Feature:   " + meta.Feature.String() + "\n")
	}
	if meta.DocURL != "" {
		b.WriteString("Docs:      " + meta.DocURL + "\n")
	}
	if meta.Description != "" {
		b.WriteString("\n" + wordwrap.String(meta.Description, descriptionWidth) + "\n")
	}
	io.WriteString(out, b.String())
}
