// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/jstemmer/go-junit-report/v2/junit"
	"go.mondoo.com/dockerlint/lint"
)

// linting is not timed per file
const junitNoDuration = "0.000"

func findingsText(findings []lint.Finding) string {
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = location(f.Location) + " " + f.Message
	}
	return strings.Join(lines, "\n")
}

func junitTestcase(path string, res *lint.RuleResult) junit.Testcase {
	tc := junit.Testcase{
		Name:      res.RuleID + ": " + res.Title,
		Classname: path,
		Status:    res.Status.String(),
	}
	switch res.Status {
	case lint.StatusFail:
		tc.Failure = &junit.Result{
			Message: res.Title,
			Type:    res.Severity.String(),
			Data:    findingsText(res.Findings),
		}
	case lint.StatusWarn:
		tc.SystemOut = &junit.Output{Data: findingsText(res.Findings)}
	case lint.StatusError:
		tc.Error = &junit.Result{Message: res.Error, Type: "error"}
	case lint.StatusSkip:
		tc.Skipped = &junit.Result{Message: "rule skipped"}
	}
	return tc
}

// ConvertToJUnit writes a test suite per file and a test case per rule.
// Warnings pass and carry their findings as system-out.
func ConvertToJUnit(data *lint.Report, out io.Writer) error {
	suites := junit.Testsuites{Name: "dockerlint"}

	for i, file := range data.Files {
		suite := junit.Testsuite{
			Name: file.Path,
			ID:   i,
			File: file.Path,
			Time: junitNoDuration,
		}
		if !data.Created.IsZero() {
			suite.SetTimestamp(data.Created.UTC())
		}
		suite.AddProperty("kind", string(file.Kind))

		if file.Error != "" {
			suite.AddTestcase(junit.Testcase{
				Name:      "parse",
				Classname: file.Path,
				Error:     &junit.Result{Message: "could not parse file", Type: "parse", Data: file.Error},
			})
		}

		for j := range file.Results {
			suite.AddTestcase(junitTestcase(file.Path, &file.Results[j]))
		}
		suites.AddSuite(suite)
	}

	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	return suites.WriteXML(out)
}
