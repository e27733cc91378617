// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/jstemmer/go-junit-report/v2/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mondoo.com/dockerlint/cli/printer"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/rules"
)

func testReport() *lint.Report {
	report := lint.NewReport()
	report.Add(
		&lint.FileReport{
			Path:  "broken/Dockerfile",
			Kind:  lint.KindDockerfile,
			Error: "broken/Dockerfile:1: Dockerfile has no instructions",
		},
		&lint.FileReport{
			Path: "Dockerfile",
			Kind: lint.KindDockerfile,
			Results: []lint.RuleResult{
				{RuleID: "DF001", Title: "Use multi-stage builds", Severity: lint.SeverityInfo, Status: lint.StatusPass},
				{RuleID: "DF002", Title: "Pin base image tags", Severity: lint.SeverityHigh, Status: lint.StatusFail, Findings: []lint.Finding{{
					RuleID:      "DF002",
					Severity:    lint.SeverityHigh,
					Message:     "base image alpine uses the latest tag",
					Location:    lint.Location{Path: "Dockerfile", Line: 1},
					Fingerprint: "abc",
				}}},
				{RuleID: "DF003", Title: "Pin base images by digest", Severity: lint.SeverityLow, Status: lint.StatusSkip},
				{RuleID: "DF008", Title: "Combine consecutive RUN instructions", Severity: lint.SeverityLow, Status: lint.StatusWarn, Findings: []lint.Finding{{
					RuleID:   "DF008",
					Severity: lint.SeverityLow,
					Message:  "2 consecutive RUN instructions can be combined",
					Location: lint.Location{Path: "Dockerfile", Line: 3, EndLine: 5},
				}}},
				{RuleID: "DF012", Title: "Add a .dockerignore", Severity: lint.SeverityMedium, Status: lint.StatusError, Error: "permission denied"},
			},
		},
	)
	return report
}

func plainReporter(t *testing.T, format string) *Reporter {
	r, err := New(format)
	require.NoError(t, err)
	r.UseColor(false)
	return r
}

func TestFormats(t *testing.T) {
	assert.Equal(t, "cli, compact, csv, json, junit, summary, yaml", AllFormats())

	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)
	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)
	assert.Equal(t, "yaml", f.String())

	_, err = ParseFormat("sarif")
	assert.ErrorContains(t, err, "available formats: cli, compact")

	_, err = New("html")
	assert.Error(t, err)
}

func TestCliReport(t *testing.T) {
	var buf bytes.Buffer
	r := plainReporter(t, "cli")
	require.NoError(t, r.Print(testReport(), &buf))
	out := buf.String()

	assert.Contains(t, out, "Dockerfile (dockerfile)\n"+strings.Repeat("-", 23)+"\n")
	assert.Contains(t, out, "✕ HIGH     DF002  Pin base image tags\n    Dockerfile:1  base image alpine uses the latest tag\n")
	assert.Contains(t, out, "! LOW      DF008")
	assert.Contains(t, out, "Dockerfile:3-5")
	assert.Contains(t, out, "? MEDIUM   DF012  Add a .dockerignore\n    error: permission denied\n")
	assert.Contains(t, out, "error: broken/Dockerfile:1: Dockerfile has no instructions")
	assert.NotContains(t, out, "DF001", "passed rules are hidden")

	assert.Contains(t, out, "Summary (2 files)")
	assert.Contains(t, out, "Dockerfile"+strings.Repeat(" ", 9)+"score  30  1 failed, 1 warnings\n")
	assert.Contains(t, out, "broken/Dockerfile  error: could not parse file\n")
	assert.Contains(t, out, "Rules: 1 passed, 1 warnings, 1 failed, 1 errors, 1 skipped\n")
	assert.Contains(t, out, "Findings: 2\n")
	assert.Contains(t, out, "By severity: high 1, low 1\n")
	assert.Contains(t, out, "Worst failed severity: HIGH")

	buf.Reset()
	r.ShowPassed = true
	require.NoError(t, r.Print(testReport(), &buf))
	assert.Contains(t, buf.String(), "✓ INFO     DF001  Use multi-stage builds\n")
}

func TestCliReportVerbose(t *testing.T) {
	registry, err := rules.NewRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	r := plainReporter(t, "cli")
	r.IsVerbose = true
	r.Registry = registry
	require.NoError(t, r.Print(testReport(), &buf))

	df002, ok := registry.Get("DF002")
	require.True(t, ok)
	assert.Contains(t, buf.String(), df002.Meta().DocURL)
}

func TestSummaryReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainReporter(t, "summary").Print(testReport(), &buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Summary (2 files)"))
	assert.NotContains(t, out, "base image alpine")
}

func TestCompactReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainReporter(t, "compact").Print(testReport(), &buf))
	assert.Equal(t, strings.Join([]string{
		"Dockerfile:1 DF002 HIGH     base image alpine uses the latest tag",
		"Dockerfile:3-5 DF008 LOW      2 consecutive RUN instructions can be combined",
		"Dockerfile: DF012 error: permission denied",
		"broken/Dockerfile: error: broken/Dockerfile:1: Dockerfile has no instructions",
	}, "\n")+"\n", buf.String())
}

func TestJSONReport(t *testing.T) {
	var buf bytes.Buffer
	report := testReport()
	require.NoError(t, plainReporter(t, "json").Print(report, &buf))

	var res struct {
		ID      string `json:"id"`
		Summary struct {
			Success     bool   `json:"success"`
			Files       int    `json:"files"`
			ParseErrors int    `json:"parse_errors"`
			Failed      int    `json:"failed"`
			Worst       string `json:"worst"`
		} `json:"summary"`
		Files []struct {
			Path    string `json:"path"`
			Error   string `json:"error"`
			Results []struct {
				RuleID   string `json:"rule_id"`
				Status   string `json:"status"`
				Severity string `json:"severity"`
			} `json:"results"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, report.ID, res.ID)
	assert.False(t, res.Summary.Success)
	assert.Equal(t, 2, res.Summary.Files)
	assert.Equal(t, 1, res.Summary.ParseErrors)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.Equal(t, "high", res.Summary.Worst)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "DF002", res.Files[0].Results[1].RuleID)
	assert.Equal(t, "fail", res.Files[0].Results[1].Status)
	assert.Equal(t, "high", res.Files[0].Results[1].Severity)
	assert.NotEmpty(t, res.Files[1].Error)

	empty := lint.NewReport()
	buf.Reset()
	require.NoError(t, ConvertToJSON(empty, &buf))
	assert.Contains(t, buf.String(), `"files": []`)
}

func TestYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainReporter(t, "yaml").Print(testReport(), &buf))
	out := buf.String()
	assert.Contains(t, out, "worst: high")
	assert.Contains(t, out, "rule_id: DF008")
	assert.Contains(t, out, "end_line: 5")
}

func TestCSVReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainReporter(t, "csv").Print(testReport(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "Rule ID", rows[0][2])
	assert.Equal(t, []string{"Dockerfile", "dockerfile", "DF002", "Pin base image tags", "high", "fail", "1", "", "base image alpine uses the latest tag", "abc"}, rows[2])
	assert.Equal(t, "5", rows[4][7])
	assert.Equal(t, "permission denied", rows[5][8])
	assert.Equal(t, []string{"broken/Dockerfile", "dockerfile", "", "", "", "error", "", "", "broken/Dockerfile:1: Dockerfile has no instructions", ""}, rows[6])
}

func TestJUnitReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainReporter(t, "junit").Print(testReport(), &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))

	var suites junit.Testsuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 6, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 2, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)
	require.Len(t, suites.Suites, 2)

	df := suites.Suites[0]
	assert.Equal(t, "Dockerfile", df.Name)
	require.NotNil(t, df.Properties)
	assert.Equal(t, []junit.Property{{Name: "kind", Value: "dockerfile"}}, *df.Properties)
	require.Len(t, df.Testcases, 5)
	assert.Equal(t, "pass", df.Testcases[0].Status)
	require.NotNil(t, df.Testcases[1].Failure)
	assert.Equal(t, "high", df.Testcases[1].Failure.Type)
	assert.Equal(t, "Dockerfile:1 base image alpine uses the latest tag", df.Testcases[1].Failure.Data)
	require.NotNil(t, df.Testcases[3].SystemOut)
	assert.Equal(t, "Dockerfile:3-5 2 consecutive RUN instructions can be combined", df.Testcases[3].SystemOut.Data)
	assert.NotNil(t, df.Testcases[2].Skipped)
	require.NotNil(t, df.Testcases[4].Error)
	assert.Equal(t, "permission denied", df.Testcases[4].Error.Message)

	broken := suites.Suites[1]
	assert.Equal(t, 1, broken.ID)
	require.Len(t, broken.Testcases, 1)
	assert.Equal(t, "parse", broken.Testcases[0].Name)
	require.NotNil(t, broken.Testcases[0].Error)
}

func TestPrintRules(t *testing.T) {
	registry, err := rules.NewRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintRules(&buf, registry.All(), lint.DefaultOptions())
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "SEVERITY")
	assert.Regexp(t, `\| DF003 +\| dockerfile +\| low +\| no `, out)
	assert.Regexp(t, `\| DC008 +\| compose +\| critical +\| yes `, out)

	df026, ok := registry.Get("DF026")
	require.True(t, ok)
	buf.Reset()
	ExplainRule(&buf, &printer.PlainNoColorPrinter, df026, lint.DefaultOptions())
	out = buf.String()
	assert.Contains(t, out, "DF026: ")
	assert.Contains(t, out, "Enabled:   no\n")
	assert.Contains(t, out, "Feature:   ExperimentalRules\n")
	assert.Contains(t, out, "\nAliases such as stable or lts move to new major versions without notice. Use a\nversion tag")
}
