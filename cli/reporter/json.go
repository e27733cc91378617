// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"encoding/json"
	"io"
	"time"

	"go.mondoo.com/dockerlint/lint"
	"sigs.k8s.io/yaml"
)

type reportOutput struct {
	ID      string             `json:"id"`
	Created time.Time          `json:"created"`
	Summary summaryOutput      `json:"summary"`
	Files   []*lint.FileReport `json:"files"`
}

type summaryOutput struct {
	Success     bool          `json:"success"`
	Files       int           `json:"files"`
	ParseErrors int           `json:"parse_errors"`
	Findings    int           `json:"findings"`
	Passed      int           `json:"passed"`
	Warnings    int           `json:"warnings"`
	Failed      int           `json:"failed"`
	Errors      int           `json:"errors"`
	Skipped     int           `json:"skipped"`
	Worst       lint.Severity `json:"worst"`
}

func newReportOutput(data *lint.Report) reportOutput {
	stats := data.Stats()
	files := data.Files
	if files == nil {
		files = []*lint.FileReport{}
	}
	return reportOutput{
		ID:      data.ID,
		Created: data.Created,
		Files:   files,
		Summary: summaryOutput{
			Success:     !data.Failed(),
			Files:       stats.Files,
			ParseErrors: stats.ParseErrors,
			Findings:    stats.Findings,
			Passed:      stats.Count(lint.StatusPass),
			Warnings:    stats.Count(lint.StatusWarn),
			Failed:      stats.Count(lint.StatusFail),
			Errors:      stats.Count(lint.StatusError),
			Skipped:     stats.Count(lint.StatusSkip),
			Worst:       stats.Worst,
		},
	}
}

func ConvertToJSON(data *lint.Report, out io.Writer) error {
	if data == nil {
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(newReportOutput(data))
}

func ConvertToYAML(data *lint.Report, out io.Writer) error {
	if data == nil {
		return nil
	}
	raw, err := yaml.Marshal(newReportOutput(data))
	if err != nil {
		return err
	}
	_, err = out.Write(raw)
	return err
}
