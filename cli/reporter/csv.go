// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"encoding/csv"
	"io"
	"strconv"

	"go.mondoo.com/dockerlint/lint"
)

type csvStruct struct {
	File        string
	Kind        string
	RuleID      string
	RuleTitle   string
	Severity    string
	Status      string
	Line        string
	EndLine     string
	Message     string
	Fingerprint string
}

func (c csvStruct) toSlice() []string {
	return []string{c.File, c.Kind, c.RuleID, c.RuleTitle, c.Severity, c.Status, c.Line, c.EndLine, c.Message, c.Fingerprint}
}

func lineString(line int) string {
	if line <= 0 {
		return ""
	}
	return strconv.Itoa(line)
}

// ConvertToCSV writes one row per finding. Rules without findings and
// files that could not be parsed get a single row.
func ConvertToCSV(data *lint.Report, out io.Writer) error {
	w := csv.NewWriter(out)

	// write header
	err := w.Write(csvStruct{
		"File",
		"Kind",
		"Rule ID",
		"Rule Title",
		"Severity",
		"Status",
		"Line",
		"End Line",
		"Message",
		"Fingerprint",
	}.toSlice())
	if err != nil {
		return err
	}

	for _, file := range data.Files {
		if file.Error != "" {
			err := w.Write(csvStruct{
				File:    file.Path,
				Kind:    string(file.Kind),
				Status:  lint.StatusError.String(),
				Message: file.Error,
			}.toSlice())
			if err != nil {
				return err
			}
			continue
		}

		for i := range file.Results {
			res := &file.Results[i]
			row := csvStruct{
				File:      file.Path,
				Kind:      string(file.Kind),
				RuleID:    res.RuleID,
				RuleTitle: res.Title,
				Severity:  res.Severity.String(),
				Status:    res.Status.String(),
				Message:   res.Error,
			}
			if len(res.Findings) == 0 {
				if err := w.Write(row.toSlice()); err != nil {
					return err
				}
				continue
			}
			for _, f := range res.Findings {
				row.Severity = f.Severity.String()
				row.Line = lineString(f.Location.Line)
				row.EndLine = lineString(f.Location.EndLine)
				row.Message = f.Message
				row.Fingerprint = f.Fingerprint
				if err := w.Write(row.toSlice()); err != nil {
					return err
				}
			}
		}
	}

	w.Flush()
	return w.Error()
}
