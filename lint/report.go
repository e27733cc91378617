// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lint

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/ksuid"
)

type RuleResult struct {
	RuleID   string    `json:"rule_id"`
	Title    string    `json:"title"`
	Severity Severity  `json:"severity"`
	Status   Status    `json:"status"`
	Findings []Finding `json:"findings,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type FileReport struct {
	Path    string       `json:"path"`
	Kind    Kind         `json:"kind"`
	Results []RuleResult `json:"results,omitempty"`
	// Error is set when the file could not be parsed
	Error string `json:"error,omitempty"`
}

// Score is 100 for a file without failures. Every failed rule lowers it by
// its severity, the worst failure wins.
func (f *FileReport) Score() int {
	if f.Error != "" {
		return 0
	}
	worst := SeverityNone
	for i := range f.Results {
		if f.Results[i].Status == StatusFail && f.Results[i].Severity > worst {
			worst = f.Results[i].Severity
		}
	}
	return 100 - int(worst)
}

// Errors aggregates the errors of all rules that could not be evaluated
func (f *FileReport) Errors() error {
	var res error
	for i := range f.Results {
		if f.Results[i].Status == StatusError {
			res = multierror.Append(res, errors.Newf("%s: %s", f.Results[i].RuleID, f.Results[i].Error))
		}
	}
	return res
}

// Failed reports whether the file failed to parse or has a failed rule
func (f *FileReport) Failed() bool {
	if f.Error != "" {
		return true
	}
	for i := range f.Results {
		if f.Results[i].Status == StatusFail {
			return true
		}
	}
	return false
}

type Report struct {
	ID      string        `json:"id"`
	Created time.Time     `json:"created"`
	Files   []*FileReport `json:"files"`
}

func NewReport() *Report {
	return &Report{
		ID:      ksuid.New().String(),
		Created: time.Now().UTC(),
	}
}

// Add inserts a file report and keeps the files ordered by path
func (r *Report) Add(files ...*FileReport) {
	r.Files = append(r.Files, files...)
	sort.SliceStable(r.Files, func(i, j int) bool {
		return r.Files[i].Path < r.Files[j].Path
	})
}

// Failed reports whether any file failed
func (r *Report) Failed() bool {
	for i := range r.Files {
		if r.Files[i].Failed() {
			return true
		}
	}
	return false
}

type Stats struct {
	Files       int              `json:"files"`
	ParseErrors int              `json:"parse_errors"`
	Findings    int              `json:"findings"`
	Statuses    map[Status]int   `json:"-"`
	// BySeverity counts failed and warned rules per severity bucket
	BySeverity map[Severity]int `json:"-"`
	// Worst is the highest severity of all failed rules
	Worst Severity `json:"worst"`
}

func (s Stats) Count(status Status) int {
	return s.Statuses[status]
}

func (r *Report) Stats() Stats {
	res := Stats{
		Files:      len(r.Files),
		Statuses:   map[Status]int{},
		BySeverity: map[Severity]int{},
	}
	for _, file := range r.Files {
		if file.Error != "" {
			res.ParseErrors++
			continue
		}
		for i := range file.Results {
			cur := &file.Results[i]
			res.Statuses[cur.Status]++
			res.Findings += len(cur.Findings)
			if cur.Status == StatusFail || cur.Status == StatusWarn {
				res.BySeverity[severityMapping[cur.Severity.HumanReadable()]]++
			}
			if cur.Status == StatusFail && cur.Severity > res.Worst {
				res.Worst = cur.Severity
			}
		}
	}
	return res
}
