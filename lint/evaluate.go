// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lint

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/logger"
)

// Options control how rules are evaluated
type Options struct {
	// FailOn is the lowest severity that fails a rule, findings below it warn
	FailOn Severity
	// Ignore disables rules by id
	Ignore []string
	// Severity overrides the severity of rules by id
	Severity map[string]Severity
	// Enabled turns rules on or off by id, overriding their default
	Enabled     map[string]bool
	ShowSkipped bool
	Features    dockerlint.Features
}

// DefaultOptions fail on medium severity and above
func DefaultOptions() Options {
	return Options{
		FailOn:   SeverityMedium,
		Features: dockerlint.DefaultFeatures,
	}
}

func (o Options) isIgnored(id string) bool {
	for i := range o.Ignore {
		if strings.EqualFold(o.Ignore[i], id) {
			return true
		}
	}
	return false
}

func lookupFold[T any](m map[string]T, id string) (T, bool) {
	if v, ok := m[id]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, id) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// IsEnabled reports whether the rule runs with these options
func (o Options) IsEnabled(rule Rule) bool {
	id := rule.ID()
	if o.isIgnored(id) {
		return false
	}
	meta := rule.Meta()
	if meta.Feature != 0 && !o.Features.IsActive(meta.Feature) {
		return false
	}
	if enabled, ok := lookupFold(o.Enabled, id); ok {
		return enabled
	}
	return !meta.Disabled
}

// SeverityOf returns the effective severity of the rule
func (o Options) SeverityOf(rule Rule) Severity {
	if s, ok := lookupFold(o.Severity, rule.ID()); ok {
		return s
	}
	return rule.Meta().Severity
}

// Evaluate runs all rules of the target's kind and collects their results.
// Rule errors do not stop the evaluation, they are reported per rule.
func Evaluate(ctx context.Context, registry *Registry, target *Target, opts Options) *FileReport {
	log := logger.FromContext(ctx)
	res := &FileReport{
		Path: target.Path,
		Kind: target.Kind,
	}

	var errs error
	for _, rule := range registry.ForKind(target.Kind) {
		if ctx.Err() != nil {
			break
		}

		meta := rule.Meta()
		result := RuleResult{
			RuleID:   rule.ID(),
			Title:    meta.Title,
			Severity: opts.SeverityOf(rule),
		}

		if !opts.IsEnabled(rule) {
			if opts.ShowSkipped {
				result.Status = StatusSkip
				res.Results = append(res.Results, result)
			}
			continue
		}

		findings, err := rule.Check(ctx, target)
		if errors.Is(err, ErrSkip) {
			log.Debug().Str("rule", result.RuleID).Str("path", target.Path).Msg("rule does not apply")
			if opts.ShowSkipped {
				result.Status = StatusSkip
				res.Results = append(res.Results, result)
			}
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, result.RuleID))
			result.Status = StatusError
			result.Error = err.Error()
			res.Results = append(res.Results, result)
			continue
		}

		result.Findings = applyFindings(target, &result, findings, opts)
		result.Status = statusOf(&result, opts.FailOn)
		res.Results = append(res.Results, result)
	}

	if errs != nil {
		log.Warn().Err(errs).Str("path", target.Path).Msg("some rules could not be evaluated")
	}

	sort.SliceStable(res.Results, func(i, j int) bool {
		return res.Results[i].RuleID < res.Results[j].RuleID
	})
	return res
}

// applyFindings drops suppressed findings and fills in severity, location and
// fingerprint
func applyFindings(target *Target, result *RuleResult, findings []Finding, opts Options) []Finding {
	_, overridden := lookupFold(opts.Severity, result.RuleID)

	var res []Finding
	for i := range findings {
		cur := findings[i]
		if target.IsIgnored(result.RuleID, cur.Location.Line) {
			continue
		}
		cur.RuleID = result.RuleID
		if overridden || cur.Severity == SeverityNone {
			cur.Severity = result.Severity
		}
		cur.Location.Path = target.Path
		if cur.Location.EndLine < cur.Location.Line {
			cur.Location.EndLine = cur.Location.Line
		}
		cur.Fingerprint = FingerprintOf(cur.RuleID, cur.Location.Path, cur.Message)
		res = append(res, cur)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Location.Line < res[j].Location.Line
	})
	return res
}

func statusOf(result *RuleResult, failOn Severity) Status {
	if len(result.Findings) == 0 {
		return StatusPass
	}

	worst := SeverityNone
	for i := range result.Findings {
		if result.Findings[i].Severity > worst {
			worst = result.Findings[i].Severity
		}
	}
	result.Severity = worst

	if worst >= failOn {
		return StatusFail
	}
	return StatusWarn
}
