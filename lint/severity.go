// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lint

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Severity is the impact of a finding on a scale from 0 to 100
type Severity int32

const (
	SeverityNone     Severity = 0
	SeverityInfo     Severity = 5
	SeverityLow      Severity = 10
	SeverityMedium   Severity = 40
	SeverityHigh     Severity = 70
	SeverityCritical Severity = 100
)

// severityMapping translates human-readable severities into impact values
var severityMapping = map[string]Severity{
	"none":     SeverityNone,
	"info":     SeverityInfo,
	"low":      SeverityLow,
	"medium":   SeverityMedium,
	"high":     SeverityHigh,
	"critical": SeverityCritical,
}

var errSeverityRange = errors.New("severity must be between 0 and 100")

// SeverityNames in ascending order
var SeverityNames = []string{"none", "info", "low", "medium", "high", "critical"}

// ParseSeverity accepts a severity name or a number between 0 and 100
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := severityMapping[s]; ok {
		return v, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return SeverityNone, errors.Newf("unknown severity %q, must use critical, high, medium, low, info or none", s)
	}
	if n < 0 || n > 100 {
		return SeverityNone, errSeverityRange
	}
	return Severity(n), nil
}

func (s Severity) HumanReadable() string {
	switch {
	case s >= 90:
		return "critical"
	case s >= 70:
		return "high"
	case s >= 40:
		return "medium"
	case s >= 10:
		return "low"
	case s >= 5:
		return "info"
	default:
		return "none"
	}
}

func (s Severity) String() string {
	return s.HumanReadable()
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.HumanReadable())
}

// UnmarshalJSON supports human-readable names and numbers
func (s *Severity) UnmarshalJSON(data []byte) error {
	var code int32
	if err := json.Unmarshal(data, &code); err == nil {
		if code < 0 || code > 100 {
			return errSeverityRange
		}
		*s = Severity(code)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Wrap(err, "invalid severity")
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Severity) MarshalYAML() (interface{}, error) {
	return s.HumanReadable(), nil
}

func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseSeverity(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
