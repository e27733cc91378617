// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/checksums"
	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/dockerfile"
)

// ErrSkip is returned by rules that do not apply to a target
var ErrSkip = errors.New("rule does not apply")

type Kind string

const (
	KindDockerfile Kind = "dockerfile"
	KindCompose    Kind = "compose"
)

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dockerfile", "containerfile":
		return KindDockerfile, nil
	case "compose", "docker-compose":
		return KindCompose, nil
	default:
		return "", errors.Newf("unknown kind %q, must be dockerfile or compose", s)
	}
}

type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
	StatusSkip
	StatusError
)

var statusNames = [...]string{"pass", "warn", "fail", "skip", "error"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i := range statusNames {
		if statusNames[i] == name {
			*s = Status(i)
			return nil
		}
	}
	return errors.Newf("unknown status %q", name)
}

type Location struct {
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	EndLine int    `json:"end_line,omitempty"`
}

type Finding struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Location    Location `json:"location"`
	Fingerprint string   `json:"fingerprint"`
}

// NewFinding creates a finding at the given line. The severity is filled in
// from the rule during evaluation.
func NewFinding(line int, msg string) Finding {
	return Finding{Message: msg, Location: Location{Line: line}}
}

// NewFindingf is NewFinding with a format string
func NewFindingf(line int, format string, args ...interface{}) Finding {
	return NewFinding(line, fmt.Sprintf(format, args...))
}

// FingerprintOf returns a line-agnostic identity of the finding
func FingerprintOf(ruleID string, path string, msg string) string {
	return checksums.Fingerprint(ruleID, path, msg)
}

type RuleMeta struct {
	Title       string
	Description string
	Severity    Severity
	Kind        Kind
	DocURL      string
	// Disabled rules only run when enabled in the configuration
	Disabled bool
	// Feature that must be active for the rule to run, 0 if none
	Feature dockerlint.Feature
}

// Rule checks one best practice on a parsed target
type Rule interface {
	ID() string
	Meta() RuleMeta
	Check(ctx context.Context, target *Target) ([]Finding, error)
}

// Settings carry rule configuration into checks
type Settings struct {
	TrustedRegistries []string
	RuleOptions       map[string]map[string]interface{}
}

// DecodeOptions decodes the options configured for a rule into the given
// struct. Missing options leave the struct untouched.
func (s Settings) DecodeOptions(ruleID string, into interface{}) error {
	opts, ok := s.RuleOptions[ruleID]
	if !ok {
		opts, ok = s.RuleOptions[strings.ToLower(ruleID)]
	}
	if !ok {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           into,
	})
	if err != nil {
		return err
	}
	return dec.Decode(opts)
}

// Target is a single file ready to be linted
type Target struct {
	Path       string
	Kind       Kind
	Dockerfile *dockerfile.Dockerfile
	Compose    *compose.Project
	// ContextDir is the build context, empty when reading from stdin
	ContextDir string
	FS         afero.Fs
	Settings   Settings
}

// IsIgnored reports whether an inline comment suppresses the rule for the line
func (t *Target) IsIgnored(ruleID string, line int) bool {
	switch {
	case t.Dockerfile != nil:
		return t.Dockerfile.IsIgnored(ruleID, line)
	case t.Compose != nil:
		return t.Compose.IsIgnored(ruleID, line)
	default:
		return false
	}
}
