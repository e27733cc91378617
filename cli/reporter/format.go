// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package reporter

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

type Format byte

const (
	Unknown Format = iota
	CLI
	Compact
	Summary
	JSON
	YAML
	CSV
	JUnit
)

// Formats that are supported by the reporter
var Formats = map[string]Format{
	"cli":     CLI,
	"full":    CLI,
	"compact": Compact,
	"summary": Summary,
	"json":    JSON,
	"yaml":    YAML,
	"yml":     YAML,
	"csv":     CSV,
	"junit":   JUnit,
}

var formatNames = map[Format]string{
	CLI:     "cli",
	Compact: "compact",
	Summary: "summary",
	JSON:    "json",
	YAML:    "yaml",
	CSV:     "csv",
	JUnit:   "junit",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// AllFormats lists the primary format names
func AllFormats() string {
	res := make([]string, 0, len(formatNames))
	for _, name := range formatNames {
		res = append(res, name)
	}
	sort.Strings(res)
	return strings.Join(res, ", ")
}

// ParseFormat resolves a format name, names are case-insensitive
func ParseFormat(s string) (Format, error) {
	f, ok := Formats[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Unknown, errors.Newf("unknown output format %q, available formats: %s", s, AllFormats())
	}
	return f, nil
}
