// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package scan parses and lints discovered files.
package scan

import (
	"github.com/cockroachdb/errors"
	"go.mondoo.com/dockerlint/discovery"
	"go.mondoo.com/dockerlint/lint"
)

var (
	ErrMissingJob      = errors.New("missing scan job")
	ErrMissingRegistry = errors.New("missing rule registry")
)

// Job is one lint run over a set of files
type Job struct {
	Targets  []discovery.Target
	Options  lint.Options
	Settings lint.Settings
}

// NewJob creates a job with default options
func NewJob(targets ...discovery.Target) *Job {
	return &Job{
		Targets: targets,
		Options: lint.DefaultOptions(),
	}
}
