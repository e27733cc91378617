// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package scan

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/discovery"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/logger"
	"golang.org/x/sync/errgroup"
)

type LocalScanner struct {
	registry    *lint.Registry
	fs          afero.Fs
	stdin       io.Reader
	concurrency int
}

type ScannerOption func(*LocalScanner)

func WithRegistry(r *lint.Registry) func(s *LocalScanner) {
	return func(s *LocalScanner) {
		s.registry = r
	}
}

func WithFS(fs afero.Fs) func(s *LocalScanner) {
	return func(s *LocalScanner) {
		s.fs = fs
	}
}

// WithConcurrency limits the number of files linted in parallel. Values
// below 1 use the number of CPUs.
func WithConcurrency(n int) func(s *LocalScanner) {
	return func(s *LocalScanner) {
		s.concurrency = n
	}
}

func WithStdin(r io.Reader) func(s *LocalScanner) {
	return func(s *LocalScanner) {
		s.stdin = r
	}
}

func NewLocalScanner(opts ...ScannerOption) *LocalScanner {
	ls := &LocalScanner{
		fs:    afero.NewOsFs(),
		stdin: os.Stdin,
	}

	for i := range opts {
		opts[i](ls)
	}

	if ls.concurrency < 1 {
		ls.concurrency = runtime.NumCPU()
	}

	return ls
}

// Run lints all targets of the job. Files that cannot be parsed are part of
// the report, only a cancelled context fails the run.
func (s *LocalScanner) Run(ctx context.Context, job *Job) (*lint.Report, error) {
	if job == nil {
		return nil, ErrMissingJob
	}
	if s.registry == nil {
		return nil, ErrMissingRegistry
	}
	if ctx == nil {
		return nil, errors.New("no context provided to run job with local scanner")
	}

	report := lint.NewReport()
	ctx = logger.RunScopedContext(ctx, report.ID)
	log := logger.FromContext(ctx)
	log.Debug().Int("files", len(job.Targets)).Int("concurrency", s.concurrency).Msg("start lint run")

	files := make([]*lint.FileReport, len(job.Targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range job.Targets {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files[i] = s.lintFile(gctx, job, job.Targets[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Add(files...)
	return report, nil
}

func (s *LocalScanner) lintFile(ctx context.Context, job *Job, t discovery.Target) *lint.FileReport {
	log := logger.FromContext(ctx)
	start := time.Now()

	target, err := s.parse(ctx, t)
	if err != nil {
		log.Debug().Err(err).Str("path", t.Path).Msg("could not parse file")
		return &lint.FileReport{
			Path:  t.Path,
			Kind:  t.Kind,
			Error: err.Error(),
		}
	}
	target.Settings = job.Settings

	res := lint.Evaluate(ctx, s.registry, target, job.Options)
	log.Debug().
		Str("path", t.Path).
		Str("kind", string(t.Kind)).
		Dur("took", time.Since(start)).
		Msg("linted file")
	return res
}

func (s *LocalScanner) parse(ctx context.Context, t discovery.Target) (*lint.Target, error) {
	res := &lint.Target{
		Path:       t.Path,
		Kind:       t.Kind,
		ContextDir: t.ContextDir,
		FS:         s.fs,
	}

	var r io.Reader
	if t.Stdin {
		// stdin has no build context to look at
		res.FS = nil
		r = s.stdin
	} else {
		f, err := s.fs.Open(t.Path)
		if err != nil {
			return nil, errors.Wrap(err, "could not open file")
		}
		defer f.Close()
		r = f
	}

	var err error
	switch t.Kind {
	case lint.KindDockerfile:
		res.Dockerfile, err = dockerfile.Parse(t.Path, r)
		if err == nil {
			log := logger.FromContext(ctx)
			for _, w := range res.Dockerfile.Warnings {
				log.Debug().Str("path", t.Path).Msg("dockerfile parser: " + w)
			}
		}
	case lint.KindCompose:
		res.Compose, err = compose.Parse(t.Path, r)
	default:
		err = errors.Newf("unsupported kind %q", t.Kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
