// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package scan

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mondoo.com/dockerlint/discovery"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/rules"
)

const multiStage = `FROM golang:1.22 AS build
WORKDIR /src
COPY . .
RUN go build -o /app .

FROM gcr.io/distroless/static:nonroot
COPY --from=build /app /app
USER nonroot
HEALTHCHECK CMD ["/app", "health"]
ENTRYPOINT ["/app"]
`

const composeFile = `services:
  web:
    image: nginx:latest
    privileged: true
`

func newScanner(t *testing.T, fs afero.Fs, opts ...ScannerOption) *LocalScanner {
	registry, err := rules.NewRegistry()
	require.NoError(t, err)
	return NewLocalScanner(append([]ScannerOption{WithRegistry(registry), WithFS(fs), WithConcurrency(2)}, opts...)...)
}

func testFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/Dockerfile", []byte(multiStage), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/.dockerignore", []byte(".git\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/compose.yml", []byte(composeFile), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/broken/Dockerfile", []byte("# nothing here\n"), 0o644))
	return fs
}

func resultOf(t *testing.T, f *lint.FileReport, id string) lint.RuleResult {
	for _, r := range f.Results {
		if r.RuleID == id {
			return r
		}
	}
	t.Fatalf("no result for %s in %s", id, f.Path)
	return lint.RuleResult{}
}

func TestLocalScannerRun(t *testing.T) {
	fs := testFs(t)
	targets, err := discovery.Discover(fs, []string{"/app", "/broken"}, discovery.Options{})
	require.NoError(t, err)

	report, err := newScanner(t, fs).Run(context.Background(), NewJob(targets...))
	require.NoError(t, err)
	require.Len(t, report.Files, 3)
	assert.NotEmpty(t, report.ID)

	df := report.Files[0]
	assert.Equal(t, "/app/Dockerfile", df.Path)
	assert.Empty(t, df.Error)
	assert.Equal(t, lint.StatusPass, resultOf(t, df, "DF001").Status)
	assert.Equal(t, lint.StatusPass, resultOf(t, df, "DF005").Status)
	assert.Equal(t, lint.StatusPass, resultOf(t, df, "DF012").Status)

	cf := report.Files[1]
	assert.Equal(t, "/app/compose.yml", cf.Path)
	assert.Equal(t, lint.StatusFail, resultOf(t, cf, "DC008").Status)
	assert.Equal(t, lint.StatusFail, resultOf(t, cf, "DC002").Status)

	broken := report.Files[2]
	assert.Equal(t, "/broken/Dockerfile", broken.Path)
	assert.NotEmpty(t, broken.Error)
	assert.Empty(t, broken.Results)
	assert.Equal(t, 0, broken.Score())

	assert.True(t, report.Failed())
	stats := report.Stats()
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.ParseErrors)
	assert.Equal(t, lint.SeverityCritical, stats.Worst)
}

func TestLocalScannerDeterministic(t *testing.T) {
	fs := testFs(t)
	targets, err := discovery.Discover(fs, []string{"/app"}, discovery.Options{})
	require.NoError(t, err)

	scanner := newScanner(t, fs)
	first, err := scanner.Run(context.Background(), NewJob(targets...))
	require.NoError(t, err)
	second, err := scanner.Run(context.Background(), NewJob(targets...))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, cmp.Diff(first.Files, second.Files))
}

func TestLocalScannerStdin(t *testing.T) {
	scanner := newScanner(t, afero.NewMemMapFs(), WithStdin(strings.NewReader(multiStage)))
	report, err := scanner.Run(context.Background(), NewJob(discovery.Target{Path: "-", Kind: lint.KindDockerfile, Stdin: true}))
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Empty(t, report.Files[0].Error)
	assert.Equal(t, lint.StatusPass, resultOf(t, report.Files[0], "DF001").Status)

	// there is no build context on stdin
	job := NewJob(discovery.Target{Path: "-", Kind: lint.KindDockerfile, Stdin: true})
	job.Options.ShowSkipped = true
	scanner = newScanner(t, afero.NewMemMapFs(), WithStdin(strings.NewReader(multiStage)))
	report, err = scanner.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, lint.StatusSkip, resultOf(t, report.Files[0], "DF012").Status)
}

func TestLocalScannerErrors(t *testing.T) {
	fs := testFs(t)

	_, err := newScanner(t, fs).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingJob)

	_, err = NewLocalScanner(WithFS(fs)).Run(context.Background(), NewJob())
	assert.ErrorIs(t, err, ErrMissingRegistry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newScanner(t, fs).Run(ctx, NewJob(discovery.Target{Path: "/app/Dockerfile", Kind: lint.KindDockerfile}))
	assert.ErrorIs(t, err, context.Canceled)

	report, err := newScanner(t, fs).Run(context.Background(), NewJob(discovery.Target{Path: "/missing/Dockerfile", Kind: lint.KindDockerfile}))
	require.NoError(t, err)
	assert.Contains(t, report.Files[0].Error, "could not open file")
}
