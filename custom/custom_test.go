// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package custom

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

func dockerfileTarget(t *testing.T, content string) *lint.Target {
	df, err := dockerfile.Parse("Dockerfile", strings.NewReader(content))
	require.NoError(t, err)
	return &lint.Target{Path: "Dockerfile", Kind: lint.KindDockerfile, Dockerfile: df}
}

func composeTarget(t *testing.T, content string) *lint.Target {
	p, err := compose.Parse("compose.yml", strings.NewReader(content))
	require.NoError(t, err)
	return &lint.Target{Path: "compose.yml", Kind: lint.KindCompose, Compose: p}
}

func TestLoadBundles(t *testing.T) {
	bundle, err := LoadBundles(afero.NewOsFs(), "testdata/bundles")
	require.NoError(t, err)

	ids := []string{}
	for _, r := range bundle.Rules {
		ids = append(ids, r.ID)
	}
	// files are read in path order, README.md is ignored
	assert.Equal(t, []string{"ORG101", "ORG102", "ORG001", "ORG002"}, ids)

	rules, err := Load(afero.NewOsFs(), "testdata/bundles")
	require.NoError(t, err)
	require.Len(t, rules, 4)
	assert.True(t, rules[1].Meta().Disabled)
	assert.Equal(t, lint.SeverityMedium, rules[0].Meta().Severity)
}

func TestLoadBundlesErrors(t *testing.T) {
	t.Run("duplicate ids across files", func(t *testing.T) {
		_, err := LoadBundles(afero.NewOsFs(), "testdata/bundles", "testdata/duplicate.yml")
		assert.ErrorIs(t, err, ErrDuplicateRule)
		assert.ErrorContains(t, err, "org001")
	})

	t.Run("unknown keys", func(t *testing.T) {
		_, err := LoadBundles(afero.NewOsFs(), "testdata/typo.yml")
		assert.ErrorContains(t, err, "could not parse bundle file testdata/typo.yml")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBundles(afero.NewMemMapFs(), "nope.yml")
		assert.ErrorContains(t, err, "could not load bundle file nope.yml")
	})

	t.Run("single file from memory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/rules/a.yaml", []byte("rules:\n  - id: A1\n    kind: compose\n    expr: 'true'\n"), 0o644))
		bundle, err := LoadBundles(fs, "/rules/a.yaml")
		require.NoError(t, err)
		require.Len(t, bundle.Rules, 1)
		assert.Equal(t, "A1", bundle.Rules[0].ID)
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		title string
		def   Definition
		err   string
	}{
		{"missing id", Definition{Kind: "dockerfile", Expr: "true"}, "custom rule <missing id>"},
		{"invalid id", Definition{ID: "1abc", Kind: "dockerfile", Expr: "true"}, "must start with a letter"},
		{"missing expr", Definition{ID: "X1", Kind: "dockerfile"}, "expr is required"},
		{"unknown kind", Definition{ID: "X1", Kind: "helm", Expr: "true"}, "custom rule X1"},
		{"unknown severity", Definition{ID: "X1", Kind: "dockerfile", Severity: "urgent", Expr: "true"}, "custom rule X1"},
		{"stage scope on compose", Definition{ID: "X1", Kind: "compose", Scope: "stage", Expr: "true"}, "scope stage requires kind dockerfile"},
		{"unknown scope", Definition{ID: "X1", Kind: "compose", Scope: "project", Expr: "true"}, `unknown scope "project"`},
		{"syntax error", Definition{ID: "X1", Kind: "dockerfile", Expr: "dockerfile.stages[["}, "failed to compile expression"},
		{"variable of the other kind", Definition{ID: "X1", Kind: "dockerfile", Expr: "size(compose.services) > 0"}, "undeclared reference"},
		{"stage outside stage scope", Definition{ID: "X1", Kind: "dockerfile", Expr: `stage.name == ""`}, "undeclared reference"},
		{"wrong output type", Definition{ID: "X1", Kind: "dockerfile", Expr: "1 + 1"}, "expression must return a bool"},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.title, func(t *testing.T) {
			_, err := Compile(cur.def)
			require.Error(t, err)
			assert.ErrorContains(t, err, cur.err)
		})
	}

	_, err := Compile(Definition{ID: "X1", Kind: "compose", Expr: `"a"`})
	assert.ErrorIs(t, err, ErrOutputType)
	_, err = Compile(Definition{ID: "X1", Kind: "nope", Expr: "true"})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestCompileAll(t *testing.T) {
	rules, err := CompileAll([]Definition{
		{ID: "OK1", Kind: "dockerfile", Expr: "true"},
		{ID: "BAD1", Kind: "dockerfile", Expr: "1"},
		{ID: "BAD2", Kind: "compose"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "BAD1")
	assert.ErrorContains(t, err, "BAD2")
	require.Len(t, rules, 1)
	assert.Equal(t, "OK1", rules[0].ID())
}

func TestProgramCache(t *testing.T) {
	a, err := Compile(Definition{ID: "C1", Kind: "dockerfile", Expr: "size(dockerfile.stages) >= 1"})
	require.NoError(t, err)
	b, err := Compile(Definition{ID: "C2", Kind: "dockerfile", Expr: "size(dockerfile.stages) >= 1"})
	require.NoError(t, err)
	assert.True(t, a.program == b.program, "same expression shares a program")

	c, err := Compile(Definition{ID: "C3", Kind: "dockerfile", Scope: "stage", Expr: "size(dockerfile.stages) >= 1"})
	require.NoError(t, err)
	assert.False(t, a.program == c.program, "scopes compile separately")
}

func TestDockerfileRules(t *testing.T) {
	ctx := context.Background()
	content := strings.Join([]string{
		"# syntax=docker/dockerfile:1",
		"FROM --platform=linux/amd64 golang:1.22 AS build",
		"RUN go build ./...",
		"FROM registry.example.com/base/static:1",
		"USER nonroot",
	}, "\n") + "\n"
	target := dockerfileTarget(t, content)

	tests := []struct {
		title    string
		def      Definition
		findings []int
	}{
		{"final stage registry", Definition{Expr: `dockerfile.stages[size(dockerfile.stages)-1].registry == "registry.example.com"`}, nil},
		{"first stage registry", Definition{Expr: `dockerfile.stages[0].registry == "registry.example.com"`}, []int{0}},
		{"user of the final stage", Definition{Expr: `dockerfile.stages[1].user == "nonroot"`}, nil},
		{"directive", Definition{Expr: `dockerfile.directives["syntax"].startsWith("docker/dockerfile")`}, nil},
		{"instructions", Definition{Expr: `dockerfile.instructions.exists(i, i.command == "HEALTHCHECK")`}, []int{0}},
		{"file", Definition{Expr: `file.name == "Dockerfile" && file.kind == "dockerfile"`}, nil},
		{"stage scope", Definition{Scope: "stage", Expr: `stage.platform != ""`}, []int{4}},
		{"stage scope with alias", Definition{Scope: "stage", Expr: `stage.name == "build"`}, []int{4}},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.title, func(t *testing.T) {
			def := cur.def
			def.ID = "T1"
			def.Kind = "dockerfile"
			rule, err := Compile(def)
			require.NoError(t, err)

			res, err := rule.Check(ctx, target)
			require.NoError(t, err)
			lines := []int{}
			for _, f := range res {
				lines = append(lines, f.Location.Line)
			}
			if cur.findings == nil {
				assert.Empty(t, res)
			} else {
				assert.Equal(t, cur.findings, lines)
			}
		})
	}
}

func TestStageFindingMessage(t *testing.T) {
	rule, err := Compile(Definition{ID: "T1", Kind: "dockerfile", Scope: "stage", Expr: `stage.tag != "latest"`, Message: "no latest"})
	require.NoError(t, err)
	res, err := rule.Check(context.Background(), dockerfileTarget(t, "FROM alpine AS base\nFROM base\n"))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "stage base: no latest", res[0].Message)
	assert.Equal(t, 1, res[0].Location.Line)
}

func TestComposeRules(t *testing.T) {
	ctx := context.Background()
	content := strings.Join([]string{
		"services:",
		"  web:",
		"    image: nginx:1.25",
		"    ports: [\"127.0.0.1:8080:80\", \"443\"]",
		"    environment:",
		"      TEAM: platform",
		"    healthcheck:",
		"      test: [CMD, curl, -f, http://localhost]",
		"  db:",
		"    image: postgres:16",
		"    ports: [\"5432:5432\"]",
		"    deploy:",
		"      replicas: 2",
		"volumes:",
		"  data:",
	}, "\n") + "\n"
	target := composeTarget(t, content)

	tests := []struct {
		title    string
		def      Definition
		findings []int
	}{
		{"team label", Definition{Scope: "service", Expr: `"TEAM" in service.environment`}, []int{9}},
		{"healthcheck present", Definition{Scope: "service", Expr: `has(service.healthcheck)`}, []int{9}},
		{"replicas", Definition{Scope: "service", Expr: `service.replicas == 1`}, []int{9}},
		{"ports bound to localhost", Definition{Scope: "service", Expr: `service.published.all(p, p.host_ip == "127.0.0.1")`}, []int{9}},
		{"published port count", Definition{Scope: "service", Expr: `size(service.published) == 1 && size(service.ports) == 2`}, []int{9}},
		{"top level volumes", Definition{Expr: `"data" in compose.volumes`}, nil},
		{"networks", Definition{Expr: `size(compose.networks) > 0`}, []int{0}},
		{"all images pinned", Definition{Expr: `compose.services.all(name, compose.services[name].image.contains(":"))`}, nil},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.title, func(t *testing.T) {
			def := cur.def
			def.ID = "T1"
			def.Kind = "compose"
			rule, err := Compile(def)
			require.NoError(t, err)

			res, err := rule.Check(ctx, target)
			require.NoError(t, err)
			lines := []int{}
			for _, f := range res {
				lines = append(lines, f.Location.Line)
			}
			if cur.findings == nil {
				assert.Empty(t, res)
			} else {
				assert.Equal(t, cur.findings, lines)
			}
		})
	}
}

func TestCheckErrors(t *testing.T) {
	ctx := context.Background()

	rule, err := Compile(Definition{ID: "T1", Kind: "dockerfile", Expr: `dockerfile.directives["syntax"]`})
	require.NoError(t, err, "dyn output is accepted at compile time")
	_, err = rule.Check(ctx, dockerfileTarget(t, "# syntax=docker/dockerfile:1\nFROM alpine:3.19\n"))
	assert.ErrorIs(t, err, ErrOutputType)

	_, err = rule.Check(ctx, dockerfileTarget(t, "FROM alpine:3.19\n"))
	assert.ErrorContains(t, err, "failed to evaluate expression")

	_, err = rule.Check(ctx, composeTarget(t, "services:\n  app:\n    image: a:1\n"))
	assert.ErrorIs(t, err, lint.ErrSkip)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = rule.Check(cancelled, dockerfileTarget(t, "FROM alpine:3.19\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateCustomRules(t *testing.T) {
	rule, err := Compile(Definition{ID: "ORG001", Title: "Use our registry", Kind: "dockerfile", Severity: "high", Expr: `dockerfile.stages[0].registry == "registry.example.com"`})
	require.NoError(t, err)
	registry, err := lint.NewRegistry(AsLintRules([]*Rule{rule})...)
	require.NoError(t, err)

	target := dockerfileTarget(t, "FROM alpine:3.19\n")
	report := lint.Evaluate(context.Background(), registry, target, lint.DefaultOptions())
	require.Len(t, report.Results, 1)
	assert.Equal(t, lint.StatusFail, report.Results[0].Status)
	assert.Equal(t, lint.SeverityHigh, report.Results[0].Severity)
	assert.Equal(t, "Use our registry", report.Results[0].Findings[0].Message)

	// custom rules are gated behind their feature flag
	opts := lint.DefaultOptions()
	opts.Features = dockerlint.Features{}
	report = lint.Evaluate(context.Background(), registry, target, opts)
	assert.Empty(t, report.Results)
}
