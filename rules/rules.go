// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package rules contains the built-in Dockerfile and Compose rules.
package rules

import (
	"context"
	"regexp"
	"strings"

	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

const (
	dockerfileDocs = "https://docs.docker.com/build/building/best-practices/"
	composeDocs    = "https://docs.docker.com/reference/compose-file/services/"
)

type dockerfileCheck func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error)

type composeCheck func(t *lint.Target, p *compose.Project) ([]lint.Finding, error)

// rule is a built-in rule backed by a check function
type rule struct {
	id    string
	meta  lint.RuleMeta
	check func(t *lint.Target) ([]lint.Finding, error)
}

func (r *rule) ID() string { return r.id }

func (r *rule) Meta() lint.RuleMeta { return r.meta }

func (r *rule) Check(ctx context.Context, t *lint.Target) ([]lint.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.check(t)
}

func newDockerfileRule(id string, meta lint.RuleMeta, check dockerfileCheck) *rule {
	meta.Kind = lint.KindDockerfile
	return &rule{
		id:   id,
		meta: meta,
		check: func(t *lint.Target) ([]lint.Finding, error) {
			if t.Dockerfile == nil {
				return nil, lint.ErrSkip
			}
			return check(t, t.Dockerfile)
		},
	}
}

func newComposeRule(id string, meta lint.RuleMeta, check composeCheck) *rule {
	meta.Kind = lint.KindCompose
	return &rule{
		id:   id,
		meta: meta,
		check: func(t *lint.Target) ([]lint.Finding, error) {
			if t.Compose == nil {
				return nil, lint.ErrSkip
			}
			return check(t, t.Compose)
		},
	}
}

// Builtin returns all built-in rules
func Builtin() []lint.Rule {
	return []lint.Rule{
		multiStageRule(),
		explicitTagRule(),
		digestPinRule(),
		healthcheckRule(),
		nonRootUserRule(),
		copyOverAddRule(),
		aptGetRule(),
		consecutiveRunRule(),
		execFormRule(),
		dockerfileSecretsRule(),
		workdirRule(),
		dockerignoreRule(),
		minimalBaseRule(),
		cacheOrderRule(),
		apkNoCacheRule(),
		firstInstructionRule(),
		singleCmdRule(),
		ociLabelsRule(),
		exposePortsRule(),
		pipNoCacheRule(),
		curlPipeShellRule(),
		sudoRule(),
		buildkitSyntaxRule(),
		stageReferenceRule(),
		trustedRegistryRule(),
		floatingTagRule(),

		obsoleteVersionRule(),
		composeImageTagRule(),
		composeHealthcheckRule(),
		restartPolicyRule(),
		resourceLimitsRule(),
		logRotationRule(),
		namedVolumesRule(),
		privilegedRule(),
		composeSecretsRule(),
		dependsOnHealthyRule(),
		containerNameRule(),
		undefinedReferenceRule(),
		dockerSocketRule(),
		readOnlyRootfsRule(),
	}
}

// NewRegistry returns a registry with all built-in rules
func NewRegistry() (*lint.Registry, error) {
	return lint.NewRegistry(Builtin()...)
}

var secretNameRegex = regexp.MustCompile(`(?i)(passw(or)?d|(^|_)pwd($|_)|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|credentials?|auth[_-]?key)`)

// looksLikeSecret reports whether a variable name suggests a secret value.
// Names that point to a file holding the secret are fine.
func looksLikeSecret(name string) bool {
	upper := strings.ToUpper(name)
	if strings.HasSuffix(upper, "_FILE") || strings.HasSuffix(upper, "_PATH") {
		return false
	}
	return secretNameRegex.MatchString(name)
}

// isVariable reports whether the value only references another variable
func isVariable(value string) bool {
	return strings.HasPrefix(value, "$")
}
