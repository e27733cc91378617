// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package rules

import (
	"strings"

	"github.com/Masterminds/semver"
	"github.com/gobwas/glob"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

// DF001: Use multi-stage builds.
//
// Separating build and runtime stages keeps compilers, package caches and
// sources out of the final image. Any Dockerfile with two or more FROM
// instructions passes.
const (
	DF001ID      = "DF001"
	DF001Message = "Use multi-stage builds"
	DF001DocURL  = dockerfileDocs + "#use-multi-stage-builds"
)

func multiStageRule() *rule {
	return newDockerfileRule(DF001ID, lint.RuleMeta{
		Title:       DF001Message,
		Description: "A single stage ships build tools and intermediate files with the runtime image. Split the build into a builder stage and a minimal final stage.",
		Severity:    lint.SeverityInfo,
		DocURL:      DF001DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		if len(df.Stages) >= 2 {
			return nil, nil
		}
		if len(df.Stages) == 0 {
			return nil, lint.ErrSkip
		}
		stage := df.Stages[0]
		if stage.Last("RUN") == nil {
			// nothing is built, e.g. a COPY of a prebuilt binary
			return nil, nil
		}
		return []lint.Finding{
			lint.NewFinding(stage.From.Range.Start, "single-stage build, move build steps into a separate stage"),
		}, nil
	})
}

// DF002: Base image must have an explicit tag.
//
// Images without a tag resolve to latest, which changes under your feet and
// makes builds unreproducible.
const (
	DF002ID      = "DF002"
	DF002Message = "Base image must have an explicit, non-latest tag or digest"
	DF002DocURL  = dockerfileDocs + "#choose-the-right-base-image"
)

func explicitTagRule() *rule {
	return newDockerfileRule(DF002ID, lint.RuleMeta{
		Title:       DF002Message,
		Description: "Pin base images to a specific version tag or digest so that rebuilding the same Dockerfile yields the same image.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF002DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			ref := df.BaseImageRef(stage)
			line := stage.From.Range.Start
			switch {
			case ref.Err != nil:
				res = append(res, lint.NewFindingf(line, "invalid base image reference %q", ref.Raw))
			case !ref.External():
				continue
			case ref.Digest != "":
				continue
			case !ref.ExplicitTag:
				res = append(res, lint.NewFindingf(line, "base image %s has no tag and defaults to latest", ref.Raw))
			case ref.Tag == "latest":
				res = append(res, lint.NewFindingf(line, "base image %s uses the latest tag", ref.Raw))
			}
		}
		return res, nil
	})
}

// DF003: Pin base images by digest.
const (
	DF003ID      = "DF003"
	DF003Message = "Pin base images by digest"
	DF003DocURL  = dockerfileDocs + "#pin-base-image-versions"
)

func digestPinRule() *rule {
	return newDockerfileRule(DF003ID, lint.RuleMeta{
		Title:       DF003Message,
		Description: "Tags are mutable. Referencing the image digest (image:tag@sha256:...) guarantees that the exact same base is used on every build.",
		Severity:    lint.SeverityLow,
		DocURL:      DF003DocURL,
		Disabled:    true,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			ref := df.BaseImageRef(stage)
			if !ref.External() || ref.IsPinned() {
				continue
			}
			res = append(res, lint.NewFindingf(stage.From.Range.Start, "base image %s is not pinned by digest", ref.Raw))
		}
		return res, nil
	})
}

// rootImage follows stage references until it reaches an image outside of
// the Dockerfile
func rootImage(df *dockerfile.Dockerfile, stage *dockerfile.Stage) dockerfile.ImageRef {
	ref := df.BaseImageRef(stage)
	for i := 0; ref.Stage != nil && i < len(df.Stages); i++ {
		ref = df.BaseImageRef(ref.Stage)
	}
	return ref
}

var minimalImageMarkers = []string{
	"alpine", "slim", "distroless", "minimal", "micro", "busybox", "static", "chiseled", "wolfi", "nano",
}

// DF013: Use a minimal final base image.
//
// A distroless, slim, alpine or scratch base reduces image size and the
// attack surface of the running container.
const (
	DF013ID      = "DF013"
	DF013Message = "Use a minimal base image for the final stage"
	DF013DocURL  = dockerfileDocs + "#choose-the-right-base-image"
)

func minimalBaseRule() *rule {
	return newDockerfileRule(DF013ID, lint.RuleMeta{
		Title:       DF013Message,
		Description: "Full distribution images ship shells, package managers and libraries the application never uses. Prefer scratch, distroless, slim or alpine variants for the final stage.",
		Severity:    lint.SeverityInfo,
		DocURL:      DF013DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		final := df.FinalStage()
		if final == nil {
			return nil, lint.ErrSkip
		}
		ref := rootImage(df, final)
		if ref.Scratch || ref.Variable || ref.Err != nil || ref.Stage != nil {
			return nil, nil
		}
		if strings.HasPrefix(ref.Registry, "cgr.dev") {
			return nil, nil
		}

		full := strings.ToLower(ref.Name() + ":" + ref.Tag)
		for _, marker := range minimalImageMarkers {
			if strings.Contains(full, marker) {
				return nil, nil
			}
		}
		return []lint.Finding{
			lint.NewFindingf(final.From.Range.Start, "final image is based on %s, consider a slim, alpine or distroless variant", ref.Raw),
		}, nil
	})
}

// DF025: Base image from a trusted registry.
//
// Only active when trusted registries are configured. Entries are registry
// hosts, repository prefixes or glob patterns, e.g. `registry.example.com`,
// `docker.io/library` or `*.example.com`.
const (
	DF025ID      = "DF025"
	DF025Message = "Base images must come from a trusted registry"
	DF025DocURL  = dockerfileDocs + "#choose-the-right-base-image"
)

func trustedRegistryRule() *rule {
	return newDockerfileRule(DF025ID, lint.RuleMeta{
		Title:       DF025Message,
		Description: "Restrict base images to registries your organization controls or vets. Configure the list with trusted-registries.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF025DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		if len(t.Settings.TrustedRegistries) == 0 {
			return nil, lint.ErrSkip
		}
		matcher, err := newRegistryMatcher(t.Settings.TrustedRegistries)
		if err != nil {
			return nil, err
		}

		var res []lint.Finding
		for _, stage := range df.Stages {
			ref := df.BaseImageRef(stage)
			if !ref.External() || matcher.Trusted(ref) {
				continue
			}
			res = append(res, lint.NewFindingf(stage.From.Range.Start, "base image %s comes from untrusted registry %s", ref.Raw, ref.Registry))
		}
		return res, nil
	})
}

type registryMatcher struct {
	prefixes []string
	globs    []glob.Glob
}

func normalizeRegistry(s string) string {
	s = strings.TrimSuffix(strings.ToLower(s), "/")
	if s == "docker.io" || strings.HasPrefix(s, "docker.io/") {
		return "index." + s
	}
	return s
}

func newRegistryMatcher(entries []string) (*registryMatcher, error) {
	res := &registryMatcher{}
	for _, e := range entries {
		e = normalizeRegistry(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if strings.ContainsAny(e, "*?[{") {
			g, err := glob.Compile(e, '/')
			if err != nil {
				return nil, err
			}
			res.globs = append(res.globs, g)
			continue
		}
		res.prefixes = append(res.prefixes, e)
	}
	return res, nil
}

func (m *registryMatcher) Trusted(ref dockerfile.ImageRef) bool {
	registry := strings.ToLower(ref.Registry)
	full := registry + "/" + ref.Repository
	for _, p := range m.prefixes {
		if registry == p || full == p || strings.HasPrefix(full, p+"/") {
			return true
		}
	}
	for _, g := range m.globs {
		if g.Match(registry) || g.Match(full) {
			return true
		}
	}
	return false
}

var floatingTags = map[string]bool{
	"stable":   true,
	"lts":      true,
	"current":  true,
	"edge":     true,
	"mainline": true,
	"rolling":  true,
	"nightly":  true,
	"dev":      true,
	"devel":    true,
	"main":     true,
	"master":   true,
	"beta":     true,
	"rc":       true,
	"testing":  true,
	"unstable": true,
}

// DF026: Base image tag is a version.
const (
	DF026ID      = "DF026"
	DF026Message = "Base image tag should be a version, not a floating alias"
	DF026DocURL  = dockerfileDocs + "#pin-base-image-versions"
)

func floatingTagRule() *rule {
	return newDockerfileRule(DF026ID, lint.RuleMeta{
		Title:       DF026Message,
		Description: "Aliases such as stable or lts move to new major versions without notice. Use a version tag like 1.25 or 22.04.",
		Severity:    lint.SeverityLow,
		DocURL:      DF026DocURL,
		Feature:     dockerlint.ExperimentalRules,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			ref := df.BaseImageRef(stage)
			if !ref.External() || !ref.ExplicitTag || ref.IsPinned() {
				continue
			}
			if isVersionTag(ref.Tag) {
				continue
			}
			alias, _, _ := strings.Cut(strings.ToLower(ref.Tag), "-")
			if floatingTags[alias] {
				res = append(res, lint.NewFindingf(stage.From.Range.Start, "base image %s uses the floating tag %q", ref.Raw, ref.Tag))
			}
		}
		return res, nil
	})
}

// isVersionTag reports whether the tag starts with a version number, e.g.
// 1.21, v2 or 3.19-alpine
func isVersionTag(tag string) bool {
	if _, err := semver.NewVersion(tag); err == nil {
		return true
	}
	head, _, _ := strings.Cut(tag, "-")
	_, err := semver.NewVersion(head)
	return err == nil
}
