// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerfile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/moby/buildkit/frontend/dockerfile/shell"
)

// ImageRef is a parsed base image reference as used in FROM, COPY --from
// and compose `image:` keys
type ImageRef struct {
	Raw string
	// Registry is the normalized registry host, e.g. index.docker.io
	Registry string
	// Repository is the path within the registry, e.g. library/ubuntu
	Repository string
	Tag        string
	Digest     string
	// ExplicitTag is false when the tag was defaulted to latest
	ExplicitTag bool
	Scratch     bool
	// Variable is set when the reference still contains unresolved $VARs
	Variable bool
	// Stage is set when the reference names an earlier build stage
	Stage *Stage
	Err   error
}

// IsLatest reports whether the image resolves to the latest tag without a digest
func (r ImageRef) IsLatest() bool {
	return r.Digest == "" && (r.Tag == "latest" || (!r.ExplicitTag && r.Tag == ""))
}

// IsPinned reports whether the image is fixed by a digest
func (r ImageRef) IsPinned() bool {
	return r.Digest != ""
}

// Name returns registry-less repository name without the library/ prefix
func (r ImageRef) Name() string {
	return strings.TrimPrefix(r.Repository, "library/")
}

// External reports whether the reference points to a registry image
func (r ImageRef) External() bool {
	return !r.Scratch && !r.Variable && r.Stage == nil && r.Err == nil
}

// ParseImageRef parses a raw image reference
func ParseImageRef(raw string) ImageRef {
	res := ImageRef{Raw: raw}
	if raw == "" {
		res.Err = errors.New("empty image reference")
		return res
	}
	if strings.EqualFold(raw, "scratch") {
		res.Scratch = true
		return res
	}
	if strings.Contains(raw, "$") {
		res.Variable = true
		return res
	}

	ref, err := name.ParseReference(raw, name.WeakValidation)
	if err != nil {
		res.Err = err
		return res
	}
	res.Registry = ref.Context().RegistryStr()
	res.Repository = ref.Context().RepositoryStr()

	base := raw
	if at := strings.Index(raw, "@"); at != -1 {
		base = raw[:at]
		res.Digest = raw[at+1:]
	}
	// a colon after the last slash separates the tag, earlier colons are ports
	if idx := strings.LastIndex(base, ":"); idx > strings.LastIndex(base, "/") {
		res.Tag = base[idx+1:]
		res.ExplicitTag = true
	} else if res.Digest == "" {
		res.Tag = "latest"
	}

	return res
}

// BaseImageRef resolves a stage's FROM reference. Meta ARG defaults are
// expanded and references to earlier stages are linked.
func (d *Dockerfile) BaseImageRef(stage *Stage) ImageRef {
	raw := d.ExpandMetaArgs(stage.BaseImage)
	lower := strings.ToLower(raw)
	for _, prev := range d.Stages {
		if prev.Index >= stage.Index {
			break
		}
		if prev.Name != "" && prev.Name == lower {
			return ImageRef{Raw: raw, Stage: prev}
		}
	}
	ref := ParseImageRef(raw)
	ref.Raw = stage.BaseImage
	return ref
}

// ExpandMetaArgs substitutes variables with the defaults of meta ARGs
// using the Dockerfile word expansion rules, e.g. ${VAR:-default},
// ${VAR:+alt} and ${VAR-default}. A word that references an unknown
// variable without a fallback is kept as it is, it is set at build time.
func (d *Dockerfile) ExpandMetaArgs(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	env := newArgEnv(d.MetaArgDefaults())
	res, err := d.lexer().ProcessWord(s, env)
	if err != nil {
		return s
	}
	for name := range env.missing {
		if bareReference(s, name) {
			return s
		}
	}
	return res
}

func (d *Dockerfile) lexer() *shell.Lex {
	escape := d.Escape
	if escape == 0 {
		escape = '\\'
	}
	return shell.NewLex(escape)
}

// bareReference reports whether name is used as $name or ${name}, without
// one of the fallback operators
func bareReference(s, name string) bool {
	re := regexp.MustCompile(`\$(?:\{` + regexp.QuoteMeta(name) + `\}|` + regexp.QuoteMeta(name) + `(?:[^A-Za-z0-9_]|$))`)
	return re.MatchString(s)
}

// argEnv resolves variables for shell.Lex and remembers lookups of
// undeclared names
type argEnv struct {
	values  map[string]string
	missing map[string]struct{}
}

func newArgEnv(values map[string]string) *argEnv {
	return &argEnv{values: values, missing: map[string]struct{}{}}
}

func (e *argEnv) Get(key string) (string, bool) {
	v, ok := e.values[key]
	if !ok {
		e.missing[key] = struct{}{}
	}
	return v, ok
}

func (e *argEnv) Keys() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
