// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package discovery finds the Dockerfiles and Compose files to lint.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.mondoo.com/dockerlint/lint"
)

// Stdin is the path argument that reads from standard input
const Stdin = "-"

var (
	ErrNotFound    = errors.New("path does not exist")
	ErrUnknownKind = errors.New("cannot determine the file kind, use --kind")
)

// DefaultSkipDirs are never walked into
var DefaultSkipDirs = []string{".git", "node_modules", "vendor"}

// Target is a file found for linting
type Target struct {
	Path string
	Kind lint.Kind
	// ContextDir is the directory the file is built or started from
	ContextDir string
	Stdin      bool
}

type Options struct {
	// Kind forces the kind of explicitly named files and filters walked
	// directories to that kind
	Kind lint.Kind
	// Exclude are glob patterns matched against slash separated paths
	// relative to the walked directory
	Exclude  []string
	SkipDirs []string
}

// Classify determines the kind of a file by its name
func Classify(path string) (lint.Kind, bool) {
	name := strings.ToLower(filepath.Base(path))

	switch {
	case name == "dockerfile" || name == "containerfile":
		return lint.KindDockerfile, true
	case strings.HasPrefix(name, "dockerfile.") || strings.HasPrefix(name, "containerfile."):
		return lint.KindDockerfile, true
	case strings.HasSuffix(name, ".dockerfile") || strings.HasSuffix(name, ".containerfile"):
		return lint.KindDockerfile, true
	}

	ext := filepath.Ext(name)
	if ext != ".yml" && ext != ".yaml" {
		return "", false
	}
	stem := strings.TrimSuffix(name, ext)
	switch {
	case stem == "compose" || stem == "docker-compose":
		return lint.KindCompose, true
	case strings.HasPrefix(stem, "docker-compose"):
		return lint.KindCompose, true
	case strings.HasPrefix(stem, "compose."):
		return lint.KindCompose, true
	case strings.HasSuffix(stem, ".compose"):
		return lint.KindCompose, true
	}
	return "", false
}

type excludes []glob.Glob

func compileExcludes(patterns []string) (excludes, error) {
	res := make(excludes, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern %q", p)
		}
		res = append(res, g)
	}
	return res, nil
}

func (e excludes) match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range e {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Discover resolves path arguments into lint targets. Directories are
// walked recursively. The result is sorted by path and free of duplicates.
func Discover(fs afero.Fs, paths []string, opts Options) ([]Target, error) {
	exclude, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}
	skipDirs := opts.SkipDirs
	if skipDirs == nil {
		skipDirs = DefaultSkipDirs
	}

	var res []Target
	for _, path := range paths {
		if path == Stdin {
			kind := opts.Kind
			if kind == "" {
				kind = lint.KindDockerfile
			}
			res = append(res, Target{Path: Stdin, Kind: kind, Stdin: true})
			continue
		}

		path = filepath.Clean(path)
		fi, err := fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrapf(ErrNotFound, "%s", path)
			}
			return nil, errors.Wrapf(err, "could not access %s", path)
		}

		if !fi.IsDir() {
			kind := opts.Kind
			if kind == "" {
				var ok bool
				if kind, ok = Classify(path); !ok {
					return nil, errors.Wrapf(ErrUnknownKind, "%s", path)
				}
			}
			res = append(res, newTarget(path, kind))
			continue
		}

		found, err := walk(fs, path, opts.Kind, exclude, skipDirs)
		if err != nil {
			return nil, err
		}
		res = append(res, found...)
	}

	return dedupe(res), nil
}

func newTarget(path string, kind lint.Kind) Target {
	return Target{
		Path:       path,
		Kind:       kind,
		ContextDir: filepath.Dir(path),
	}
}

func walk(fs afero.Fs, root string, only lint.Kind, exclude excludes, skipDirs []string) ([]Target, error) {
	var res []Target
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			for _, name := range skipDirs {
				if info.Name() == name {
					return filepath.SkipDir
				}
			}
			if exclude.match(rel) {
				log.Debug().Str("path", path).Msg("excluded directory")
				return filepath.SkipDir
			}
			return nil
		}

		kind, ok := Classify(path)
		if !ok || (only != "" && kind != only) {
			return nil
		}
		if exclude.match(rel) {
			log.Debug().Str("path", path).Msg("excluded file")
			return nil
		}
		res = append(res, newTarget(path, kind))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not walk %s", root)
	}
	return res, nil
}

func dedupe(targets []Target) []Target {
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Path < targets[j].Path
	})
	res := targets[:0]
	for i := range targets {
		if i > 0 && targets[i].Path == targets[i-1].Path {
			continue
		}
		res = append(res, targets[i])
	}
	return res
}
