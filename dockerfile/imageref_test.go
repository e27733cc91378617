// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageRef(t *testing.T) {
	digest := "sha256:" + strings.Repeat("a", 64)

	tests := []struct {
		raw      string
		registry string
		repo     string
		tag      string
		digest   string
		explicit bool
		latest   bool
	}{
		{"ubuntu", "index.docker.io", "library/ubuntu", "latest", "", false, true},
		{"ubuntu:latest", "index.docker.io", "library/ubuntu", "latest", "", true, true},
		{"ubuntu:22.04", "index.docker.io", "library/ubuntu", "22.04", "", true, false},
		{"localhost:5000/team/app", "localhost:5000", "team/app", "latest", "", false, true},
		{"localhost:5000/team/app:1.2", "localhost:5000", "team/app", "1.2", "", true, false},
		{"gcr.io/distroless/static@" + digest, "gcr.io", "distroless/static", "", digest, false, false},
		{"node:20@" + digest, "index.docker.io", "library/node", "20", digest, true, false},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.raw, func(t *testing.T) {
			ref := ParseImageRef(cur.raw)
			require.NoError(t, ref.Err)
			assert.Equal(t, cur.registry, ref.Registry)
			assert.Equal(t, cur.repo, ref.Repository)
			assert.Equal(t, cur.tag, ref.Tag)
			assert.Equal(t, cur.digest, ref.Digest)
			assert.Equal(t, cur.explicit, ref.ExplicitTag)
			assert.Equal(t, cur.latest, ref.IsLatest())
			assert.Equal(t, cur.digest != "", ref.IsPinned())
			assert.True(t, ref.External())
		})
	}

	t.Run("special references", func(t *testing.T) {
		assert.True(t, ParseImageRef("scratch").Scratch)
		assert.True(t, ParseImageRef("${BASE}").Variable)
		assert.False(t, ParseImageRef("${BASE}").External())
		assert.Error(t, ParseImageRef("").Err)
		assert.Error(t, ParseImageRef("UPPER/Case").Err)
		assert.Equal(t, "ubuntu", ParseImageRef("ubuntu:22.04").Name())
	})
}

func TestBaseImageRef(t *testing.T) {
	df, err := Parse("Dockerfile", strings.NewReader(`ARG BASE=alpine
ARG TAG
FROM ${BASE}:${TAG:-3.19} AS build
FROM build AS test
FROM $UNKNOWN
`))
	require.NoError(t, err)
	require.Len(t, df.Stages, 3)

	ref := df.BaseImageRef(df.Stages[0])
	require.NoError(t, ref.Err)
	assert.Equal(t, "library/alpine", ref.Repository)
	assert.Equal(t, "3.19", ref.Tag)
	assert.Equal(t, "${BASE}:${TAG:-3.19}", ref.Raw)

	ref = df.BaseImageRef(df.Stages[1])
	assert.Same(t, df.Stages[0], ref.Stage)
	assert.False(t, ref.External())

	ref = df.BaseImageRef(df.Stages[2])
	assert.True(t, ref.Variable)
}

func TestExpandMetaArgs(t *testing.T) {
	df, err := Parse("Dockerfile", strings.NewReader(strings.Join([]string{
		`ARG REGISTRY=ghcr.io`,
		`ARG EMPTY=`,
		`ARG IMAGE=${REGISTRY}/team/app`,
		`ARG TAG`,
		`FROM alpine:3.19`,
	}, "\n")))
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/team/app", df.MetaArgDefaults()["IMAGE"])

	tests := []struct {
		in  string
		out string
	}{
		{"plain:1.0", "plain:1.0"},
		{"$IMAGE:1.0", "ghcr.io/team/app:1.0"},
		{"${REGISTRY:+mirror.local}/app", "mirror.local/app"},
		{"app${MISSING:+-debug}", "app"},
		{"app:${MISSING-1.0}", "app:1.0"},
		{"app:${EMPTY-1.0}", "app:"},
		{"app:${EMPTY:-1.0}", "app:1.0"},
		{"app:${TAG:-2.0}", "app:2.0"},
		{"$MISSING/app", "$MISSING/app"},
		{"app:${TAG}", "app:${TAG}"},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.in, func(t *testing.T) {
			assert.Equal(t, cur.out, df.ExpandMetaArgs(cur.in))
		})
	}
}
