// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer Set("info")

	Set("debug")
	assert.Equal(t, "debug", GetLevel())
	assert.True(t, Debug)

	Set("WARN")
	assert.Equal(t, "warn", GetLevel())
	assert.False(t, Debug)

	Set("not-a-level")
	assert.Equal(t, "info", GetLevel())
}

func TestGetEnvLogLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("TRACE", "")
	_, ok := GetEnvLogLevel()
	assert.False(t, ok)

	t.Setenv("DEBUG", "1")
	lvl, ok := GetEnvLogLevel()
	assert.True(t, ok)
	assert.Equal(t, "debug", lvl)

	t.Setenv("TRACE", "true")
	lvl, ok = GetEnvLogLevel()
	assert.True(t, ok)
	assert.Equal(t, "trace", lvl)
}

func TestCompactLevelFormat(t *testing.T) {
	f := consoleFormatLevel(true)
	assert.Equal(t, "→", f("info"))
	assert.Equal(t, "!", f("warn"))
	assert.Equal(t, "x", f("error"))
	assert.Equal(t, "???", f(nil))
	assert.Equal(t, "???", f("other"))
}

func TestRunScopedContext(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	defer Set("info")

	buf := bytes.Buffer{}
	UseJSONLogging(&buf)
	Set("debug")

	ctx := RunScopedContext(context.Background(), "abc")
	FromContext(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"run-id":"abc"`)

	// no logger in the context falls back to the global one
	buf.Reset()
	FromContext(context.Background()).Info().Msg("global")
	assert.Contains(t, buf.String(), `"message":"global"`)
}

func TestDebugJSON(t *testing.T) {
	defer func(w io.Writer) { LogOutputWriter = w }(LogOutputWriter)
	defer Set("info")

	buf := bytes.Buffer{}
	LogOutputWriter = &buf

	Set("info")
	DebugJSON(map[string]any{"output": "cli"})
	assert.Empty(t, buf.String())

	Set("debug")
	DebugJSON(map[string]any{"output": "cli"})
	assert.Contains(t, buf.String(), "output")
	assert.Contains(t, buf.String(), "cli")
}
