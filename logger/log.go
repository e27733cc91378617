// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOutputWriter is the writer all CLI logs end up in. Lint reports go to
// stdout, so logs must stay on stderr.
var LogOutputWriter io.Writer = os.Stderr

// Debug is set to true if the application is running in a debug mode
var Debug bool

func init() {
	Set("info")
	CliNoColorLogger(LogOutputWriter)
}

// UseJSONLogging switches the global logger to structured json lines
func UseJSONLogging(out io.Writer) {
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// CliCompactLogger is the colored logger with short level glyphs
func CliCompactLogger(out io.Writer) {
	log.Logger = NewConsoleWriter(out, true, false)
}

// CliNoColorLogger is used when the output is not a terminal
func CliNoColorLogger(out io.Writer) {
	log.Logger = NewConsoleWriter(out, true, true)
}

// Set the global log level, e.g. error, warn, info, debug, trace.
// Unknown levels fall back to info.
func Set(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	Debug = lvl <= zerolog.DebugLevel
}

// GetLevel returns the currently active global level name
func GetLevel() string {
	return zerolog.GlobalLevel().String()
}

// GetEnvLogLevel reads DEBUG=1 or TRACE=1 from the environment. Those always
// win over flags and config.
func GetEnvLogLevel() (string, bool) {
	if isEnvSet("TRACE") {
		return "trace", true
	}
	if isEnvSet("DEBUG") {
		return "debug", true
	}
	return "", false
}

func isEnvSet(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
