// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const RunIDFieldKey = "run-id"

// RunScopedContext returns a context that carries a logger which logs the
// run ID. Given a context, a logger can be retrieved as follows
//
//	ctx := RunScopedContext(context.Background(), "")
//	log := FromContext(ctx)
//	log.Debug().Msg("hello")
func RunScopedContext(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = uuid.New().String()
	}
	l := log.With().Str(RunIDFieldKey, runID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger in the context if present, otherwise it
// returns the global logger
func FromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		// a context without logger gets the noop logger from zerolog,
		// we want to keep logging in that case
		return &log.Logger
	}
	return l
}
