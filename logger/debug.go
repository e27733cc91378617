// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"fmt"

	"github.com/hokaccha/go-prettyjson"
	"github.com/rs/zerolog/log"
)

// DebugJSON prints a prettified JSON of the data to the log output
func DebugJSON(obj interface{}) {
	if !log.Debug().Enabled() {
		return
	}

	s, err := prettyjson.Marshal(obj)
	if err != nil {
		log.Debug().Err(err).Msg("could not render debug json")
		return
	}
	fmt.Fprintln(LogOutputWriter, string(s))
}
