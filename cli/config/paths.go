// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultConfigFile = "dockerlint.yml"
	// LocalConfig is looked up in the working directory
	LocalConfig = ".dockerlint.yml"
)

var (
	// AppFs is the file system configs are read from, tests swap it for a
	// memory fs
	AppFs afero.Fs = afero.NewOsFs()

	HomePath   = homeConfigPath()
	SystemPath = filepath.Join("/etc", "dockerlint", DefaultConfigFile)
)

func homeConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		log.Debug().Err(err).Msg("could not determine home directory")
		return ""
	}
	return filepath.Join(HomeConfigDir(home), DefaultConfigFile)
}
