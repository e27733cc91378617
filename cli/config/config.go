// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/custom"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/logger"
)

/*
	Configuration is loaded in this order:
	flags -> ENV -> config file -> defaults

	The config file is the first one found of:
	--config, $DOCKERLINT_CONFIG_PATH, ./.dockerlint.yml,
	~/.config/dockerlint/dockerlint.yml, /etc/dockerlint/dockerlint.yml
*/

const (
	configSourceBase64 = "$DOCKERLINT_CONFIG_BASE64"
	envPrefix          = "dockerlint"
)

var (
	// UserProvidedPath is the value of --config
	UserProvidedPath string
	// Path is the config file location, it may not exist
	Path string
	// Source describes where Path came from
	Source string
	// LoadedConfig is true when a config file was read
	LoadedConfig bool
)

// Init registers the config flag and loads the config before any command runs
func Init(rootCmd *cobra.Command) {
	cobra.OnInitialize(InitViperConfig)
	// persistent flags are global for the application
	rootCmd.PersistentFlags().StringVar(&UserProvidedPath, "config", "", "Set config file path (default $HOME/.config/dockerlint/dockerlint.yml)")
}

// SetDefaults registers the default values of all config keys
func SetDefaults(v *viper.Viper) {
	v.SetDefault("fail-on", lint.SeverityMedium.String())
	v.SetDefault("output", "cli")
	v.SetDefault("concurrency", 0)
	v.SetDefault("log.format", "console")
}

func InitViperConfig() {
	SetDefaults(viper.GetViper())
	viper.SetFs(AppFs)
	viper.SetConfigType("yaml")

	Path = strings.TrimSpace(UserProvidedPath)
	// base 64 config env setting has always precedence
	if len(os.Getenv("DOCKERLINT_CONFIG_BASE64")) > 0 {
		Source = configSourceBase64
		decodedData, err := base64.StdEncoding.DecodeString(os.Getenv("DOCKERLINT_CONFIG_BASE64"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not parse base64 config")
		}
		if err := viper.ReadConfig(bytes.NewBuffer(decodedData)); err != nil {
			log.Fatal().Err(err).Msg("could not read base64 config")
		}
		LoadedConfig = true
	} else if len(Path) == 0 && len(os.Getenv("DOCKERLINT_CONFIG_PATH")) > 0 {
		// fallback to env variable if provided, but only if --config is not used
		Source = "$DOCKERLINT_CONFIG_PATH"
		Path = os.Getenv("DOCKERLINT_CONFIG_PATH")
	} else if len(Path) != 0 {
		Source = "--config"
	} else {
		Source = "default"
	}

	if Path == "" && Source != configSourceBase64 {
		Path = autodetectConfig()
	}

	if Source != configSourceBase64 && Path != "" {
		viper.SetConfigFile(Path)

		// if the file exists, load it
		if _, err := AppFs.Stat(Path); err == nil {
			log.Debug().Str("configfile", viper.ConfigFileUsed()).Msg("try to load local config file")
			if err := viper.ReadInConfig(); err == nil {
				LoadedConfig = true
			} else {
				LoadedConfig = false
				log.Error().Err(err).Str("path", Path).Msg("could not read config file")
			}
		}
	}

	// override values with env variables
	viper.SetEnvPrefix(envPrefix)
	// to parse env variables properly we need to replace some chars
	// all hyphens need to be underscores
	// all dots need to be underscores
	replacer := strings.NewReplacer("-", "_", ".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// read in environment variables that match
	viper.AutomaticEnv()

	ConfigureLogger(viper.GetViper())
}

// ConfigureLogger switches the global logger based on log.format and
// log.color. By default it uses colored console output, for production we
// may want json.
func ConfigureLogger(v *viper.Viper) {
	switch {
	case v.GetString("log.format") == "json":
		logger.UseJSONLogging(logger.LogOutputWriter)
	case v.IsSet("log.color") && !v.GetBool("log.color"):
		logger.CliNoColorLogger(logger.LogOutputWriter)
	default:
		logger.CliCompactLogger(logger.LogOutputWriter)
	}
}

func DisplayUsedConfig() {
	if !LoadedConfig && len(UserProvidedPath) > 0 {
		log.Warn().Msg("could not load configuration file " + UserProvidedPath)
	} else if LoadedConfig && Source == configSourceBase64 {
		log.Debug().Msg("loaded configuration from environment using source " + Source)
	} else if LoadedConfig {
		log.Debug().Msg("loaded configuration from " + viper.ConfigFileUsed() + " using source " + Source)
	} else {
		log.Debug().Msg("no dockerlint configuration file provided, using defaults")
	}
}

// Read decodes the global viper config
func Read() (*Config, error) {
	return ReadFrom(viper.GetViper())
}

// ReadFrom decodes a viper instance into a Config
func ReadFrom(v *viper.Viper) (*Config, error) {
	var opts Config
	err := v.Unmarshal(&opts, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			dc.DecodeHook,
		)
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode into config struct")
	}
	return &opts, nil
}

type Config struct {
	// FailOn is the lowest severity that fails a rule
	FailOn string `json:"fail-on,omitempty" mapstructure:"fail-on"`
	// Ignore lists rule ids that never run
	Ignore []string `json:"ignore,omitempty" mapstructure:"ignore"`
	// Enabled switches rules on or off, e.g. DF003: true
	Enabled map[string]bool `json:"enabled,omitempty" mapstructure:"enabled"`
	// Severity overrides the severity of rules, e.g. DF008: medium
	Severity map[string]string `json:"severity,omitempty" mapstructure:"severity"`

	// Rules are custom rules written in CEL
	Rules       []custom.Definition `json:"rules,omitempty" mapstructure:"rules"`
	RuleBundles []string            `json:"rules-bundle,omitempty" mapstructure:"rules-bundle"`
	// RuleOptions tune built-in rules, keyed by rule id
	RuleOptions       map[string]map[string]interface{} `json:"rule-options,omitempty" mapstructure:"rule-options"`
	TrustedRegistries []string                          `json:"trusted-registries,omitempty" mapstructure:"trusted-registries"`

	Exclude     []string `json:"exclude,omitempty" mapstructure:"exclude"`
	Kind        string   `json:"kind,omitempty" mapstructure:"kind"`
	Concurrency int      `json:"concurrency,omitempty" mapstructure:"concurrency"`
	Output      string   `json:"output,omitempty" mapstructure:"output"`
	ShowPassed  bool     `json:"show-passed,omitempty" mapstructure:"show-passed"`
	ShowSkipped bool     `json:"show-skipped,omitempty" mapstructure:"show-skipped"`
	NoColor     bool     `json:"no-color,omitempty" mapstructure:"no-color"`

	// client features
	Features []string `json:"features,omitempty" mapstructure:"features"`

	Log LogConfig `json:"log,omitempty" mapstructure:"log"`
}

type LogConfig struct {
	Format string `json:"format,omitempty" mapstructure:"format"`
	Color  bool   `json:"color,omitempty" mapstructure:"color"`
}

// GetFeatures merges the default features with the configured ones.
// Unknown names are logged and skipped.
func (c *Config) GetFeatures() dockerlint.Features {
	flags, unknown := dockerlint.ParseFeatures(c.Features)
	for _, name := range unknown {
		log.Warn().Str("feature", name).Msg("could not parse feature")
	}
	return flags
}

// LintOptions turns the config into evaluation options
func (c *Config) LintOptions() (lint.Options, error) {
	opts := lint.DefaultOptions()
	opts.Features = c.GetFeatures()
	opts.Ignore = c.Ignore
	opts.Enabled = c.Enabled
	opts.ShowSkipped = c.ShowSkipped

	if c.FailOn != "" {
		s, err := lint.ParseSeverity(c.FailOn)
		if err != nil {
			return opts, errors.Wrap(err, "invalid fail-on")
		}
		opts.FailOn = s
	}

	if len(c.Severity) > 0 {
		opts.Severity = make(map[string]lint.Severity, len(c.Severity))
		for id, name := range c.Severity {
			s, err := lint.ParseSeverity(name)
			if err != nil {
				return opts, errors.Wrapf(err, "invalid severity override for %s", id)
			}
			opts.Severity[id] = s
		}
	}
	return opts, nil
}

// Settings are the rule settings of the config
func (c *Config) Settings() lint.Settings {
	return lint.Settings{
		TrustedRegistries: c.TrustedRegistries,
		RuleOptions:       c.RuleOptions,
	}
}

// autodetectConfig returns the first existing config file, or the home
// config path when none exists
func autodetectConfig() string {
	candidates := []string{LocalConfig}
	if HomePath != "" {
		candidates = append(candidates, HomePath)
	}
	candidates = append(candidates, SystemPath)

	for _, path := range candidates {
		if ProbeFile(path) {
			return path
		}
	}
	return HomePath
}

// ProbeFile reports whether the path is a readable regular file
func ProbeFile(path string) bool {
	stat, err := AppFs.Stat(path)
	if err != nil || stat.IsDir() {
		return false
	}
	f, err := AppFs.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ProbeDir reports whether the path is a directory
func ProbeDir(path string) bool {
	stat, err := AppFs.Stat(path)
	return err == nil && stat.IsDir()
}

// HomeConfigDir returns the config directory below home, empty when home
// cannot be determined
func HomeConfigDir(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "dockerlint")
}
