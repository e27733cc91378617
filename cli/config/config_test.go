// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/logger"
)

var (
	home          = getHomeDir()
	homeConfigDir = HomeConfigDir(home)
	homeConfig    = filepath.Join(homeConfigDir, DefaultConfigFile)

	systemConfigDir = filepath.Join("/etc", "dockerlint")
	systemConfig    = filepath.Join(systemConfigDir, DefaultConfigFile)

	configBody = []byte("fail-on: high\n")
)

func getHomeDir() string {
	home, _ := homedir.Dir()
	return home
}

func resetAppFsToMemFs() {
	AppFs = afero.NewMemMapFs()
	AppFs.MkdirAll(homeConfigDir, 0o755)
	AppFs.MkdirAll(systemConfigDir, 0o755)
}

func Test_autodetectConfig(t *testing.T) {
	defer func() {
		AppFs = afero.NewOsFs()
	}()

	t.Run("test local config wins", func(t *testing.T) {
		resetAppFsToMemFs()
		afero.WriteFile(AppFs, LocalConfig, configBody, 0o644)
		afero.WriteFile(AppFs, homeConfig, configBody, 0o644)
		afero.WriteFile(AppFs, systemConfig, configBody, 0o644)

		config := autodetectConfig()
		assert.Equal(t, LocalConfig, config)
	})

	t.Run("test homeConfig returned even if systemConfig exists", func(t *testing.T) {
		resetAppFsToMemFs()
		afero.WriteFile(AppFs, homeConfig, configBody, 0o644)
		afero.WriteFile(AppFs, systemConfig, configBody, 0o644)

		config := autodetectConfig()
		assert.Equal(t, homeConfig, config)
	})

	t.Run("test systemConfig returned", func(t *testing.T) {
		resetAppFsToMemFs()
		afero.WriteFile(AppFs, systemConfig, configBody, 0o644)

		config := autodetectConfig()
		assert.Equal(t, systemConfig, config)
	})

	t.Run("test homeConfig is the default", func(t *testing.T) {
		resetAppFsToMemFs()
		assert.Equal(t, HomePath, autodetectConfig())
	})
}

func Test_probeConfigMemFs(t *testing.T) {
	defer func() {
		AppFs = afero.NewOsFs()
	}()

	resetAppFsToMemFs()
	afero.WriteFile(AppFs, homeConfig, configBody, 0o644)

	assert.False(t, ProbeFile(homeConfigDir))
	assert.True(t, ProbeDir(homeConfigDir))
	assert.True(t, ProbeFile(homeConfig))
	assert.False(t, ProbeFile(homeConfig+".nothere"))
}

func readConfig(t *testing.T, data string) *Config {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(data)))
	cfg, err := ReadFrom(v)
	require.NoError(t, err)
	return cfg
}

func TestConfigParsing(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		cfg := readConfig(t, `
fail-on: high
ignore: [DF008, DC001]
enabled:
  DF003: true
severity:
  DF013: low
trusted-registries:
  - registry.example.com
  - "*.dkr.ecr.*.amazonaws.com"
rule-options:
  DF018:
    labels: [org.opencontainers.image.source]
exclude: ["testdata/**"]
concurrency: 4
features: [ExperimentalRules]
rules:
  - id: ORG001
    title: Use our registry
    kind: dockerfile
    severity: high
    expr: 'dockerfile.stages[0].registry == "registry.example.com"'
log:
  format: json
`)
		assert.Equal(t, "high", cfg.FailOn)
		assert.Equal(t, []string{"DF008", "DC001"}, cfg.Ignore)
		assert.Equal(t, []string{"registry.example.com", "*.dkr.ecr.*.amazonaws.com"}, cfg.TrustedRegistries)
		assert.Equal(t, []string{"testdata/**"}, cfg.Exclude)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, "json", cfg.Log.Format)
		require.Len(t, cfg.Rules, 1)
		assert.Equal(t, "ORG001", cfg.Rules[0].ID)
		assert.Equal(t, "dockerfile", cfg.Rules[0].Kind)

		// viper lower-cases map keys, lookups are case insensitive
		assert.Equal(t, "low", cfg.Severity["df013"])
		assert.True(t, cfg.Enabled["df003"])

		opts, err := cfg.LintOptions()
		require.NoError(t, err)
		assert.Equal(t, lint.SeverityHigh, opts.FailOn)
		assert.Equal(t, lint.SeverityLow, opts.Severity["df013"])
		assert.True(t, opts.Features.IsActive(dockerlint.ExperimentalRules))
		assert.True(t, opts.Features.IsActive(dockerlint.CustomRules))

		settings := cfg.Settings()
		var into struct {
			Labels []string `mapstructure:"labels"`
		}
		require.NoError(t, settings.DecodeOptions("DF018", &into))
		assert.Equal(t, []string{"org.opencontainers.image.source"}, into.Labels)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := readConfig(t, "")
		assert.Equal(t, "medium", cfg.FailOn)
		assert.Equal(t, "cli", cfg.Output)

		opts, err := cfg.LintOptions()
		require.NoError(t, err)
		assert.Equal(t, lint.SeverityMedium, opts.FailOn)
		assert.Equal(t, dockerlint.DefaultFeatures, opts.Features)
	})

	t.Run("comma separated lists from env style values", func(t *testing.T) {
		cfg := readConfig(t, "ignore: DF001,DF002\n")
		assert.Equal(t, []string{"DF001", "DF002"}, cfg.Ignore)
	})

	t.Run("invalid severities", func(t *testing.T) {
		cfg := readConfig(t, "fail-on: urgent\n")
		_, err := cfg.LintOptions()
		assert.ErrorContains(t, err, "invalid fail-on")

		cfg = readConfig(t, "severity:\n  DF001: loud\n")
		_, err = cfg.LintOptions()
		assert.ErrorContains(t, err, "invalid severity override for df001")
	})

	t.Run("unknown features are skipped", func(t *testing.T) {
		cfg := readConfig(t, "features: [NoSuchFeature]\n")
		assert.Equal(t, dockerlint.DefaultFeatures, cfg.GetFeatures())
	})
}

func TestInitViperConfig(t *testing.T) {
	defer func() {
		AppFs = afero.NewOsFs()
		UserProvidedPath = ""
		viper.Reset()
	}()

	resetAppFsToMemFs()
	require.NoError(t, afero.WriteFile(AppFs, "/tmp/custom.yml", []byte("fail-on: critical\nconcurrency: 2\n"), 0o644))
	UserProvidedPath = "/tmp/custom.yml"
	t.Setenv("DOCKERLINT_CONCURRENCY", "8")

	InitViperConfig()
	assert.True(t, LoadedConfig)
	assert.Equal(t, "--config", Source)

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "critical", cfg.FailOn)
	// env wins over the config file
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestConfigureLogger(t *testing.T) {
	defer func(w io.Writer) { logger.LogOutputWriter = w }(logger.LogOutputWriter)
	defer logger.CliCompactLogger(os.Stderr)

	tests := []struct {
		title  string
		config string
		check  func(t *testing.T, out string)
	}{
		{"json", "log:\n  format: json\n", func(t *testing.T, out string) {
			assert.True(t, strings.HasPrefix(out, "{"))
			assert.Contains(t, out, `"path":"Dockerfile"`)
		}},
		{"no color", "log:\n  color: false\n", func(t *testing.T, out string) {
			assert.NotContains(t, out, "\x1b[")
			assert.Contains(t, out, "path=Dockerfile")
		}},
		{"default console", "", func(t *testing.T, out string) {
			assert.False(t, strings.HasPrefix(out, "{"))
			assert.Contains(t, out, "linting")
		}},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.title, func(t *testing.T) {
			buf := bytes.Buffer{}
			logger.LogOutputWriter = &buf

			v := viper.New()
			v.SetConfigType("yaml")
			require.NoError(t, v.ReadConfig(strings.NewReader(cur.config)))
			ConfigureLogger(v)

			log.Warn().Str("path", "Dockerfile").Msg("linting")
			cur.check(t, buf.String())
		})
	}
}
