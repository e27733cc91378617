// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/cli/config"
	"go.mondoo.com/dockerlint/cli/reporter"
	"go.mondoo.com/dockerlint/custom"
	"go.mondoo.com/dockerlint/discovery"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/logger"
	"go.mondoo.com/dockerlint/rules"
	"go.mondoo.com/dockerlint/scan"
)

func init() {
	lintCmd.Flags().StringP("output", "o", "cli", "Set output format: "+reporter.AllFormats())
	lintCmd.Flags().BoolP("json", "j", false, "Run the lint and print the report as JSON")
	lintCmd.Flags().String("fail-on", "medium", "Lowest severity that fails a rule: critical, high, medium, low, info")
	lintCmd.Flags().StringSlice("ignore", nil, "Rule IDs that are not evaluated")
	lintCmd.Flags().StringSliceP("rules-bundle", "f", nil, "Path to a custom rules bundle file or directory")
	lintCmd.Flags().String("kind", "", "Force the kind of the linted files: dockerfile, compose")
	lintCmd.Flags().StringSlice("exclude", nil, "Glob patterns of files to skip while walking directories")
	lintCmd.Flags().Int("concurrency", 0, "Number of files linted in parallel, defaults to the number of CPUs")
	lintCmd.Flags().Bool("show-passed", false, "Include passing rules in the cli output")
	lintCmd.Flags().Bool("show-skipped", false, "Report rules that do not apply to a file")
	lintCmd.Flags().StringSlice("trusted-registry", nil, "Registry that base images may be pulled from")
	lintCmd.Flags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [paths...]",
	Short: "Lint Dockerfiles and Compose files",
	Long: `Lint Dockerfiles and Compose files against container best practices.

Directories are searched for Dockerfiles and Compose files. Use - to read a
Dockerfile from stdin. The command exits with 1 when a rule failed or a file
could not be parsed.`,
	Example: `  dockerlint lint
  dockerlint lint ./services --exclude 'legacy/**'
  cat Dockerfile | dockerlint lint -
  dockerlint lint docker-compose.yml -o junit > report.xml`,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("output", cmd.Flags().Lookup("output"))
		viper.BindPFlag("json", cmd.Flags().Lookup("json"))
		viper.BindPFlag("fail-on", cmd.Flags().Lookup("fail-on"))
		viper.BindPFlag("ignore", cmd.Flags().Lookup("ignore"))
		viper.BindPFlag("rules-bundle", cmd.Flags().Lookup("rules-bundle"))
		viper.BindPFlag("kind", cmd.Flags().Lookup("kind"))
		viper.BindPFlag("exclude", cmd.Flags().Lookup("exclude"))
		viper.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))
		viper.BindPFlag("show-passed", cmd.Flags().Lookup("show-passed"))
		viper.BindPFlag("show-skipped", cmd.Flags().Lookup("show-skipped"))
		viper.BindPFlag("trusted-registries", cmd.Flags().Lookup("trusted-registry"))
		viper.BindPFlag("no-color", cmd.Flags().Lookup("no-color"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Read()
		if err != nil {
			log.Fatal().Err(err).Msg("could not load configuration")
		}
		config.DisplayUsedConfig()
		logger.DebugJSON(cfg)

		if viper.GetBool("json") {
			cfg.Output = reporter.JSON.String()
		}
		r, err := reporter.New(cfg.Output)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create reporter")
		}
		r.UseColor(reporter.ColorEnabled(os.Stdout, cfg.NoColor))
		r.ShowPassed = cfg.ShowPassed
		r.IsVerbose = viper.GetBool("verbose")

		report, registry, err := runLint(cmd.Context(), config.AppFs, cfg, args, os.Stdin)
		if err != nil {
			log.Fatal().Err(err).Msg("could not lint files")
		}
		r.Registry = registry

		if err := r.Print(report, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("could not print report")
		}

		if report.Failed() {
			os.Exit(1)
		}
	},
}

// runLint discovers the files below paths and lints them with the built-in
// and custom rules of the config
func runLint(ctx context.Context, fs afero.Fs, cfg *config.Config, paths []string, stdin io.Reader) (*lint.Report, *lint.Registry, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := cfg.LintOptions()
	if err != nil {
		return nil, nil, err
	}

	var kind lint.Kind
	if cfg.Kind != "" {
		if kind, err = lint.ParseKind(cfg.Kind); err != nil {
			return nil, nil, err
		}
	}

	registry, err := loadRegistry(fs, cfg, opts)
	if err != nil {
		return nil, nil, err
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	targets, err := discovery.Discover(fs, paths, discovery.Options{
		Kind:    kind,
		Exclude: cfg.Exclude,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(targets) == 0 {
		log.Warn().Str("paths", strings.Join(paths, ", ")).Msg("no Dockerfiles or Compose files found")
	}

	job := scan.NewJob(targets...)
	job.Options = opts
	job.Settings = cfg.Settings()

	scanner := scan.NewLocalScanner(
		scan.WithRegistry(registry),
		scan.WithFS(fs),
		scan.WithConcurrency(cfg.Concurrency),
		scan.WithStdin(stdin),
	)
	report, err := scanner.Run(dockerlint.SetFeatures(ctx, opts.Features), job)
	if err != nil {
		return nil, nil, err
	}
	return report, registry, nil
}

// loadRegistry registers the built-in rules and, when the feature is active,
// the custom rules of the config and of all rule bundles
func loadRegistry(fs afero.Fs, cfg *config.Config, opts lint.Options) (*lint.Registry, error) {
	registry, err := rules.NewRegistry()
	if err != nil {
		return nil, err
	}

	if !opts.Features.IsActive(dockerlint.CustomRules) {
		if len(cfg.Rules) > 0 || len(cfg.RuleBundles) > 0 {
			log.Warn().Msg("custom rules are configured but the CustomRules feature is disabled")
		}
		return registry, nil
	}

	bundle := &custom.Bundle{Rules: cfg.Rules}
	if len(cfg.RuleBundles) > 0 {
		loaded, err := custom.LoadBundles(fs, cfg.RuleBundles...)
		if err != nil {
			return nil, err
		}
		if err := bundle.Add(loaded); err != nil {
			return nil, err
		}
	}
	if len(bundle.Rules) == 0 {
		return registry, nil
	}

	compiled, err := custom.CompileAll(bundle.Rules)
	if err != nil {
		return nil, errors.Wrap(err, "could not compile custom rules")
	}
	for _, rule := range custom.AsLintRules(compiled) {
		if err := registry.Register(rule); err != nil {
			return nil, errors.Wrap(err, "could not register custom rule")
		}
	}
	log.Debug().Int("rules", len(compiled)).Msg("loaded custom rules")
	return registry, nil
}
