// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/dockerlint/cli/config"
	"go.mondoo.com/dockerlint/cli/reporter"
	"go.mondoo.com/dockerlint/lint"
)

var ErrUnknownRule = errors.New("unknown rule")

func init() {
	rulesCmd.Flags().String("kind", "", "Only list rules for dockerfile or compose")
	rulesCmd.PersistentFlags().StringSliceP("rules-bundle", "f", nil, "Path to a custom rules bundle file or directory")

	rulesCmd.AddCommand(rulesExplainCmd)
	rootCmd.AddCommand(rulesCmd)
}

var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"rule"},
	Short:   "List all rules with their effective settings",
	Args:    cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("rules-bundle", cmd.Flags().Lookup("rules-bundle"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		kindFilter, _ := cmd.Flags().GetString("kind")
		if err := listRules(os.Stdout, mustLoadConfig(), kindFilter); err != nil {
			log.Fatal().Err(err).Msg("could not list rules")
		}
	},
}

var rulesExplainCmd = &cobra.Command{
	Use:   "explain ID",
	Short: "Show the full description of a rule",
	Args:  cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("rules-bundle", cmd.Flags().Lookup("rules-bundle"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := explainRule(os.Stdout, mustLoadConfig(), args[0]); err != nil {
			log.Fatal().Err(err).Msg("could not explain rule")
		}
	},
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Read()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	config.DisplayUsedConfig()
	return cfg
}

func listRules(out io.Writer, cfg *config.Config, kindFilter string) error {
	opts, err := cfg.LintOptions()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(config.AppFs, cfg, opts)
	if err != nil {
		return err
	}

	all := registry.All()
	if kindFilter != "" {
		kind, err := lint.ParseKind(kindFilter)
		if err != nil {
			return err
		}
		all = registry.ForKind(kind)
	}
	reporter.PrintRules(out, all, opts)
	return nil
}

func explainRule(out io.Writer, cfg *config.Config, id string) error {
	opts, err := cfg.LintOptions()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(config.AppFs, cfg, opts)
	if err != nil {
		return err
	}

	rule, ok := registry.Get(id)
	if !ok {
		if suggestions := registry.Suggest(id); len(suggestions) > 0 {
			return errors.Wrapf(ErrUnknownRule, "%s, did you mean %s?", id, strings.Join(suggestions, ", "))
		}
		return errors.Wrapf(ErrUnknownRule, "%s", id)
	}

	r, err := reporter.New(reporter.CLI.String())
	if err != nil {
		return err
	}
	r.UseColor(reporter.ColorEnabled(out, cfg.NoColor))
	reporter.ExplainRule(out, r.Printer, rule, opts)

	// custom rules show their expression
	if expr, ok := rule.(interface{ Expr() string }); ok {
		io.WriteString(out, "\nExpression:\n  "+expr.Expr()+"\n")
	}
	return nil
}
