// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"os"

	"github.com/spf13/cobra/doc"
)

// GenerateMarkdown writes the markdown reference of all commands into dir
func GenerateMarkdown(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rootCmd.DisableAutoGenTag = true
	return doc.GenMarkdownTree(rootCmd, dir)
}
