// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package printer

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"go.mondoo.com/dockerlint/cli/theme/colors"
	"go.mondoo.com/dockerlint/lint"
)

func TestPlainPrinter(t *testing.T) {
	p := PlainNoColorPrinter
	assert.Equal(t, "Report\n======\n\n", p.H1("Report"))
	assert.Equal(t, "Files\n-----\n\n", p.H2("Files"))
	assert.Equal(t, "error: broken", p.Error("broken"))
	assert.Equal(t, "warning: careful", p.Warn("careful"))
	assert.Equal(t, "HIGH    ", p.Severity(lint.SeverityHigh))
	assert.Equal(t, "MEDIUM  ", p.Severity(lint.Severity(50)))
	assert.Equal(t, "✕", p.Status(lint.StatusFail))
	assert.Equal(t, "✓", p.Status(lint.StatusPass))
}

func TestColoredPrinter(t *testing.T) {
	theme := colors.NewTheme(termenv.TrueColor)
	p := NewPrinter(theme)
	out := p.Severity(lint.SeverityCritical)
	assert.Contains(t, out, "CRITICAL")
	assert.NotEqual(t, "CRITICAL", out)

	assert.Equal(t, theme.Critical, SeverityColor(theme, lint.SeverityCritical))
	assert.Equal(t, theme.Info, SeverityColor(theme, lint.SeverityInfo))
	assert.Equal(t, theme.Unknown, SeverityColor(theme, lint.SeverityNone))
}
