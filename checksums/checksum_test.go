// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package checksums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("DF005", "Dockerfile", "last USER is root")
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("DF005", "Dockerfile", "last USER is root"))
	assert.NotEqual(t, a, Fingerprint("DF005", "Dockerfile", "last USER is root "))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}
