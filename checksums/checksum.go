// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package checksums

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/segmentio/fasthash/fnv1a"
)

// Fast is a non-cryptographic fnv1a checksum. It is used to fingerprint
// findings, which must stay stable between runs.
type Fast uint64

// New is the default starting checksum
const New = Fast(fnv1a.Init64)

// Add a string to the checksum. A separator is mixed in so that
// ("ab", "c") and ("a", "bc") do not collide.
func (f Fast) Add(s string) Fast {
	return Fast(fnv1a.AddUint64(fnv1a.AddString64(uint64(f), s), 0x1f))
}

// String returns the checksum as 16 hex characters
func (f Fast) String() string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(f))
	return hex.EncodeToString(b)
}

// Fingerprint returns the checksum of a list of input strings
func Fingerprint(parts ...string) string {
	checksum := New
	for i := range parts {
		checksum = checksum.Add(parts[i])
	}
	return checksum.String()
}
