// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

//
// Feature flags switch on optional lint behavior.
//
// Features can only be activated, never deactivated. They are introduced at a
// given version and either graduate into default behavior or get removed.
//
// Example usage:
//
// features := Features{ byte(ExperimentalRules) }
//
// features.IsActive( ExperimentalRules )   // true
//

package dockerlint

//go:generate go run golang.org/x/tools/cmd/stringer -type=Feature

import (
	"bytes"
	"context"
	"encoding/base64"
)

const (
	// For all features, use this format:
	// desc:   A description of this feature and what it does...
	// start:  vX.x  (the version when it ix introduced)
	// end:    vZ.0  (the version when this flag will be removed)

	// ExperimentalRules feature flag
	// desc:   Runs rules that are still being tuned and may produce noisy
	//         findings, e.g. floating tag detection.
	// start:  v0.3
	// end:    unknown
	ExperimentalRules Feature = iota + 1

	// CustomRules feature flag
	// desc:   Evaluates CEL rules from rule bundles and the config file.
	// start:  v0.2, default at v0.4
	// end:    v1.0
	CustomRules
)

// FeaturesValue is a map from feature name to feature flag
var FeaturesValue = map[string]Feature{
	ExperimentalRules.String(): ExperimentalRules,
	CustomRules.String():       CustomRules,
}

// DefaultFeatures are a set of default flags that are active
var DefaultFeatures = Features{
	byte(CustomRules),
}

// Features is a collection of activated features
type Features []byte

// Feature is a simple feature flag
type Feature byte

// IsActive returns true if the given feature has been requested in this list
func (f Features) IsActive(feature Feature) bool {
	return bytes.IndexByte(f, byte(feature)) != -1
}

// Encode a set of features to base64
func (f Features) Encode() string {
	return base64.StdEncoding.EncodeToString(f)
}

// DecodeFeatures that were previously encoded
func DecodeFeatures(s string) (Features, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	return Features(data), err
}

// ParseFeatures turns feature names into a deduplicated set. The default
// features are always included. Unknown names are returned separately.
func ParseFeatures(names []string) (Features, []string) {
	bitSet := make([]bool, 256)
	flags := Features{}
	var unknown []string

	for _, f := range DefaultFeatures {
		if !bitSet[f] {
			bitSet[f] = true
			flags = append(flags, f)
		}
	}

	for _, name := range names {
		flag, ok := FeaturesValue[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !bitSet[byte(flag)] {
			bitSet[byte(flag)] = true
			flags = append(flags, byte(flag))
		}
	}

	return flags, unknown
}

type featureContextID struct{}

// SetFeatures to a given context
func SetFeatures(ctx context.Context, fts Features) context.Context {
	return context.WithValue(ctx, featureContextID{}, fts)
}

// GetFeatures from a given context
func GetFeatures(ctx context.Context) Features {
	f, ok := ctx.Value(featureContextID{}).(Features)
	if !ok {
		// nothing stored, assume empty features
		return Features{}
	}
	return f
}
