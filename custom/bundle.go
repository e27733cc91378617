// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package custom

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var ErrDuplicateRule = errors.New("duplicate custom rule")

// Bundle is a file of custom rule definitions
type Bundle struct {
	Rules []Definition `json:"rules"`
}

// BundleFromYAML parses a bundle. Unknown fields are an error so typos in
// keys do not silently disable a rule.
func BundleFromYAML(data []byte) (*Bundle, error) {
	var res Bundle
	if err := yaml.UnmarshalStrict(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Add merges other into the bundle, rule ids must stay unique
func (b *Bundle) Add(other *Bundle) error {
	seen := make(map[string]struct{}, len(b.Rules))
	for i := range b.Rules {
		seen[strings.ToUpper(b.Rules[i].ID)] = struct{}{}
	}

	var errs *multierror.Error
	for i := range other.Rules {
		id := strings.ToUpper(other.Rules[i].ID)
		if _, ok := seen[id]; ok {
			errs = multierror.Append(errs, errors.Wrapf(ErrDuplicateRule, "rule %s", other.Rules[i].ID))
			continue
		}
		seen[id] = struct{}{}
		b.Rules = append(b.Rules, other.Rules[i])
	}
	return errs.ErrorOrNil()
}

// LoadBundles reads bundle files and directories of .yml and .yaml files
// and merges them into one bundle.
func LoadBundles(fs afero.Fs, paths ...string) (*Bundle, error) {
	files, err := walkBundleFiles(fs, paths)
	if err != nil {
		return nil, err
	}

	res := &Bundle{}
	var errs *multierror.Error
	for _, path := range files {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "could not load bundle file %s", path))
			continue
		}
		bundle, err := BundleFromYAML(data)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "could not parse bundle file %s", path))
			continue
		}
		if err := res.Add(bundle); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "bundle file %s", path))
		}
		log.Debug().Str("path", path).Int("rules", len(bundle.Rules)).Msg("loaded rule bundle")
	}
	return res, errs.ErrorOrNil()
}

func isBundleFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

// walkBundleFiles resolves directories recursively, files in directories
// are sorted by path
func walkBundleFiles(fs afero.Fs, paths []string) ([]string, error) {
	res := []string{}
	for _, path := range paths {
		fi, err := fs.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load bundle file %s", path)
		}
		if !fi.IsDir() {
			res = append(res, path)
			continue
		}

		var found []string
		err = afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && isBundleFile(info.Name()) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "could not walk bundle directory %s", path)
		}
		sort.Strings(found)
		res = append(res, found...)
	}
	return res, nil
}

// Load reads bundles and compiles all rules in them
func Load(fs afero.Fs, paths ...string) ([]*Rule, error) {
	bundle, err := LoadBundles(fs, paths...)
	if err != nil {
		return nil, err
	}
	return CompileAll(bundle.Rules)
}
