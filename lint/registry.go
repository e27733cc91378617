// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lint

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

var ErrDuplicateRule = errors.New("duplicate rule id")

// Registry holds all known rules, ordered by ID
type Registry struct {
	rules map[string]Rule
	ids   []string
}

func NewRegistry(rules ...Rule) (*Registry, error) {
	res := &Registry{rules: make(map[string]Rule, len(rules))}
	for i := range rules {
		if err := res.Register(rules[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Registry) Register(rule Rule) error {
	id := strings.ToUpper(rule.ID())
	if id == "" {
		return errors.New("rule is missing an id")
	}
	if _, ok := r.rules[id]; ok {
		return errors.Wrap(ErrDuplicateRule, id)
	}
	r.rules[id] = rule

	idx := sort.SearchStrings(r.ids, id)
	r.ids = append(r.ids, "")
	copy(r.ids[idx+1:], r.ids[idx:])
	r.ids[idx] = id
	return nil
}

// Get looks up a rule, ids are case-insensitive
func (r *Registry) Get(id string) (Rule, bool) {
	rule, ok := r.rules[strings.ToUpper(id)]
	return rule, ok
}

func (r *Registry) Len() int {
	return len(r.ids)
}

func (r *Registry) IDs() []string {
	res := make([]string, len(r.ids))
	copy(res, r.ids)
	return res
}

func (r *Registry) All() []Rule {
	res := make([]Rule, len(r.ids))
	for i, id := range r.ids {
		res[i] = r.rules[id]
	}
	return res
}

func (r *Registry) ForKind(kind Kind) []Rule {
	var res []Rule
	for _, id := range r.ids {
		rule := r.rules[id]
		if rule.Meta().Kind == kind {
			res = append(res, rule)
		}
	}
	return res
}

// Suggest returns the ids closest to an unknown id, best match first
func (r *Registry) Suggest(id string) []string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return nil
	}

	ranks := fuzzy.RankFindFold(id, r.ids)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		res := make([]string, len(ranks))
		for i := range ranks {
			res[i] = ranks[i].Target
		}
		return res
	}

	type candidate struct {
		id   string
		dist int
	}
	var candidates []candidate
	for _, cur := range r.ids {
		if d := fuzzy.LevenshteinDistance(id, cur); d <= 2 {
			candidates = append(candidates, candidate{cur, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	res := make([]string, len(candidates))
	for i := range candidates {
		res[i] = candidates[i].id
	}
	return res
}
