// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package compose

import (
	"sort"
	"strings"

	units "github.com/docker/go-units"
)

// Project is a parsed compose file
type Project struct {
	Path string
	// Version is the obsolete top-level version key
	Version     string
	VersionLine int
	Services    map[string]*Service
	Volumes     map[string]*Resource
	Networks    map[string]*Resource
	Secrets     map[string]*Resource
	Configs     map[string]*Resource
	// Ignores holds inline suppressions keyed by the line they apply to
	Ignores       map[int][]string
	GlobalIgnores []string
}

// IsIgnored reports whether the rule is suppressed for the given line. A
// suppression on the line of a service covers the whole service.
func (p *Project) IsIgnored(rule string, line int) bool {
	if containsFold(p.GlobalIgnores, rule) {
		return true
	}
	if line <= 0 {
		return false
	}
	if containsFold(p.Ignores[line], rule) {
		return true
	}
	for _, svc := range p.Services {
		if line >= svc.Line && line <= svc.EndLine && containsFold(p.Ignores[svc.Line], rule) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for i := range list {
		if strings.EqualFold(list[i], s) {
			return true
		}
	}
	return false
}

// ServiceNames returns all service names in sorted order
func (p *Project) ServiceNames() []string {
	res := make([]string, 0, len(p.Services))
	for name := range p.Services {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Resource is a top-level volume, network, secret or config declaration
type Resource struct {
	Name     string
	External bool
	Driver   string
	Line     int
}

type EnvVar struct {
	Name     string
	Value    string
	HasValue bool
	Line     int
}

type VolumeMount struct {
	// Type is volume, bind, tmpfs or npipe
	Type     string
	Source   string
	Target   string
	ReadOnly bool
	Line     int
}

// Named reports whether the mount uses a named volume
func (v VolumeMount) Named() bool {
	return v.Type == "volume" && v.Source != ""
}

type Healthcheck struct {
	Test        []string
	Interval    string
	Timeout     string
	StartPeriod string
	Retries     int
	Disable     bool
	Line        int
}

// Disabled reports whether the healthcheck is switched off, either with
// `disable: true` or a NONE test
func (h *Healthcheck) Disabled() bool {
	return h.Disable || (len(h.Test) > 0 && strings.EqualFold(h.Test[0], "NONE"))
}

type Dependency struct {
	Service   string
	Condition string
	Line      int
}

type Build struct {
	Context    string
	Dockerfile string
	Target     string
}

type Logging struct {
	Driver  string            `yaml:"driver"`
	Options map[string]string `yaml:"options"`
}

type Deploy struct {
	Replicas      *int           `yaml:"replicas"`
	Resources     Resources      `yaml:"resources"`
	RestartPolicy *RestartPolicy `yaml:"restart_policy"`
}

type Resources struct {
	Limits       *ResourceLimits `yaml:"limits"`
	Reservations *ResourceLimits `yaml:"reservations"`
}

type ResourceLimits struct {
	CPUs   string `yaml:"cpus"`
	Memory string `yaml:"memory"`
	Pids   int    `yaml:"pids"`
}

type RestartPolicy struct {
	Condition   string `yaml:"condition"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type Service struct {
	Name          string
	Line          int
	EndLine       int
	Image         string
	Build         *Build
	ContainerName string
	Restart       string
	Privileged    bool
	ReadOnly      bool
	User          string
	Environment   []EnvVar
	EnvFile       []string
	Ports         []string
	Volumes       []VolumeMount
	Healthcheck   *Healthcheck
	DependsOn     []Dependency
	Deploy        *Deploy
	MemLimit      string
	CPUs          string
	Logging       *Logging
	Networks      []string
	Secrets       []string
	CapAdd        []string
	SecurityOpt   []string
	NetworkMode   string
	Scale         int
	// Lines maps the keys of the service definition to their line
	Lines map[string]int
}

// LineOf returns the line of a key in the service definition and falls back
// to the line of the service itself
func (s *Service) LineOf(key string) int {
	if l, ok := s.Lines[key]; ok {
		return l
	}
	return s.Line
}

// Replicas returns the number of containers the service will be started with
func (s *Service) Replicas() int {
	if s.Deploy != nil && s.Deploy.Replicas != nil {
		return *s.Deploy.Replicas
	}
	if s.Scale > 0 {
		return s.Scale
	}
	return 1
}

// MemoryLimit returns the configured memory limit in bytes, 0 if unset
func (s *Service) MemoryLimit() (int64, error) {
	raw := s.MemLimit
	if s.Deploy != nil && s.Deploy.Resources.Limits != nil && s.Deploy.Resources.Limits.Memory != "" {
		raw = s.Deploy.Resources.Limits.Memory
	}
	if raw == "" {
		return 0, nil
	}
	return units.RAMInBytes(raw)
}

// CPULimit returns the configured cpu limit, empty if unset
func (s *Service) CPULimit() string {
	if s.Deploy != nil && s.Deploy.Resources.Limits != nil && s.Deploy.Resources.Limits.CPUs != "" {
		return s.Deploy.Resources.Limits.CPUs
	}
	return s.CPUs
}

// RestartPolicy returns the effective restart policy, empty if unset
func (s *Service) RestartPolicy() string {
	if s.Restart != "" {
		return s.Restart
	}
	if s.Deploy != nil && s.Deploy.RestartPolicy != nil {
		cond := s.Deploy.RestartPolicy.Condition
		if cond == "" {
			// swarm defaults to any
			cond = "any"
		}
		return cond
	}
	return ""
}
