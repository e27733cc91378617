// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package custom

import (
	"path/filepath"
	"sort"

	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

// The functions below turn the parsed models into plain maps and lists,
// which is what expressions see. Keys are snake_case.

func fileVars(t *lint.Target) map[string]any {
	return map[string]any{
		"path":        t.Path,
		"name":        filepath.Base(t.Path),
		"kind":        string(t.Kind),
		"context_dir": t.ContextDir,
	}
}

func dockerfileVars(df *dockerfile.Dockerfile) map[string]any {
	directives := map[string]any{}
	for k, v := range df.Directives {
		directives[k] = v
	}

	args := []any{}
	for _, ins := range df.MetaArgs {
		for _, kv := range ins.KeyValues {
			args = append(args, map[string]any{
				"name":  kv.Key,
				"value": kv.Value,
				"line":  int64(ins.Range.Start),
			})
		}
	}

	stages := make([]any, len(df.Stages))
	for i, s := range df.Stages {
		stages[i] = stageVars(df, s)
	}

	return map[string]any{
		"path":         df.Path,
		"directives":   directives,
		"args":         args,
		"stages":       stages,
		"instructions": instructionList(df.Instructions),
		"lines":        int64(df.Lines),
	}
}

func stageVars(df *dockerfile.Dockerfile, s *dockerfile.Stage) map[string]any {
	ref := df.BaseImageRef(s)
	user := ""
	if ins := s.Last("USER"); ins != nil && len(ins.Args) > 0 {
		user = ins.Args[0]
	}
	from := ""
	if ref.Stage != nil {
		from = ref.Stage.Name
	}

	return map[string]any{
		"index":        int64(s.Index),
		"name":         s.Name,
		"image":        s.BaseImage,
		"registry":     ref.Registry,
		"repository":   ref.Repository,
		"tag":          ref.Tag,
		"digest":       ref.Digest,
		"platform":     s.Platform,
		"from_stage":   from,
		"user":         user,
		"line":         int64(s.From.Range.Start),
		"instructions": instructionList(s.Instructions),
	}
}

func instructionList(list []*dockerfile.Instruction) []any {
	res := make([]any, len(list))
	for i, ins := range list {
		flags := map[string]any{}
		for k, v := range ins.Flags {
			flags[k] = v
		}
		heredocs := []any{}
		for _, doc := range ins.Heredocs {
			heredocs = append(heredocs, doc.Content)
		}
		res[i] = map[string]any{
			"command":  ins.Command,
			"args":     stringList(ins.Args),
			"flags":    flags,
			"json":     ins.JSONForm,
			"heredocs": heredocs,
			"original": ins.Original,
			"line":     int64(ins.Range.Start),
		}
	}
	return res
}

func composeVars(p *compose.Project) map[string]any {
	services := map[string]any{}
	for _, name := range p.ServiceNames() {
		services[name] = serviceVars(p.Services[name])
	}
	return map[string]any{
		"path":     p.Path,
		"version":  p.Version,
		"services": services,
		"volumes":  resourceNames(p.Volumes),
		"networks": resourceNames(p.Networks),
		"secrets":  resourceNames(p.Secrets),
		"configs":  resourceNames(p.Configs),
	}
}

func serviceVars(s *compose.Service) map[string]any {
	env := map[string]any{}
	for _, e := range s.Environment {
		env[e.Name] = e.Value
	}

	volumes := make([]any, len(s.Volumes))
	for i, v := range s.Volumes {
		volumes[i] = map[string]any{
			"type":      v.Type,
			"source":    v.Source,
			"target":    v.Target,
			"read_only": v.ReadOnly,
			"named":     v.Named(),
		}
	}

	deps := map[string]any{}
	for _, d := range s.DependsOn {
		deps[d.Service] = d.Condition
	}

	// parse errors are reported by the limits rule, expressions see 0
	mem, _ := s.MemoryLimit()

	res := map[string]any{
		"name":           s.Name,
		"line":           int64(s.Line),
		"image":          s.Image,
		"container_name": s.ContainerName,
		"restart":        s.RestartPolicy(),
		"privileged":     s.Privileged,
		"read_only":      s.ReadOnly,
		"user":           s.User,
		"environment":    env,
		"env_file":       stringList(s.EnvFile),
		"ports":          stringList(s.Ports),
		"published":      publishedPorts(s.Ports),
		"volumes":        volumes,
		"depends_on":     deps,
		"replicas":       int64(s.Replicas()),
		"memory_limit":   mem,
		"cpus":           s.CPULimit(),
		"networks":       stringList(s.Networks),
		"secrets":        stringList(s.Secrets),
		"cap_add":        stringList(s.CapAdd),
		"security_opt":   stringList(s.SecurityOpt),
		"network_mode":   s.NetworkMode,
	}

	// optional blocks are only present when declared, test them with has()
	if s.Build != nil {
		res["build"] = map[string]any{
			"context":    s.Build.Context,
			"dockerfile": s.Build.Dockerfile,
			"target":     s.Build.Target,
		}
	}
	if s.Healthcheck != nil {
		res["healthcheck"] = map[string]any{
			"test":     stringList(s.Healthcheck.Test),
			"interval": s.Healthcheck.Interval,
			"timeout":  s.Healthcheck.Timeout,
			"retries":  int64(s.Healthcheck.Retries),
			"disabled": s.Healthcheck.Disabled(),
		}
	}
	if s.Logging != nil {
		opts := map[string]any{}
		for k, v := range s.Logging.Options {
			opts[k] = v
		}
		res["logging"] = map[string]any{
			"driver":  s.Logging.Driver,
			"options": opts,
		}
	}
	return res
}

func resourceNames(m map[string]*compose.Resource) []any {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return stringList(names)
}

func stringList(list []string) []any {
	res := make([]any, len(list))
	for i := range list {
		res[i] = list[i]
	}
	return res
}

// publishedPorts lists the host side of published port mappings. Mappings
// that do not parse are left out.
func publishedPorts(ports []string) []any {
	res := []any{}
	for _, spec := range ports {
		hostIP, port, err := compose.ParsePort(spec)
		if err != nil || port == 0 {
			continue
		}
		res = append(res, map[string]any{
			"host_ip": hostIP,
			"port":    int64(port),
		})
	}
	return res
}
