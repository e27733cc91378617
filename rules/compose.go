// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package rules

import (
	"strings"

	"go.mondoo.com/dockerlint/compose"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

// forEachService runs fn for all services in name order
func forEachService(p *compose.Project, fn func(svc *compose.Service) []lint.Finding) []lint.Finding {
	var res []lint.Finding
	for _, name := range p.ServiceNames() {
		res = append(res, fn(p.Services[name])...)
	}
	return res
}

// DC001: Obsolete top-level version.
const (
	DC001ID      = "DC001"
	DC001Message = "Remove the obsolete top-level version key"
	DC001DocURL  = "https://docs.docker.com/reference/compose-file/version-and-name/"
)

func obsoleteVersionRule() *rule {
	return newComposeRule(DC001ID, lint.RuleMeta{
		Title:       DC001Message,
		Description: "Compose no longer uses the version key to select a file format and warns when it is present.",
		Severity:    lint.SeverityInfo,
		DocURL:      DC001DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		if p.Version == "" {
			return nil, nil
		}
		return []lint.Finding{lint.NewFindingf(p.VersionLine, "version %q is obsolete", p.Version)}, nil
	})
}

// DC002: Service images are pinned.
const (
	DC002ID      = "DC002"
	DC002Message = "Service images must have an explicit, non-latest tag or digest"
	DC002DocURL  = composeDocs + "#image"
)

func composeImageTagRule() *rule {
	return newComposeRule(DC002ID, lint.RuleMeta{
		Title:       DC002Message,
		Description: "Images without a tag resolve to latest. Pin a version so every deployment runs the same image.",
		Severity:    lint.SeverityHigh,
		DocURL:      DC002DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if svc.Image == "" {
				return nil
			}
			ref := dockerfile.ParseImageRef(svc.Image)
			line := svc.LineOf("image")
			switch {
			case ref.Err != nil:
				return []lint.Finding{lint.NewFindingf(line, "service %s has an invalid image reference %q", svc.Name, svc.Image)}
			case !ref.External() || ref.IsPinned():
				return nil
			case !ref.ExplicitTag:
				return []lint.Finding{lint.NewFindingf(line, "service %s image %s has no tag and defaults to latest", svc.Name, svc.Image)}
			case ref.Tag == "latest":
				return []lint.Finding{lint.NewFindingf(line, "service %s image %s uses the latest tag", svc.Name, svc.Image)}
			}
			return nil
		}), nil
	})
}

// DC003: Services define a healthcheck.
const (
	DC003ID      = "DC003"
	DC003Message = "Services should define a healthcheck"
	DC003DocURL  = composeDocs + "#healthcheck"
)

func composeHealthcheckRule() *rule {
	return newComposeRule(DC003ID, lint.RuleMeta{
		Title:       DC003Message,
		Description: "Healthchecks let Compose report and wait on service health, e.g. with depends_on condition service_healthy.",
		Severity:    lint.SeverityMedium,
		DocURL:      DC003DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if svc.Healthcheck == nil {
				if svc.Build != nil {
					// the Dockerfile may define a HEALTHCHECK
					return nil
				}
				return []lint.Finding{lint.NewFindingf(svc.Line, "service %s has no healthcheck", svc.Name)}
			}
			if svc.Healthcheck.Disabled() {
				return []lint.Finding{lint.NewFindingf(svc.Healthcheck.Line, "service %s disables its healthcheck", svc.Name)}
			}
			return nil
		}), nil
	})
}

// DC004: Services have a restart policy.
const (
	DC004ID      = "DC004"
	DC004Message = "Services should define a restart policy"
	DC004DocURL  = composeDocs + "#restart"
)

func restartPolicyRule() *rule {
	return newComposeRule(DC004ID, lint.RuleMeta{
		Title:       DC004Message,
		Description: "Without a restart policy a crashed container stays down. Use unless-stopped, always or on-failure.",
		Severity:    lint.SeverityMedium,
		DocURL:      DC004DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			switch policy := svc.RestartPolicy(); policy {
			case "":
				return []lint.Finding{lint.NewFindingf(svc.Line, "service %s has no restart policy", svc.Name)}
			case "no", "none":
				return []lint.Finding{lint.NewFindingf(svc.LineOf("restart"), "service %s is never restarted", svc.Name)}
			}
			return nil
		}), nil
	})
}

// DC005: Services have resource limits.
const (
	DC005ID      = "DC005"
	DC005Message = "Services should set memory and CPU limits"
	DC005DocURL  = "https://docs.docker.com/reference/compose-file/deploy/#resources"
)

func resourceLimitsRule() *rule {
	return newComposeRule(DC005ID, lint.RuleMeta{
		Title:       DC005Message,
		Description: "A service without limits can starve the host. Set deploy.resources.limits or mem_limit and cpus.",
		Severity:    lint.SeverityMedium,
		DocURL:      DC005DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			mem, err := svc.MemoryLimit()
			switch {
			case err != nil:
				res = append(res, lint.NewFindingf(svc.LineOf("mem_limit"), "service %s has an invalid memory limit: %s", svc.Name, err))
			case mem == 0:
				res = append(res, lint.NewFindingf(svc.Line, "service %s has no memory limit", svc.Name))
			}
			if svc.CPULimit() == "" {
				res = append(res, lint.NewFindingf(svc.Line, "service %s has no cpu limit", svc.Name))
			}
			return res
		}), nil
	})
}

// DC006: Logging rotates.
const (
	DC006ID      = "DC006"
	DC006Message = "Configure log rotation with max-size"
	DC006DocURL  = "https://docs.docker.com/engine/logging/drivers/json-file/#options"
)

func logRotationRule() *rule {
	return newComposeRule(DC006ID, lint.RuleMeta{
		Title:       DC006Message,
		Description: "The default json-file driver never rotates logs. Set logging.options.max-size, or use the local driver which rotates by default.",
		Severity:    lint.SeverityLow,
		DocURL:      DC006DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if svc.Logging == nil {
				return []lint.Finding{lint.NewFindingf(svc.Line, "service %s uses the default logging without rotation", svc.Name)}
			}
			driver := svc.Logging.Driver
			if driver != "" && driver != "json-file" {
				return nil
			}
			if _, ok := svc.Logging.Options["max-size"]; ok {
				return nil
			}
			return []lint.Finding{lint.NewFindingf(svc.LineOf("logging"), "service %s logs without max-size", svc.Name)}
		}), nil
	})
}

var dataDirs = []string{"/var/lib/", "/data", "/srv/", "/var/opt/"}

// DC007: Persistent data uses named volumes.
const (
	DC007ID      = "DC007"
	DC007Message = "Use named volumes for persistent data"
	DC007DocURL  = "https://docs.docker.com/reference/compose-file/volumes/"
)

func namedVolumesRule() *rule {
	return newComposeRule(DC007ID, lint.RuleMeta{
		Title:       DC007Message,
		Description: "Anonymous volumes are lost on docker compose down and bind mounts tie data to a host path. Declare a named volume at the top level and mount it.",
		Severity:    lint.SeverityMedium,
		DocURL:      DC007DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			for _, v := range svc.Volumes {
				switch {
				case v.Type == "volume" && v.Source == "":
					res = append(res, lint.NewFindingf(v.Line, "service %s uses an anonymous volume for %s", svc.Name, v.Target))
				case v.Type == "bind" && isDataDir(v.Target):
					res = append(res, lint.NewFindingf(v.Line, "service %s stores %s in a bind mount", svc.Name, v.Target))
				}
			}
			return res
		}), nil
	})
}

func isDataDir(target string) bool {
	for _, d := range dataDirs {
		if strings.HasPrefix(target, d) {
			return true
		}
	}
	return false
}

// DC008: No privileged containers.
const (
	DC008ID      = "DC008"
	DC008Message = "Do not run privileged containers"
	DC008DocURL  = composeDocs + "#privileged"
)

func privilegedRule() *rule {
	return newComposeRule(DC008ID, lint.RuleMeta{
		Title:       DC008Message,
		Description: "privileged: true gives the container all capabilities and access to host devices. Add only the capabilities you need with cap_add.",
		Severity:    lint.SeverityCritical,
		DocURL:      DC008DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if !svc.Privileged {
				return nil
			}
			return []lint.Finding{lint.NewFindingf(svc.LineOf("privileged"), "service %s runs privileged", svc.Name)}
		}), nil
	})
}

// DC009: No inline secrets in environment.
const (
	DC009ID      = "DC009"
	DC009Message = "Do not put secrets inline in environment"
	DC009DocURL  = "https://docs.docker.com/compose/how-tos/use-secrets/"
)

func composeSecretsRule() *rule {
	return newComposeRule(DC009ID, lint.RuleMeta{
		Title:       DC009Message,
		Description: "Inline secrets end up in version control and in docker inspect output. Use Compose secrets or variable substitution from an untracked .env file.",
		Severity:    lint.SeverityCritical,
		DocURL:      DC009DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			for _, env := range svc.Environment {
				if !env.HasValue || env.Value == "" || isVariable(env.Value) {
					continue
				}
				if looksLikeSecret(env.Name) {
					res = append(res, lint.NewFindingf(env.Line, "service %s sets %s inline", svc.Name, env.Name))
				}
			}
			return res
		}), nil
	})
}

// DC010: depends_on waits for healthy services.
const (
	DC010ID      = "DC010"
	DC010Message = "depends_on should wait for service_healthy when the dependency has a healthcheck"
	DC010DocURL  = composeDocs + "#depends_on"
)

func dependsOnHealthyRule() *rule {
	return newComposeRule(DC010ID, lint.RuleMeta{
		Title:       DC010Message,
		Description: "service_started only waits for the container to start. When the dependency defines a healthcheck, condition service_healthy waits until it is ready.",
		Severity:    lint.SeverityLow,
		DocURL:      DC010DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			for _, dep := range svc.DependsOn {
				target, ok := p.Services[dep.Service]
				if !ok || target.Healthcheck == nil || target.Healthcheck.Disabled() {
					continue
				}
				if dep.Condition == "service_started" {
					res = append(res, lint.NewFindingf(dep.Line, "service %s should wait for %s with condition service_healthy", svc.Name, dep.Service))
				}
			}
			return res
		}), nil
	})
}

// DC011: container_name prevents scaling.
const (
	DC011ID      = "DC011"
	DC011Message = "container_name prevents scaling"
	DC011DocURL  = composeDocs + "#container_name"
)

func containerNameRule() *rule {
	return newComposeRule(DC011ID, lint.RuleMeta{
		Title:       DC011Message,
		Description: "Container names are unique, so a service with container_name cannot run more than one replica.",
		Severity:    lint.SeverityHigh,
		DocURL:      DC011DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if svc.ContainerName == "" {
				return nil
			}
			line := svc.LineOf("container_name")
			if n := svc.Replicas(); n > 1 {
				return []lint.Finding{lint.NewFindingf(line, "service %s sets container_name but requests %d replicas", svc.Name, n)}
			}
			f := lint.NewFindingf(line, "service %s sets container_name and cannot be scaled", svc.Name)
			f.Severity = lint.SeverityInfo
			return []lint.Finding{f}
		}), nil
	})
}

// DC012: References must be defined.
const (
	DC012ID      = "DC012"
	DC012Message = "Referenced services, networks, volumes and secrets must be defined"
	DC012DocURL  = "https://docs.docker.com/reference/compose-file/"
)

func undefinedReferenceRule() *rule {
	return newComposeRule(DC012ID, lint.RuleMeta{
		Title:       DC012Message,
		Description: "Compose refuses to start a project that references undefined services, networks, named volumes or secrets.",
		Severity:    lint.SeverityHigh,
		DocURL:      DC012DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			for _, dep := range svc.DependsOn {
				if _, ok := p.Services[dep.Service]; !ok {
					res = append(res, lint.NewFindingf(dep.Line, "service %s depends on undefined service %s", svc.Name, dep.Service))
				}
			}
			for _, n := range svc.Networks {
				if _, ok := p.Networks[n]; !ok && n != "default" {
					res = append(res, lint.NewFindingf(svc.LineOf("networks"), "service %s uses undefined network %s", svc.Name, n))
				}
			}
			for _, v := range svc.Volumes {
				if !v.Named() || isVariable(v.Source) {
					continue
				}
				if _, ok := p.Volumes[v.Source]; !ok {
					res = append(res, lint.NewFindingf(v.Line, "service %s uses undefined volume %s", svc.Name, v.Source))
				}
			}
			for _, s := range svc.Secrets {
				if _, ok := p.Secrets[s]; !ok {
					res = append(res, lint.NewFindingf(svc.LineOf("secrets"), "service %s uses undefined secret %s", svc.Name, s))
				}
			}
			if other, ok := strings.CutPrefix(svc.NetworkMode, "service:"); ok {
				if _, exists := p.Services[other]; !exists {
					res = append(res, lint.NewFindingf(svc.LineOf("network_mode"), "service %s shares the network of undefined service %s", svc.Name, other))
				}
			}
			return res
		}), nil
	})
}

// DC013: The Docker socket is not mounted.
const (
	DC013ID      = "DC013"
	DC013Message = "Do not mount the Docker socket"
	DC013DocURL  = "https://docs.docker.com/engine/security/#docker-daemon-attack-surface"
)

func dockerSocketRule() *rule {
	return newComposeRule(DC013ID, lint.RuleMeta{
		Title:       DC013Message,
		Description: "Access to the Docker socket is equivalent to root on the host.",
		Severity:    lint.SeverityCritical,
		DocURL:      DC013DocURL,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			var res []lint.Finding
			for _, v := range svc.Volumes {
				if strings.HasSuffix(v.Source, "docker.sock") {
					res = append(res, lint.NewFindingf(v.Line, "service %s mounts the Docker socket %s", svc.Name, v.Source))
				}
			}
			return res
		}), nil
	})
}

// DC014: Read-only root filesystem.
const (
	DC014ID      = "DC014"
	DC014Message = "Run containers with a read-only root filesystem"
	DC014DocURL  = composeDocs + "#read_only"
)

func readOnlyRootfsRule() *rule {
	return newComposeRule(DC014ID, lint.RuleMeta{
		Title:       DC014Message,
		Description: "read_only: true prevents writes outside of mounted volumes and tmpfs, which limits what a compromised process can change.",
		Severity:    lint.SeverityInfo,
		DocURL:      DC014DocURL,
		Disabled:    true,
	}, func(t *lint.Target, p *compose.Project) ([]lint.Finding, error) {
		return forEachService(p, func(svc *compose.Service) []lint.Finding {
			if svc.ReadOnly {
				return nil
			}
			return []lint.Finding{lint.NewFindingf(svc.Line, "service %s has a writable root filesystem", svc.Name)}
		}), nil
	})
}
