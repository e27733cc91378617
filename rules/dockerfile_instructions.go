// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package rules

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

// DF004: Final stage defines a HEALTHCHECK.
const (
	DF004ID      = "DF004"
	DF004Message = "Final stage should define a HEALTHCHECK"
	DF004DocURL  = "https://docs.docker.com/reference/dockerfile/#healthcheck"
)

func healthcheckRule() *rule {
	return newDockerfileRule(DF004ID, lint.RuleMeta{
		Title:       DF004Message,
		Description: "A HEALTHCHECK lets the runtime detect a container that is running but no longer serving. Orchestrators use it to restart or route around unhealthy containers.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF004DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		final := df.FinalStage()
		if final == nil {
			return nil, lint.ErrSkip
		}

		hc := final.Last("HEALTHCHECK")
		if hc == nil {
			// the base stage may define one that is inherited
			for s := df.BaseImageRef(final).Stage; s != nil && hc == nil; s = df.BaseImageRef(s).Stage {
				hc = s.Last("HEALTHCHECK")
			}
		}
		if hc == nil {
			return []lint.Finding{lint.NewFinding(final.From.Range.Start, "final stage has no HEALTHCHECK")}, nil
		}
		if strings.EqualFold(strings.TrimSpace(hc.Rest), "NONE") {
			return []lint.Finding{lint.NewFinding(hc.Range.Start, "HEALTHCHECK NONE disables the health check")}, nil
		}
		return nil, nil
	})
}

// DF005: Final stage runs as a non-root user.
const (
	DF005ID      = "DF005"
	DF005Message = "Final stage should run as a non-root USER"
	DF005DocURL  = dockerfileDocs + "#user"
)

func nonRootUserRule() *rule {
	return newDockerfileRule(DF005ID, lint.RuleMeta{
		Title:       DF005Message,
		Description: "Containers run as root unless a USER is set. Create an unprivileged user and switch to it in the final stage.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF005DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		final := df.FinalStage()
		if final == nil {
			return nil, lint.ErrSkip
		}

		var user *dockerfile.Instruction
		stage := final
		for i := 0; stage != nil && i <= len(df.Stages); i++ {
			if user = stage.Last("USER"); user != nil {
				break
			}
			stage = df.BaseImageRef(stage).Stage
		}

		if user == nil {
			ref := rootImage(df, final)
			if strings.Contains(ref.Tag, "nonroot") {
				return nil, nil
			}
			return []lint.Finding{lint.NewFinding(final.From.Range.Start, "final stage has no USER and runs as root")}, nil
		}

		name := ""
		if len(user.Args) > 0 {
			name, _, _ = strings.Cut(user.Args[0], ":")
		}
		if name == "root" || name == "0" {
			return []lint.Finding{lint.NewFindingf(user.Range.Start, "final stage runs as %s", user.Args[0])}, nil
		}
		return nil, nil
	})
}

var archiveSuffixes = []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".txz", ".tar.zst"}

func isRemoteSource(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "git@") ||
		strings.HasPrefix(lower, "git://")
}

func isArchive(src string) bool {
	lower := strings.ToLower(src)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// copySources returns the source arguments of COPY or ADD
func copySources(ins *dockerfile.Instruction) []string {
	if len(ins.Heredocs) > 0 || len(ins.Args) < 2 {
		return nil
	}
	res := make([]string, 0, len(ins.Args)-1)
	for _, arg := range ins.Args[:len(ins.Args)-1] {
		if strings.HasPrefix(arg, "<<") {
			continue
		}
		res = append(res, strings.Trim(arg, `"'`))
	}
	return res
}

// DF006: Use COPY instead of ADD for local files.
const (
	DF006ID      = "DF006"
	DF006Message = "Use COPY instead of ADD for local files"
	DF006DocURL  = dockerfileDocs + "#add-or-copy"
)

func copyOverAddRule() *rule {
	return newDockerfileRule(DF006ID, lint.RuleMeta{
		Title:       DF006Message,
		Description: "ADD has implicit behavior such as extracting archives and fetching URLs. For plain files COPY is explicit and predictable.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF006DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range df.Instructions {
			if ins.Command != "ADD" {
				continue
			}
			for _, src := range copySources(ins) {
				if isRemoteSource(src) || isArchive(src) {
					continue
				}
				res = append(res, lint.NewFindingf(ins.Range.Start, "ADD used for local file %s, use COPY", src))
				break
			}
		}
		return res, nil
	})
}

// DF009: CMD and ENTRYPOINT use the exec form.
const (
	DF009ID      = "DF009"
	DF009Message = "Use the JSON exec form for CMD and ENTRYPOINT"
	DF009DocURL  = dockerfileDocs + "#entrypoint"
)

func execFormRule() *rule {
	return newDockerfileRule(DF009ID, lint.RuleMeta{
		Title:       DF009Message,
		Description: "The shell form wraps the command in /bin/sh -c, so the process does not run as PID 1 and does not receive signals such as SIGTERM.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF009DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range df.Instructions {
			if (ins.Command == "CMD" || ins.Command == "ENTRYPOINT") && !ins.JSONForm {
				res = append(res, lint.NewFindingf(ins.Range.Start, "%s uses the shell form, use %s [\"executable\", \"arg\"]", ins.Command, ins.Command))
			}
		}
		return res, nil
	})
}

// DF010: No secrets in ENV or ARG.
const (
	DF010ID      = "DF010"
	DF010Message = "Do not store secrets in ENV or ARG"
	DF010DocURL  = "https://docs.docker.com/build/building/secrets/"
)

func dockerfileSecretsRule() *rule {
	return newDockerfileRule(DF010ID, lint.RuleMeta{
		Title:       DF010Message,
		Description: "ENV values are stored in the image config and ARG values in the build history. Pass secrets with RUN --mount=type=secret instead.",
		Severity:    lint.SeverityCritical,
		DocURL:      DF010DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range df.Instructions {
			if ins.Command != "ENV" && ins.Command != "ARG" {
				continue
			}
			for _, kv := range ins.KeyValues {
				if !looksLikeSecret(kv.Key) {
					continue
				}
				if ins.Command == "ENV" && (kv.Value == "" || isVariable(kv.Value)) {
					continue
				}
				res = append(res, lint.NewFindingf(ins.Range.Start, "%s %s looks like a secret, use a build secret", ins.Command, kv.Key))
			}
		}
		return res, nil
	})
}

// DF012: A .dockerignore exists in the build context.
const (
	DF012ID      = "DF012"
	DF012Message = "Add a .dockerignore file to the build context"
	DF012DocURL  = "https://docs.docker.com/build/concepts/context/#dockerignore-files"
)

func dockerignoreRule() *rule {
	return newDockerfileRule(DF012ID, lint.RuleMeta{
		Title:       DF012Message,
		Description: "Without a .dockerignore the whole context, including .git and local secrets, is sent to the builder and may end up in the image via COPY . .",
		Severity:    lint.SeverityMedium,
		DocURL:      DF012DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		if t.FS == nil || t.ContextDir == "" {
			return nil, lint.ErrSkip
		}

		candidates := []string{
			filepath.Join(t.ContextDir, ".dockerignore"),
			// BuildKit also reads <Dockerfile>.dockerignore next to the Dockerfile
			t.Path + ".dockerignore",
		}
		for _, c := range candidates {
			ok, err := afero.Exists(t.FS, c)
			if err != nil {
				return nil, err
			}
			if ok {
				return nil, nil
			}
		}
		return []lint.Finding{lint.NewFindingf(0, "no .dockerignore found in %s", t.ContextDir)}, nil
	})
}

var manifestFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"requirements.txt":  true,
	"pyproject.toml":    true,
	"poetry.lock":       true,
	"Pipfile":           true,
	"Pipfile.lock":      true,
	"go.mod":            true,
	"go.sum":            true,
	"Gemfile":           true,
	"Gemfile.lock":      true,
	"composer.json":     true,
	"composer.lock":     true,
	"pom.xml":           true,
	"build.gradle":      true,
	"Cargo.toml":        true,
	"Cargo.lock":        true,
	"mix.exs":           true,
}

func isWholeContext(src string) bool {
	return src == "." || src == "./" || src == "*" || src == "./*"
}

func isDependencyInstall(cmd dockerfile.Command) bool {
	switch cmd.Binary() {
	case "npm", "pnpm":
		sub := cmd.Sub()
		return sub == "install" || sub == "ci" || sub == "i"
	case "yarn":
		sub := cmd.Sub()
		return sub == "" || sub == "install"
	case "pip", "pip3":
		return cmd.Sub() == "install" && cmd.HasFlag("-r", "--requirement")
	case "poetry", "bundle", "composer", "pipenv":
		return cmd.Sub() == "install"
	case "go":
		return cmd.Contains("mod") && cmd.Contains("download")
	case "cargo":
		return cmd.Sub() == "fetch"
	case "mvn":
		return cmd.Contains("dependency:go-offline")
	}
	return false
}

// DF014: Copy dependency manifests before the full source.
const (
	DF014ID      = "DF014"
	DF014Message = "Copy dependency manifests before the rest of the source"
	DF014DocURL  = "https://docs.docker.com/build/cache/optimize/#order-your-layers"
)

func cacheOrderRule() *rule {
	return newDockerfileRule(DF014ID, lint.RuleMeta{
		Title:       DF014Message,
		Description: "Installing dependencies after COPY . . invalidates the dependency layer on every source change. Copy the manifest files first, install, then copy the rest.",
		Severity:    lint.SeverityLow,
		DocURL:      DF014DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			manifestCopied := false
			var wholeCopy *dockerfile.Instruction

		instructions:
			for _, ins := range stage.Instructions {
				switch ins.Command {
				case "COPY", "ADD":
					if _, ok := ins.Flag("from"); ok {
						continue
					}
					for _, src := range copySources(ins) {
						if manifestFiles[path.Base(src)] {
							manifestCopied = true
						}
						if isWholeContext(src) && wholeCopy == nil && !manifestCopied {
							wholeCopy = ins
						}
					}
				case "RUN":
					if wholeCopy == nil {
						continue
					}
					for _, cmd := range ins.ShellCommands() {
						if isDependencyInstall(cmd) {
							res = append(res, lint.NewFindingf(wholeCopy.Range.Start,
								"dependencies are installed on line %d after copying the whole context", ins.Range.Start))
							break instructions
						}
					}
				}
			}
		}
		return res, nil
	})
}

// DF016: A Dockerfile begins with FROM or ARG.
const (
	DF016ID      = "DF016"
	DF016Message = "Dockerfile must begin with FROM or ARG"
	DF016DocURL  = "https://docs.docker.com/reference/dockerfile/#from"
)

func firstInstructionRule() *rule {
	return newDockerfileRule(DF016ID, lint.RuleMeta{
		Title:       DF016Message,
		Description: "Only ARG may precede the first FROM. Any other instruction before it is rejected by the builder.",
		Severity:    lint.SeverityCritical,
		DocURL:      DF016DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		if len(df.Stages) == 0 {
			return []lint.Finding{lint.NewFinding(1, "Dockerfile has no FROM instruction")}, nil
		}
		for _, ins := range df.Instructions {
			switch ins.Command {
			case "FROM":
				return nil, nil
			case "ARG":
				continue
			default:
				return []lint.Finding{lint.NewFindingf(ins.Range.Start, "%s before the first FROM", ins.Command)}, nil
			}
		}
		return nil, nil
	})
}

// DF017: Only one CMD and ENTRYPOINT per stage.
const (
	DF017ID      = "DF017"
	DF017Message = "Use a single CMD and ENTRYPOINT per stage"
	DF017DocURL  = "https://docs.docker.com/reference/dockerfile/#cmd"
)

func singleCmdRule() *rule {
	return newDockerfileRule(DF017ID, lint.RuleMeta{
		Title:       DF017Message,
		Description: "Only the last CMD or ENTRYPOINT of a stage takes effect. Earlier ones are dead code and usually a mistake.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF017DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			for _, cmd := range []string{"CMD", "ENTRYPOINT"} {
				all := stage.All(cmd)
				for _, ins := range all[:max(len(all)-1, 0)] {
					res = append(res, lint.NewFindingf(ins.Range.Start,
						"multiple %s instructions in stage %s, only the last one takes effect", cmd, stage.DisplayName()))
				}
			}
		}
		return res, nil
	})
}

var defaultLabels = []string{
	"org.opencontainers.image.source",
	"org.opencontainers.image.version",
}

type labelOptions struct {
	Labels []string `mapstructure:"labels"`
}

// DF018: OCI metadata labels.
//
// The required labels can be changed with the rule option `labels`.
const (
	DF018ID      = "DF018"
	DF018Message = "Add OCI metadata labels"
	DF018DocURL  = "https://github.com/opencontainers/image-spec/blob/main/annotations.md"
)

func ociLabelsRule() *rule {
	return newDockerfileRule(DF018ID, lint.RuleMeta{
		Title:       DF018Message,
		Description: "Labels such as org.opencontainers.image.source and org.opencontainers.image.version let registries and scanners trace an image back to its source. MAINTAINER is deprecated in favor of org.opencontainers.image.authors.",
		Severity:    lint.SeverityInfo,
		DocURL:      DF018DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		final := df.FinalStage()
		if final == nil {
			return nil, lint.ErrSkip
		}

		opts := labelOptions{Labels: defaultLabels}
		if err := t.Settings.DecodeOptions(DF018ID, &opts); err != nil {
			return nil, err
		}

		var res []lint.Finding
		labels := map[string]bool{}
		for _, ins := range df.Instructions {
			if ins.Command == "MAINTAINER" {
				res = append(res, lint.NewFinding(ins.Range.Start, "MAINTAINER is deprecated, use LABEL org.opencontainers.image.authors"))
			}
		}

		for s := final; s != nil; s = df.BaseImageRef(s).Stage {
			for _, ins := range s.All("LABEL") {
				for _, kv := range ins.KeyValues {
					labels[kv.Key] = true
				}
			}
		}

		var missing []string
		for _, l := range opts.Labels {
			if !labels[l] {
				missing = append(missing, l)
			}
		}
		if len(missing) > 0 {
			res = append(res, lint.NewFindingf(final.From.Range.Start, "final stage is missing labels: %s", strings.Join(missing, ", ")))
		}
		return res, nil
	})
}

// DF019: EXPOSE valid ports.
const (
	DF019ID      = "DF019"
	DF019Message = "EXPOSE ports must be in the range 1-65535"
	DF019DocURL  = "https://docs.docker.com/reference/dockerfile/#expose"
)

func exposePortsRule() *rule {
	return newDockerfileRule(DF019ID, lint.RuleMeta{
		Title:       DF019Message,
		Description: "EXPOSE takes ports between 1 and 65535 with an optional /tcp, /udp or /sctp protocol.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF019DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range df.Instructions {
			if ins.Command != "EXPOSE" {
				continue
			}
			for _, arg := range ins.Args {
				if msg := checkExposedPort(arg); msg != "" {
					res = append(res, lint.NewFinding(ins.Range.Start, msg))
				}
			}
		}
		return res, nil
	})
}

func checkExposedPort(arg string) string {
	if isVariable(arg) {
		return ""
	}
	port, proto, hasProto := strings.Cut(arg, "/")
	if hasProto {
		switch strings.ToLower(proto) {
		case "tcp", "udp", "sctp":
		default:
			return "EXPOSE " + arg + " uses unknown protocol " + proto
		}
	}

	ports := []string{port}
	if from, to, isRange := strings.Cut(port, "-"); isRange {
		ports = []string{from, to}
	}
	for _, p := range ports {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "EXPOSE " + arg + " is not a valid port"
		}
		if n < 1 || n > 65535 {
			return "EXPOSE " + arg + " is out of range 1-65535"
		}
	}
	return ""
}

// buildkitFeature returns the name of the first BuildKit-only feature used by
// the instruction
func buildkitFeature(ins *dockerfile.Instruction) string {
	if len(ins.Heredocs) > 0 {
		return "heredocs"
	}
	switch ins.Command {
	case "RUN":
		for _, f := range []string{"mount", "network", "security"} {
			if _, ok := ins.Flag(f); ok {
				return "RUN --" + f
			}
		}
	case "COPY", "ADD":
		for _, f := range []string{"link", "chmod", "parents", "exclude", "checksum", "keep-git-dir"} {
			if _, ok := ins.Flag(f); ok {
				return ins.Command + " --" + f
			}
		}
	}
	return ""
}

// DF023: BuildKit features need a syntax directive.
const (
	DF023ID      = "DF023"
	DF023Message = "Declare a # syntax= directive when using BuildKit features"
	DF023DocURL  = "https://docs.docker.com/reference/dockerfile/#syntax"
)

func buildkitSyntaxRule() *rule {
	return newDockerfileRule(DF023ID, lint.RuleMeta{
		Title:       DF023Message,
		Description: "Heredocs, RUN --mount and COPY --link require a recent Dockerfile frontend. Pin it with # syntax=docker/dockerfile:1 so older builders fail early and clearly.",
		Severity:    lint.SeverityLow,
		DocURL:      DF023DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		if _, ok := df.Directives["syntax"]; ok {
			return nil, nil
		}
		for _, ins := range df.Instructions {
			if feature := buildkitFeature(ins); feature != "" {
				return []lint.Finding{lint.NewFindingf(ins.Range.Start, "%s is a BuildKit feature but no # syntax= directive is set", feature)}, nil
			}
		}
		return nil, nil
	})
}

// DF024: Stage names are unique and COPY --from refers to a known stage.
const (
	DF024ID      = "DF024"
	DF024Message = "Stage names must be unique and COPY --from must refer to an earlier stage"
	DF024DocURL  = "https://docs.docker.com/build/building/multi-stage/#name-your-build-stages"
)

func stageReferenceRule() *rule {
	return newDockerfileRule(DF024ID, lint.RuleMeta{
		Title:       DF024Message,
		Description: "Duplicate stage names are ambiguous. COPY --from with an unknown name is treated as an image reference and pulled from a registry, which is rarely intended.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF024DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		seen := map[string]int{}

		for _, stage := range df.Stages {
			if stage.Name != "" {
				if first, ok := seen[stage.Name]; ok {
					res = append(res, lint.NewFindingf(stage.From.Range.Start, "stage name %s is already used on line %d", stage.Name, first))
				} else {
					seen[stage.Name] = stage.From.Range.Start
				}
			}

			for _, ins := range stage.All("COPY") {
				from, ok := ins.Flag("from")
				if !ok || isVariable(from) {
					continue
				}
				if msg := checkCopyFrom(df, stage, from); msg != "" {
					res = append(res, lint.NewFinding(ins.Range.Start, msg))
				}
			}
		}
		return res, nil
	})
}

func checkCopyFrom(df *dockerfile.Dockerfile, stage *dockerfile.Stage, from string) string {
	if idx, err := strconv.Atoi(from); err == nil {
		if idx < 0 {
			return "COPY --from=" + from + " is not a valid stage index"
		}
		if idx >= stage.Index {
			return "COPY --from=" + from + " must refer to an earlier stage"
		}
		return ""
	}

	name := strings.ToLower(from)
	if name == stage.Name {
		return "COPY --from=" + from + " refers to its own stage"
	}
	for _, s := range df.Stages {
		if s.Name != name {
			continue
		}
		if s.Index > stage.Index {
			return "COPY --from=" + from + " refers to a later stage"
		}
		return ""
	}

	// image references contain a registry, a path or a tag
	if strings.ContainsAny(from, "/:.@") {
		return ""
	}
	return "COPY --from=" + from + " refers to an unknown stage"
}
