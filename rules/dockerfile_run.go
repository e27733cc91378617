// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package rules

import (
	"regexp"
	"strings"

	"go.mondoo.com/dockerlint/dockerfile"
	"go.mondoo.com/dockerlint/lint"
)

// runText is the full shell text of a RUN including heredocs
func runText(ins *dockerfile.Instruction) string {
	text := ins.Rest
	if ins.JSONForm {
		text = strings.Join(ins.Args, " ")
	}
	for _, doc := range ins.Heredocs {
		text += "\n" + doc.Content
	}
	return text
}

// hasCacheMount reports whether RUN mounts a cache at one of the targets
func hasCacheMount(ins *dockerfile.Instruction, targets ...string) bool {
	mount, ok := ins.Flag("mount")
	if !ok || !strings.Contains(mount, "type=cache") {
		return false
	}
	for _, t := range targets {
		if strings.Contains(mount, "target="+t) || strings.Contains(mount, "dst="+t) || strings.Contains(mount, "destination="+t) {
			return true
		}
	}
	return false
}

// removes reports whether any rm command in the list deletes the path
func removes(cmds [][]string, path string) bool {
	for _, c := range cmds {
		cmd := dockerfile.Command(c)
		if !cmd.Is("rm") {
			continue
		}
		for _, w := range cmd {
			if strings.HasPrefix(w, path) {
				return true
			}
		}
	}
	return false
}

func runInstructions(df *dockerfile.Dockerfile) []*dockerfile.Instruction {
	var res []*dockerfile.Instruction
	for _, ins := range df.Instructions {
		if ins.Command == "RUN" {
			res = append(res, ins)
		}
	}
	return res
}

// DF007: apt-get best practices.
const (
	DF007ID      = "DF007"
	DF007Message = "apt-get install should use -y, --no-install-recommends and clean up package lists"
	DF007DocURL  = dockerfileDocs + "#apt-get"
)

func aptGetRule() *rule {
	return newDockerfileRule(DF007ID, lint.RuleMeta{
		Title:       DF007Message,
		Description: "Non-interactive installs need -y. --no-install-recommends avoids pulling optional packages, and removing /var/lib/apt/lists in the same RUN keeps the package index out of the layer.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF007DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range runInstructions(df) {
			cmds := ins.ShellCommands()
			installs := false
			for _, c := range cmds {
				cmd := dockerfile.Command(c)
				if !(cmd.Is("apt-get") || cmd.Is("apt")) || cmd.Sub() != "install" {
					continue
				}
				installs = true
				if !cmd.HasFlag("-y", "--yes", "--assume-yes", "-qq") {
					res = append(res, lint.NewFinding(ins.Range.Start, "apt-get install without -y"))
				}
				if !cmd.HasFlag("--no-install-recommends") {
					res = append(res, lint.NewFinding(ins.Range.Start, "apt-get install without --no-install-recommends"))
				}
			}
			if installs && !removes(cmds, "/var/lib/apt/lists") && !hasCacheMount(ins, "/var/lib/apt", "/var/cache/apt") {
				res = append(res, lint.NewFinding(ins.Range.Start, "apt-get install without rm -rf /var/lib/apt/lists/* in the same RUN"))
			}
		}
		return res, nil
	})
}

// DF008: Combine consecutive RUN instructions.
const (
	DF008ID      = "DF008"
	DF008Message = "Combine consecutive RUN instructions"
	DF008DocURL  = dockerfileDocs + "#run"
)

func consecutiveRunRule() *rule {
	return newDockerfileRule(DF008ID, lint.RuleMeta{
		Title:       DF008Message,
		Description: "Every RUN creates a layer. Consecutive RUN instructions can usually be chained with && to reduce the number of layers and keep cleanup in the same layer.",
		Severity:    lint.SeverityLow,
		DocURL:      DF008DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			var group []*dockerfile.Instruction
			flush := func() {
				if len(group) > 1 {
					f := lint.NewFindingf(group[0].Range.Start, "%d consecutive RUN instructions can be combined", len(group))
					f.Location.EndLine = group[len(group)-1].Range.End
					res = append(res, f)
				}
				group = nil
			}

			for _, ins := range stage.Instructions {
				// mounts differ per RUN and cannot be merged blindly
				_, hasMount := ins.Flag("mount")
				if ins.Command == "RUN" && !hasMount && len(ins.Heredocs) == 0 {
					group = append(group, ins)
					continue
				}
				flush()
			}
			flush()
		}
		return res, nil
	})
}

// DF011: WORKDIR is absolute and RUN does not cd.
const (
	DF011ID      = "DF011"
	DF011Message = "Use absolute WORKDIR paths instead of cd in RUN"
	DF011DocURL  = dockerfileDocs + "#workdir"
)

var windowsPathRegex = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

func workdirRule() *rule {
	return newDockerfileRule(DF011ID, lint.RuleMeta{
		Title:       DF011Message,
		Description: "Relative WORKDIR paths depend on the previous WORKDIR, and cd in RUN only lasts for that instruction. Use absolute WORKDIR paths for clarity.",
		Severity:    lint.SeverityLow,
		DocURL:      DF011DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range df.Instructions {
			switch ins.Command {
			case "WORKDIR":
				if len(ins.Args) == 0 {
					continue
				}
				dir := strings.Trim(ins.Args[0], `"'`)
				if strings.HasPrefix(dir, "/") || isVariable(dir) || windowsPathRegex.MatchString(dir) {
					continue
				}
				res = append(res, lint.NewFindingf(ins.Range.Start, "WORKDIR %s is not an absolute path", dir))
			case "RUN":
				for _, c := range ins.ShellCommands() {
					if dockerfile.Command(c).Is("cd") {
						res = append(res, lint.NewFinding(ins.Range.Start, "RUN uses cd, use WORKDIR instead"))
						break
					}
				}
			}
		}
		return res, nil
	})
}

// DF015: apk add uses --no-cache.
const (
	DF015ID      = "DF015"
	DF015Message = "Use apk add --no-cache"
	DF015DocURL  = "https://wiki.alpinelinux.org/wiki/Alpine_Package_Keeper#Add_a_Package"
)

func apkNoCacheRule() *rule {
	return newDockerfileRule(DF015ID, lint.RuleMeta{
		Title:       DF015Message,
		Description: "apk add keeps the package index in /var/cache/apk. --no-cache fetches the index on the fly and keeps it out of the layer.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF015DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range runInstructions(df) {
			cmds := ins.ShellCommands()
			if removes(cmds, "/var/cache/apk") || hasCacheMount(ins, "/var/cache/apk", "/etc/apk/cache") {
				continue
			}
			for _, c := range cmds {
				cmd := dockerfile.Command(c)
				if cmd.Is("apk") && cmd.Sub() == "add" && !cmd.HasFlag("--no-cache") {
					res = append(res, lint.NewFinding(ins.Range.Start, "apk add without --no-cache"))
				}
			}
		}
		return res, nil
	})
}

// isPipInstall matches pip install and python -m pip install
func isPipInstall(cmd dockerfile.Command) bool {
	bin := cmd.Binary()
	if bin == "pip" || bin == "pip3" {
		return cmd.Sub() == "install"
	}
	if !strings.HasPrefix(bin, "python") {
		return false
	}
	for i := 0; i+2 < len(cmd); i++ {
		if cmd[i] == "-m" && cmd[i+1] == "pip" && cmd[i+2] == "install" {
			return true
		}
	}
	return false
}

// stageEnv reports whether an ENV in the stage sets the variable
func stageEnv(stage *dockerfile.Stage, name string) bool {
	for _, ins := range stage.All("ENV") {
		for _, kv := range ins.KeyValues {
			if kv.Key == name {
				return true
			}
		}
	}
	return false
}

// DF020: pip install uses --no-cache-dir.
const (
	DF020ID      = "DF020"
	DF020Message = "Use pip install --no-cache-dir"
	DF020DocURL  = "https://pip.pypa.io/en/stable/topics/caching/#avoiding-caching"
)

func pipNoCacheRule() *rule {
	return newDockerfileRule(DF020ID, lint.RuleMeta{
		Title:       DF020Message,
		Description: "pip keeps downloaded wheels in ~/.cache/pip. --no-cache-dir or PIP_NO_CACHE_DIR keeps them out of the image.",
		Severity:    lint.SeverityLow,
		DocURL:      DF020DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, stage := range df.Stages {
			if stageEnv(stage, "PIP_NO_CACHE_DIR") {
				continue
			}
			for _, ins := range stage.All("RUN") {
				if hasCacheMount(ins, "/root/.cache/pip", "/root/.cache") {
					continue
				}
				for _, c := range ins.ShellCommands() {
					cmd := dockerfile.Command(c)
					if isPipInstall(cmd) && !cmd.HasFlag("--no-cache-dir") {
						res = append(res, lint.NewFinding(ins.Range.Start, "pip install without --no-cache-dir"))
						break
					}
				}
			}
		}
		return res, nil
	})
}

var pipeToShellRegex = regexp.MustCompile(`\b(curl|wget)\b[^|;&\n]*\|\s*(sudo\s+)?(ba|z|da|k)?sh\b`)

// DF021: Do not pipe downloads into a shell.
const (
	DF021ID      = "DF021"
	DF021Message = "Do not pipe curl or wget output into a shell"
	DF021DocURL  = dockerfileDocs + "#using-pipes"
)

func curlPipeShellRule() *rule {
	return newDockerfileRule(DF021ID, lint.RuleMeta{
		Title:       DF021Message,
		Description: "curl | sh runs unverified remote code during the build. Download the script, verify its checksum and then run it.",
		Severity:    lint.SeverityHigh,
		DocURL:      DF021DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range runInstructions(df) {
			if m := pipeToShellRegex.FindStringSubmatch(runText(ins)); m != nil {
				res = append(res, lint.NewFindingf(ins.Range.Start, "%s output is piped into a shell", m[1]))
			}
		}
		return res, nil
	})
}

// DF022: Do not use sudo.
const (
	DF022ID      = "DF022"
	DF022Message = "Do not use sudo"
	DF022DocURL  = dockerfileDocs + "#user"
)

func sudoRule() *rule {
	return newDockerfileRule(DF022ID, lint.RuleMeta{
		Title:       DF022Message,
		Description: "sudo has unpredictable TTY and signal behavior in containers. Switch users with USER, or use gosu when root privileges are needed at runtime.",
		Severity:    lint.SeverityMedium,
		DocURL:      DF022DocURL,
	}, func(t *lint.Target, df *dockerfile.Dockerfile) ([]lint.Finding, error) {
		var res []lint.Finding
		for _, ins := range runInstructions(df) {
			for _, c := range ins.ShellCommands() {
				if firstWord(c) == "sudo" {
					res = append(res, lint.NewFinding(ins.Range.Start, "RUN uses sudo"))
					break
				}
			}
		}
		return res, nil
	})
}

// firstWord skips leading VAR=value assignments
func firstWord(cmd []string) string {
	for _, w := range cmd {
		if strings.Contains(w, "=") && !strings.HasPrefix(w, "-") {
			continue
		}
		return w
	}
	return ""
}
