// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerfile

import (
	"strconv"
	"strings"
)

// Range is the 1-based, inclusive line span of an instruction
type Range struct {
	Start int
	End   int
}

func (r Range) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// KeyValue is a single pair of ENV, LABEL or ARG
type KeyValue struct {
	Key   string
	Value string
	// HasValue is false for `ARG name` without a default
	HasValue bool
}

// Heredoc is an inline document attached to RUN, COPY or ADD
type Heredoc struct {
	Name    string
	Content string
	Chomp   bool
	// Expand is false for quoted names like <<"EOF"
	Expand bool
}

type Instruction struct {
	// Command is the upper-cased keyword, e.g. RUN
	Command string
	// Original is the instruction text with continuation lines joined
	Original string
	// Rest is everything after the keyword and flags
	Rest     string
	Args     []string
	Flags    map[string]string
	JSONForm bool
	Heredocs []Heredoc
	// KeyValues is set for ENV, LABEL and ARG
	KeyValues []KeyValue
	// Inner holds the triggered instruction of ONBUILD
	Inner    *Instruction
	Range    Range
	Comments []string
	Ignore   []string
}

// Flag returns the value of a --flag and whether it was set
func (i *Instruction) Flag(name string) (string, bool) {
	v, ok := i.Flags[name]
	return v, ok
}

// IsIgnored reports whether an inline comment suppresses the rule for this
// instruction
func (i *Instruction) IsIgnored(rule string) bool {
	for _, id := range i.Ignore {
		if strings.EqualFold(id, rule) {
			return true
		}
	}
	return false
}

// ShellCommands returns the simple commands executed by RUN, including
// commands inside heredocs. Non-RUN instructions return nil.
func (i *Instruction) ShellCommands() [][]string {
	if i.Command != "RUN" {
		return nil
	}

	if i.JSONForm {
		if len(i.Args) >= 3 && isShell(i.Args[0]) && i.Args[1] == "-c" {
			return SplitShell(i.Args[2])
		}
		if len(i.Args) == 0 {
			return nil
		}
		return [][]string{i.Args}
	}

	res := SplitShell(i.Rest)
	for _, doc := range i.Heredocs {
		res = append(res, SplitShell(doc.Content)...)
	}
	return res
}

func isShell(bin string) bool {
	switch bin {
	case "sh", "/bin/sh", "bash", "/bin/bash", "/usr/bin/bash", "ash", "/bin/ash", "cmd", "powershell":
		return true
	default:
		return false
	}
}

// Stage is one FROM block
type Stage struct {
	Index        int
	Name         string
	BaseImage    string
	Platform     string
	From         *Instruction
	Instructions []*Instruction
}

// Last returns the last instruction of the given command in the stage
func (s *Stage) Last(cmd string) *Instruction {
	for i := len(s.Instructions) - 1; i >= 0; i-- {
		if s.Instructions[i].Command == cmd {
			return s.Instructions[i]
		}
	}
	return nil
}

// All returns all instructions of the given command in the stage
func (s *Stage) All(cmd string) []*Instruction {
	var res []*Instruction
	for _, ins := range s.Instructions {
		if ins.Command == cmd {
			res = append(res, ins)
		}
	}
	return res
}

// DisplayName is the alias or the stage index
func (s *Stage) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "#" + strconv.Itoa(s.Index)
}

type Dockerfile struct {
	Path string
	// Directives are parser directives such as syntax and escape
	Directives map[string]string
	Escape     rune
	// MetaArgs are ARG instructions before the first FROM
	MetaArgs []*Instruction
	Stages   []*Stage
	// Instructions in document order, including those outside of stages
	Instructions  []*Instruction
	GlobalIgnores []string
	// Warnings are non-fatal parser complaints, e.g. empty continuation lines
	Warnings []string
	Lines    int
}

// FinalStage returns the stage that produces the image, nil if there is none
func (d *Dockerfile) FinalStage() *Stage {
	if len(d.Stages) == 0 {
		return nil
	}
	return d.Stages[len(d.Stages)-1]
}

// StageByName looks up a stage by alias or numeric index
func (d *Dockerfile) StageByName(name string) *Stage {
	name = strings.ToLower(name)
	for _, s := range d.Stages {
		if s.Name != "" && s.Name == name {
			return s
		}
		if strconv.Itoa(s.Index) == name {
			return s
		}
	}
	return nil
}

// IsIgnored reports whether the rule is suppressed for the given line
func (d *Dockerfile) IsIgnored(rule string, line int) bool {
	for _, id := range d.GlobalIgnores {
		if strings.EqualFold(id, rule) {
			return true
		}
	}
	if line <= 0 {
		return false
	}
	for _, ins := range d.Instructions {
		if ins.Range.Contains(line) {
			return ins.IsIgnored(rule)
		}
	}
	return false
}

// MetaArgDefaults returns the defaults of all ARGs declared before the
// first FROM. A default may reference an earlier meta ARG.
func (d *Dockerfile) MetaArgDefaults() map[string]string {
	res := map[string]string{}
	lex := d.lexer()
	for _, arg := range d.MetaArgs {
		for _, kv := range arg.KeyValues {
			if !kv.HasValue {
				continue
			}
			v, err := lex.ProcessWord(kv.Value, newArgEnv(res))
			if err != nil {
				v = kv.Value
			}
			res[kv.Key] = v
		}
	}
	return res
}
