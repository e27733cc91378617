// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerfile

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/moby/buildkit/frontend/dockerfile/command"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

var (
	ErrEmptyDockerfile = errors.New("dockerfile has no instructions")
	ErrUnknownCommand  = errors.New("unknown instruction")
)

// matches the comment text without the leading #
var ignoreRegex = regexp.MustCompile(`^dockerlint\s+(global\s+)?ignore\s*=\s*([A-Za-z0-9_,\s-]+?)\s*$`)

var knownDirectives = []string{"syntax", "escape", "check"}

// ParseError points to the line that could not be parsed
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return e.Path + ":" + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a Dockerfile into its stages and instructions
func Parse(path string, r io.Reader) (*Dockerfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read dockerfile "+path)
	}

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	// strip a BOM, some editors on windows still write one
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	lines := strings.Split(string(data), "\n")

	if !hasInstructions(lines) {
		return nil, &ParseError{Path: path, Line: 1, Err: ErrEmptyDockerfile}
	}

	ast, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Path: path, Line: errorLine(err), Err: err}
	}

	res := &Dockerfile{
		Path:       path,
		Directives: map[string]string{},
		Escape:     ast.EscapeToken,
		Lines:      len(lines),
	}
	for _, key := range knownDirectives {
		if v, _, _, ok := parser.ParseDirective(key, data); ok {
			res.Directives[key] = v
		}
	}
	for _, w := range ast.Warnings {
		res.Warnings = append(res.Warnings, w.Short)
	}
	res.GlobalIgnores = globalIgnores(lines)

	var cur *Stage
	for _, node := range ast.AST.Children {
		ins, err := newInstruction(node)
		if err != nil {
			return nil, &ParseError{Path: path, Line: node.StartLine, Err: err}
		}
		res.Instructions = append(res.Instructions, ins)

		switch {
		case ins.Command == "FROM":
			cur = newStage(len(res.Stages), ins, node)
			res.Stages = append(res.Stages, cur)
		case cur == nil && ins.Command == "ARG":
			res.MetaArgs = append(res.MetaArgs, ins)
		case cur != nil:
			cur.Instructions = append(cur.Instructions, ins)
		}
	}

	return res, nil
}

func hasInstructions(lines []string) bool {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && line[0] != '#' {
			return true
		}
	}
	return false
}

func errorLine(err error) int {
	var loc *parser.ErrorLocation
	if errors.As(err, &loc) && len(loc.Location) > 0 && loc.Location[0].Start.Line > 0 {
		return loc.Location[0].Start.Line
	}
	return 1
}

// globalIgnores collects `# dockerlint global ignore=` comments anywhere in
// the file
func globalIgnores(lines []string) []string {
	var res []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		m := ignoreRegex.FindStringSubmatch(strings.TrimSpace(line[1:]))
		if m != nil && m[1] != "" {
			res = append(res, splitIDs(m[2])...)
		}
	}
	return res
}

func newStage(idx int, from *Instruction, node *parser.Node) *Stage {
	stage := &Stage{
		Index: idx,
		From:  from,
	}
	stage.Platform, _ = from.Flag("platform")

	// FROM image [AS name]
	var args []string
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}
	if len(args) > 0 {
		stage.BaseImage = args[0]
	}
	if len(args) == 3 && strings.EqualFold(args[1], "as") {
		stage.Name = strings.ToLower(args[2])
	}
	return stage
}

// newInstruction converts one parsed node, including its heredocs and an
// ONBUILD trigger
func newInstruction(node *parser.Node) (*Instruction, error) {
	ins := &Instruction{
		Command:  strings.ToUpper(node.Value),
		Original: node.Original,
		Flags:    map[string]string{},
		Range:    Range{Start: node.StartLine, End: node.EndLine},
		Comments: node.PrevComment,
	}
	if _, ok := command.Commands[strings.ToLower(node.Value)]; !ok {
		return nil, errors.Wrapf(ErrUnknownCommand, "%q", node.Value)
	}

	for _, c := range node.PrevComment {
		if m := ignoreRegex.FindStringSubmatch(c); m != nil && m[1] == "" {
			ins.Ignore = append(ins.Ignore, splitIDs(m[2])...)
		}
	}

	for _, f := range node.Flags {
		name, value, _ := strings.Cut(strings.TrimPrefix(f, "--"), "=")
		if old, ok := ins.Flags[name]; ok && name == "mount" {
			// RUN can carry multiple mounts
			value = old + " " + value
		}
		ins.Flags[name] = value
	}

	_, rest := cutSpace(node.Original)
	ins.Rest = stripFlags(rest, len(node.Flags))

	for _, h := range node.Heredocs {
		ins.Heredocs = append(ins.Heredocs, newHeredoc(h))
	}

	if node.Attributes["json"] {
		ins.JSONForm = true
		args := node.Next
		if ins.Command == "HEALTHCHECK" && args != nil {
			// HEALTHCHECK [flags] CMD ["..."]
			args = args.Next
		}
		ins.Args = []string{}
		for n := args; n != nil; n = n.Next {
			ins.Args = append(ins.Args, n.Value)
		}
		return ins, nil
	}

	switch ins.Command {
	case "RUN", "CMD", "ENTRYPOINT", "SHELL":
		if ins.Rest != "" {
			ins.Args = []string{ins.Rest}
		}
	case "ENV", "LABEL":
		ins.KeyValues = parseKeyValues(ins.Rest, true)
		for _, kv := range ins.KeyValues {
			ins.Args = append(ins.Args, kv.Key+"="+kv.Value)
		}
	case "ARG":
		ins.KeyValues = parseKeyValues(ins.Rest, false)
		ins.Args = strings.Fields(ins.Rest)
	case "ONBUILD":
		if node.Next == nil || len(node.Next.Children) == 0 {
			return nil, errors.New("ONBUILD requires an instruction")
		}
		inner, err := newInstruction(node.Next.Children[0])
		if err != nil {
			return nil, errors.Wrap(err, "invalid ONBUILD trigger")
		}
		inner.Range = ins.Range
		ins.Inner = inner
		ins.Args = []string{ins.Rest}
	default:
		ins.Args = fieldsQuoted(ins.Rest)
	}

	return ins, nil
}

func newHeredoc(h parser.Heredoc) Heredoc {
	content := strings.TrimSuffix(h.Content, "\n")
	if h.Chomp {
		lines := strings.Split(content, "\n")
		for i := range lines {
			lines[i] = strings.TrimLeft(lines[i], "\t")
		}
		content = strings.Join(lines, "\n")
	}
	return Heredoc{
		Name:    h.Name,
		Content: content,
		Chomp:   h.Chomp,
		Expand:  h.Expand,
	}
}

// stripFlags drops the leading n --flags the parser already extracted
func stripFlags(rest string, n int) string {
	for i := 0; i < n && strings.HasPrefix(rest, "--"); i++ {
		_, rest = cutSpace(rest)
	}
	return rest
}

// parseKeyValues handles `k=v k2="v 2"` and the legacy `k v` syntax. The
// legacy form only applies to ENV and LABEL.
func parseKeyValues(s string, legacy bool) []KeyValue {
	fields := fieldsQuoted(s)
	if len(fields) == 0 {
		return nil
	}

	if legacy && !strings.Contains(fields[0], "=") {
		key, value := cutSpace(s)
		return []KeyValue{{Key: key, Value: unquote(value), HasValue: true}}
	}

	res := make([]KeyValue, 0, len(fields))
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		res = append(res, KeyValue{Key: key, Value: unquote(value), HasValue: ok})
	}
	return res
}

// fieldsQuoted splits on whitespace but keeps quoted sections together
func fieldsQuoted(s string) []string {
	var res []string
	var cur strings.Builder
	var quote rune
	inField := false

	for _, c := range s {
		switch {
		case quote != 0:
			cur.WriteRune(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			inField = true
			cur.WriteRune(c)
		case c == ' ' || c == '\t':
			if inField {
				res = append(res, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			inField = true
			cur.WriteRune(c)
		}
	}
	if inField {
		res = append(res, cur.String())
	}
	return res
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func cutSpace(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx == -1 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

func splitIDs(s string) []string {
	var res []string
	for _, id := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		res = append(res, strings.ToUpper(id))
	}
	return res
}
