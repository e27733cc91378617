// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dockerfile

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// SplitShell splits a shell line into simple commands. Commands are
// separated by &&, ||, ;, |, |&, & and newlines outside of quotes.
// Redirections like 2>&1 and &>/dev/null stay part of their command. Each command is
// tokenized with shell quoting rules; a command with broken quoting falls
// back to whitespace splitting.
func SplitShell(line string) [][]string {
	var res [][]string
	for _, segment := range splitOperators(line) {
		words, err := shellquote.Split(segment)
		if err != nil {
			words = strings.Fields(segment)
		}
		if len(words) == 0 {
			continue
		}
		res = append(res, words)
	}
	return res
}

func splitOperators(line string) []string {
	var res []string
	var cur strings.Builder
	var quote byte
	escaped := false

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			res = append(res, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
			cur.WriteByte(c)
		case c == '\\' && quote != '\'':
			escaped = true
			cur.WriteByte(c)
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == ';' || c == '\n':
			flush()
		case c == '&':
			switch {
			case i > 0 && (line[i-1] == '>' || line[i-1] == '<'):
				// 2>&1, >&2, <&0
				cur.WriteByte(c)
			case i+1 < len(line) && line[i+1] == '>':
				// &> and &>> redirect both streams
				cur.WriteByte(c)
			default:
				// && splits, a single & backgrounds the command
				flush()
				if i+1 < len(line) && line[i+1] == '&' {
					i++
				}
			}
		case c == '|':
			if i > 0 && line[i-1] == '>' {
				// >| overrides noclobber
				cur.WriteByte(c)
				continue
			}
			// |, || and |& all split
			flush()
			if i+1 < len(line) && (line[i+1] == '|' || line[i+1] == '&') {
				i++
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return res
}

// Command is a helper for rules that look at package manager invocations
type Command []string

// Is reports whether the command runs the given binary, ignoring any path
// and a leading sudo or env assignment
func (c Command) Is(bin string) bool {
	return c.Binary() == bin
}

// Binary returns the executed program name
func (c Command) Binary() string {
	for _, w := range c {
		if strings.Contains(w, "=") && !strings.HasPrefix(w, "-") {
			// VAR=value prefix
			continue
		}
		if w == "sudo" || w == "env" || w == "exec" {
			continue
		}
		if idx := strings.LastIndex(w, "/"); idx != -1 {
			return w[idx+1:]
		}
		return w
	}
	return ""
}

// Sub returns the first non-flag argument after the binary, e.g. install
// for `apt-get -y install curl`
func (c Command) Sub() string {
	seen := false
	bin := c.Binary()
	for _, w := range c {
		if !seen {
			if w == bin || strings.HasSuffix(w, "/"+bin) {
				seen = true
			}
			continue
		}
		if strings.HasPrefix(w, "-") {
			continue
		}
		return w
	}
	return ""
}

// HasFlag reports whether any of the given flags is present. Short flags
// also match when combined, e.g. -qy contains -y.
func (c Command) HasFlag(flags ...string) bool {
	for _, w := range c {
		for _, f := range flags {
			if w == f || strings.HasPrefix(w, f+"=") {
				return true
			}
			if len(f) == 2 && f[0] == '-' && f[1] != '-' &&
				len(w) > 2 && w[0] == '-' && w[1] != '-' && strings.IndexByte(w[1:], f[1]) != -1 {
				return true
			}
		}
	}
	return false
}

// Contains reports whether any word equals s
func (c Command) Contains(s string) bool {
	for _, w := range c {
		if w == s {
			return true
		}
	}
	return false
}
