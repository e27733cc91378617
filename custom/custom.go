// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package custom compiles user defined rules written as CEL expressions.
package custom

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/cel-go/cel"
	"github.com/hashicorp/go-multierror"
	"go.mondoo.com/dockerlint"
	"go.mondoo.com/dockerlint/lint"
	"go.mondoo.com/dockerlint/utils/syncx"
)

var (
	ErrInvalidRule = errors.New("invalid custom rule")
	ErrOutputType  = errors.New("expression must return a bool")
)

// Scope selects how often an expression is evaluated per file
type Scope string

const (
	// ScopeFile evaluates once per file
	ScopeFile Scope = "file"
	// ScopeStage evaluates once per Dockerfile stage with the variable stage
	ScopeStage Scope = "stage"
	// ScopeService evaluates once per compose service with the variable service
	ScopeService Scope = "service"
)

// Definition is a custom rule as written in a bundle or in the config
type Definition struct {
	ID          string `json:"id" mapstructure:"id"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Kind        string `json:"kind" mapstructure:"kind"`
	Severity    string `json:"severity,omitempty" mapstructure:"severity"`
	Scope       string `json:"scope,omitempty" mapstructure:"scope"`
	Expr        string `json:"expr" mapstructure:"expr"`
	Message     string `json:"message,omitempty" mapstructure:"message"`
	DocURL      string `json:"docs,omitempty" mapstructure:"docs"`
	Disabled    bool   `json:"disabled,omitempty" mapstructure:"disabled"`
}

var idRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func (d Definition) scope(kind lint.Kind) (Scope, error) {
	switch Scope(strings.ToLower(d.Scope)) {
	case "", ScopeFile:
		return ScopeFile, nil
	case ScopeStage:
		if kind != lint.KindDockerfile {
			return "", errors.Newf("scope stage requires kind dockerfile")
		}
		return ScopeStage, nil
	case ScopeService:
		if kind != lint.KindCompose {
			return "", errors.Newf("scope service requires kind compose")
		}
		return ScopeService, nil
	default:
		return "", errors.Newf("unknown scope %q", d.Scope)
	}
}

// Rule is a compiled custom rule
type Rule struct {
	def      Definition
	kind     lint.Kind
	severity lint.Severity
	scope    Scope
	program  cel.Program
}

// Compile validates the definition and compiles its expression. Errors
// name the rule.
func Compile(def Definition) (*Rule, error) {
	rule, err := compile(def)
	if err != nil {
		name := def.ID
		if name == "" {
			name = "<missing id>"
		}
		return nil, errors.Wrapf(err, "custom rule %s", name)
	}
	return rule, nil
}

func compile(def Definition) (*Rule, error) {
	if !idRegex.MatchString(def.ID) {
		return nil, errors.Mark(errors.Newf("id %q must start with a letter and only contain letters, digits, - and _", def.ID), ErrInvalidRule)
	}
	if strings.TrimSpace(def.Expr) == "" {
		return nil, errors.Mark(errors.New("expr is required"), ErrInvalidRule)
	}

	kind, err := lint.ParseKind(def.Kind)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidRule)
	}

	severity := lint.SeverityMedium
	if def.Severity != "" {
		if severity, err = lint.ParseSeverity(def.Severity); err != nil {
			return nil, errors.Mark(err, ErrInvalidRule)
		}
	}

	scope, err := def.scope(kind)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidRule)
	}

	program, err := loadOrCompileProgram(kind, scope, def.Expr)
	if err != nil {
		return nil, err
	}

	if def.Title == "" {
		def.Title = def.ID
	}

	return &Rule{
		def:      def,
		kind:     kind,
		severity: severity,
		scope:    scope,
		program:  program,
	}, nil
}

// CompileAll compiles all definitions. Every broken definition is reported.
func CompileAll(defs []Definition) ([]*Rule, error) {
	var errs *multierror.Error
	res := make([]*Rule, 0, len(defs))
	for i := range defs {
		rule, err := Compile(defs[i])
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		res = append(res, rule)
	}
	return res, errs.ErrorOrNil()
}

// AsLintRules converts compiled rules for registration
func AsLintRules(rules []*Rule) []lint.Rule {
	res := make([]lint.Rule, len(rules))
	for i := range rules {
		res[i] = rules[i]
	}
	return res
}

var (
	envs     syncx.Map[*cel.Env]
	programs syncx.Map[cel.Program]
)

func environment(kind lint.Kind, scope Scope) (*cel.Env, error) {
	return envs.GetOrCompute(string(kind)+"/"+string(scope), func() (*cel.Env, error) {
		object := cel.MapType(cel.StringType, cel.DynType)
		opts := []cel.EnvOption{
			cel.Variable("file", object),
			cel.Variable(string(kind), object),
		}
		switch scope {
		case ScopeStage:
			opts = append(opts, cel.Variable("stage", object))
		case ScopeService:
			opts = append(opts, cel.Variable("service", object))
		}
		return cel.NewEnv(opts...)
	})
}

// loadOrCompileProgram caches programs by expression text. The same text
// compiles differently per kind and scope, so both are part of the key.
func loadOrCompileProgram(kind lint.Kind, scope Scope, expr string) (cel.Program, error) {
	key := string(kind) + "/" + string(scope) + "\x00" + expr
	return programs.GetOrCompute(key, func() (cel.Program, error) {
		env, err := environment(kind, scope)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create expression environment")
		}

		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, errors.Wrap(issues.Err(), "failed to compile expression")
		}

		// dyn is accepted since fields of the model are dynamically typed,
		// the result is checked again on evaluation
		out := ast.OutputType()
		if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, errors.Wrapf(ErrOutputType, "got %s", out.String())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create expression program")
		}
		return program, nil
	})
}

func (r *Rule) ID() string {
	return r.def.ID
}

func (r *Rule) Meta() lint.RuleMeta {
	return lint.RuleMeta{
		Title:       r.def.Title,
		Description: r.def.Description,
		Severity:    r.severity,
		Kind:        r.kind,
		DocURL:      r.def.DocURL,
		Disabled:    r.def.Disabled,
		Feature:     dockerlint.CustomRules,
	}
}

// Expr is the source of the rule's expression
func (r *Rule) Expr() string {
	return r.def.Expr
}

func (r *Rule) message() string {
	if r.def.Message != "" {
		return r.def.Message
	}
	return r.def.Title
}

func (r *Rule) Check(ctx context.Context, t *lint.Target) ([]lint.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Kind != r.kind {
		return nil, lint.ErrSkip
	}

	vars := map[string]any{"file": fileVars(t)}
	var res []lint.Finding

	switch r.kind {
	case lint.KindDockerfile:
		if t.Dockerfile == nil {
			return nil, lint.ErrSkip
		}
		model := dockerfileVars(t.Dockerfile)
		vars["dockerfile"] = model
		if r.scope != ScopeStage {
			break
		}
		stages := model["stages"].([]any)
		for i, stage := range t.Dockerfile.Stages {
			vars["stage"] = stages[i]
			ok, err := r.eval(vars)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %s", stage.DisplayName())
			}
			if !ok {
				res = append(res, lint.NewFindingf(stage.From.Range.Start, "stage %s: %s", stage.DisplayName(), r.message()))
			}
		}
		return res, nil

	case lint.KindCompose:
		if t.Compose == nil {
			return nil, lint.ErrSkip
		}
		model := composeVars(t.Compose)
		vars["compose"] = model
		if r.scope != ScopeService {
			break
		}
		services := model["services"].(map[string]any)
		for _, name := range t.Compose.ServiceNames() {
			vars["service"] = services[name]
			ok, err := r.eval(vars)
			if err != nil {
				return nil, errors.Wrapf(err, "service %s", name)
			}
			if !ok {
				res = append(res, lint.NewFindingf(t.Compose.Services[name].Line, "service %s: %s", name, r.message()))
			}
		}
		return res, nil
	}

	ok, err := r.eval(vars)
	if err != nil {
		return nil, err
	}
	if !ok {
		res = append(res, lint.NewFinding(0, r.message()))
	}
	return res, nil
}

func (r *Rule) eval(vars map[string]any) (bool, error) {
	out, _, err := r.program.Eval(vars)
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate expression")
	}
	pass, ok := out.Value().(bool)
	if !ok {
		return false, errors.Wrapf(ErrOutputType, "got %s", out.Type().TypeName())
	}
	return pass, nil
}
