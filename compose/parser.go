// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package compose

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoServices  = errors.New("compose file has no services")
	ErrNotAMapping = errors.New("compose file must be a yaml mapping")
)

var ignoreRegex = regexp.MustCompile(`#\s*dockerlint\s+(global\s+)?ignore\s*=\s*([A-Za-z0-9_,\s-]+?)\s*$`)

type rawHealthcheck struct {
	Test        yaml.Node `yaml:"test"`
	Interval    string    `yaml:"interval"`
	Timeout     string    `yaml:"timeout"`
	StartPeriod string    `yaml:"start_period"`
	Retries     int       `yaml:"retries"`
	Disable     bool      `yaml:"disable"`
}

type rawService struct {
	Image         string          `yaml:"image"`
	Build         yaml.Node       `yaml:"build"`
	ContainerName string          `yaml:"container_name"`
	Restart       string          `yaml:"restart"`
	Privileged    bool            `yaml:"privileged"`
	ReadOnly      bool            `yaml:"read_only"`
	User          string          `yaml:"user"`
	Environment   yaml.Node       `yaml:"environment"`
	EnvFile       yaml.Node       `yaml:"env_file"`
	Ports         []yaml.Node     `yaml:"ports"`
	Volumes       []yaml.Node     `yaml:"volumes"`
	Healthcheck   *rawHealthcheck `yaml:"healthcheck"`
	DependsOn     yaml.Node       `yaml:"depends_on"`
	Deploy        *Deploy         `yaml:"deploy"`
	MemLimit      string          `yaml:"mem_limit"`
	CPUs          string          `yaml:"cpus"`
	Logging       *Logging        `yaml:"logging"`
	Networks      yaml.Node       `yaml:"networks"`
	Secrets       []yaml.Node     `yaml:"secrets"`
	CapAdd        []string        `yaml:"cap_add"`
	SecurityOpt   []string        `yaml:"security_opt"`
	NetworkMode   string          `yaml:"network_mode"`
	Scale         int             `yaml:"scale"`
}

// Parse reads a compose file. All keys keep their line numbers so findings
// can point to the right place.
func Parse(path string, r io.Reader) (*Project, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read compose file "+path)
	}

	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoServices
		}
		return nil, errors.Wrap(err, "invalid yaml in "+path)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotAMapping
	}

	res := &Project{
		Path:     path,
		Services: map[string]*Service{},
		Volumes:  map[string]*Resource{},
		Networks: map[string]*Resource{},
		Secrets:  map[string]*Resource{},
		Configs:  map[string]*Resource{},
		Ignores:  map[int][]string{},
	}
	scanIgnores(string(data), res)

	hasServices := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		value := root.Content[i+1]

		var err error
		switch key.Value {
		case "version":
			res.Version = value.Value
			res.VersionLine = key.Line
		case "services":
			hasServices = true
			err = parseServices(value, res)
		case "volumes":
			err = parseResources(value, res.Volumes)
		case "networks":
			err = parseResources(value, res.Networks)
		case "secrets":
			err = parseResources(value, res.Secrets)
		case "configs":
			err = parseResources(value, res.Configs)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: invalid %s", path, key.Line, key.Value)
		}
	}

	if !hasServices {
		return nil, ErrNoServices
	}
	return res, nil
}

func parseServices(node *yaml.Node, project *Project) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.New("services must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		svc, err := parseService(key.Value, key.Line, node.Content[i+1])
		if err != nil {
			return errors.Wrapf(err, "service %q", key.Value)
		}
		svc.EndLine = lastLine(node.Content[i+1])
		if svc.EndLine < svc.Line {
			svc.EndLine = svc.Line
		}
		project.Services[key.Value] = svc
	}
	return nil
}

func lastLine(node *yaml.Node) int {
	res := node.Line
	for _, child := range node.Content {
		if l := lastLine(child); l > res {
			res = l
		}
	}
	return res
}

// scanIgnores collects `# dockerlint ignore=...` comments. A comment on its
// own line applies to the next line with content, a trailing comment to its
// own line.
func scanIgnores(content string, project *Project) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var pending []string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		m := ignoreRegex.FindStringSubmatch(line)
		var ids []string
		if m != nil {
			for _, id := range strings.FieldsFunc(m[2], func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
				ids = append(ids, strings.ToUpper(id))
			}
			if m[1] != "" {
				project.GlobalIgnores = append(project.GlobalIgnores, ids...)
				ids = nil
			}
		}

		if strings.HasPrefix(trimmed, "#") {
			pending = append(pending, ids...)
			continue
		}

		lineNo := i + 1
		if len(pending) > 0 {
			project.Ignores[lineNo] = append(project.Ignores[lineNo], pending...)
			pending = nil
		}
		if len(ids) > 0 {
			project.Ignores[lineNo] = append(project.Ignores[lineNo], ids...)
		}
	}
}

func parseService(name string, line int, node *yaml.Node) (*Service, error) {
	svc := &Service{
		Name:  name,
		Line:  line,
		Lines: map[string]int{},
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return svc, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("service definition must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		svc.Lines[node.Content[i].Value] = node.Content[i].Line
	}

	var raw rawService
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	svc.Image = raw.Image
	svc.ContainerName = raw.ContainerName
	svc.Restart = raw.Restart
	svc.Privileged = raw.Privileged
	svc.ReadOnly = raw.ReadOnly
	svc.User = raw.User
	svc.Deploy = raw.Deploy
	svc.MemLimit = raw.MemLimit
	svc.CPUs = raw.CPUs
	svc.Logging = raw.Logging
	svc.CapAdd = raw.CapAdd
	svc.SecurityOpt = raw.SecurityOpt
	svc.NetworkMode = raw.NetworkMode
	svc.Scale = raw.Scale

	svc.Build = parseBuild(&raw.Build)
	svc.EnvFile = scalarOrList(&raw.EnvFile, "path")
	svc.Networks = keysOrList(&raw.Networks)

	env, err := parseEnvironment(&raw.Environment)
	if err != nil {
		return nil, errors.Wrap(err, "environment")
	}
	svc.Environment = env

	for i := range raw.Ports {
		svc.Ports = append(svc.Ports, portString(&raw.Ports[i]))
	}

	for i := range raw.Volumes {
		mount, err := parseVolumeMount(&raw.Volumes[i])
		if err != nil {
			return nil, errors.Wrap(err, "volumes")
		}
		svc.Volumes = append(svc.Volumes, mount)
	}

	for i := range raw.Secrets {
		s := &raw.Secrets[i]
		if s.Kind == yaml.MappingNode {
			svc.Secrets = append(svc.Secrets, mappingValue(s, "source"))
		} else {
			svc.Secrets = append(svc.Secrets, s.Value)
		}
	}

	if raw.Healthcheck != nil {
		svc.Healthcheck = &Healthcheck{
			Test:        scalarOrList(&raw.Healthcheck.Test, ""),
			Interval:    raw.Healthcheck.Interval,
			Timeout:     raw.Healthcheck.Timeout,
			StartPeriod: raw.Healthcheck.StartPeriod,
			Retries:     raw.Healthcheck.Retries,
			Disable:     raw.Healthcheck.Disable,
			Line:        svc.LineOf("healthcheck"),
		}
	}

	deps, err := parseDependsOn(&raw.DependsOn)
	if err != nil {
		return nil, errors.Wrap(err, "depends_on")
	}
	svc.DependsOn = deps

	return svc, nil
}

func parseResources(node *yaml.Node, into map[string]*Resource) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.New("must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		res := &Resource{Name: key.Value, Line: key.Line}
		if value.Kind == yaml.MappingNode {
			res.Driver = mappingValue(value, "driver")
			if ext := mappingNode(value, "external"); ext != nil {
				// legacy syntax allows `external: {name: foo}`
				res.External = ext.Kind == yaml.MappingNode || ext.Value == "true"
			}
		}
		into[key.Value] = res
	}
	return nil
}

func parseBuild(node *yaml.Node) *Build {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		return &Build{Context: node.Value}
	case yaml.MappingNode:
		return &Build{
			Context:    mappingValue(node, "context"),
			Dockerfile: mappingValue(node, "dockerfile"),
			Target:     mappingValue(node, "target"),
		}
	default:
		return nil
	}
}

// parseEnvironment accepts both the list (`- KEY=value`) and the map syntax
func parseEnvironment(node *yaml.Node) ([]EnvVar, error) {
	var res []EnvVar
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			key, value, ok := strings.Cut(item.Value, "=")
			res = append(res, EnvVar{Name: key, Value: value, HasValue: ok, Line: item.Line})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			value := node.Content[i+1]
			hasValue := !(value.Kind == yaml.ScalarNode && value.Tag == "!!null")
			res = append(res, EnvVar{Name: key.Value, Value: value.Value, HasValue: hasValue, Line: key.Line})
		}
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, errors.New("must be a list or a mapping")
	default:
		return nil, errors.New("must be a list or a mapping")
	}
	return res, nil
}

func parseDependsOn(node *yaml.Node) ([]Dependency, error) {
	var res []Dependency
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			res = append(res, Dependency{Service: item.Value, Condition: "service_started", Line: item.Line})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			cond := mappingValue(node.Content[i+1], "condition")
			if cond == "" {
				cond = "service_started"
			}
			res = append(res, Dependency{Service: key.Value, Condition: cond, Line: key.Line})
		}
	default:
		return nil, errors.New("must be a list or a mapping")
	}
	return res, nil
}

// parseVolumeMount handles the short `src:dst[:mode]` and the long syntax
func parseVolumeMount(node *yaml.Node) (VolumeMount, error) {
	res := VolumeMount{Line: node.Line}

	if node.Kind == yaml.MappingNode {
		res.Type = mappingValue(node, "type")
		res.Source = mappingValue(node, "source")
		res.Target = mappingValue(node, "target")
		res.ReadOnly = mappingValue(node, "read_only") == "true"
		if res.Type == "" {
			res.Type = "volume"
		}
		return res, nil
	}

	if node.Kind != yaml.ScalarNode {
		return res, errors.New("volume must be a string or a mapping")
	}

	parts := strings.Split(node.Value, ":")
	switch len(parts) {
	case 1:
		// anonymous volume
		res.Type = "volume"
		res.Target = parts[0]
		return res, nil
	case 2:
		res.Source, res.Target = parts[0], parts[1]
	default:
		res.Source, res.Target = parts[0], parts[1]
		for _, opt := range strings.Split(parts[2], ",") {
			if opt == "ro" {
				res.ReadOnly = true
			}
		}
	}

	if isHostPath(res.Source) {
		res.Type = "bind"
	} else {
		res.Type = "volume"
	}
	return res, nil
}

// isHostPath reports whether a short syntax source is a bind mount. A
// variable source only counts when it continues as a path, e.g.
// ${PWD}/data, while a bare ${DATA} names a volume.
func isHostPath(src string) bool {
	if strings.HasPrefix(src, "$") {
		return strings.Contains(src, "/")
	}
	return strings.HasPrefix(src, "/") ||
		strings.HasPrefix(src, ".") ||
		strings.HasPrefix(src, "~")
}

func portString(node *yaml.Node) string {
	if node.Kind != yaml.MappingNode {
		return node.Value
	}
	target := mappingValue(node, "target")
	published := mappingValue(node, "published")
	hostIP := mappingValue(node, "host_ip")
	res := target
	if published != "" {
		res = published + ":" + target
	}
	if hostIP != "" {
		res = hostIP + ":" + res
	}
	if proto := mappingValue(node, "protocol"); proto != "" {
		res += "/" + proto
	}
	return res
}

func scalarOrList(node *yaml.Node, mappingKey string) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" || node.Tag == "!!null" {
			return nil
		}
		return []string{node.Value}
	case yaml.SequenceNode:
		res := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.MappingNode && mappingKey != "" {
				res = append(res, mappingValue(item, mappingKey))
				continue
			}
			res = append(res, item.Value)
		}
		return res
	default:
		return nil
	}
}

func keysOrList(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.SequenceNode:
		return scalarOrList(node, "")
	case yaml.MappingNode:
		res := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			res = append(res, node.Content[i].Value)
		}
		return res
	default:
		return nil
	}
}

func mappingNode(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) string {
	v := mappingNode(node, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}

// ParsePort returns the published host port of a port mapping, 0 if the
// port is not published
func ParsePort(spec string) (hostIP string, published int, err error) {
	spec, _, _ = strings.Cut(spec, "/")
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		return "", 0, nil
	case 2:
		published, err = parsePortNumber(parts[0])
		return "", published, err
	default:
		hostIP = strings.Join(parts[:len(parts)-2], ":")
		published, err = parsePortNumber(parts[len(parts)-2])
		return strings.Trim(hostIP, "[]"), published, err
	}
}

func parsePortNumber(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	// ranges publish the first port
	s, _, _ = strings.Cut(s, "-")
	return strconv.Atoi(s)
}
