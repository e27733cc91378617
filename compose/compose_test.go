// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package compose

import (
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFile(t *testing.T, path string) *Project {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	res, err := Parse(path, f)
	require.NoError(t, err)
	return res
}

func TestParseProject(t *testing.T) {
	p := parseFile(t, "./testdata/docker-compose.yml")

	assert.Equal(t, "3.8", p.Version)
	assert.Equal(t, 1, p.VersionLine)
	assert.Equal(t, []string{"db", "web", "worker"}, p.ServiceNames())

	require.Contains(t, p.Volumes, "pgdata")
	assert.False(t, p.Volumes["pgdata"].External)
	assert.True(t, p.Volumes["data"].External)
	assert.Equal(t, "bridge", p.Networks["backend"].Driver)
	assert.False(t, p.Secrets["api_key"].External)
	assert.True(t, p.Secrets["tls_cert"].External)
}

func TestParseServiceWeb(t *testing.T) {
	p := parseFile(t, "./testdata/docker-compose.yml")
	web := p.Services["web"]
	require.NotNil(t, web)

	assert.Equal(t, 4, web.Line)
	assert.Equal(t, "nginx:latest", web.Image)
	assert.Equal(t, 5, web.LineOf("image"))
	assert.Equal(t, 22, web.LineOf("privileged"))
	assert.Equal(t, 4, web.LineOf("healthcheck"))
	assert.Equal(t, "web", web.ContainerName)
	assert.True(t, web.Privileged)
	assert.Equal(t, 2, web.Replicas())
	assert.Nil(t, web.Healthcheck)
	assert.Equal(t, "", web.RestartPolicy())

	assert.Equal(t, []string{"8080:80", "8443:443/tcp"}, web.Ports)

	assert.Equal(t, []EnvVar{
		{Name: "APP_ENV", Value: "production", HasValue: true, Line: 13},
		{Name: "DB_PASSWORD", Value: "hunter2", HasValue: true, Line: 14},
		{Name: "DEBUG", Line: 15},
	}, web.Environment)

	require.Len(t, web.Volumes, 3)
	assert.Equal(t, VolumeMount{Type: "bind", Source: "./html", Target: "/usr/share/nginx/html", ReadOnly: true, Line: 17}, web.Volumes[0])
	assert.Equal(t, "bind", web.Volumes[1].Type)
	assert.Equal(t, "/var/run/docker.sock", web.Volumes[1].Source)
	assert.True(t, web.Volumes[2].Named())

	assert.Equal(t, []Dependency{{Service: "db", Condition: "service_started", Line: 21}}, web.DependsOn)
}

func TestParseServiceDB(t *testing.T) {
	p := parseFile(t, "./testdata/docker-compose.yml")
	db := p.Services["db"]
	require.NotNil(t, db)

	assert.Equal(t, "unless-stopped", db.RestartPolicy())
	assert.Equal(t, []EnvVar{
		{Name: "POSTGRES_DB", Value: "app", HasValue: true, Line: 30},
		{Name: "POSTGRES_PASSWORD", Line: 31},
	}, db.Environment)

	require.Len(t, db.Volumes, 1)
	assert.Equal(t, "volume", db.Volumes[0].Type)
	assert.Equal(t, "pgdata", db.Volumes[0].Source)
	assert.True(t, db.Volumes[0].Named())

	require.NotNil(t, db.Healthcheck)
	assert.Equal(t, []string{"CMD-SHELL", "pg_isready -U postgres"}, db.Healthcheck.Test)
	assert.Equal(t, "10s", db.Healthcheck.Interval)
	assert.Equal(t, 5, db.Healthcheck.Retries)
	assert.False(t, db.Healthcheck.Disabled())

	mem, err := db.MemoryLimit()
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), mem)

	require.NotNil(t, db.Logging)
	assert.Equal(t, "json-file", db.Logging.Driver)
	assert.Equal(t, "10m", db.Logging.Options["max-size"])
	assert.Equal(t, []string{"backend"}, db.Networks)
}

func TestParseServiceWorker(t *testing.T) {
	p := parseFile(t, "./testdata/docker-compose.yml")
	worker := p.Services["worker"]
	require.NotNil(t, worker)

	assert.Equal(t, "", worker.Image)
	require.NotNil(t, worker.Build)
	assert.Equal(t, ".", worker.Build.Context)
	assert.Equal(t, "worker.Dockerfile", worker.Build.Dockerfile)

	assert.Equal(t, "service_healthy", worker.DependsOn[0].Condition)
	require.NotNil(t, worker.Healthcheck)
	assert.True(t, worker.Healthcheck.Disabled())

	mem, err := worker.MemoryLimit()
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024*1024), mem)
	assert.Equal(t, "0.5", worker.CPULimit())
	assert.Equal(t, "any", worker.RestartPolicy())
	assert.Equal(t, []string{"api_key", "tls_cert"}, worker.Secrets)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		title string
		data  string
		err   error
	}{
		{"empty", "", ErrNoServices},
		{"no services", "volumes:\n  data:\n", ErrNoServices},
		{"root is a list", "- a\n- b\n", ErrNotAMapping},
		{"invalid yaml", "services: [\n", nil},
		{"invalid environment", "services:\n  a:\n    environment: foo\n", nil},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.title, func(t *testing.T) {
			_, err := Parse("compose.yml", strings.NewReader(cur.data))
			require.Error(t, err)
			if cur.err != nil {
				assert.True(t, errors.Is(err, cur.err))
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		spec      string
		hostIP    string
		published int
	}{
		{"80", "", 0},
		{"8080:80", "", 8080},
		{"127.0.0.1:8080:80/tcp", "127.0.0.1", 8080},
		{"3000-3005:3000-3005", "", 3000},
		{":80", "", 0},
	}

	for i := range tests {
		cur := tests[i]
		t.Run(cur.spec, func(t *testing.T) {
			ip, port, err := ParsePort(cur.spec)
			require.NoError(t, err)
			assert.Equal(t, cur.hostIP, ip)
			assert.Equal(t, cur.published, port)
		})
	}
}

func TestEmptyServiceDefinition(t *testing.T) {
	p, err := Parse("compose.yml", strings.NewReader("services:\n  app:\n"))
	require.NoError(t, err)
	require.Contains(t, p.Services, "app")
	assert.Equal(t, 2, p.Services["app"].Line)
	assert.Equal(t, 1, p.Services["app"].Replicas())
}

func TestInlineSuppression(t *testing.T) {
	data := strings.Join([]string{
		"# dockerlint global ignore=DC001",
		"services:",
		"  # dockerlint ignore=dc008",
		"  app:",
		"    image: alpine:3.19",
		"    privileged: true",
		"  db:",
		"    image: postgres # dockerlint ignore=DC002",
		"    privileged: true",
	}, "\n")

	p, err := Parse("compose.yml", strings.NewReader(data))
	require.NoError(t, err)

	assert.True(t, p.IsIgnored("DC001", 0))
	assert.Equal(t, 6, p.Services["app"].EndLine)
	assert.True(t, p.IsIgnored("DC008", 6))
	assert.False(t, p.IsIgnored("DC008", 9))
	assert.True(t, p.IsIgnored("DC002", 8))
	assert.False(t, p.IsIgnored("DC002", 5))
}

func TestVariableVolumeSource(t *testing.T) {
	p, err := Parse("compose.yml", strings.NewReader(strings.Join([]string{
		"services:",
		"  app:",
		"    image: app:1.0",
		"    volumes:",
		"      - ${PWD}/config:/etc/app",
		"      - $HOME/.cache:/cache",
		"      - ${DATA_VOLUME}:/data",
	}, "\n")+"\n"))
	require.NoError(t, err)

	vols := p.Services["app"].Volumes
	require.Len(t, vols, 3)
	assert.Equal(t, "bind", vols[0].Type)
	assert.Equal(t, "bind", vols[1].Type)
	assert.Equal(t, "volume", vols[2].Type)
	assert.Equal(t, "${DATA_VOLUME}", vols[2].Source)
}
