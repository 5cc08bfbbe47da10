package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IroiKanta/StarryEyes/build"
	"github.com/IroiKanta/StarryEyes/expr"
)

const sample = `
log_level: debug
store:
  path: /tmp/statuses.db
strings:
  case_sensitive: true
filters:
  - name: gophers
    sources:
      - kind: search
        value: golang
    where:
      op: "&&"
      args:
        - op: contains
          args: [{field: text}, {value: gopher}]
        - op: "!"
          args: [{field: is_retweet}]
  - name: friends
    where:
      op: in
      args: [{field: user}, {value: [1, 2, 3]}]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qlfilter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/statuses.db", cfg.Store.Path)
	assert.Equal(t, expr.CaseSensitive, cfg.Comparison())
	assert.Equal(t, uint64(100), cfg.Query.Limit)
	require.Len(t, cfg.Filters, 2)

	g := cfg.Filters[0]
	assert.Equal(t, "gophers", g.Name)
	assert.Equal(t, []build.SourceSpec{{Kind: "search", Value: "golang"}}, g.Sources)
	require.NotNil(t, g.Where)
	assert.Equal(t, "&&", g.Where.Op)
	require.Len(t, g.Where.Args, 2)
	assert.Equal(t, "text", g.Where.Args[0].Args[0].Field)
	assert.Equal(t, "gopher", g.Where.Args[0].Args[1].Value)

	b := &build.Builder{Comparison: cfg.Comparison()}
	n, err := b.Node(*cfg.Filters[1].Where)
	require.NoError(t, err)
	assert.Equal(t, "user in (1, 2, 3)", n.ToQuery())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QLFILTER_STORE_PATH", "/var/lib/q.db")
	t.Setenv("QLFILTER_QUERY_LIMIT", "5")
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/q.db", cfg.Store.Path)
	assert.Equal(t, uint64(5), cfg.Query.Limit)
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":memory:", cfg.Store.Path)
	assert.Equal(t, expr.IgnoreCase, cfg.Comparison())
	assert.Empty(t, cfg.Filters)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "filters:\n  - where: {field: is_retweet}\n"))
	assert.ErrorContains(t, err, "no name")

	_, err = Load(writeConfig(t, "filters:\n  - name: a\n  - name: a\n"))
	assert.ErrorContains(t, err, "defined twice")
}
