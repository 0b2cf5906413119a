package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookpress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`workers: 2
log_format: json
watch_delay: 1s
attributes:
  toc: ""
  sectnums: ""
`), 0o644))
	t.Setenv("BOOKPRESS_PRINCE", "/opt/prince/bin/prince")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Second, cfg.WatchDelay)
	assert.Equal(t, "/opt/prince/bin/prince", cfg.Prince)
	assert.Contains(t, cfg.Attributes, "sectnums")
}

func TestNew_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookpress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [unclosed"), 0o644))
	_, err := New(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no project", func(c *Config) { c.Project = "" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"negative delay", func(c *Config) { c.WatchDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Defaults().Validate())
}
