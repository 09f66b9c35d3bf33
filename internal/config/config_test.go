package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rverrors "github.com/h4x3rotab/repoview/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.Set("repo", t.TempDir())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.False(t, cfg.Server.Open)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 5000, cfg.Scan.MaxFiles)
	assert.Equal(t, int64(2*1024*1024), cfg.Scan.MaxBytesPerFile)
	assert.Equal(t, 16, cfg.Scan.Concurrency)
	assert.Equal(t, int64(2*1024*1024), cfg.Render.MaxBytes)
	assert.Equal(t, int64(32*1024*1024), cfg.Render.CacheBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	repo := t.TempDir()
	file := filepath.Join(t.TempDir(), ".repoview.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
repo: `+repo+`
server:
  port: 8080
watch:
  debounce: 250ms
scan:
  max_files: 10
log:
  level: DEBUG
  format: json
`), 0o644))

	t.Setenv("REPOVIEW_SERVER_HOST", "localhost")
	t.Setenv("REPOVIEW_SCAN_CONCURRENCY", "4")

	v := viper.New()
	ConfigureEnv(v)
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, repo, cfg.Repo)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 10, cfg.Scan.MaxFiles)
	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	repo := t.TempDir()

	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"port too large", "server.port", 70000},
		{"host with shell characters", "server.host", "localhost;rm"},
		{"empty host", "server.host", ""},
		{"zero max files", "scan.max_files", 0},
		{"negative byte limit", "scan.max_bytes_per_file", -1},
		{"zero concurrency", "scan.concurrency", 0},
		{"zero render limit", "render.max_bytes", 0},
		{"negative render cache", "render.cache_bytes", -1},
		{"unknown level", "log.level", "verbose"},
		{"unknown format", "log.format", "xml"},
		{"missing repo", "repo", filepath.Join(repo, "missing")},
		{"undecodable port", "server.port", "not-a-port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("repo", repo)
			v.Set(tt.key, tt.value)

			cfg, err := LoadFrom(v)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Equal(t, rverrors.CodeConfigInvalid, rverrors.Code(err))
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	v := viper.New()
	v.Set("repo", t.TempDir())
	v.Set("server.host", "0.0.0.0")
	v.Set("server.port", 80)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	result := Validate(cfg)
	assert.False(t, result.HasErrors())
	require.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.String(), "server.host")
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:3000", ServerConfig{Host: "127.0.0.1", Port: 3000}.Addr())
	assert.Equal(t, "[::1]:8080", ServerConfig{Host: "::1", Port: 8080}.Addr())
}
