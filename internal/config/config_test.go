package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PEDUMP_CONFIG", "PEDUMP_VERBOSE", "PEDUMP_OUTPUT", "PEDUMP_LOG_LEVEL",
		"PEDUMP_MAX_DEPTH", "PEDUMP_SEARCH_PATH", "NO_COLOR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pedump.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Output:      OutputText,
		LogLevel:    "warn",
		MaxDepth:    3,
		MinCaveSize: 32,
	}, cfg)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
verbose = true
output = "yaml"
max_depth = 5
min_cave_size = 64
search_paths = ["/opt/dlls", "/srv/dlls"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, OutputYAML, cfg.Output)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, 64, cfg.MinCaveSize)
	assert.Equal(t, []string{"/opt/dlls", "/srv/dlls"}, cfg.SearchPaths)
}

func TestLoadFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEDUMP_CONFIG", writeConfig(t, `output = "dump"`))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, OutputDump, cfg.Output)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "output = \"yaml\"\nmax_depth = 5\n")
	t.Setenv("PEDUMP_OUTPUT", "raw")
	t.Setenv("PEDUMP_MAX_DEPTH", "1")
	t.Setenv("PEDUMP_LOG_LEVEL", "debug")
	t.Setenv("PEDUMP_VERBOSE", "true")
	t.Setenv("PEDUMP_SEARCH_PATH", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("NO_COLOR", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, OutputRaw, cfg.Output)
	assert.Equal(t, 1, cfg.MaxDepth)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"/a", "/b"}, cfg.SearchPaths)
	assert.True(t, cfg.NoColor)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "output = ["))
	assert.ErrorContains(t, err, "读取配置文件失败")

	_, err = Load(writeConfig(t, `output = "xml"`))
	assert.ErrorContains(t, err, "未知输出格式")
}

func TestValidate(t *testing.T) {
	valid := Config{Output: OutputText, LogLevel: "info", MaxDepth: 0, MinCaveSize: 32}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad output", mutate: func(c *Config) { c.Output = "json" }, wantErr: "未知输出格式"},
		{name: "negative depth", mutate: func(c *Config) { c.MaxDepth = -1 }, wantErr: "max_depth"},
		{name: "zero cave size", mutate: func(c *Config) { c.MinCaveSize = 0 }, wantErr: "min_cave_size"},
		{name: "negative cave size", mutate: func(c *Config) { c.MinCaveSize = -1 }, wantErr: "min_cave_size"},
		{name: "largest cave size", mutate: func(c *Config) { c.MinCaveSize = math.MaxUint32 }},
		{name: "cave size past uint32", mutate: func(c *Config) { c.MinCaveSize = math.MaxUint32 + 1 }, wantErr: "min_cave_size"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "未知日志级别"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "info", NoColor: true}
	logger := cfg.Logger(&buf)

	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "pedump: shown")
	assert.Contains(t, out, "key=value")
}

func TestLoadRereadsEnvironment(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, cfg.Output)

	t.Setenv("PEDUMP_OUTPUT", "yaml")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, OutputYAML, cfg.Output)

	os.Unsetenv("PEDUMP_OUTPUT")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, cfg.Output)
}
