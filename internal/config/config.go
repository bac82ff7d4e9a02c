// Package config loads settings for the pedump tools.
//
// Values are layered: struct defaults, then an optional TOML file, then
// PEDUMP_* environment variables. Command-line flags are applied by the caller.
package config

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/hashicorp/go-hclog"
	"github.com/xyproto/env/v2"
)

// Output formats.
const (
	OutputText = "text"
	OutputYAML = "yaml"
	OutputDump = "dump"
	OutputRaw  = "raw"
)

// Config holds tool settings.
type Config struct {
	Verbose     bool     `toml:"verbose"`
	Output      string   `toml:"output" default:"text"`
	LogLevel    string   `toml:"log_level" default:"warn"`
	MaxDepth    int      `toml:"max_depth" default:"3"`
	MinCaveSize int      `toml:"min_cave_size" default:"32"`
	SearchPaths []string `toml:"search_paths"`
	NoColor     bool     `toml:"no_color"`
}

// Load builds a Config. An empty path falls back to $PEDUMP_CONFIG; when both
// are empty no file is read.
func Load(path string) (*Config, error) {
	// env caches the environment on first use; read it afresh on every Load.
	env.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("设置默认配置失败: %w", err)
	}

	if path == "" {
		path = env.Str("PEDUMP_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if env.Has("PEDUMP_VERBOSE") {
		c.Verbose = env.Bool("PEDUMP_VERBOSE")
	}
	c.Output = env.Str("PEDUMP_OUTPUT", c.Output)
	c.LogLevel = env.Str("PEDUMP_LOG_LEVEL", c.LogLevel)
	c.MaxDepth = env.Int("PEDUMP_MAX_DEPTH", c.MaxDepth)
	if p := env.Str("PEDUMP_SEARCH_PATH"); p != "" {
		c.SearchPaths = filepath.SplitList(p)
	}
	if env.Has("NO_COLOR") {
		c.NoColor = true
	}
}

// Validate rejects settings the tools cannot act on.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputYAML, OutputDump, OutputRaw:
	default:
		return fmt.Errorf("未知输出格式: %q (可选: text, yaml, dump, raw)", c.Output)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth 不能为负数: %d", c.MaxDepth)
	}
	if c.MinCaveSize < 1 || int64(c.MinCaveSize) > math.MaxUint32 {
		return fmt.Errorf("min_cave_size 必须在 1 到 %d 之间: %d", uint32(math.MaxUint32), c.MinCaveSize)
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("未知日志级别: %q", c.LogLevel)
	}
	return nil
}

// Logger returns a logger named "pedump" at the configured level.
func (c *Config) Logger(w io.Writer) hclog.Logger {
	colorOpt := hclog.AutoColor
	if c.NoColor {
		colorOpt = hclog.ColorOff
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "pedump",
		Level:  hclog.LevelFromString(strings.TrimSpace(c.LogLevel)),
		Output: w,
		Color:  colorOpt,
	})
}
