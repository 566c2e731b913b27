package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ghostwriter configuration
type Config struct {
	Tool    ToolConfig    `mapstructure:"tool"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Ticker  TickerConfig  `mapstructure:"ticker"`
	TUI     TUIConfig     `mapstructure:"tui"`
	Logging LoggingConfig `mapstructure:"logging"`

	// issues records the out-of-range values Load replaced with
	// defaults, for hosts to surface.
	issues []ValidationError
}

// Issues returns the validation failures recorded while loading, each
// of which was resolved by falling back to the default value.
func (c *Config) Issues() []ValidationError {
	return c.issues
}

// ToolConfig identifies the external text-generation tool
type ToolConfig struct {
	// Name is the command name prefixed to every assembled invocation.
	// The tool's own argument grammar is never interpreted.
	Name string `mapstructure:"name"`
	// Shell is the shell used for command indirection, so assembled
	// command strings may contain pipes and redirection
	Shell string `mapstructure:"shell"`
}

// RunnerConfig controls subprocess execution
type RunnerConfig struct {
	// OutputBufferSize is the per-stream capture buffer size in bytes.
	// Only the most recent bytes are retained for very chatty tools.
	OutputBufferSize int `mapstructure:"output_buffer_size"`
	// KillGraceMs is how long a stop request waits after SIGTERM before
	// escalating to SIGKILL (in milliseconds)
	KillGraceMs int `mapstructure:"kill_grace_ms"`
}

// TickerConfig controls the progress animation shown while a job runs
type TickerConfig struct {
	// IntervalMs is the re-render interval in milliseconds
	IntervalMs int `mapstructure:"interval_ms"`
	// Label is the fixed text preceding the animated dots
	Label string `mapstructure:"label"`
	// MaxDots is the trailing-dot count at which the animation wraps
	// back to one dot
	MaxDots int `mapstructure:"max_dots"`
}

// TUIConfig controls the terminal UI host
type TUIConfig struct {
	// MaxOutputLines limits how many lines of output the viewport retains
	MaxOutputLines int `mapstructure:"max_output_lines"`
	// Title is the header text of the output window
	Title string `mapstructure:"title"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled turns file logging on or off
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level to log: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir is the directory for the log file; empty means the default
	// config directory
	Dir string `mapstructure:"dir"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			Name:  "llm",
			Shell: "/bin/sh",
		},
		Runner: RunnerConfig{
			OutputBufferSize: 256 * 1024,
			KillGraceMs:      500,
		},
		Ticker: TickerConfig{
			IntervalMs: 1000,
			Label:      "Processing",
			MaxDots:    3,
		},
		TUI: TUIConfig{
			MaxOutputLines: 5000,
			Title:          "ghostwriter",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("tool.name", defaults.Tool.Name)
	viper.SetDefault("tool.shell", defaults.Tool.Shell)

	viper.SetDefault("runner.output_buffer_size", defaults.Runner.OutputBufferSize)
	viper.SetDefault("runner.kill_grace_ms", defaults.Runner.KillGraceMs)

	viper.SetDefault("ticker.interval_ms", defaults.Ticker.IntervalMs)
	viper.SetDefault("ticker.label", defaults.Ticker.Label)
	viper.SetDefault("ticker.max_dots", defaults.Ticker.MaxDots)

	viper.SetDefault("tui.max_output_lines", defaults.TUI.MaxOutputLines)
	viper.SetDefault("tui.title", defaults.TUI.Title)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load unmarshals the current viper state into a Config and normalizes
// out-of-range values. What Normalize had to replace is recorded and
// available through Issues.
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.issues = cfg.Normalize()
	return cfg, nil
}

// ConfigDir returns the ghostwriter configuration directory,
// $XDG_CONFIG_HOME/ghostwriter or ~/.config/ghostwriter.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghostwriter")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghostwriter"
	}
	return filepath.Join(home, ".config", "ghostwriter")
}

// LogDir returns the directory debug logs are written to.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return ConfigDir()
}

// Interval returns the ticker interval as a time.Duration
func (c *TickerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// KillGrace returns the kill grace period as a time.Duration
func (c *RunnerConfig) KillGrace() time.Duration {
	return time.Duration(c.KillGraceMs) * time.Millisecond
}
