package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "ticker.interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found. Validate does not modify the config; use
// Normalize to clamp values into range instead.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Tool.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "tool.name",
			Value:   c.Tool.Name,
			Message: "external tool name must not be empty",
		})
	}
	if strings.TrimSpace(c.Tool.Shell) == "" {
		errors = append(errors, ValidationError{
			Field:   "tool.shell",
			Value:   c.Tool.Shell,
			Message: "shell must not be empty",
		})
	}

	if c.Runner.OutputBufferSize < 1024 {
		errors = append(errors, ValidationError{
			Field:   "runner.output_buffer_size",
			Value:   c.Runner.OutputBufferSize,
			Message: "output buffer must be at least 1024 bytes",
		})
	}
	if c.Runner.KillGraceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "runner.kill_grace_ms",
			Value:   c.Runner.KillGraceMs,
			Message: "kill grace must not be negative",
		})
	}

	if c.Ticker.IntervalMs < 50 {
		errors = append(errors, ValidationError{
			Field:   "ticker.interval_ms",
			Value:   c.Ticker.IntervalMs,
			Message: "ticker interval must be at least 50ms",
		})
	}
	if c.Ticker.MaxDots < 1 || c.Ticker.MaxDots > 10 {
		errors = append(errors, ValidationError{
			Field:   "ticker.max_dots",
			Value:   c.Ticker.MaxDots,
			Message: "max_dots must be between 1 and 10",
		})
	}

	if c.TUI.MaxOutputLines < 100 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_output_lines",
			Value:   c.TUI.MaxOutputLines,
			Message: "max_output_lines must be at least 100",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// Normalize replaces out-of-range values with their defaults so a bad
// config file degrades gracefully instead of failing startup. It
// returns the validation failures that forced a replacement.
func (c *Config) Normalize() []ValidationError {
	issues := c.Validate()
	defaults := Default()

	if strings.TrimSpace(c.Tool.Name) == "" {
		c.Tool.Name = defaults.Tool.Name
	}
	if strings.TrimSpace(c.Tool.Shell) == "" {
		c.Tool.Shell = defaults.Tool.Shell
	}
	if c.Runner.OutputBufferSize < 1024 {
		c.Runner.OutputBufferSize = defaults.Runner.OutputBufferSize
	}
	if c.Runner.KillGraceMs < 0 {
		c.Runner.KillGraceMs = defaults.Runner.KillGraceMs
	}
	if c.Ticker.IntervalMs < 50 {
		c.Ticker.IntervalMs = defaults.Ticker.IntervalMs
	}
	if c.Ticker.Label == "" {
		c.Ticker.Label = defaults.Ticker.Label
	}
	if c.Ticker.MaxDots < 1 || c.Ticker.MaxDots > 10 {
		c.Ticker.MaxDots = defaults.Ticker.MaxDots
	}
	if c.TUI.MaxOutputLines < 100 {
		c.TUI.MaxOutputLines = defaults.TUI.MaxOutputLines
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		c.Logging.Level = defaults.Logging.Level
	}

	return issues
}
