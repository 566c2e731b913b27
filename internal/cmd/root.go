// Package cmd wires the ghostwriter CLI: a front end that hands prompts
// to an external text-generation tool and manages the resulting job.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dcrane/ghostwriter/internal/command"
	"github.com/dcrane/ghostwriter/internal/config"
	"github.com/dcrane/ghostwriter/internal/event"
	"github.com/dcrane/ghostwriter/internal/logging"
	"github.com/dcrane/ghostwriter/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:   "ghostwriter",
	Short: "Front end for a command-line text-generation tool",
	Long: `Ghostwriter hands prompts to an external text-generation tool and
manages the resulting job: spawning the process through the shell,
animating progress while it runs, and delivering its output when it
exits.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/ghostwriter/config.yaml)")
	rootCmd.PersistentFlags().StringP("tool", "t", "", "external tool command (overrides config)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("tool.name", rootCmd.PersistentFlags().Lookup("tool"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/ghostwriter")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GHOSTWRITER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., GHOSTWRITER_TOOL_NAME for tool.name
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// stack is the assembled execution machinery shared by the leaf
// commands.
type stack struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
	run    *runner.Runner
	asm    *command.Assembler
}

// buildStack loads configuration and assembles the runner, assembler,
// bus, and logger. Callers own logger shutdown via close.
func buildStack() (*stack, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, issue := range cfg.Issues() {
		logger.Warn("config value out of range, using default",
			"field", issue.Field,
			"value", issue.Value,
			"reason", issue.Message)
	}

	bus := event.NewBus()
	bus.SetLogger(logger)

	s := &stack{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		run:    runner.New(cfg.Tool.Shell, cfg.Runner.OutputBufferSize, cfg.Runner.KillGrace(), logger),
		asm:    command.NewAssembler(cfg.Tool.Name),
	}
	return s, func() { _ = logger.Close() }, nil
}
