package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dcrane/ghostwriter/internal/command"
	"github.com/dcrane/ghostwriter/internal/config"
	"github.com/dcrane/ghostwriter/internal/job"
	"github.com/dcrane/ghostwriter/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal session",
	Long: `Tui opens an interactive terminal session: type arguments for the
tool, watch progress while it runs, and read its output in a scrolling
viewport. Configuration changes on disk are picked up while the session
is open.`,
	RunE: runTui,
}

var tuiFile string

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVar(&tuiFile, "file", "", "Buffer file for token expansion and selections")
}

func runTui(cmd *cobra.Command, args []string) error {
	s, closeStack, err := buildStack()
	if err != nil {
		return err
	}
	defer closeStack()

	var src command.BufferSource
	if tuiFile != "" {
		buf, err := command.OpenFileBuffer(tuiFile)
		if err != nil {
			return fmt.Errorf("failed to open buffer file: %w", err)
		}
		src = buf
	}

	sink := tui.NewProgramSink(s.cfg.TUI.MaxOutputLines)
	ctrl := job.New(s.run, s.asm, sink, job.Options{
		Bus:          s.bus,
		Logger:       s.logger,
		TickInterval: s.cfg.Ticker.Interval(),
		TickLabel:    s.cfg.Ticker.Label,
		TickMaxDots:  s.cfg.Ticker.MaxDots,
	})

	app := tui.New(ctrl, sink, s.bus, src, s.cfg.TUI.Title)

	// Watch the loaded config file so edits apply to the next session
	// actions without a restart.
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, func(*config.Config) {
			app.NotifyConfigReload()
		}, s.logger)
		if err != nil {
			s.logger.Warn("config watcher unavailable", "error", err.Error())
		} else if err := watcher.Start(); err != nil {
			s.logger.Warn("config watcher failed to start", "error", err.Error())
		} else {
			defer watcher.Stop()
		}
	}

	return app.Run()
}
