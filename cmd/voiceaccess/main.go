package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/voiceaccess/internal/app"
	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/log"
)

const banner = "voiceaccess: voice chat auto-unmute bot"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voiceaccess",
		Short:         "Keeps channel voice chats open to every listener",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to config.yaml")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("bridge-url", "", "base URL of the platform bridge")
	flags.String("registry-path", "", "path of the channel registry")
	flags.String("admin-addr", "", "admin API listen address, empty disables it")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newChannelsCmd(),
		newHashPasswordCmd(),
	)
	return root
}

// loadConfig resolves configuration for cmd, logging bootstrap problems to
// stderr.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", err
	}
	boot := log.NewWithWriter(cmd.ErrOrStderr(), "warn", "console")
	return config.Load(boot, explicit, cmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printBanner(cmd.OutOrStdout())

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Str("bridge", cfg.Bridge.URL).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Msg("voiceaccess started")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info().Msg("voiceaccess stopped")
	return nil
}

func printBanner(w io.Writer) {
	cyan := color.New(color.FgCyan)
	_, _ = cyan.Fprintln(w, banner)
}
