package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/firewatch-dev/firewatch/cmd/configcmd"
	"github.com/firewatch-dev/firewatch/cmd/notify"
	"github.com/firewatch-dev/firewatch/cmd/scan"
	"github.com/firewatch-dev/firewatch/cmd/serve"
	"github.com/firewatch-dev/firewatch/cmd/subscriptions"
	"github.com/firewatch-dev/firewatch/cmd/version"
	"github.com/firewatch-dev/firewatch/internal/buildinfo"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in by
// the persistent pre-run before any subcommand executes.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:           "firewatch",
		Short:         "FireWatch wildfire camera alerting",
		Long:          "FireWatch watches wildfire camera classifications and texts subscribers when a camera sees fire.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default: search ./config.yaml, ~/.config/firewatch, /etc/firewatch)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	configCmd := configcmd.Command(settings, &configPath)
	versionCmd := version.Command(info)

	rootCmd.AddCommand(
		serve.Command(settings, info),
		scan.Command(settings, info),
		notify.Command(settings),
		subscriptions.Command(settings, info),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// these work without a valid configuration
		if cmd == versionCmd || (cmd.Parent() == configCmd && cmd.Name() == "init") {
			return nil
		}
		return initialize(settings, configPath, debug, info)
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		telemetry.Flush(2 * time.Second)
		if err := logger.Global().Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		}
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry.
func initialize(settings *conf.Settings, configPath string, debug bool, info *buildinfo.Context) error {
	loaded, err := conf.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		loaded.Debug = true
		loaded.Logging.Level = "debug"
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if _, err := telemetry.Init(settings.Telemetry, info.Release()); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return nil
}
