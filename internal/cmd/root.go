// Package cmd provides the CLI commands for Relay.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relayproj/relay/internal/appdir"
	"github.com/relayproj/relay/internal/config"
	"github.com/relayproj/relay/internal/logging"
)

var (
	// Global flags
	configPath    string
	serverURL     string
	debug         bool
	logLevel      string
	logFile       string
	logComponents string

	// Loaded configuration
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - a client for long-running conversational workflow runs",
	Long: `Relay manages a multi-turn, streamed conversation with a remote
workflow run: it starts runs, resumes in-flight streams after a restart,
and reconstructs the ordered conversation timeline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Config resolution: --config flag, then RELAY_CONFIG, then the
		// config file in the data directory (if present).
		path := configPath
		if path == "" {
			path = os.Getenv(config.ConfigPathEnv)
		}
		if path == "" {
			var err error
			if path, err = appdir.ConfigFile(); err != nil {
				return err
			}
		}
		var err error
		if cfg, err = config.LoadOrDefault(path); err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Server.URL = serverURL
		}

		// Flags override the config file for logging.
		effectiveLogLevel := cfg.Log.Level
		if logLevel != "" {
			effectiveLogLevel = logLevel
		} else if debug {
			effectiveLogLevel = "debug"
		}
		var components []string
		if logComponents != "" {
			for _, c := range strings.Split(logComponents, ",") {
				if c = strings.TrimSpace(c); c != "" {
					components = append(components, c)
				}
			}
		}
		logCfg := logging.Config{
			Level:      effectiveLogLevel,
			Components: components,
		}
		effectiveLogFile := cfg.Log.File
		if logFile != "" {
			effectiveLogFile = logFile
		}
		if effectiveLogFile != "" {
			logCfg.FileLog = &logging.FileLogConfig{
				Path:       effectiveLogFile,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
			}
		}
		if err := logging.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		if err := appdir.EnsureDir(); err != nil {
			return fmt.Errorf("failed to create Relay directory: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Remote workflow base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file (with rotation)")
	rootCmd.PersistentFlags().StringVar(&logComponents, "log-components", "", "Comma-separated list of components to log")
}
