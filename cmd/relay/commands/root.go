package commands

import (
	"fmt"
	"os"

	// btclogv2 supplies NewDefaultHandler, NewSLogger and the Handler
	// type; the v1 btclog package supplies the Level constants that
	// build.HandlerSet.SetLevel takes, mirroring the split in
	// internal/build/handler_set.go.
	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"

	"github.com/haldor/relay/internal/baselib/relay"
	"github.com/haldor/relay/internal/build"
)

var (
	// logLevel controls the verbosity of the structured logger.
	logLevel string

	// logDir is the directory rotated log files are written to, when
	// non-empty.
	logDir string
)

// logRotator is the rotating file writer set up by setupLogging when
// --log-dir is non-empty. It is closed from the root command's
// PersistentPostRun so rotated output is flushed before exit.
var logRotator *build.RotatingLogWriter

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "relay-cli",
	Short: "relay is an in-process actor runtime command center",
	Long: `relay-cli drives the in-process actor runtime: it runs the bundled
ping/pong walkthrough scenario and reports build version information.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel, logDir)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logRotator != nil {
			_ = logRotator.Close()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"Logging verbosity: trace, debug, info, warn, error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "",
		"Directory for rotated log files (default: stderr only)",
	)

	rootCmd.AddCommand(versionCmd)
}

// setupLogging wires the relay package's structured logger to stderr and,
// when dir is non-empty, to a rotating log file, following the dual-stream
// console+file handler pattern used by this codebase's daemon binaries.
func setupLogging(level, dir string) error {
	parsedLevel, ok := parseLogLevel(level)
	if !ok {
		return fmt.Errorf("unrecognized log level %q", level)
	}

	var handlers []btclogv2.Handler
	handlers = append(handlers, btclogv2.NewDefaultHandler(os.Stderr))

	if dir != "" {
		logRotator = build.NewRotatingLogWriter()
		cfg := build.DefaultLogRotatorConfig()
		cfg.LogDir = dir
		if err := logRotator.InitLogRotator(cfg); err != nil {
			return fmt.Errorf("initializing log rotator: %w", err)
		}
		handlers = append(handlers, btclogv2.NewDefaultHandler(logRotator))
	}

	combined := build.NewHandlerSet(handlers...)
	combined.SetLevel(parsedLevel)

	relay.UseLogger(btclogv2.NewSLogger(combined))

	return nil
}

// parseLogLevel maps the CLI's --log-level flag to a btclog.Level.
func parseLogLevel(level string) (btclog.Level, bool) {
	switch level {
	case "trace":
		return btclog.LevelTrace, true
	case "debug":
		return btclog.LevelDebug, true
	case "info":
		return btclog.LevelInfo, true
	case "warn", "warning":
		return btclog.LevelWarn, true
	case "error":
		return btclog.LevelError, true
	case "critical":
		return btclog.LevelCritical, true
	case "off":
		return btclog.LevelOff, true
	default:
		return btclog.LevelInfo, false
	}
}
