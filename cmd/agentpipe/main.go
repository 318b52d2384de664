package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentpipe/internal/config"
	"agentpipe/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration
	plain      bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentpipe",
	Short: "agentpipe - stream, segment and decode agent process output",
	Long: `agentpipe runs a long-lived analysis agent as a child process, merges
its stdout and stderr into one stream, renders agent messages as they
complete, and decodes the agent's final payload into a step-by-step
execution report.

Recorded transcripts can be replayed, parsed or followed without running
the agent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.agentpipe/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Agent timeout (overrides agent.timeout)")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print raw markdown instead of rendering it")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(coerceCmd)
	rootCmd.AddCommand(followCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// loadConfig reads the config file, applies flag overrides and sets up
// category logging for the workspace.
func loadConfig() (*config.Config, error) {
	ws := resolveWorkspace()
	path := configPath
	if path == "" {
		path = filepath.Join(ws, ".agentpipe", "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		cfg.Agent.Timeout = timeout.String()
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}

	if err := logging.Configure(ws, cfg.Logging.Settings()); err != nil {
		logger.Warn("Category logging disabled", zap.Error(err))
	}
	logging.Boot("agentpipe %s starting in %s (config %s)", cfg.Version, ws, path)
	logger.Debug("Configuration loaded",
		zap.String("path", path),
		zap.String("model", cfg.Agent.Model),
		zap.Bool("mock", cfg.Agent.MockMode))
	return cfg, nil
}
