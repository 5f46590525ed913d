// Package cmd implements the fonline CLI commands.
package cmd

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/fonline/droidbridge/cmd/fonline/internal/config"
	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/logging"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

var log = logging.MustGetLogger("cli")

// Global flags.
var (
	projectDir string
	logLevel   string
	debugPort  int
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "fonline",
	Short: "FOnline client renderer",
	Long: `fonline drives the FOnline render loop outside the Android host.

"run" opens a desktop window and renders until it is closed or Escape is
pressed. "headless" renders into memory and writes the last frame as BMP.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "config", "c", ".", "directory containing "+config.FileName)
	flags.StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	flags.IntVar(&debugPort, "debug-port", 0, "diagnostics server port (overrides debug.port)")
	flags.BoolVar(&debug, "debug", false, "start the diagnostics server")

	rootCmd.AddCommand(runCmd, headlessCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves fonline.yaml, applies flag overrides and configures
// logging and error reporting.
func loadConfig(cmd *cobra.Command) (*config.Resolved, error) {
	cfg, err := config.Resolve(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("debug-port") {
		cfg.DebugPort = debugPort
	}
	if debug {
		cfg.DebugEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	errors.SetHandler(&errors.LogHandler{Verbose: cfg.Verbose})

	log.WithField("engine", cfg.EngineVersion).
		WithField("driver", cfg.EngineDriver).
		Debugf("config resolved from %s", cfg.Root)
	return cfg, nil
}

// newDriver returns the engine driver selected by cfg.
func newDriver(cfg *config.Resolved) engine.Driver {
	var d engine.Driver = engine.NopDriver{}
	if cfg.EngineDriver == config.DriverDisabled {
		d = engine.Disabled{}
	}
	return engine.Limit(d, cfg.EngineFrames)
}

// engineEnv opens the assets directory, if it exists, and creates the
// storage directory.
func engineEnv(cfg *config.Resolved) (engine.Env, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return engine.Env{}, fmt.Errorf("create storage dir: %w", err)
	}
	var assets fs.FS
	if info, err := os.Stat(cfg.AssetsDir); err == nil && info.IsDir() {
		assets = os.DirFS(cfg.AssetsDir)
	} else {
		log.Warnf("assets directory %s not found; engine runs without assets", cfg.AssetsDir)
	}
	return engine.Env{Assets: assets, StoragePath: cfg.StorageDir}, nil
}
