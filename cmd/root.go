// =============================================================================
// SPED EFD Relatorios - Root Command
// =============================================================================
//
// This file defines the root command of the Cobra CLI. Every other command is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (efd-relatorios)
//   ├── processCmd (efd-relatorios process)
//   ├── listCmd    (efd-relatorios list)
//   └── versionCmd (efd-relatorios version)
//
// CONFIGURATION:
//   The root command owns the flags shared by every command (--config,
//   --verbose) and the helpers that turn them into a configuration and a
//   logger.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/config"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "efd-relatorios",
	Short: "SPED EFD Relatorios - Flatten SPED EFD files into an item workbook",
	Long: `SPED EFD Relatorios reads EFD Contribuições and EFD ICMS_IPI text files,
rebuilds one row per fiscal item from the register hierarchy, enriches the
rows with master data and fiscal classifications, and writes them to a single
XLSX workbook together with CST and CFOP summaries.

Example Usage:
  efd-relatorios list                     # Show the files of the input directory
  efd-relatorios process                  # Process every file
  efd-relatorios process --select "1..3"  # Process the first three files
  efd-relatorios process --config my.yaml # Use a custom configuration file`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file; defaults apply when it does not exist",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig reads cfgFile, falling back to the defaults when the file does
// not exist.
func loadConfig() (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if errors.Is(err, fs.ErrNotExist) {
		return config.DefaultMainConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. --verbose wins over log_level.
func newLogger(cfg *config.MainConfig) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, os.Stderr)
}
