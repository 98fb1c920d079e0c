package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/trinity/internal/config"
	"github.com/dyluth/trinity/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version string
	commit  string
	date    string

	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trinity",
	Short: "Trinity - cognitive simulation engine",
	Long: `Trinity ingests structured records and conversations into a persistent
concept graph, crystallizes recurring concepts through governed use, and
runs an energy/emotion physics layer over the resulting lattice.

State lives in a local data directory: a JSON base snapshot, an NDJSON
delta log, and a SQLite audit trail of every law application.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "trinity.yml", "Path to the trinity.yml configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads trinity.yml, falling back to defaults when the file
// does not exist but failing loudly on an invalid one.
func loadConfig() (*config.TrinityConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, printer.Error(
			"Invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s or remove it to use defaults", configPath)},
		)
	}
	return cfg, nil
}

// newLogger builds the process logger; --verbose switches to development
// output with debug level.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
