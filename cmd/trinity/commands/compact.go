package commands

import (
	"fmt"

	"github.com/dyluth/trinity/internal/printer"
	"github.com/dyluth/trinity/pkg/cortex"
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the delta log into the base snapshot",
	Long: `Force one merge cycle: replay the NDJSON delta log onto the base
snapshot (last write wins per node), atomically replace the base file and
delete the consumed delta.

The engine does this periodically while running; compact is for reclaiming
space on a stopped instance.`,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engine, err := cortex.New(cfg, logger)
	if err != nil {
		return printer.Error(
			"Failed to open engine state",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s exists and is writable", cfg.DataDir)},
		)
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Compact(); err != nil {
		return printer.Error(
			"Compaction failed",
			err.Error(),
			[]string{"The delta log was restored; no writes were lost"},
		)
	}

	printer.Success("Delta log compacted into %s\n", cfg.DataDir)
	return nil
}
