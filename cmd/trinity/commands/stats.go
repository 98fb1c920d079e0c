package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/trinity/internal/printer"
	"github.com/dyluth/trinity/pkg/cortex"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the engine state overview",
	Long: `Show the memory graph, crystal lattice and energy field state from the
configured data directory.

Use --json for machine-readable output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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
			[]string{fmt.Sprintf("Check that %s exists and is readable", cfg.DataDir)},
		)
	}
	defer func() { _ = engine.Close() }()

	stats := engine.Stats()

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Header("Memory graph")
	printer.Field("Nodes", stats.Nodes)
	printer.Field("Concepts", stats.Concepts)
	for platform, count := range stats.PlatformBreakdown {
		printer.Field("  "+platform, count)
	}

	printer.Header("Crystal lattice")
	printer.Field("Crystals", stats.Crystals.Total)
	printer.Field("Evolutions", stats.Crystals.Evolutions)
	printer.Field("Relic facets", stats.Crystals.RelicFacets)
	printer.Field("Abstractions", stats.Crystals.AbstractedConcepts)
	for level, count := range stats.Crystals.LevelDistribution {
		printer.Field("  "+level, count)
	}

	printer.Header("Energy field")
	printer.Field("Presence", fmt.Sprintf("%.3f %s", stats.Presence, printer.Bar(stats.Presence, 20)))
	printer.Field("Momentum", stats.MomentumState)
	printer.Field("Dominant emotion", fmt.Sprintf("%s (%.2f)", stats.DominantEmotion, stats.EmotionIntensity))

	return nil
}
