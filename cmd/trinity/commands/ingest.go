package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dyluth/trinity/internal/printer"
	"github.com/dyluth/trinity/pkg/cortex"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a file of NDJSON records",
	Long: `Ingest every newline-delimited JSON record in a file, then flush and
compact the persistent state.

Conversation-shaped records (platform, conversation_id, messages) run the
full crystallization pipeline; other records go through raw governance.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return printer.Error(
			"Cannot read input file",
			err.Error(),
			[]string{"Check the path and permissions"},
		)
	}
	defer f.Close()

	engine, err := cortex.New(cfg, logger)
	if err != nil {
		return printer.Error(
			"Failed to start engine",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is writable", cfg.DataDir)},
		)
	}
	engine.Start(cmd.Context())

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		dispatchRecord(engine, line)
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if err := engine.Close(); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	printer.Success("Ingested %d records from %s\n", count, args[0])
	return nil
}
