package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/trinity/internal/printer"
	"github.com/dyluth/trinity/pkg/cortex"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive ingest loop over stdin",
	Long: `Read newline-delimited JSON records from stdin and feed them through
the engine until EOF or interrupt.

Records with "platform", "conversation_id" and "messages" keys are
ingested as conversations (crystallized, energized, stepped); anything
else goes through the governance pipeline as a raw record.

On shutdown the engine flushes and compacts its persistent state.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
			"Failed to start engine",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is writable", cfg.DataDir)},
		)
	}
	engine.Start(ctx)

	printer.Success("Trinity running (tier: %s, data: %s)\n", cfg.Tier, cfg.DataDir)
	printer.Info("Paste NDJSON records, Ctrl-D to finish, Ctrl-C to stop.\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			printer.Info("\n")
			printer.Step("Interrupted, shutting down\n")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if line == "" {
				continue
			}
			dispatchRecord(engine, line)
		}
	}

	printSnapshot(engine.Snapshot(5))

	if err := engine.Close(); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	printer.Success("State flushed\n")
	return nil
}

// dispatchRecord routes one NDJSON line: conversation-shaped records go
// through the full pipeline, everything else through raw governance.
func dispatchRecord(engine *cortex.Engine, line string) {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		printer.Warning("skipping invalid JSON: %v\n", err)
		return
	}

	platform, hasPlatform := record["platform"].(string)
	cid, hasCID := record["conversation_id"].(string)
	rawMessages, hasMessages := record["messages"].([]any)

	if !hasPlatform || !hasCID || !hasMessages {
		engine.Ingest(record)
		printer.Info("ingested raw record\n")
		return
	}

	messages := make([]cortex.Message, 0, len(rawMessages))
	for _, raw := range rawMessages {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		messages = append(messages, cortex.Message{Role: role, Content: content})
	}

	result, err := engine.IngestConversation(platform, cid, messages)
	if err != nil {
		printer.Warning("ingest failed: %v\n", err)
		return
	}
	if result.Status == cortex.StatusLimitReached {
		printer.Warning("tier limit reached, conversation not ingested\n")
		return
	}

	printer.Success("%s  level=%s facets=%d uses=%d presence=%.2f\n",
		result.Concept, result.Level, result.FacetCount, result.UsageCount, result.Presence)
}

func printSnapshot(snap *cortex.Snapshot) {
	printer.Header("Energy field")
	printer.Field("Presence", fmt.Sprintf("%.3f %s", snap.Presence, printer.Bar(snap.Presence, 20)))
	printer.Field("Momentum", snap.MomentumState)
	printer.Field("Dominant emotion", fmt.Sprintf("%s (%.2f)", snap.DominantEmotion, snap.EmotionIntensity))
	printer.Field("Total energy", fmt.Sprintf("%.3f", snap.TotalEnergy))
	for _, f := range snap.TopFacets {
		label := f.Role
		if label == "" {
			label = f.FacetID
		}
		printer.Field(label, fmt.Sprintf("%.3f %s %s", f.Energy, printer.Bar(f.Energy, 10), f.Emotion))
	}
}
