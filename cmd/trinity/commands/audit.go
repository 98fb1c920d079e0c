package commands

import (
	"fmt"
	"time"

	"github.com/dyluth/trinity/internal/printer"
	"github.com/dyluth/trinity/pkg/cortex"
	"github.com/spf13/cobra"
)

var auditRecent int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the law-assessment audit trail",
	Long: `Show per-domain success rates for every law application the governance
engine has recorded, plus the most recent individual assessments.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditRecent, "recent", 10, "How many recent assessments to show")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
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

	rates, err := engine.AuditRates()
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}

	printer.Header("Law success rates")
	if len(rates) == 0 {
		printer.Info("  No assessments recorded yet.\n")
	}
	for _, r := range rates {
		printer.Field(r.Domain, fmt.Sprintf("%4d applications  %5.1f%% success",
			r.Applications, r.SuccessRate*100))
	}

	recent, err := engine.AuditRecent(auditRecent)
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}

	printer.Header("Recent assessments")
	for _, a := range recent {
		ts := time.Unix(int64(a.Timestamp), 0).Format("2006-01-02 15:04:05")
		mark := "ok"
		if !a.Success {
			mark = "FAILED"
		}
		printer.Field(a.Domain, fmt.Sprintf("%s  %s", ts, mark))
	}

	return nil
}
