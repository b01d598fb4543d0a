package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run a single reminder pass and exit",
	Long: `Runs the reminder pass for the current hour slot (or --at) once. Meant for
cron-driven deployments that keep REMINDER_ENABLED=false on the server.`,
	Run: remindOnce,
}

func init() {
	remindCmd.Flags().String("at", "", `evaluate rules as of this instant (RFC3339) | example: --at="2026-10-19T09:00:00-03:00"`)
	rootCmd.AddCommand(remindCmd)
}

func remindOnce(cmd *cobra.Command, _ []string) {
	ctx := context.Background()
	cfg := loadConfig()
	initApp(ctx, cfg)
	defer StopApp()

	now := time.Now()
	if raw, _ := cmd.Flags().GetString("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			logrus.Fatalf("[SCHEDULER] --at must be RFC3339: %v", err)
		}
		now = at
	}

	report := reminderScheduler.RunOnce(ctx, now)
	logrus.WithFields(logrus.Fields{
		"slot":      report.Slot,
		"rules":     report.RulesMatched,
		"customers": report.CustomersFound,
		"sent":      report.Sent,
		"failed":    report.Failed,
		"took":      report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("[SCHEDULER] manual pass done")
}
