package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/ai"
	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a monthly activity report",
	Long: `Generate a monthly report of members, revenue, attendance and expiring
memberships. With OPENAI_TOKEN or GEMINI_API_KEY set, the numbers are
summarized into a short natural-language paragraph.

Examples:
  # Report for the previous month
  gym-gate report

  # Report for a specific month
  gym-gate report --month 2026-06

  # Skip the AI summary
  gym-gate report --no-summary

  # Output as JSON
  gym-gate report --json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("month", "", "Report month (YYYY-MM, defaults to the previous month)")
	reportCmd.Flags().Bool("no-summary", false, "Skip the AI summary even when credentials are set")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

// resolveReportMonth parses --month or falls back to the previous month.
func resolveReportMonth(flag string) (int, time.Month, error) {
	if flag == "" {
		prev := time.Now().UTC().AddDate(0, -1, 0)
		return prev.Year(), prev.Month(), nil
	}
	t, err := time.Parse("2006-01", flag)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM", flag)
	}
	return t.Year(), t.Month(), nil
}

func runReport(cmd *cobra.Command, args []string) error {
	monthFlag := mustGetString(cmd, "month")
	noSummary := mustGetBool(cmd, "no-summary")
	jsonOutput := mustGetBool(cmd, "json")

	year, month, err := resolveReportMonth(monthFlag)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg := config.Load()
	if err := initStorage(cfg); err != nil {
		return err
	}

	reader, err := database.GetMemberReader(ctx)
	if err != nil {
		return err
	}
	payments, err := database.GetPaymentWriter(ctx)
	if err != nil {
		return err
	}
	checkins, err := database.GetCheckinWriter(ctx)
	if err != nil {
		return err
	}

	generator := report.NewGenerator(reader, payments, checkins)
	monthly, err := generator.Generate(ctx, year, month)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}

	var provider ai.Provider
	if !noSummary {
		provider, err = ai.NewProvider(ctx, cfg.OpenAI.Token, cfg.Gemini.APIKey)
		if err != nil && !errors.Is(err, ai.ErrNotConfigured) {
			return fmt.Errorf("creating AI provider: %w", err)
		}
	}
	if provider != nil {
		if err := monthly.Summarize(ctx, provider); err != nil {
			fmt.Printf("Warning: AI summary failed: %v\n", err)
		}
	}

	if jsonOutput {
		return outputJSON(monthly)
	}

	fmt.Print(monthly.Facts())
	if monthly.Summary != "" {
		fmt.Printf("\nSummary (%s):\n%s\n", provider.Name(), monthly.Summary)
		usage := provider.GetUsage()
		fmt.Printf("\nTokens: %d in / %d out, cost $%.4f\n", usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	}
	return nil
}
