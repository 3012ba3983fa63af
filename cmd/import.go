package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/database/mariadb"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import members from the legacy MariaDB system",
	Long: `Import members from the legacy gym administration system (MariaDB) into
the local register. Members whose external reference already exists are
skipped, so the import can be re-run safely.

Requires LEGACY_DATABASE_URL to be set (MariaDB DSN with parseTime=true).

Examples:
  # Preview the import
  gym-gate import --dry-run

  # Run the import
  gym-gate import`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("dry-run", false, "Preview the import without writing anything")
	importCmd.Flags().Bool("json", false, "Output as JSON")
}

// ImportResult represents the result of a legacy import
type ImportResult struct {
	Success    bool  `json:"success"`
	Total      int   `json:"total"`
	Imported   int   `json:"imported"`
	Skipped    int   `json:"skipped"`
	Errors     int   `json:"errors"`
	DryRun     bool  `json:"dry_run"`
	DurationMs int64 `json:"duration_ms"`
}

// existingExternalRefs collects the external references already present in
// the register, keyed for the skip check.
func existingExternalRefs(ctx context.Context, reader database.MemberReader) (map[string]bool, error) {
	members, err := reader.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(members))
	for i := range members {
		if members[i].ExternalRef != "" {
			refs[members[i].ExternalRef] = true
		}
	}
	return refs, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if cfg.Legacy.DatabaseURL == "" {
		return errors.New("LEGACY_DATABASE_URL environment variable is required")
	}
	if err := initStorage(cfg); err != nil {
		return err
	}
	writer, err := database.GetMemberWriter(ctx)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Println("Connecting to legacy MariaDB...")
	}
	legacyPool, err := mariadb.NewPool(cfg.Legacy.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to MariaDB: %w", err)
	}
	defer legacyPool.Close()

	legacyMembers, err := legacyPool.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("listing legacy members: %w", err)
	}

	refs, err := existingExternalRefs(ctx, writer)
	if err != nil {
		return fmt.Errorf("listing existing members: %w", err)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Importing %d legacy members...\n", len(legacyMembers))
		bar = progressbar.NewOptions(len(legacyMembers),
			progressbar.OptionSetDescription("Importing members"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("members"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result := ImportResult{DryRun: dryRun, Total: len(legacyMembers)}
	for i := range legacyMembers {
		lm := &legacyMembers[i]
		if bar != nil {
			_ = bar.Add(1)
		}

		if lm.ExternalRef != "" && refs[lm.ExternalRef] {
			result.Skipped++
			continue
		}
		if dryRun {
			result.Imported++
			continue
		}

		member := &database.Member{
			Name:        lm.Name,
			ExternalRef: lm.ExternalRef,
			Email:       lm.Email,
			Plan:        lm.Plan,
			ExpiresAt:   lm.ExpiresAt,
		}
		if err := writer.CreateMember(ctx, member); err != nil {
			result.Errors++
			if !jsonOutput {
				fmt.Printf("\nWarning: failed to import %s: %v\n", lm.Name, err)
			}
			continue
		}
		result.Imported++
	}

	result.Success = result.Errors == 0
	result.DurationMs = time.Since(startTime).Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println()
	if dryRun {
		fmt.Printf("Dry run: %d members would be imported, %d skipped\n", result.Imported, result.Skipped)
		return nil
	}
	fmt.Printf("Imported %d members, skipped %d, %d errors\n", result.Imported, result.Skipped, result.Errors)
	return nil
}
