package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/biometric"
	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/constants"
	"github.com/kozaktomas/gym-gate/internal/database"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Sweep enrolled members for duplicate faces",
	Long: `Sweep all enrolled members and report pairs whose face vectors fall
within the duplicate distance threshold. Duplicates can slip in when the
threshold is lowered after enrollments were made.

Examples:
  # Audit with the configured threshold
  gym-gate audit

  # Stricter sweep
  gym-gate audit --threshold 0.5

  # Output as JSON
  gym-gate audit --json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Float64("threshold", 0, "Duplicate distance threshold (defaults to FACE_DUPLICATE_THRESHOLD)")
	auditCmd.Flags().Bool("json", false, "Output as JSON")
}

// DuplicatePair represents two enrolled members with matching faces
type DuplicatePair struct {
	UIDFirst   string  `json:"uid_first"`
	NameFirst  string  `json:"name_first"`
	UIDSecond  string  `json:"uid_second"`
	NameSecond string  `json:"name_second"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// AuditResult represents the result of a duplicate audit
type AuditResult struct {
	Success       bool            `json:"success"`
	EnrolledCount int             `json:"enrolled_count"`
	Pairs         []DuplicatePair `json:"pairs"`
	Threshold     float64         `json:"threshold"`
	DurationMs    int64           `json:"duration_ms"`
}

func runAudit(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	if threshold == 0 {
		threshold = cfg.Biometric.DuplicateThreshold
	}
	startTime := time.Now()

	if err := initStorage(cfg); err != nil {
		return err
	}
	reader, err := database.GetMemberReader(ctx)
	if err != nil {
		return err
	}

	enrolled, err := reader.ListEnrolled(ctx, "")
	if err != nil {
		return fmt.Errorf("listing enrolled members: %w", err)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Auditing %d enrolled members (threshold %.2f)...\n", len(enrolled), threshold)
		bar = progressbar.NewOptions(len(enrolled),
			progressbar.OptionSetDescription("Comparing faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("members"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	seen := make(map[string]bool)
	var pairs []DuplicatePair
	for i := range enrolled {
		m := &enrolled[i]
		neighbours, distances, err := reader.FindSimilarFaces(ctx, m.FaceVector, constants.AuditCandidateLimit)
		if err != nil {
			return fmt.Errorf("searching similar faces for %s: %w", m.UID, err)
		}
		for j := range neighbours {
			n := &neighbours[j]
			if n.UID == m.UID || distances[j] >= threshold {
				continue
			}
			// Each pair shows up from both sides, keep it once.
			key := m.UID + "/" + n.UID
			if n.UID < m.UID {
				key = n.UID + "/" + m.UID
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, DuplicatePair{
				UIDFirst:   m.UID,
				NameFirst:  m.Name,
				UIDSecond:  n.UID,
				NameSecond: n.Name,
				Distance:   distances[j],
				Similarity: biometric.Similarity(distances[j]),
			})
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	result := AuditResult{
		Success:       true,
		EnrolledCount: len(enrolled),
		Pairs:         pairs,
		Threshold:     threshold,
		DurationMs:    time.Since(startTime).Milliseconds(),
	}
	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println()
	if len(pairs) == 0 {
		fmt.Println("No duplicate faces found")
		return nil
	}
	fmt.Printf("Found %d duplicate pair(s):\n", len(pairs))
	for _, p := range pairs {
		fmt.Printf("  %s (%s) <> %s (%s)  similarity %.2f\n",
			p.NameFirst, p.UIDFirst, p.NameSecond, p.UIDSecond, p.Similarity)
	}
	return nil
}
