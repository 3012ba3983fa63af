package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/embedding"
	"github.com/kozaktomas/gym-gate/internal/verification"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Identify a face capture against the enrolled members",
	Long: `Identify a face capture against all enrolled members, the same check the
entrance gate runs. Prints the best match and the membership status.

Examples:
  # Dry-run identification
  gym-gate verify capture.jpg

  # Identify and record the visit
  gym-gate verify capture.jpg --checkin

  # Output as JSON
  gym-gate verify capture.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Match distance threshold (defaults to FACE_IDENTIFY_THRESHOLD)")
	verifyCmd.Flags().Bool("checkin", false, "Record the visit when a match is found")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// VerifyCmdResult represents the result of a verify operation
type VerifyCmdResult struct {
	MemberUID     string  `json:"member_uid"`
	Name          string  `json:"name"`
	Distance      float64 `json:"distance"`
	Similarity    float64 `json:"similarity"`
	Active        bool    `json:"active"`
	DaysRemaining int     `json:"days_remaining"`
	CheckedIn     bool    `json:"checked_in"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	checkin := mustGetBool(cmd, "checkin")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	if threshold == 0 {
		threshold = cfg.Biometric.IdentifyThreshold
	}

	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}

	if err := initStorage(cfg); err != nil {
		return err
	}
	reader, err := database.GetMemberReader(ctx)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Println("Extracting face vector...")
	}
	embedder := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)
	vector, err := embedder.CaptureVector(ctx, imageData)
	if err != nil {
		return fmt.Errorf("extracting face vector: %w", err)
	}

	verifier := verification.NewVerifier(reader, threshold)
	result, err := verifier.Verify(ctx, vector)
	if err != nil {
		if errors.Is(err, verification.ErrNoMatch) || errors.Is(err, verification.ErrNoEnrollments) {
			return err
		}
		return fmt.Errorf("verifying capture: %w", err)
	}

	out := VerifyCmdResult{
		MemberUID:     result.Member.UID,
		Name:          result.Member.Name,
		Distance:      result.Distance,
		Similarity:    result.Similarity,
		Active:        result.IsActive,
		DaysRemaining: result.DaysRemaining,
	}

	if checkin {
		cw, err := database.GetCheckinWriter(ctx)
		if err != nil {
			return err
		}
		record := &database.Checkin{MemberUID: result.Member.UID, Similarity: result.Similarity}
		if err := cw.RecordCheckin(ctx, record); err != nil {
			return fmt.Errorf("recording check-in: %w", err)
		}
		out.CheckedIn = true
	}

	if jsonOutput {
		return outputJSON(out)
	}

	fmt.Printf("Matched %s (%s)\n", out.Name, out.MemberUID)
	fmt.Printf("  Similarity: %.2f (distance %.3f)\n", out.Similarity, out.Distance)
	if out.Active {
		fmt.Printf("  Membership: active, %d days remaining\n", out.DaysRemaining)
	} else {
		fmt.Printf("  Membership: expired\n")
	}
	if out.CheckedIn {
		fmt.Println("  Visit recorded")
	}
	return nil
}
