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
	"github.com/kozaktomas/gym-gate/internal/enrollment"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <uid> <image>",
	Short: "Enroll a face capture for a member",
	Long: `Enroll a face capture for a member. The image is sent to the embedding
service, the extracted vector is checked against all enrolled members, and
stored only when no duplicate is found.

Examples:
  # Enroll from a capture file
  gym-gate enroll 7f3a... capture.jpg

  # Stricter duplicate threshold
  gym-gate enroll 7f3a... capture.jpg --threshold 0.3

  # Remove an enrollment
  gym-gate enroll 7f3a... --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Float64("threshold", 0, "Duplicate distance threshold (defaults to FACE_DUPLICATE_THRESHOLD)")
	enrollCmd.Flags().Bool("clear", false, "Remove the member's enrollment instead of adding one")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	clear := mustGetBool(cmd, "clear")

	uid := args[0]
	ctx := context.Background()
	cfg := config.Load()
	if threshold == 0 {
		threshold = cfg.Biometric.DuplicateThreshold
	}

	if err := initStorage(cfg); err != nil {
		return err
	}
	writer, err := database.GetMemberWriter(ctx)
	if err != nil {
		return err
	}
	coord := enrollment.NewCoordinator(writer, threshold)

	if clear {
		if err := coord.Remove(ctx, uid); err != nil {
			return fmt.Errorf("clearing enrollment: %w", err)
		}
		fmt.Printf("Enrollment cleared for member %s\n", uid)
		return nil
	}

	if len(args) < 2 {
		return errors.New("an image file is required (or use --clear)")
	}
	imageData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}

	fmt.Println("Extracting face vector...")
	embedder := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)
	vector, err := embedder.CaptureVector(ctx, imageData)
	if err != nil {
		return fmt.Errorf("extracting face vector: %w", err)
	}

	if err := coord.Enroll(ctx, uid, vector); err != nil {
		var dup *enrollment.DuplicateError
		if errors.As(err, &dup) {
			return fmt.Errorf("enrollment rejected: face already enrolled for %s (%s), similarity %.2f",
				dup.Name, dup.MemberUID, dup.Similarity)
		}
		return fmt.Errorf("enrolling member: %w", err)
	}

	fmt.Printf("Face enrolled for member %s\n", uid)
	return nil
}
