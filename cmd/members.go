package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/database/postgres"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage the member register",
}

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members",
	Long: `List members in the register.

Examples:
  # List all members
  gym-gate members list

  # Search by name (diacritics-insensitive)
  gym-gate members list --q novak

  # Output as JSON
  gym-gate members list --json`,
	RunE: runMembersList,
}

var membersCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new member",
	Long: `Create a new member in the register. The UID is generated.

Examples:
  gym-gate members create "Jana Nováková"
  gym-gate members create "Jana Nováková" --plan standard --email jana@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runMembersCreate,
}

var membersShowCmd = &cobra.Command{
	Use:   "show <uid>",
	Short: "Show one member with payments and recent check-ins",
	Args:  cobra.ExactArgs(1),
	RunE:  runMembersShow,
}

func init() {
	rootCmd.AddCommand(membersCmd)
	membersCmd.AddCommand(membersListCmd)
	membersCmd.AddCommand(membersCreateCmd)
	membersCmd.AddCommand(membersShowCmd)

	membersListCmd.Flags().String("q", "", "Filter by member name")
	membersListCmd.Flags().Bool("json", false, "Output as JSON")

	membersCreateCmd.Flags().String("plan", "", "Membership plan code")
	membersCreateCmd.Flags().String("email", "", "Contact email")
	membersCreateCmd.Flags().String("external-ref", "", "External reference (legacy system ID)")
	membersCreateCmd.Flags().String("expires", "", "Membership expiry date (YYYY-MM-DD)")
}

// initStorage connects to PostgreSQL and registers its repositories. Shared
// by CLI commands that work against the member register.
func initStorage(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return nil
}

func formatExpiry(m *database.Member) string {
	if m.ExpiresAt == nil {
		return "-"
	}
	return m.ExpiresAt.Format("2006-01-02")
}

func runMembersList(cmd *cobra.Command, args []string) error {
	query := mustGetString(cmd, "q")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	if err := initStorage(cfg); err != nil {
		return err
	}

	reader, err := database.GetMemberReader(ctx)
	if err != nil {
		return err
	}

	var members []database.Member
	if query != "" {
		members, err = reader.SearchMembersByName(ctx, query)
	} else {
		members, err = reader.ListMembers(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing members: %w", err)
	}

	if jsonOutput {
		return outputJSON(members)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tNAME\tPLAN\tEXPIRES\tFACE")
	for i := range members {
		m := &members[i]
		face := "-"
		if m.FaceEnrolled {
			face = "enrolled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.UID, m.Name, m.Plan, formatExpiry(m), face)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d members\n", len(members))
	return nil
}

func runMembersCreate(cmd *cobra.Command, args []string) error {
	plan := mustGetString(cmd, "plan")
	expires := mustGetString(cmd, "expires")

	ctx := context.Background()
	cfg := config.Load()

	if plan != "" {
		if _, ok := cfg.Plans.Plans[plan]; !ok {
			return fmt.Errorf("unknown plan: %s", plan)
		}
	}

	member := &database.Member{
		Name:        args[0],
		Plan:        plan,
		Email:       mustGetString(cmd, "email"),
		ExternalRef: mustGetString(cmd, "external-ref"),
	}
	if expires != "" {
		t, err := time.Parse("2006-01-02", expires)
		if err != nil {
			return fmt.Errorf("invalid expiry date %q, expected YYYY-MM-DD", expires)
		}
		member.ExpiresAt = &t
	}

	if err := initStorage(cfg); err != nil {
		return err
	}
	writer, err := database.GetMemberWriter(ctx)
	if err != nil {
		return err
	}

	if err := writer.CreateMember(ctx, member); err != nil {
		return fmt.Errorf("creating member: %w", err)
	}

	fmt.Printf("Created member %s (%s)\n", member.Name, member.UID)
	return nil
}

func runMembersShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	if err := initStorage(cfg); err != nil {
		return err
	}

	reader, err := database.GetMemberReader(ctx)
	if err != nil {
		return err
	}
	member, err := reader.GetMember(ctx, args[0])
	if err != nil {
		return fmt.Errorf("getting member: %w", err)
	}
	if member == nil {
		return fmt.Errorf("member %s not found", args[0])
	}

	fmt.Printf("Member %s\n", member.UID)
	fmt.Printf("  Name:         %s\n", member.Name)
	if member.ExternalRef != "" {
		fmt.Printf("  External ref: %s\n", member.ExternalRef)
	}
	if member.Email != "" {
		fmt.Printf("  Email:        %s\n", member.Email)
	}
	if member.Plan != "" {
		fmt.Printf("  Plan:         %s\n", member.Plan)
	}
	fmt.Printf("  Expires:      %s\n", formatExpiry(member))
	fmt.Printf("  Face:         %v\n", member.FaceEnrolled)
	fmt.Printf("  Created:      %s\n", member.CreatedAt.Format(time.RFC3339))

	pw, err := database.GetPaymentWriter(ctx)
	if err != nil {
		return err
	}
	payments, err := pw.ListPayments(ctx, member.UID)
	if err != nil {
		return fmt.Errorf("listing payments: %w", err)
	}
	if len(payments) > 0 {
		fmt.Println("\nPayments:")
		for i := range payments {
			p := &payments[i]
			fmt.Printf("  %s  %8.2f %s  %s (%s - %s)\n",
				p.PaidAt.Format("2006-01-02"),
				float64(p.AmountCents)/100, p.Currency, p.Plan,
				p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"))
		}
	}

	cw, err := database.GetCheckinWriter(ctx)
	if err != nil {
		return err
	}
	checkins, err := cw.ListCheckins(ctx, member.UID, 10)
	if err != nil {
		return fmt.Errorf("listing check-ins: %w", err)
	}
	if len(checkins) > 0 {
		fmt.Println("\nRecent check-ins:")
		for i := range checkins {
			c := &checkins[i]
			fmt.Printf("  %s  similarity %.2f\n", c.CheckedInAt.Format("2006-01-02 15:04"), c.Similarity)
		}
	}

	return nil
}
