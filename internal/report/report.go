package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/gym-gate/internal/ai"
	"github.com/kozaktomas/gym-gate/internal/database"
)

// expiryHorizon is how far past the report month the expiring-memberships
// section looks ahead.
const expiryHorizon = 30 * 24 * time.Hour

// Monthly is an aggregated view of one calendar month of gym activity.
type Monthly struct {
	Year  int
	Month time.Month

	TotalMembers    int
	EnrolledMembers int
	NewMembers      int
	RevenueCents    int64
	Checkins        int

	// ExpiringSoon lists members whose membership runs out within 30 days
	// after the end of the report month.
	ExpiringSoon []database.Member

	// Summary is an optional AI-generated natural language summary.
	Summary string
}

// Generator aggregates stored members, payments and check-ins into monthly reports.
type Generator struct {
	members  database.MemberReader
	payments database.PaymentWriter
	checkins database.CheckinWriter
}

// NewGenerator creates a report generator over the given stores.
func NewGenerator(members database.MemberReader, payments database.PaymentWriter, checkins database.CheckinWriter) *Generator {
	return &Generator{
		members:  members,
		payments: payments,
		checkins: checkins,
	}
}

// Generate builds the report for one calendar month.
func (g *Generator) Generate(ctx context.Context, year int, month time.Month) (*Monthly, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	members, err := g.members.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	r := &Monthly{
		Year:         year,
		Month:        month,
		TotalMembers: len(members),
	}

	expiryCutoff := end.Add(expiryHorizon)
	for _, m := range members {
		if m.FaceEnrolled {
			r.EnrolledMembers++
		}
		if !m.CreatedAt.Before(start) && m.CreatedAt.Before(end) {
			r.NewMembers++
		}
		if m.ExpiresAt != nil && !m.ExpiresAt.Before(end) && m.ExpiresAt.Before(expiryCutoff) {
			r.ExpiringSoon = append(r.ExpiringSoon, m)
		}
	}

	revenue, err := g.payments.SumPayments(ctx, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("summing payments: %w", err)
	}
	r.RevenueCents = revenue

	checkins, err := g.checkins.CountCheckins(ctx, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("counting check-ins: %w", err)
	}
	r.Checkins = checkins

	return r, nil
}

// Facts renders the report numbers as plain text, one fact per line. Used
// as the AI summary input and as the CLI fallback when no AI is configured.
func (r *Monthly) Facts() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report month: %s %d\n", r.Month, r.Year)
	fmt.Fprintf(&b, "Total members: %d (%d with biometric enrollment)\n", r.TotalMembers, r.EnrolledMembers)
	fmt.Fprintf(&b, "New members this month: %d\n", r.NewMembers)
	fmt.Fprintf(&b, "Revenue this month: %.2f\n", float64(r.RevenueCents)/100)
	fmt.Fprintf(&b, "Check-ins this month: %d\n", r.Checkins)
	fmt.Fprintf(&b, "Memberships expiring within 30 days: %d\n", len(r.ExpiringSoon))
	for _, m := range r.ExpiringSoon {
		fmt.Fprintf(&b, "  - %s (expires %s)\n", m.Name, m.ExpiresAt.Format("2006-01-02"))
	}
	return b.String()
}

// Summarize attaches an AI-generated summary to the report.
func (r *Monthly) Summarize(ctx context.Context, provider ai.Provider) error {
	summary, err := provider.SummarizeReport(ctx, r.Facts())
	if err != nil {
		return fmt.Errorf("summarizing report: %w", err)
	}
	r.Summary = summary
	return nil
}
