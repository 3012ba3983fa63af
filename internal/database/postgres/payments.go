package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

// PaymentRepository provides PostgreSQL-backed payment storage.
type PaymentRepository struct {
	pool *Pool
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(pool *Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// RecordPayment inserts a payment and extends the member's expiry to the
// covered period end when it is later than the current expiry. Both writes
// happen in one transaction.
func (r *PaymentRepository) RecordPayment(ctx context.Context, p *database.Payment) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO payments (member_uid, amount_cents, currency, plan, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, paid_at
	`

	err = tx.QueryRowContext(ctx, insertQuery,
		p.MemberUID, p.AmountCents, p.Currency, p.Plan, p.PeriodStart, p.PeriodEnd,
	).Scan(&p.ID, &p.PaidAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	extendQuery := `
		UPDATE members
		SET expires_at = $2, updated_at = NOW()
		WHERE uid = $1 AND (expires_at IS NULL OR expires_at < $2)
	`

	if _, err := tx.ExecContext(ctx, extendQuery, p.MemberUID, p.PeriodEnd); err != nil {
		return fmt.Errorf("extend membership expiry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// ListPayments returns payments for a member, newest first.
func (r *PaymentRepository) ListPayments(ctx context.Context, memberUID string) ([]database.Payment, error) {
	query := `
		SELECT id, member_uid, amount_cents, currency, plan, period_start, period_end, paid_at
		FROM payments
		WHERE member_uid = $1
		ORDER BY paid_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, memberUID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

// SumPayments returns the total cents paid in the given unix time window.
func (r *PaymentRepository) SumPayments(ctx context.Context, from, to int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE paid_at >= $1 AND paid_at < $2
	`

	var total int64
	err := r.pool.QueryRow(ctx, query, time.Unix(from, 0).UTC(), time.Unix(to, 0).UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

func scanPayments(rows *sql.Rows) ([]database.Payment, error) {
	var payments []database.Payment
	for rows.Next() {
		var p database.Payment
		err := rows.Scan(
			&p.ID,
			&p.MemberUID,
			&p.AmountCents,
			&p.Currency,
			&p.Plan,
			&p.PeriodStart,
			&p.PeriodEnd,
			&p.PaidAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
