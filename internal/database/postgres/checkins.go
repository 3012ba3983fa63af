package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/gym-gate/internal/database"
)

// CheckinRepository provides PostgreSQL-backed attendance storage.
type CheckinRepository struct {
	pool *Pool
}

// NewCheckinRepository creates a new PostgreSQL checkin repository.
func NewCheckinRepository(pool *Pool) *CheckinRepository {
	return &CheckinRepository{pool: pool}
}

// RecordCheckin inserts an attendance record.
func (r *CheckinRepository) RecordCheckin(ctx context.Context, c *database.Checkin) error {
	query := `
		INSERT INTO checkins (member_uid, similarity)
		VALUES ($1, $2)
		RETURNING id, checked_in_at
	`

	err := r.pool.QueryRow(ctx, query, c.MemberUID, c.Similarity).Scan(&c.ID, &c.CheckedInAt)
	if err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

// CountCheckins returns the number of check-ins in the given unix time window.
func (r *CheckinRepository) CountCheckins(ctx context.Context, from, to int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM checkins
		WHERE checked_in_at >= $1 AND checked_in_at < $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, time.Unix(from, 0).UTC(), time.Unix(to, 0).UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return count, nil
}

// ListCheckins returns check-ins for a member, newest first.
func (r *CheckinRepository) ListCheckins(ctx context.Context, memberUID string, limit int) ([]database.Checkin, error) {
	query := `
		SELECT id, member_uid, similarity, checked_in_at
		FROM checkins
		WHERE member_uid = $1
		ORDER BY checked_in_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, memberUID, limit)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var checkins []database.Checkin
	for rows.Next() {
		var c database.Checkin
		if err := rows.Scan(&c.ID, &c.MemberUID, &c.Similarity, &c.CheckedInAt); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		checkins = append(checkins, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkins: %w", err)
	}
	return checkins, nil
}
