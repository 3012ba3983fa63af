package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool for the legacy member system.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// LegacyMember is one member row from the legacy gym system. The legacy
// schema has no biometric data; imported members start unenrolled.
type LegacyMember struct {
	Name        string
	ExternalRef string
	Email       string
	Plan        string
	ExpiresAt   *time.Time
}

// ListMembers reads all members from the legacy system.
func (p *Pool) ListMembers(ctx context.Context) ([]LegacyMember, error) {
	query := `
		SELECT full_name, national_id, COALESCE(email, ''), COALESCE(plan_code, ''), valid_until
		FROM members
		ORDER BY id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query legacy members: %w", err)
	}
	defer rows.Close()

	var members []LegacyMember
	for rows.Next() {
		var m LegacyMember
		var validUntil sql.NullTime
		if err := rows.Scan(&m.Name, &m.ExternalRef, &m.Email, &m.Plan, &validUntil); err != nil {
			return nil, fmt.Errorf("scan legacy member: %w", err)
		}
		if validUntil.Valid {
			t := validUntil.Time
			m.ExpiresAt = &t
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy members: %w", err)
	}
	return members, nil
}

// CountMembers returns the number of members in the legacy system.
func (p *Pool) CountMembers(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&count); err != nil {
		return 0, fmt.Errorf("count legacy members: %w", err)
	}
	return count, nil
}
