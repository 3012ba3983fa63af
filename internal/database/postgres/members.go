package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/gym-gate/internal/database"
)

const memberColumns = `uid, name, external_ref, email, plan, expires_at, face_vector, face_enrolled, created_at, updated_at`

// MemberRepository provides PostgreSQL-backed member storage with an
// optional in-memory HNSW index over enrolled face vectors.
type MemberRepository struct {
	pool *Pool

	faceIndex     *database.FaceIndex
	faceEnabled   bool
	faceIndexPath string // path to persist the face index (optional)
	faceMu        sync.RWMutex
}

// NewMemberRepository creates a new PostgreSQL member repository.
func NewMemberRepository(pool *Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (database.Member, error) {
	var m database.Member
	var expiresAt sql.NullTime
	var vec sql.Null[pgvector.Vector]

	err := row.Scan(
		&m.UID,
		&m.Name,
		&m.ExternalRef,
		&m.Email,
		&m.Plan,
		&expiresAt,
		&vec,
		&m.FaceEnrolled,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return database.Member{}, fmt.Errorf("scan member: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		m.ExpiresAt = &t
	}
	if vec.Valid {
		m.FaceVector = vec.V.Slice()
	}
	return m, nil
}

func scanMembers(rows *sql.Rows) ([]database.Member, error) {
	var members []database.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// GetMember retrieves a member by UID, returns nil if not found.
func (r *MemberRepository) GetMember(ctx context.Context, uid string) (*database.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE uid = $1`

	m, err := scanMember(r.pool.QueryRow(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &m, nil
}

// ListMembers returns all members ordered by creation time.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]database.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY created_at, uid`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// ListEnrolled returns members with a stored face vector in stable creation
// order. excludeUID removes one member from the result (empty excludes nobody).
func (r *MemberRepository) ListEnrolled(ctx context.Context, excludeUID string) ([]database.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE face_enrolled AND uid <> $1
		ORDER BY created_at, uid
	`

	rows, err := r.pool.Query(ctx, query, excludeUID)
	if err != nil {
		return nil, fmt.Errorf("query enrolled members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// SearchMembersByName finds members whose name contains the query,
// case- and diacritics-insensitively.
func (r *MemberRepository) SearchMembersByName(ctx context.Context, name string) ([]database.Member, error) {
	normalized := database.NormalizeMemberName(name)
	if normalized == "" {
		return nil, nil
	}

	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE replace(lower(unaccent(name)), '-', ' ') LIKE '%' || $1 || '%'
		ORDER BY created_at, uid
	`

	rows, err := r.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("search members by name: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// CountMembers returns the total number of member records.
func (r *MemberRepository) CountMembers(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM members").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// CountEnrolled returns the number of members with a face vector.
func (r *MemberRepository) CountEnrolled(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM members WHERE face_enrolled").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolled members: %w", err)
	}
	return count, nil
}

// FindSimilarFaces returns up to limit enrolled members ordered by Euclidean
// distance to the given vector. Uses the in-memory HNSW index if enabled,
// otherwise falls back to pgvector ordering.
func (r *MemberRepository) FindSimilarFaces(
	ctx context.Context, vector []float32, limit int,
) ([]database.Member, []float64, error) {
	r.faceMu.RLock()
	faceEnabled := r.faceEnabled && r.faceIndex != nil
	r.faceMu.RUnlock()

	if faceEnabled {
		return r.findSimilarIndexed(vector, limit)
	}

	return r.findSimilarPostgres(ctx, vector, limit)
}

// findSimilarIndexed uses the in-memory HNSW index for similarity search.
func (r *MemberRepository) findSimilarIndexed(vector []float32, limit int) ([]database.Member, []float64, error) {
	r.faceMu.RLock()
	defer r.faceMu.RUnlock()

	if r.faceIndex == nil {
		return nil, nil, errors.New("face index not initialized")
	}

	// Ask for more neighbors than requested so distance filtering by the
	// caller still has enough candidates.
	searchK := limit * database.HNSWSearchMultiplier
	searchK = max(searchK, 100)

	uids, distances, err := r.faceIndex.Search(vector, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("face index search: %w", err)
	}

	members := make([]database.Member, 0, limit)
	distancesOut := make([]float64, 0, limit)
	for i, uid := range uids {
		m := r.faceIndex.GetMember(uid)
		if m == nil {
			continue
		}
		members = append(members, *m)
		distancesOut = append(distancesOut, distances[i])
		if len(members) >= limit {
			break
		}
	}

	return members, distancesOut, nil
}

// findSimilarPostgres uses pgvector for similarity search with ef_search tuning.
func (r *MemberRepository) findSimilarPostgres(
	ctx context.Context, vector []float32, limit int,
) ([]database.Member, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT ` + memberColumns + `,
		       face_vector <-> $1::vector AS distance
		FROM members
		WHERE face_enrolled
		ORDER BY distance
		LIMIT $2
	`

	vec := pgvector.NewVector(vector)
	rows, err := tx.QueryContext(ctx, query, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar members: %w", err)
	}
	defer rows.Close()

	var members []database.Member
	var distances []float64

	for rows.Next() {
		var m database.Member
		var expiresAt sql.NullTime
		var vecCol sql.Null[pgvector.Vector]
		var dist float64

		err := rows.Scan(
			&m.UID,
			&m.Name,
			&m.ExternalRef,
			&m.Email,
			&m.Plan,
			&expiresAt,
			&vecCol,
			&m.FaceEnrolled,
			&m.CreatedAt,
			&m.UpdatedAt,
			&dist,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan similar member: %w", err)
		}

		if expiresAt.Valid {
			t := expiresAt.Time
			m.ExpiresAt = &t
		}
		if vecCol.Valid {
			m.FaceVector = vecCol.V.Slice()
		}
		members = append(members, m)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar members: %w", err)
	}

	return members, distances, nil
}

// CreateMember inserts a new member record. Generates a UID when not set.
func (r *MemberRepository) CreateMember(ctx context.Context, m *database.Member) error {
	if m.UID == "" {
		m.UID = uuid.New().String()
	}

	query := `
		INSERT INTO members (uid, name, external_ref, email, plan, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	var expiresAt sql.NullTime
	if m.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *m.ExpiresAt, Valid: true}
	}

	err := r.pool.QueryRow(ctx, query, m.UID, m.Name, m.ExternalRef, m.Email, m.Plan, expiresAt).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// UpdateMember updates name, external reference, email, plan and expiry.
func (r *MemberRepository) UpdateMember(ctx context.Context, m *database.Member) error {
	query := `
		UPDATE members
		SET name = $2, external_ref = $3, email = $4, plan = $5, expires_at = $6, updated_at = NOW()
		WHERE uid = $1
	`

	var expiresAt sql.NullTime
	if m.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *m.ExpiresAt, Valid: true}
	}

	result, err := r.pool.Exec(ctx, query, m.UID, m.Name, m.ExternalRef, m.Email, m.Plan, expiresAt)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s not found", m.UID)
	}

	r.refreshIndexedMember(ctx, m.UID)
	return nil
}

// SetFaceVector stores the face vector for a member and sets the enrolled flag.
func (r *MemberRepository) SetFaceVector(ctx context.Context, uid string, vector []float32) error {
	query := `
		UPDATE members
		SET face_vector = $2, face_enrolled = TRUE, updated_at = NOW()
		WHERE uid = $1
	`

	result, err := r.pool.Exec(ctx, query, uid, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("set face vector: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set face vector rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s not found", uid)
	}

	r.refreshIndexedMember(ctx, uid)
	return nil
}

// ClearFaceVector removes the face vector and resets the enrolled flag.
func (r *MemberRepository) ClearFaceVector(ctx context.Context, uid string) error {
	query := `
		UPDATE members
		SET face_vector = NULL, face_enrolled = FALSE, updated_at = NOW()
		WHERE uid = $1
	`

	result, err := r.pool.Exec(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("clear face vector: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear face vector rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s not found", uid)
	}

	r.faceMu.Lock()
	if r.faceEnabled && r.faceIndex != nil {
		r.faceIndex.Delete(uid)
	}
	r.faceMu.Unlock()
	return nil
}

// refreshIndexedMember re-reads a member from the database and updates the
// in-memory face index entry. No-op when the index is disabled.
func (r *MemberRepository) refreshIndexedMember(ctx context.Context, uid string) {
	r.faceMu.RLock()
	enabled := r.faceEnabled && r.faceIndex != nil
	r.faceMu.RUnlock()
	if !enabled {
		return
	}

	m, err := r.GetMember(ctx, uid)
	if err != nil || m == nil {
		return
	}

	r.faceMu.Lock()
	defer r.faceMu.Unlock()
	if r.faceIndex == nil {
		return
	}
	if m.FaceEnrolled {
		r.faceIndex.Add(m)
	} else {
		r.faceIndex.Delete(uid)
	}
}

// EnableFaceIndex builds (or loads from disk) the in-memory HNSW face index.
func (r *MemberRepository) EnableFaceIndex(ctx context.Context, indexPath string) error {
	r.faceMu.Lock()
	defer r.faceMu.Unlock()

	r.faceIndexPath = indexPath

	enrolled, err := r.CountEnrolled(ctx)
	if err != nil {
		return fmt.Errorf("failed to count enrolled members: %w", err)
	}

	if indexPath != "" {
		idx := database.NewFaceIndex()
		if err := idx.Load(indexPath); err == nil && idx.Count() == enrolled {
			r.faceIndex = idx
			r.faceEnabled = true
			return nil
		}
	}

	members, err := r.ListEnrolled(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load enrolled members: %w", err)
	}

	idx := database.NewFaceIndex()
	if err := idx.BuildFromMembers(members); err != nil {
		return fmt.Errorf("failed to build face index: %w", err)
	}
	r.faceIndex = idx

	if indexPath != "" && len(members) > 0 {
		if err := idx.Save(indexPath); err != nil {
			fmt.Printf("Warning: failed to save face index to disk: %v\n", err)
		}
	}

	r.faceEnabled = true
	return nil
}

// DisableFaceIndex disables the in-memory index, falling back to pgvector queries.
func (r *MemberRepository) DisableFaceIndex() {
	r.faceMu.Lock()
	defer r.faceMu.Unlock()
	r.faceEnabled = false
	r.faceIndex = nil
}

// IsFaceIndexEnabled returns whether the in-memory face index is enabled.
func (r *MemberRepository) IsFaceIndexEnabled() bool {
	r.faceMu.RLock()
	defer r.faceMu.RUnlock()
	return r.faceEnabled && r.faceIndex != nil
}

// FaceIndexCount returns the number of members in the face index.
func (r *MemberRepository) FaceIndexCount() int {
	r.faceMu.RLock()
	defer r.faceMu.RUnlock()
	if r.faceIndex == nil {
		return 0
	}
	return r.faceIndex.Count()
}

// RebuildFaceIndex rebuilds the face index from PostgreSQL data.
func (r *MemberRepository) RebuildFaceIndex(ctx context.Context) error {
	r.faceMu.RLock()
	indexPath := r.faceIndexPath
	r.faceMu.RUnlock()

	members, err := r.ListEnrolled(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load enrolled members: %w", err)
	}

	idx := database.NewFaceIndex()
	if err := idx.BuildFromMembers(members); err != nil {
		return fmt.Errorf("failed to build face index: %w", err)
	}

	r.faceMu.Lock()
	r.faceIndex = idx
	r.faceEnabled = true
	r.faceMu.Unlock()

	if indexPath != "" {
		if err := idx.Save(indexPath); err != nil {
			fmt.Printf("Warning: failed to save face index to disk: %v\n", err)
		}
	}
	return nil
}

// SaveFaceIndex saves the current face index to disk (if a path is configured).
func (r *MemberRepository) SaveFaceIndex() error {
	r.faceMu.RLock()
	defer r.faceMu.RUnlock()

	if r.faceIndexPath == "" {
		return nil // no path configured, nothing to save
	}
	if r.faceIndex == nil {
		return nil
	}

	if err := r.faceIndex.Save(r.faceIndexPath); err != nil {
		return fmt.Errorf("saving face index: %w", err)
	}
	return nil
}
