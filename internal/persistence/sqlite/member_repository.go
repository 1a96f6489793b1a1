package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// MemberRepository implements persistence.MemberRepository on SQLite.
type MemberRepository struct {
	pool *ConnectionPool
}

// NewMemberRepository creates a SQLite member preference repository.
func NewMemberRepository(pool *ConnectionPool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// UpsertPreference stores or replaces a member's timezone preference.
func (r *MemberRepository) UpsertPreference(ctx context.Context, pref persistence.MemberPreference) error {
	if pref.UserID == "" || pref.Timezone == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO member_preferences (user_id, timezone, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET timezone = excluded.timezone, updated_at = excluded.updated_at`

	_, err := r.pool.db.ExecContext(ctx, query,
		pref.UserID, pref.Timezone, pref.UpdatedAt.UTC().Format(time.RFC3339))
	return mapError(err)
}

// GetPreference retrieves a member's timezone preference.
func (r *MemberRepository) GetPreference(ctx context.Context, userID string) (persistence.MemberPreference, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT user_id, timezone, updated_at FROM member_preferences WHERE user_id = ?", userID)

	var pref persistence.MemberPreference
	var updatedAtStr string
	if err := row.Scan(&pref.UserID, &pref.Timezone, &updatedAtStr); err != nil {
		return persistence.MemberPreference{}, mapError(err)
	}

	var err error
	if pref.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.MemberPreference{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return pref, nil
}

// ClearPreference removes a member's timezone preference. Clearing an absent
// preference is not an error.
func (r *MemberRepository) ClearPreference(ctx context.Context, userID string) error {
	_, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM member_preferences WHERE user_id = ?", userID)
	return mapError(err)
}
