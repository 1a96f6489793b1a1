package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// JobStateRepository implements persistence.JobStateRepository on SQLite.
type JobStateRepository struct {
	pool *ConnectionPool
}

// NewJobStateRepository creates a SQLite job state repository.
func NewJobStateRepository(pool *ConnectionPool) *JobStateRepository {
	return &JobStateRepository{pool: pool}
}

// GetJobState retrieves the persisted state for a named job.
func (r *JobStateRepository) GetJobState(ctx context.Context, name string) (persistence.JobState, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT name, next_due, updated_at FROM job_states WHERE name = ?", name)

	var state persistence.JobState
	var nextDueStr, updatedAtStr string
	if err := row.Scan(&state.Name, &nextDueStr, &updatedAtStr); err != nil {
		return persistence.JobState{}, mapError(err)
	}

	var err error
	if state.NextDue, err = time.Parse(time.RFC3339, nextDueStr); err != nil {
		return persistence.JobState{}, fmt.Errorf("failed to parse next_due: %w", err)
	}
	if state.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.JobState{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return state, nil
}

// PutJobState stores or replaces the state for a named job.
func (r *JobStateRepository) PutJobState(ctx context.Context, state persistence.JobState) error {
	if state.Name == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO job_states (name, next_due, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET next_due = excluded.next_due, updated_at = excluded.updated_at`

	_, err := r.pool.db.ExecContext(ctx, query,
		state.Name,
		state.NextDue.UTC().Format(time.RFC3339),
		state.UpdatedAt.UTC().Format(time.RFC3339))
	return mapError(err)
}
