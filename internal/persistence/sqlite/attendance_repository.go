package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// AttendanceRepository implements persistence.AttendanceRepository on SQLite.
type AttendanceRepository struct {
	pool *ConnectionPool
}

// NewAttendanceRepository creates a SQLite attendance repository.
func NewAttendanceRepository(pool *ConnectionPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertRecord inserts or overwrites the record for (event, user).
func (r *AttendanceRepository) UpsertRecord(ctx context.Context, record persistence.AttendanceRecord) error {
	if record.EventID == "" || record.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO attendance_records (event_id, user_id, status, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE SET status = excluded.status, last_updated = excluded.last_updated`

	_, err := r.pool.db.ExecContext(ctx, query,
		record.EventID,
		record.UserID,
		string(record.Status),
		record.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	return mapError(err)
}

// GetRecord retrieves the record for (event, user).
func (r *AttendanceRepository) GetRecord(ctx context.Context, eventID, userID string) (persistence.AttendanceRecord, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT event_id, user_id, status, last_updated FROM attendance_records WHERE event_id = ? AND user_id = ?`,
		eventID, userID)

	var record persistence.AttendanceRecord
	var status, lastUpdatedStr string
	if err := row.Scan(&record.EventID, &record.UserID, &status, &lastUpdatedStr); err != nil {
		return persistence.AttendanceRecord{}, mapError(err)
	}

	record.Status = persistence.AttendanceStatus(status)
	var err error
	if record.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdatedStr); err != nil {
		return persistence.AttendanceRecord{}, fmt.Errorf("failed to parse last_updated: %w", err)
	}

	return record, nil
}

// ListRecordsForEvent returns all records for an event ordered by last update.
func (r *AttendanceRepository) ListRecordsForEvent(ctx context.Context, eventID string) ([]persistence.AttendanceRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT event_id, user_id, status, last_updated
		FROM attendance_records
		WHERE event_id = ?
		ORDER BY last_updated ASC, user_id ASC`,
		eventID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var records []persistence.AttendanceRecord
	for rows.Next() {
		var record persistence.AttendanceRecord
		var status, lastUpdatedStr string
		if err := rows.Scan(&record.EventID, &record.UserID, &status, &lastUpdatedStr); err != nil {
			return nil, mapError(err)
		}
		record.Status = persistence.AttendanceStatus(status)
		if record.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdatedStr); err != nil {
			return nil, fmt.Errorf("failed to parse last_updated: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return records, nil
}

// DeleteRecord removes the record for (event, user).
func (r *AttendanceRepository) DeleteRecord(ctx context.Context, eventID, userID string) error {
	result, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM attendance_records WHERE event_id = ? AND user_id = ?", eventID, userID)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// DeleteRecordsForEvent removes all records for an event.
func (r *AttendanceRepository) DeleteRecordsForEvent(ctx context.Context, eventID string) error {
	_, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM attendance_records WHERE event_id = ?", eventID)
	return mapError(err)
}
