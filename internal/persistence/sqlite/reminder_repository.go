package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository on SQLite.
type ReminderRepository struct {
	pool *ConnectionPool
}

// NewReminderRepository creates a SQLite reminder repository.
func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{pool: pool}
}

// CreateReminder inserts a pending reminder.
func (r *ReminderRepository) CreateReminder(ctx context.Context, reminder persistence.Reminder) error {
	if reminder.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO reminders (id, kind, trigger_at, recipient_id, channel_id, message, repeat_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.pool.db.ExecContext(ctx, query,
		reminder.ID,
		string(reminder.Kind),
		reminder.TriggerAt.UTC().Format(time.RFC3339),
		reminder.RecipientID,
		reminder.ChannelID,
		reminder.Message,
		int64(reminder.Repeat/time.Second),
		reminder.CreatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// ListReminders returns all pending reminders ordered by trigger time.
func (r *ReminderRepository) ListReminders(ctx context.Context) ([]persistence.Reminder, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, kind, trigger_at, recipient_id, channel_id, message, repeat_seconds, created_at
		FROM reminders
		ORDER BY trigger_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reminders []persistence.Reminder
	for rows.Next() {
		var reminder persistence.Reminder
		var kind, triggerAtStr, createdAtStr string
		var repeatSeconds int64
		if err := rows.Scan(
			&reminder.ID,
			&kind,
			&triggerAtStr,
			&reminder.RecipientID,
			&reminder.ChannelID,
			&reminder.Message,
			&repeatSeconds,
			&createdAtStr,
		); err != nil {
			return nil, mapError(err)
		}

		reminder.Kind = persistence.ReminderKind(kind)
		reminder.Repeat = time.Duration(repeatSeconds) * time.Second
		if reminder.TriggerAt, err = time.Parse(time.RFC3339, triggerAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse trigger_at: %w", err)
		}
		if reminder.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return reminders, nil
}

// DeleteReminder removes a delivered one-shot reminder.
func (r *ReminderRepository) DeleteReminder(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
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

// RescheduleReminder moves a recurring reminder forward to its next trigger.
func (r *ReminderRepository) RescheduleReminder(ctx context.Context, id string, triggerAt time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE reminders SET trigger_at = ? WHERE id = ?",
		triggerAt.UTC().Format(time.RFC3339), id)
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
