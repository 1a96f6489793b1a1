package sqlite

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('operation', 'workshop', 'event')),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		external_url TEXT,
		location TEXT,
		min_players INTEGER NOT NULL DEFAULT 1,
		max_players INTEGER NOT NULL DEFAULT 0,
		is_nsfw INTEGER NOT NULL DEFAULT 0,
		scheduled_at TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		author_id TEXT NOT NULL,
		reservable_roles TEXT NOT NULL DEFAULT '[]',
		workshop_interest TEXT,
		schedule_message_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('accepted', 'declined', 'tentative')),
		last_updated TEXT NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS member_preferences (
		user_id TEXT PRIMARY KEY,
		timezone TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		trigger_at TEXT NOT NULL,
		recipient_id TEXT NOT NULL DEFAULT '',
		channel_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		repeat_seconds INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_history (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		scheduled_at TEXT NOT NULL,
		accepted TEXT NOT NULL DEFAULT '[]',
		declined TEXT NOT NULL DEFAULT '[]',
		tentative TEXT NOT NULL DEFAULT '[]',
		role_occupants TEXT NOT NULL DEFAULT '[]',
		auto_deleted INTEGER NOT NULL DEFAULT 0,
		archived_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_states (
		name TEXT PRIMARY KEY,
		next_due TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance_records(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_trigger ON reminders(trigger_at)`,
	`CREATE INDEX IF NOT EXISTS idx_history_author ON event_history(author_id, scheduled_at)`,
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
