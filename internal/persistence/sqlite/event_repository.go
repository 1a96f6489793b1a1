package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// EventRepository implements persistence.EventRepository on SQLite.
type EventRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewEventRepository creates a SQLite event repository. When now is nil the
// wall clock is used.
func NewEventRepository(pool *ConnectionPool, now func() time.Time) *EventRepository {
	if now == nil {
		now = time.Now
	}
	return &EventRepository{pool: pool, now: now}
}

const eventColumns = `id, type, title, description, external_url, location, min_players, max_players,
	is_nsfw, scheduled_at, duration_seconds, author_id, reservable_roles, workshop_interest,
	schedule_message_id, created_at, updated_at`

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	roles, err := encodeRoles(event.ReservableRoles)
	if err != nil {
		return err
	}

	query := `INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.pool.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.Title,
		event.Description,
		nullString(event.ExternalURL),
		nullString(event.Location),
		event.MinPlayers,
		event.MaxPlayers,
		boolToInt(event.IsNSFW),
		event.ScheduledAt.UTC().Format(time.RFC3339),
		int64(event.Duration/time.Second),
		event.AuthorID,
		roles,
		nullString(event.WorkshopInterest),
		nullString(event.ScheduleMessageID),
		event.CreatedAt.Format(time.RFC3339),
		event.UpdatedAt.Format(time.RFC3339),
	)
	return mapError(err)
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListEvents returns events matching the filter ordered by scheduled time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`

	var conditions []string
	var args []any

	if filter.AuthorID != nil {
		conditions = append(conditions, "author_id = ?")
		args = append(args, *filter.AuthorID)
	}
	if filter.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.ScheduledAfter != nil {
		conditions = append(conditions, "scheduled_at > ?")
		args = append(args, filter.ScheduledAfter.UTC().Format(time.RFC3339))
	}
	if filter.EndsBefore != nil {
		// End time is scheduled start plus duration.
		conditions = append(conditions, "datetime(scheduled_at, '+' || duration_seconds || ' seconds') < datetime(?)")
		args = append(args, filter.EndsBefore.UTC().Format(time.RFC3339))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_at ASC, id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return events, nil
}

// PatchEvent applies the non-nil patch fields in one transaction so concurrent
// patches to different fields never overwrite each other.
func (r *EventRepository) PatchEvent(ctx context.Context, id string, patch persistence.EventPatch) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	var updated persistence.Event

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
		event, err := scanEvent(row)
		if err != nil {
			return err
		}

		applyPatch(&event, patch)
		event.UpdatedAt = r.now().UTC()

		roles, err := encodeRoles(event.ReservableRoles)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`UPDATE events
			SET title = ?, description = ?, external_url = ?, location = ?, min_players = ?,
				max_players = ?, is_nsfw = ?, scheduled_at = ?, duration_seconds = ?,
				reservable_roles = ?, schedule_message_id = ?, updated_at = ?
			WHERE id = ?`,
			event.Title,
			event.Description,
			nullString(event.ExternalURL),
			nullString(event.Location),
			event.MinPlayers,
			event.MaxPlayers,
			boolToInt(event.IsNSFW),
			event.ScheduledAt.UTC().Format(time.RFC3339),
			int64(event.Duration/time.Second),
			roles,
			nullString(event.ScheduleMessageID),
			event.UpdatedAt.Format(time.RFC3339),
			event.ID,
		)
		if err != nil {
			return mapError(err)
		}

		updated = event
		return nil
	})
	if err != nil {
		return persistence.Event{}, err
	}

	return updated, nil
}

// DeleteEvent removes an event. Attendance records cascade via the schema.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
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

func applyPatch(event *persistence.Event, patch persistence.EventPatch) {
	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.ExternalURL != nil {
		event.ExternalURL = *patch.ExternalURL
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.MinPlayers != nil {
		event.MinPlayers = *patch.MinPlayers
	}
	if patch.MaxPlayers != nil {
		event.MaxPlayers = *patch.MaxPlayers
	}
	if patch.IsNSFW != nil {
		event.IsNSFW = *patch.IsNSFW
	}
	if patch.ScheduledAt != nil {
		event.ScheduledAt = patch.ScheduledAt.UTC()
	}
	if patch.Duration != nil {
		event.Duration = *patch.Duration
	}
	if patch.ReservableRoles != nil {
		event.ReservableRoles = *patch.ReservableRoles
	}
	if patch.MessageID != nil {
		event.ScheduleMessageID = *patch.MessageID
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var eventType, scheduledAtStr, createdAtStr, updatedAtStr, rolesStr string
	var externalURL, location, workshopInterest, messageID sql.NullString
	var durationSeconds int64
	var nsfw int

	err := row.Scan(
		&event.ID,
		&eventType,
		&event.Title,
		&event.Description,
		&externalURL,
		&location,
		&event.MinPlayers,
		&event.MaxPlayers,
		&nsfw,
		&scheduledAtStr,
		&durationSeconds,
		&event.AuthorID,
		&rolesStr,
		&workshopInterest,
		&messageID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	event.Type = persistence.EventType(eventType)
	event.IsNSFW = nsfw != 0
	event.Duration = time.Duration(durationSeconds) * time.Second
	event.ExternalURL = stringPtr(externalURL)
	event.Location = stringPtr(location)
	event.WorkshopInterest = stringPtr(workshopInterest)
	event.ScheduleMessageID = stringPtr(messageID)

	if event.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAtStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	if err := json.Unmarshal([]byte(rolesStr), &event.ReservableRoles); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to decode reservable_roles: %w", err)
	}
	if len(event.ReservableRoles) == 0 {
		event.ReservableRoles = nil
	}

	return event, nil
}

func encodeRoles(roles []persistence.RoleSlot) (string, error) {
	if roles == nil {
		roles = []persistence.RoleSlot{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("failed to encode reservable_roles: %w", err)
	}
	return string(data), nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
