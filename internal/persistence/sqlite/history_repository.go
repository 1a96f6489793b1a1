package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// HistoryRepository implements persistence.HistoryRepository on SQLite.
type HistoryRepository struct {
	pool *ConnectionPool
}

// NewHistoryRepository creates a SQLite event history repository.
func NewHistoryRepository(pool *ConnectionPool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// AppendHistory inserts an immutable history entry. Entries are never updated.
func (r *HistoryRepository) AppendHistory(ctx context.Context, entry persistence.EventHistoryEntry) error {
	if entry.ID == "" {
		return persistence.ErrConstraintViolation
	}

	accepted, err := encodeNames(entry.Accepted)
	if err != nil {
		return err
	}
	declined, err := encodeNames(entry.Declined)
	if err != nil {
		return err
	}
	tentative, err := encodeNames(entry.Tentative)
	if err != nil {
		return err
	}
	roles, err := encodeRoles(entry.RoleOccupants)
	if err != nil {
		return err
	}

	query := `INSERT INTO event_history (id, event_id, type, title, author_id, author_name,
		scheduled_at, accepted, declined, tentative, role_occupants, auto_deleted, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.pool.db.ExecContext(ctx, query,
		entry.ID,
		entry.EventID,
		string(entry.Type),
		entry.Title,
		entry.AuthorID,
		entry.AuthorName,
		entry.ScheduledAt.UTC().Format(time.RFC3339),
		accepted,
		declined,
		tentative,
		roles,
		boolToInt(entry.AutoDeleted),
		entry.ArchivedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// ListHistory returns entries scheduled at or after the given instant, newest
// first.
func (r *HistoryRepository) ListHistory(ctx context.Context, since time.Time) ([]persistence.EventHistoryEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, event_id, type, title, author_id, author_name, scheduled_at,
			accepted, declined, tentative, role_occupants, auto_deleted, archived_at
		FROM event_history
		WHERE scheduled_at >= ?
		ORDER BY scheduled_at DESC, id ASC`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.EventHistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return entries, nil
}

// LastHostedByAuthor returns the most recent scheduled time per author across
// the full history.
func (r *HistoryRepository) LastHostedByAuthor(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT author_id, MAX(scheduled_at) FROM event_history GROUP BY author_id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var authorID, scheduledAtStr string
		if err := rows.Scan(&authorID, &scheduledAtStr); err != nil {
			return nil, mapError(err)
		}
		scheduledAt, err := time.Parse(time.RFC3339, scheduledAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scheduled_at: %w", err)
		}
		result[authorID] = scheduledAt
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return result, nil
}

func scanHistoryEntry(row rowScanner) (persistence.EventHistoryEntry, error) {
	var entry persistence.EventHistoryEntry
	var entryType, scheduledAtStr, archivedAtStr string
	var accepted, declined, tentative, roles string
	var autoDeleted int

	err := row.Scan(
		&entry.ID,
		&entry.EventID,
		&entryType,
		&entry.Title,
		&entry.AuthorID,
		&entry.AuthorName,
		&scheduledAtStr,
		&accepted,
		&declined,
		&tentative,
		&roles,
		&autoDeleted,
		&archivedAtStr,
	)
	if err != nil {
		return persistence.EventHistoryEntry{}, mapError(err)
	}

	entry.Type = persistence.EventType(entryType)
	entry.AutoDeleted = autoDeleted != 0

	if entry.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAtStr); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if entry.ArchivedAt, err = time.Parse(time.RFC3339, archivedAtStr); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to parse archived_at: %w", err)
	}

	if err := json.Unmarshal([]byte(accepted), &entry.Accepted); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to decode accepted names: %w", err)
	}
	if err := json.Unmarshal([]byte(declined), &entry.Declined); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to decode declined names: %w", err)
	}
	if err := json.Unmarshal([]byte(tentative), &entry.Tentative); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to decode tentative names: %w", err)
	}
	if err := json.Unmarshal([]byte(roles), &entry.RoleOccupants); err != nil {
		return persistence.EventHistoryEntry{}, fmt.Errorf("failed to decode role_occupants: %w", err)
	}
	if len(entry.RoleOccupants) == 0 {
		entry.RoleOccupants = nil
	}

	return entry, nil
}

func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("failed to encode name list: %w", err)
	}
	return string(data), nil
}
