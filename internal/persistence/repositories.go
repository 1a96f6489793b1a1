package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries.
type EventFilter struct {
	AuthorID       *string
	Type           *EventType
	ScheduledAfter *time.Time
	EndsBefore     *time.Time
}

// EventPatch carries field level updates applied in a single atomic write.
// Nil fields are left untouched so concurrent updates to different fields are
// never lost to a whole-record overwrite.
type EventPatch struct {
	Title           *string
	Description     *string
	ExternalURL     **string
	Location        **string
	MinPlayers      *int
	MaxPlayers      *int
	IsNSFW          *bool
	ScheduledAt     *time.Time
	Duration        *time.Duration
	ReservableRoles *[]RoleSlot
	MessageID       **string
}

// EventRepository stores events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	PatchEvent(ctx context.Context, id string, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// AttendanceRepository stores per-event RSVP records.
type AttendanceRepository interface {
	UpsertRecord(ctx context.Context, record AttendanceRecord) error
	GetRecord(ctx context.Context, eventID, userID string) (AttendanceRecord, error)
	ListRecordsForEvent(ctx context.Context, eventID string) ([]AttendanceRecord, error)
	DeleteRecord(ctx context.Context, eventID, userID string) error
	DeleteRecordsForEvent(ctx context.Context, eventID string) error
}

// MemberRepository stores per-member preferences.
type MemberRepository interface {
	UpsertPreference(ctx context.Context, pref MemberPreference) error
	GetPreference(ctx context.Context, userID string) (MemberPreference, error)
	ClearPreference(ctx context.Context, userID string) error
}

// ReminderRepository stores pending reminders consumed by the sweep.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder Reminder) error
	ListReminders(ctx context.Context) ([]Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	RescheduleReminder(ctx context.Context, id string, triggerAt time.Time) error
}

// HistoryRepository stores immutable event history entries.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry EventHistoryEntry) error
	ListHistory(ctx context.Context, since time.Time) ([]EventHistoryEntry, error)
	LastHostedByAuthor(ctx context.Context) (map[string]time.Time, error)
}

// JobStateRepository stores next-due timestamps for long-horizon jobs.
type JobStateRepository interface {
	GetJobState(ctx context.Context, name string) (JobState, error)
	PutJobState(ctx context.Context, state JobState) error
}
