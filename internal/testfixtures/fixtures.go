package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

var (
	eventCounter    uint64
	recordCounter   uint64
	reminderCounter uint64
	historyCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EventOption configures the generated event fixture.
type EventOption func(*persistence.Event)

// NewEventFixture returns a deterministic event with optional overrides. Each
// call yields a distinct ID and a scheduled time one hour later than the
// previous fixture.
func NewEventFixture(opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	event := persistence.Event{
		ID:          fmt.Sprintf("event-%03d", idx),
		Type:        persistence.EventTypeOperation,
		Title:       fmt.Sprintf("Operation %03d", idx),
		Description: "Briefing at start time.",
		MinPlayers:  1,
		MaxPlayers:  persistence.MaxPlayersUnlimited,
		ScheduledAt: referenceTime.Add(24*time.Hour + time.Duration(idx)*time.Hour),
		Duration:    2 * time.Hour,
		AuthorID:    "author-001",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventType overrides the fixture's event type.
func WithEventType(eventType persistence.EventType) EventOption {
	return func(event *persistence.Event) {
		event.Type = eventType
	}
}

// WithMaxPlayers overrides the fixture's capacity bound.
func WithMaxPlayers(maxPlayers int) EventOption {
	return func(event *persistence.Event) {
		event.MaxPlayers = maxPlayers
	}
}

// WithAuthor overrides the fixture's author.
func WithAuthor(authorID string) EventOption {
	return func(event *persistence.Event) {
		event.AuthorID = authorID
	}
}

// WithScheduledAt overrides the fixture's scheduled time.
func WithScheduledAt(at time.Time) EventOption {
	return func(event *persistence.Event) {
		event.ScheduledAt = at
	}
}

// WithRoles sets reservable role slots on the fixture.
func WithRoles(labels ...string) EventOption {
	return func(event *persistence.Event) {
		event.ReservableRoles = make([]persistence.RoleSlot, len(labels))
		for i, label := range labels {
			event.ReservableRoles[i] = persistence.RoleSlot{Label: label}
		}
	}
}

// NewRecordFixture returns a deterministic attendance record for the event.
// Successive calls advance LastUpdated so arrival order is stable.
func NewRecordFixture(eventID string, status persistence.AttendanceStatus) persistence.AttendanceRecord {
	idx := atomic.AddUint64(&recordCounter, 1)
	return persistence.AttendanceRecord{
		EventID:     eventID,
		UserID:      fmt.Sprintf("member-%03d", idx),
		Status:      status,
		LastUpdated: referenceTime.Add(time.Duration(idx) * time.Second),
	}
}

// NewReminderFixture returns a deterministic one-shot user reminder due one
// hour after the reference time.
func NewReminderFixture() persistence.Reminder {
	idx := atomic.AddUint64(&reminderCounter, 1)
	return persistence.Reminder{
		ID:          fmt.Sprintf("reminder-%03d", idx),
		Kind:        persistence.ReminderKindUser,
		TriggerAt:   referenceTime.Add(time.Hour),
		RecipientID: fmt.Sprintf("member-%03d", idx),
		ChannelID:   "channel-001",
		Message:     fmt.Sprintf("Reminder %03d", idx),
		CreatedAt:   referenceTime,
	}
}

// NewHistoryFixture returns a deterministic archived event entry.
func NewHistoryFixture(authorID string, archivedAt time.Time) persistence.EventHistoryEntry {
	idx := atomic.AddUint64(&historyCounter, 1)
	return persistence.EventHistoryEntry{
		ID:          fmt.Sprintf("history-%03d", idx),
		EventID:     fmt.Sprintf("event-%03d", idx),
		Type:        persistence.EventTypeOperation,
		Title:       fmt.Sprintf("Operation %03d", idx),
		AuthorID:    authorID,
		AuthorName:  authorID,
		ScheduledAt: archivedAt.Add(-2 * time.Hour),
		ArchivedAt:  archivedAt,
	}
}
