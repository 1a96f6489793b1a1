package persistence

import "time"

// EventType classifies an event and drives default reminder lead times and
// display color hints on the platform side.
type EventType string

const (
	// EventTypeOperation is a full-attendance main event.
	EventTypeOperation EventType = "operation"
	// EventTypeWorkshop is a training event backed by an interest list.
	EventTypeWorkshop EventType = "workshop"
	// EventTypeEvent is a generic community event.
	EventTypeEvent EventType = "event"
)

// MaxPlayers sentinel values. Positive values are a hard capacity bound.
const (
	// MaxPlayersUnlimited disables the capacity bound.
	MaxPlayersUnlimited = 0
	// MaxPlayersAnonymous hides the attendee count on display; no capacity bound.
	MaxPlayersAnonymous = -1
)

// RoleSlot is a named, exclusive slot on an event a member can claim ahead of
// general attendance. An empty OccupantID means the slot is vacant.
type RoleSlot struct {
	Label      string
	OccupantID string
}

// Event represents a scheduled community event stored in persistence.
// ScheduledAt is always UTC; member timezones apply only at the input and
// display boundaries.
type Event struct {
	ID                string
	Type              EventType
	Title             string
	Description       string
	ExternalURL       *string
	Location          *string
	MinPlayers        int
	MaxPlayers        int
	IsNSFW            bool
	ScheduledAt       time.Time
	Duration          time.Duration
	AuthorID          string
	ReservableRoles   []RoleSlot
	WorkshopInterest  *string
	ScheduleMessageID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AttendanceStatus is a member's recorded response to an event. Absence of a
// record means no response.
type AttendanceStatus string

const (
	// StatusAccepted counts toward the capacity bound.
	StatusAccepted AttendanceStatus = "accepted"
	// StatusDeclined marks the member as not attending.
	StatusDeclined AttendanceStatus = "declined"
	// StatusTentative marks the member as undecided.
	StatusTentative AttendanceStatus = "tentative"
)

// AttendanceRecord stores one member's response to one event. At most one
// record exists per (EventID, UserID); a new status overwrites it.
type AttendanceRecord struct {
	EventID     string
	UserID      string
	Status      AttendanceStatus
	LastUpdated time.Time
}

// MemberPreference stores a member's IANA timezone name. Absence means the
// member must be prompted before scheduling.
type MemberPreference struct {
	UserID    string
	Timezone  string
	UpdatedAt time.Time
}

// ReminderKind distinguishes reminder payloads delivered by the sweep.
type ReminderKind string

const (
	// ReminderKindUser is a member-scheduled reminder.
	ReminderKindUser ReminderKind = "user-reminder"
	// ReminderKindNewcomerCheck follows up on a recently joined member.
	ReminderKindNewcomerCheck ReminderKind = "newcomer-check"
)

// Reminder is a pending notification. A zero Repeat makes it one-shot;
// otherwise the sweep reinserts it at TriggerAt + Repeat after firing.
type Reminder struct {
	ID          string
	Kind        ReminderKind
	TriggerAt   time.Time
	RecipientID string
	ChannelID   string
	Message     string
	Repeat      time.Duration
	CreatedAt   time.Time
}

// EventHistoryEntry is an immutable snapshot of an event taken at deletion or
// expiry time, with identities resolved to display names. It is the audit
// trail hosting statistics are computed from.
type EventHistoryEntry struct {
	ID            string
	EventID       string
	Type          EventType
	Title         string
	AuthorID      string
	AuthorName    string
	ScheduledAt   time.Time
	Accepted      []string
	Declined      []string
	Tentative     []string
	RoleOccupants []RoleSlot
	AutoDeleted   bool
	ArchivedAt    time.Time
}

// JobState persists the next due timestamp of a long-horizon periodic job so
// cadence survives restarts and failed runs still make forward progress.
type JobState struct {
	Name      string
	NextDue   time.Time
	UpdatedAt time.Time
}
