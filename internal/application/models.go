package application

import (
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// Principal represents the member invoking a service method.
type Principal struct {
	UserID  string
	IsStaff bool
}

// EventInput captures caller provided event fields for creation.
type EventInput struct {
	Type             persistence.EventType
	Title            string
	Description      string
	ExternalURL      *string
	Location         *string
	MinPlayers       int
	MaxPlayers       int
	IsNSFW           bool
	ScheduledAt      time.Time
	Duration         time.Duration
	ReservableRoles  []persistence.RoleSlot
	WorkshopInterest *string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps a field level patch for an existing event. The patch
// is applied in one atomic write so a concurrent RSVP is never lost.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Patch     persistence.EventPatch
}

// ListEventsParams narrows event listings.
type ListEventsParams struct {
	AuthorID       *string
	Type           *persistence.EventType
	ScheduledAfter *time.Time
	EndsBefore     *time.Time
}
