// Package dispatch routes inbound platform interactions to the engine, flow,
// and service entry points. Each interaction arrives as one tagged Action
// value; no handler failure terminates the loop.
package dispatch

import (
	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/persistence"
)

// Action is one inbound interaction. Concrete action types carry exactly the
// fields their handler needs; the marker method keeps the set closed to this
// package.
type Action interface {
	action()
}

// SetStatus records an RSVP button press. ChannelID is where the interaction
// happened and receives any failure notice.
type SetStatus struct {
	EventID   string
	UserID    string
	ChannelID string
	Status    persistence.AttendanceStatus
}

// ClearStatus withdraws a member's response.
type ClearStatus struct {
	EventID   string
	UserID    string
	ChannelID string
}

// ClaimRole requests a reservable slot.
type ClaimRole struct {
	EventID   string
	UserID    string
	ChannelID string
	Label     string
}

// ReleaseRole vacates a reservable slot, by the holder or on their behalf by
// staff.
type ReleaseRole struct {
	EventID      string
	ActorID      string
	ChannelID    string
	Label        string
	ActorIsStaff bool
}

// BeginCreate starts a conversational create flow in the member's DM channel.
type BeginCreate struct {
	UserID    string
	ChannelID string
	EventType persistence.EventType
}

// BeginEdit starts a conversational edit flow for an existing event.
type BeginEdit struct {
	Principal application.Principal
	EventID   string
	ChannelID string
}

// DeleteEvent archives and removes an event.
type DeleteEvent struct {
	Principal application.Principal
	EventID   string
	ChannelID string
}

// DirectMessage is free text in a DM channel, offered to the active flow
// session first.
type DirectMessage struct {
	UserID    string
	ChannelID string
	Text      string
}

// SetTimezone records or clears a member's timezone preference.
type SetTimezone struct {
	UserID    string
	ChannelID string
	Zone      string
}

// RemindMe schedules a member reminder from a relative time expression.
type RemindMe struct {
	UserID    string
	ChannelID string
	In        string
	Message   string
}

func (SetStatus) action()     {}
func (ClearStatus) action()   {}
func (ClaimRole) action()     {}
func (ReleaseRole) action()   {}
func (BeginCreate) action()   {}
func (BeginEdit) action()     {}
func (DeleteEvent) action()   {}
func (DirectMessage) action() {}
func (SetTimezone) action()   {}
func (RemindMe) action()      {}
