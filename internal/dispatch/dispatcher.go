package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/flow"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/platform"
	"github.com/example/guild-scheduler/internal/timeparse"
)

// AttendanceEngine captures the RSVP operations dispatch routes to.
type AttendanceEngine interface {
	SetStatus(ctx context.Context, eventID, userID string, status persistence.AttendanceStatus) (attendance.Snapshot, error)
	ClearStatus(ctx context.Context, eventID, userID string) (attendance.Snapshot, error)
	ClaimRole(ctx context.Context, eventID, userID, label string) (attendance.Snapshot, error)
	ReleaseRole(ctx context.Context, eventID, actorID, label string, actorIsStaff bool) (attendance.Snapshot, error)
}

// FlowManager captures the conversational flow entry points.
type FlowManager interface {
	StartCreate(userID, channelID string, eventType persistence.EventType) error
	StartEdit(principal application.Principal, eventID, channelID string) error
	HandleMessage(userID, channelID, text string) bool
}

// EventDeleter archives and removes events on behalf of a principal.
type EventDeleter interface {
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
}

// MemberStore records timezone preferences.
type MemberStore interface {
	UpsertPreference(ctx context.Context, pref persistence.MemberPreference) error
	ClearPreference(ctx context.Context, userID string) error
}

// ReminderScheduler creates member reminders.
type ReminderScheduler interface {
	ScheduleUserReminder(ctx context.Context, userID, channelID, message string, triggerAt time.Time, repeat time.Duration) (persistence.Reminder, error)
}

// Dispatcher routes actions to their handlers. A panicking or failing handler
// aborts only its own action; the member gets a notice and the loop keeps
// going.
type Dispatcher struct {
	engine    AttendanceEngine
	flows     FlowManager
	events    EventDeleter
	members   MemberStore
	reminders ReminderScheduler
	gateway   platform.Gateway
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher wires the routing targets.
func NewDispatcher(engine AttendanceEngine, flows FlowManager, events EventDeleter, members MemberStore, reminders ReminderScheduler, gateway platform.Gateway, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine:    engine,
		flows:     flows,
		events:    events,
		members:   members,
		reminders: reminders,
		gateway:   gateway,
		now:       now,
		logger:    logger,
	}
}

// Dispatch handles one inbound action.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("handler panicked", "action", fmt.Sprintf("%T", action), "panic", p)
		}
	}()

	userID, channelID := actionOrigin(action)
	if err := d.handle(ctx, action); err != nil {
		d.logger.Error("action failed",
			"action", fmt.Sprintf("%T", action),
			"user_id", userID,
			"kind", application.ErrorKind(err),
			"error", err)
		d.notify(ctx, userID, channelID, userNotice(err))
	}
}

func (d *Dispatcher) handle(ctx context.Context, action Action) error {
	switch a := action.(type) {
	case SetStatus:
		_, err := d.engine.SetStatus(ctx, a.EventID, a.UserID, a.Status)
		return err
	case ClearStatus:
		_, err := d.engine.ClearStatus(ctx, a.EventID, a.UserID)
		return err
	case ClaimRole:
		_, err := d.engine.ClaimRole(ctx, a.EventID, a.UserID, a.Label)
		return err
	case ReleaseRole:
		_, err := d.engine.ReleaseRole(ctx, a.EventID, a.ActorID, a.Label, a.ActorIsStaff)
		return err
	case BeginCreate:
		return d.beginCreate(ctx, a)
	case BeginEdit:
		return d.beginEdit(ctx, a)
	case DeleteEvent:
		if err := d.events.DeleteEvent(ctx, a.Principal, a.EventID); err != nil {
			return err
		}
		d.notify(ctx, a.Principal.UserID, a.ChannelID, "Event deleted and archived.")
		return nil
	case DirectMessage:
		d.flows.HandleMessage(a.UserID, a.ChannelID, a.Text)
		return nil
	case SetTimezone:
		return d.setTimezone(ctx, a)
	case RemindMe:
		return d.remindMe(ctx, a)
	default:
		d.logger.Warn("unrecognized action", "action", fmt.Sprintf("%T", action))
		return nil
	}
}

func (d *Dispatcher) beginCreate(ctx context.Context, a BeginCreate) error {
	err := d.flows.StartCreate(a.UserID, a.ChannelID, a.EventType)
	if errors.Is(err, flow.ErrSessionActive) {
		d.notify(ctx, a.UserID, a.ChannelID, "You already have a session running here. Reply \"cancel\" to end it first.")
		return nil
	}
	return err
}

func (d *Dispatcher) beginEdit(ctx context.Context, a BeginEdit) error {
	err := d.flows.StartEdit(a.Principal, a.EventID, a.ChannelID)
	if errors.Is(err, flow.ErrSessionActive) {
		d.notify(ctx, a.Principal.UserID, a.ChannelID, "You already have a session running here. Reply \"cancel\" to end it first.")
		return nil
	}
	return err
}

// setTimezone stores a recognized IANA zone; "none" or an unrecognized name
// clears the stored preference.
func (d *Dispatcher) setTimezone(ctx context.Context, a SetTimezone) error {
	if _, ok := timeparse.LoadZone(a.Zone); !ok {
		if err := d.members.ClearPreference(ctx, a.UserID); err != nil {
			return err
		}
		d.notify(ctx, a.UserID, a.ChannelID, "Timezone preference cleared. Times will use UTC.")
		return nil
	}

	if err := d.members.UpsertPreference(ctx, persistence.MemberPreference{
		UserID:    a.UserID,
		Timezone:  a.Zone,
		UpdatedAt: d.now().UTC(),
	}); err != nil {
		return err
	}
	d.notify(ctx, a.UserID, a.ChannelID, fmt.Sprintf("Timezone set to %s.", a.Zone))
	return nil
}

func (d *Dispatcher) remindMe(ctx context.Context, a RemindMe) error {
	triggerAt, err := timeparse.ParseRelative(a.In, d.now())
	if err != nil {
		return err
	}

	reminder, err := d.reminders.ScheduleUserReminder(ctx, a.UserID, a.ChannelID, a.Message, triggerAt, 0)
	if err != nil {
		return err
	}

	d.notify(ctx, a.UserID, a.ChannelID,
		fmt.Sprintf("Reminder set for %s UTC.", timeparse.FormatAbsolute(reminder.TriggerAt, nil)))
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, userID, channelID, text string) {
	if userID == "" || text == "" {
		return
	}
	if err := d.gateway.SendDirectMessage(ctx, userID, channelID, text); err != nil {
		d.logger.Error("failed to send notice", "user_id", userID, "error", err)
	}
}

// actionOrigin extracts the acting member and channel for failure notices.
func actionOrigin(action Action) (string, string) {
	switch a := action.(type) {
	case SetStatus:
		return a.UserID, a.ChannelID
	case ClearStatus:
		return a.UserID, a.ChannelID
	case ClaimRole:
		return a.UserID, a.ChannelID
	case ReleaseRole:
		return a.ActorID, a.ChannelID
	case BeginCreate:
		return a.UserID, a.ChannelID
	case BeginEdit:
		return a.Principal.UserID, a.ChannelID
	case DeleteEvent:
		return a.Principal.UserID, a.ChannelID
	case DirectMessage:
		return a.UserID, a.ChannelID
	case SetTimezone:
		return a.UserID, a.ChannelID
	case RemindMe:
		return a.UserID, a.ChannelID
	}
	return "", ""
}

// userNotice maps an error to the short text shown to the member. Detail stays
// in the logs.
func userNotice(err error) string {
	switch {
	case errors.Is(err, attendance.ErrSlotTaken):
		return "That role is already taken."
	case errors.Is(err, attendance.ErrAlreadyHolds):
		return "You already hold a role on this event. Release it first."
	case errors.Is(err, attendance.ErrPermissionDenied), errors.Is(err, application.ErrPermissionDenied):
		return "You don't have permission to do that."
	case errors.Is(err, application.ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return "That event no longer exists."
	case errors.Is(err, timeparse.ErrUnparsable):
		return "I couldn't read that time expression. Try something like \"2h 30m\" or \"3 days\"."
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}

	return "Something went wrong. Please try again later."
}
