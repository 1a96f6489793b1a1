package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/flow"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/persistence/memory"
	"github.com/example/guild-scheduler/internal/testfixtures"
)

type engineStub struct {
	calls []string
	err   error
}

func (e *engineStub) SetStatus(ctx context.Context, eventID, userID string, status persistence.AttendanceStatus) (attendance.Snapshot, error) {
	e.calls = append(e.calls, "SetStatus")
	return attendance.Snapshot{}, e.err
}

func (e *engineStub) ClearStatus(ctx context.Context, eventID, userID string) (attendance.Snapshot, error) {
	e.calls = append(e.calls, "ClearStatus")
	return attendance.Snapshot{}, e.err
}

func (e *engineStub) ClaimRole(ctx context.Context, eventID, userID, label string) (attendance.Snapshot, error) {
	e.calls = append(e.calls, "ClaimRole")
	return attendance.Snapshot{}, e.err
}

func (e *engineStub) ReleaseRole(ctx context.Context, eventID, actorID, label string, actorIsStaff bool) (attendance.Snapshot, error) {
	e.calls = append(e.calls, "ReleaseRole")
	return attendance.Snapshot{}, e.err
}

type flowStub struct {
	created  []string
	edited   []string
	messages []string
	err      error
}

func (f *flowStub) StartCreate(userID, channelID string, eventType persistence.EventType) error {
	f.created = append(f.created, userID)
	return f.err
}

func (f *flowStub) StartEdit(principal application.Principal, eventID, channelID string) error {
	f.edited = append(f.edited, eventID)
	return f.err
}

func (f *flowStub) HandleMessage(userID, channelID, text string) bool {
	f.messages = append(f.messages, text)
	return true
}

type deleterStub struct {
	deleted []string
	err     error
}

func (d *deleterStub) DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error {
	d.deleted = append(d.deleted, eventID)
	return d.err
}

type panickingDeleter struct{}

func (panickingDeleter) DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error {
	panic("boom")
}

type reminderStub struct {
	scheduled []persistence.Reminder
}

func (r *reminderStub) ScheduleUserReminder(ctx context.Context, userID, channelID, message string, triggerAt time.Time, repeat time.Duration) (persistence.Reminder, error) {
	reminder := persistence.Reminder{
		ID:          "r-1",
		Kind:        persistence.ReminderKindUser,
		TriggerAt:   triggerAt,
		RecipientID: userID,
		ChannelID:   channelID,
		Message:     message,
		Repeat:      repeat,
	}
	r.scheduled = append(r.scheduled, reminder)
	return reminder, nil
}

type dispatcherHarness struct {
	dispatcher *Dispatcher
	engine     *engineStub
	flows      *flowStub
	deleter    *deleterStub
	members    *memory.Store
	reminders  *reminderStub
	gateway    *testfixtures.RecordingGateway
	clock      *testfixtures.Clock
}

func newDispatcherHarness(t *testing.T) *dispatcherHarness {
	t.Helper()

	h := &dispatcherHarness{
		engine:    &engineStub{},
		flows:     &flowStub{},
		deleter:   &deleterStub{},
		members:   memory.NewStore(),
		reminders: &reminderStub{},
		gateway:   testfixtures.NewRecordingGateway(),
		clock:     testfixtures.NewClock(time.Time{}),
	}
	h.dispatcher = NewDispatcher(h.engine, h.flows, h.deleter, h.members, h.reminders, h.gateway, h.clock.NowFunc(), nil)
	return h
}

func TestDispatchRoutesEngineActions(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := context.Background()

	h.dispatcher.Dispatch(ctx, SetStatus{EventID: "e1", UserID: "u1", Status: persistence.StatusAccepted})
	h.dispatcher.Dispatch(ctx, ClearStatus{EventID: "e1", UserID: "u1"})
	h.dispatcher.Dispatch(ctx, ClaimRole{EventID: "e1", UserID: "u1", Label: "medic"})
	h.dispatcher.Dispatch(ctx, ReleaseRole{EventID: "e1", ActorID: "u1", Label: "medic"})

	want := []string{"SetStatus", "ClearStatus", "ClaimRole", "ReleaseRole"}
	if len(h.engine.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, h.engine.calls)
	}
	for i, name := range want {
		if h.engine.calls[i] != name {
			t.Fatalf("expected %v, got %v", want, h.engine.calls)
		}
	}
}

func TestDispatchSendsNoticeOnFailure(t *testing.T) {
	h := newDispatcherHarness(t)
	h.engine.err = attendance.ErrSlotTaken

	h.dispatcher.Dispatch(context.Background(), ClaimRole{
		EventID:   "e1",
		UserID:    "u1",
		ChannelID: "dm",
		Label:     "medic",
	})

	notices := h.gateway.CallsTo("SendDirectMessage")
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	if !strings.Contains(notices[0].Text, "already taken") {
		t.Fatalf("unexpected notice: %q", notices[0].Text)
	}
}

func TestDispatchRecoversFromPanickingHandler(t *testing.T) {
	h := newDispatcherHarness(t)
	h.dispatcher.events = panickingDeleter{}

	// Must not propagate the panic.
	h.dispatcher.Dispatch(context.Background(), DeleteEvent{
		Principal: application.Principal{UserID: "u1"},
		EventID:   "e1",
	})

	// The loop keeps handling later actions.
	h.dispatcher.Dispatch(context.Background(), SetStatus{EventID: "e1", UserID: "u1", Status: persistence.StatusAccepted})
	if len(h.engine.calls) != 1 {
		t.Fatal("dispatcher stopped handling actions after a panic")
	}
}

func TestDispatchBeginCreateSessionConflictNotifies(t *testing.T) {
	h := newDispatcherHarness(t)
	h.flows.err = flow.ErrSessionActive

	h.dispatcher.Dispatch(context.Background(), BeginCreate{
		UserID:    "u1",
		ChannelID: "dm",
		EventType: persistence.EventTypeOperation,
	})

	notices := h.gateway.CallsTo("SendDirectMessage")
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "already have a session") {
		t.Fatalf("expected session conflict notice, got %v", notices)
	}
}

func TestDispatchDirectMessageRoutesToFlows(t *testing.T) {
	h := newDispatcherHarness(t)

	h.dispatcher.Dispatch(context.Background(), DirectMessage{UserID: "u1", ChannelID: "dm", Text: "4-8"})

	if len(h.flows.messages) != 1 || h.flows.messages[0] != "4-8" {
		t.Fatalf("expected message routed to flows, got %v", h.flows.messages)
	}
}

func TestDispatchSetTimezoneStoresPreference(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := context.Background()

	h.dispatcher.Dispatch(ctx, SetTimezone{UserID: "u1", ChannelID: "dm", Zone: "Europe/Berlin"})

	pref, err := h.members.GetPreference(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if pref.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected preference %q", pref.Timezone)
	}
}

func TestDispatchSetTimezoneNoneClearsPreference(t *testing.T) {
	h := newDispatcherHarness(t)
	ctx := context.Background()

	if err := h.members.UpsertPreference(ctx, persistence.MemberPreference{UserID: "u1", Timezone: "UTC"}); err != nil {
		t.Fatalf("UpsertPreference: %v", err)
	}

	for _, zone := range []string{"none", "Atlantis/Lost"} {
		h.dispatcher.Dispatch(ctx, SetTimezone{UserID: "u1", ChannelID: "dm", Zone: zone})
		if _, err := h.members.GetPreference(ctx, "u1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("zone %q: expected cleared preference, got %v", zone, err)
		}
	}
}

func TestDispatchRemindMe(t *testing.T) {
	h := newDispatcherHarness(t)

	h.dispatcher.Dispatch(context.Background(), RemindMe{
		UserID:    "u1",
		ChannelID: "dm",
		In:        "2h30m",
		Message:   "stretch",
	})

	if len(h.reminders.scheduled) != 1 {
		t.Fatalf("expected one reminder, got %d", len(h.reminders.scheduled))
	}
	reminder := h.reminders.scheduled[0]
	want := h.clock.Current().Add(2*time.Hour + 30*time.Minute)
	if !reminder.TriggerAt.Equal(want) {
		t.Fatalf("expected trigger %v, got %v", want, reminder.TriggerAt)
	}
	if reminder.Message != "stretch" {
		t.Fatalf("unexpected message %q", reminder.Message)
	}
}

func TestDispatchRemindMeUnparsableNotifies(t *testing.T) {
	h := newDispatcherHarness(t)

	h.dispatcher.Dispatch(context.Background(), RemindMe{
		UserID:    "u1",
		ChannelID: "dm",
		In:        "whenever",
		Message:   "stretch",
	})

	if len(h.reminders.scheduled) != 0 {
		t.Fatal("unparsable expression must not schedule")
	}
	notices := h.gateway.CallsTo("SendDirectMessage")
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "couldn't read") {
		t.Fatalf("expected parse notice, got %v", notices)
	}
}
