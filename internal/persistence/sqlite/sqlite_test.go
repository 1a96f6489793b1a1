package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/testfixtures"
)

func TestEventRoundTrip(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	link := "https://example.com/op-order"
	interest := "mission-planning"
	event := testfixtures.NewEventFixture(testfixtures.WithRoles("medic", "pilot"))
	event.ExternalURL = &link
	event.WorkshopInterest = &interest
	event.IsNSFW = true

	if err := h.Events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	stored, err := h.Events.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}

	if stored.Title != event.Title || stored.Type != event.Type || !stored.IsNSFW {
		t.Fatalf("unexpected event %+v", stored)
	}
	if !stored.ScheduledAt.Equal(event.ScheduledAt) {
		t.Fatalf("expected scheduled %v, got %v", event.ScheduledAt, stored.ScheduledAt)
	}
	if stored.Duration != event.Duration {
		t.Fatalf("expected duration %v, got %v", event.Duration, stored.Duration)
	}
	if stored.ExternalURL == nil || *stored.ExternalURL != link {
		t.Fatalf("expected link round trip, got %v", stored.ExternalURL)
	}
	if stored.WorkshopInterest == nil || *stored.WorkshopInterest != interest {
		t.Fatalf("expected interest round trip, got %v", stored.WorkshopInterest)
	}
	if len(stored.ReservableRoles) != 2 || stored.ReservableRoles[0].Label != "medic" {
		t.Fatalf("expected roles round trip, got %+v", stored.ReservableRoles)
	}
}

func TestPatchEventAppliesOnlyProvidedFields(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	event := testfixtures.NewEventFixture()
	if err := h.Events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	title := "Renamed"
	maxPlayers := 12
	updated, err := h.Events.PatchEvent(ctx, event.ID, persistence.EventPatch{
		Title:      &title,
		MaxPlayers: &maxPlayers,
	})
	if err != nil {
		t.Fatalf("PatchEvent: %v", err)
	}

	if updated.Title != "Renamed" || updated.MaxPlayers != 12 {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.MinPlayers != event.MinPlayers || !updated.ScheduledAt.Equal(event.ScheduledAt) {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
}

func TestPatchEventMissingEvent(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())

	title := "Renamed"
	if _, err := h.Events.PatchEvent(context.Background(), "missing", persistence.EventPatch{Title: &title}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEventCascadesToRecords(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	event := testfixtures.NewEventFixture()
	if err := h.Events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := h.Records.UpsertRecord(ctx, testfixtures.NewRecordFixture(event.ID, persistence.StatusAccepted)); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	if err := h.Events.DeleteEvent(ctx, event.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	records, err := h.Records.ListRecordsForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListRecordsForEvent: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected FK cascade, got %v", records)
	}
}

func TestListEventsEndsBeforeUsesEndTime(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	base := testfixtures.ReferenceTime()
	// Started two hours ago but still running: must not match.
	running := testfixtures.NewEventFixture(testfixtures.WithScheduledAt(base.Add(-2 * time.Hour)))
	running.Duration = 4 * time.Hour
	// Ended an hour ago: must match.
	ended := testfixtures.NewEventFixture(testfixtures.WithScheduledAt(base.Add(-3 * time.Hour)))
	ended.Duration = 2 * time.Hour

	for _, event := range []persistence.Event{running, ended} {
		if err := h.Events.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	cutoff := base
	expired, err := h.Events.ListEvents(ctx, persistence.EventFilter{EndsBefore: &cutoff})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != ended.ID {
		t.Fatalf("expected only the ended event, got %d results", len(expired))
	}
}

func TestAttendanceUpsertOverwrites(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	event := testfixtures.NewEventFixture()
	if err := h.Events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	record := testfixtures.NewRecordFixture(event.ID, persistence.StatusAccepted)
	if err := h.Records.UpsertRecord(ctx, record); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	record.Status = persistence.StatusTentative
	record.LastUpdated = record.LastUpdated.Add(time.Minute)
	if err := h.Records.UpsertRecord(ctx, record); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	stored, err := h.Records.GetRecord(ctx, event.ID, record.UserID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if stored.Status != persistence.StatusTentative {
		t.Fatalf("expected overwrite, got %+v", stored)
	}
}

func TestMemberPreferenceLifecycle(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	pref := persistence.MemberPreference{UserID: "member", Timezone: "Asia/Tokyo", UpdatedAt: clock.Current()}
	if err := h.Members.UpsertPreference(ctx, pref); err != nil {
		t.Fatalf("UpsertPreference: %v", err)
	}

	stored, err := h.Members.GetPreference(ctx, "member")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if stored.Timezone != "Asia/Tokyo" {
		t.Fatalf("unexpected preference %+v", stored)
	}

	if err := h.Members.ClearPreference(ctx, "member"); err != nil {
		t.Fatalf("ClearPreference: %v", err)
	}
	if _, err := h.Members.GetPreference(ctx, "member"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Clearing again is tolerated.
	if err := h.Members.ClearPreference(ctx, "member"); err != nil {
		t.Fatalf("repeat ClearPreference: %v", err)
	}
}

func TestReminderLifecycle(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	reminder := testfixtures.NewReminderFixture()
	reminder.Repeat = 24 * time.Hour
	if err := h.Reminders.CreateReminder(ctx, reminder); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	next := reminder.TriggerAt.Add(reminder.Repeat)
	if err := h.Reminders.RescheduleReminder(ctx, reminder.ID, next); err != nil {
		t.Fatalf("RescheduleReminder: %v", err)
	}

	reminders, err := h.Reminders.ListReminders(ctx)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(reminders) != 1 || !reminders[0].TriggerAt.Equal(next) {
		t.Fatalf("expected rescheduled reminder, got %+v", reminders)
	}
	if reminders[0].Kind != persistence.ReminderKindUser || reminders[0].Repeat != 24*time.Hour {
		t.Fatalf("round trip lost fields: %+v", reminders[0])
	}

	if err := h.Reminders.DeleteReminder(ctx, reminder.ID); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	if err := h.Reminders.DeleteReminder(ctx, reminder.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryQueries(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	now := clock.Current()
	older := testfixtures.NewHistoryFixture("alpha", now.Add(-40*24*time.Hour))
	newer := testfixtures.NewHistoryFixture("alpha", now.Add(-5*24*time.Hour))
	other := testfixtures.NewHistoryFixture("beta", now.Add(-70*24*time.Hour))
	newer.Accepted = []string{"Member One", "Member Two"}

	for _, entry := range []persistence.EventHistoryEntry{older, newer, other} {
		if err := h.History.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	since := now.Add(-50 * 24 * time.Hour)
	entries, err := h.History.ListHistory(ctx, since)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries since cutoff, got %d", len(entries))
	}
	if entries[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if len(entries[0].Accepted) != 2 || entries[0].Accepted[0] != "Member One" {
		t.Fatalf("accepted names lost: %+v", entries[0].Accepted)
	}

	lastHosted, err := h.History.LastHostedByAuthor(ctx)
	if err != nil {
		t.Fatalf("LastHostedByAuthor: %v", err)
	}
	if !lastHosted["alpha"].Equal(newer.ScheduledAt) {
		t.Fatalf("expected alpha last hosted %v, got %v", newer.ScheduledAt, lastHosted["alpha"])
	}
	if !lastHosted["beta"].Equal(other.ScheduledAt) {
		t.Fatalf("expected beta last hosted %v, got %v", other.ScheduledAt, lastHosted["beta"])
	}
}

func TestJobStateRoundTrip(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	h := testfixtures.NewSQLiteHarness(t, clock.NowFunc())
	ctx := context.Background()

	if _, err := h.Jobs.GetJobState(ctx, "unit-report"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	state := persistence.JobState{
		Name:      "unit-report",
		NextDue:   clock.Current().Add(24 * time.Hour),
		UpdatedAt: clock.Current(),
	}
	if err := h.Jobs.PutJobState(ctx, state); err != nil {
		t.Fatalf("PutJobState: %v", err)
	}

	state.NextDue = state.NextDue.Add(24 * time.Hour)
	if err := h.Jobs.PutJobState(ctx, state); err != nil {
		t.Fatalf("overwrite PutJobState: %v", err)
	}

	stored, err := h.Jobs.GetJobState(ctx, "unit-report")
	if err != nil {
		t.Fatalf("GetJobState: %v", err)
	}
	if !stored.NextDue.Equal(state.NextDue) {
		t.Fatalf("expected %v, got %v", state.NextDue, stored.NextDue)
	}
}
