package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/persistence/memory"
	"github.com/example/guild-scheduler/internal/testfixtures"
)

type renderRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *renderRecorder) RenderEvent(ctx context.Context, event persistence.Event, snapshot Snapshot) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *renderRecorder) renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func newTestEngine(t *testing.T, event persistence.Event) (*Engine, *memory.Store, *renderRecorder, *testfixtures.Clock) {
	t.Helper()

	store := memory.NewStore()
	if err := store.CreateEvent(context.Background(), event); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	clock := testfixtures.NewClock(time.Time{})
	recorder := &renderRecorder{}
	return NewEngine(store, store, recorder, clock.NowFunc(), nil), store, recorder, clock
}

func TestSetStatusPartitionsByCapacity(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithMaxPlayers(2))
	engine, _, _, clock := newTestEngine(t, event)
	ctx := context.Background()

	for _, userID := range []string{"m1", "m2", "m3", "m4"} {
		clock.Advance(time.Second)
		if _, err := engine.SetStatus(ctx, event.ID, userID, persistence.StatusAccepted); err != nil {
			t.Fatalf("SetStatus(%s): %v", userID, err)
		}
	}

	snapshot, err := engine.Snapshot(ctx, event.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if got := snapshot.Accepted; len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
		t.Fatalf("unexpected accepted partition: %v", got)
	}
	if got := snapshot.Standby; len(got) != 2 || got[0] != "m3" || got[1] != "m4" {
		t.Fatalf("unexpected standby partition: %v", got)
	}
}

func TestSetStatusPromotesStandbyWhenAcceptedLeaves(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithMaxPlayers(1))
	engine, _, _, clock := newTestEngine(t, event)
	ctx := context.Background()

	clock.Advance(time.Second)
	if _, err := engine.SetStatus(ctx, event.ID, "first", persistence.StatusAccepted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := engine.SetStatus(ctx, event.ID, "second", persistence.StatusAccepted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	clock.Advance(time.Second)
	snapshot, err := engine.SetStatus(ctx, event.ID, "first", persistence.StatusDeclined)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if len(snapshot.Accepted) != 1 || snapshot.Accepted[0] != "second" {
		t.Fatalf("expected standby promotion, got accepted=%v standby=%v", snapshot.Accepted, snapshot.Standby)
	}
	if len(snapshot.Declined) != 1 || snapshot.Declined[0] != "first" {
		t.Fatalf("unexpected declined partition: %v", snapshot.Declined)
	}
}

func TestSetStatusSameStatusIsNoOp(t *testing.T) {
	event := testfixtures.NewEventFixture()
	engine, store, recorder, clock := newTestEngine(t, event)
	ctx := context.Background()

	clock.Advance(time.Second)
	if _, err := engine.SetStatus(ctx, event.ID, "member", persistence.StatusTentative); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	first, err := store.GetRecord(ctx, event.ID, "member")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := engine.SetStatus(ctx, event.ID, "member", persistence.StatusTentative); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	second, err := store.GetRecord(ctx, event.ID, "member")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !second.LastUpdated.Equal(first.LastUpdated) {
		t.Fatal("same-status set must not rewrite the record")
	}
	if recorder.renders() != 1 {
		t.Fatalf("same-status set must not re-render, got %d renders", recorder.renders())
	}
}

func TestSetStatusUnlimitedCapacityNeverSpills(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithMaxPlayers(persistence.MaxPlayersUnlimited))
	engine, _, _, clock := newTestEngine(t, event)
	ctx := context.Background()

	for _, userID := range []string{"m1", "m2", "m3"} {
		clock.Advance(time.Second)
		if _, err := engine.SetStatus(ctx, event.ID, userID, persistence.StatusAccepted); err != nil {
			t.Fatalf("SetStatus(%s): %v", userID, err)
		}
	}

	snapshot, err := engine.Snapshot(ctx, event.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot.Accepted) != 3 || len(snapshot.Standby) != 0 {
		t.Fatalf("expected all accepted, got accepted=%v standby=%v", snapshot.Accepted, snapshot.Standby)
	}
}

func TestClearStatusRemovesRecord(t *testing.T) {
	event := testfixtures.NewEventFixture()
	engine, store, _, _ := newTestEngine(t, event)
	ctx := context.Background()

	if _, err := engine.SetStatus(ctx, event.ID, "member", persistence.StatusAccepted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := engine.ClearStatus(ctx, event.ID, "member"); err != nil {
		t.Fatalf("ClearStatus: %v", err)
	}

	if _, err := store.GetRecord(ctx, event.ID, "member"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
}

func TestClearStatusAbsentRecordIsNoOp(t *testing.T) {
	event := testfixtures.NewEventFixture()
	engine, _, recorder, _ := newTestEngine(t, event)

	if _, err := engine.ClearStatus(context.Background(), event.ID, "stranger"); err != nil {
		t.Fatalf("ClearStatus: %v", err)
	}
	if recorder.renders() != 0 {
		t.Fatal("clearing an absent response must not re-render")
	}
}

func TestClaimRole(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithRoles("medic", "pilot"))
	engine, _, _, _ := newTestEngine(t, event)
	ctx := context.Background()

	snapshot, err := engine.ClaimRole(ctx, event.ID, "member", "medic")
	if err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}
	if snapshot.Roles[0].OccupantID != "member" {
		t.Fatalf("expected medic held by member, got %+v", snapshot.Roles)
	}

	// Another member cannot take the held slot.
	if _, err := engine.ClaimRole(ctx, event.ID, "other", "medic"); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// The holder cannot take a second slot on the same event.
	if _, err := engine.ClaimRole(ctx, event.ID, "member", "pilot"); !errors.Is(err, ErrAlreadyHolds) {
		t.Fatalf("expected ErrAlreadyHolds, got %v", err)
	}

	// Re-claiming the held slot is a no-op, not an error.
	if _, err := engine.ClaimRole(ctx, event.ID, "member", "medic"); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
}

func TestClaimRoleUnknownLabel(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithRoles("medic"))
	engine, _, _, _ := newTestEngine(t, event)

	if _, err := engine.ClaimRole(context.Background(), event.ID, "member", "sniper"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseRolePermissions(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithRoles("medic"))
	engine, _, _, _ := newTestEngine(t, event)
	ctx := context.Background()

	if _, err := engine.ClaimRole(ctx, event.ID, "holder", "medic"); err != nil {
		t.Fatalf("ClaimRole: %v", err)
	}

	if _, err := engine.ReleaseRole(ctx, event.ID, "stranger", "medic", false); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	snapshot, err := engine.ReleaseRole(ctx, event.ID, "staffer", "medic", true)
	if err != nil {
		t.Fatalf("staff release: %v", err)
	}
	if snapshot.Roles[0].OccupantID != "" {
		t.Fatalf("expected vacated slot, got %+v", snapshot.Roles)
	}

	// Releasing an already vacant slot is a no-op.
	if _, err := engine.ReleaseRole(ctx, event.ID, "holder", "medic", false); err != nil {
		t.Fatalf("vacant release: %v", err)
	}
}

func TestPartitionEachResponderAppearsOnce(t *testing.T) {
	event := testfixtures.NewEventFixture(testfixtures.WithMaxPlayers(2))

	base := testfixtures.ReferenceTime()
	records := []persistence.AttendanceRecord{
		{EventID: event.ID, UserID: "a", Status: persistence.StatusAccepted, LastUpdated: base},
		{EventID: event.ID, UserID: "b", Status: persistence.StatusAccepted, LastUpdated: base.Add(time.Second)},
		{EventID: event.ID, UserID: "c", Status: persistence.StatusAccepted, LastUpdated: base.Add(2 * time.Second)},
		{EventID: event.ID, UserID: "d", Status: persistence.StatusDeclined, LastUpdated: base.Add(3 * time.Second)},
		{EventID: event.ID, UserID: "e", Status: persistence.StatusTentative, LastUpdated: base.Add(4 * time.Second)},
	}

	snapshot := Partition(event, records)

	seen := make(map[string]int)
	for _, partition := range [][]string{snapshot.Accepted, snapshot.Standby, snapshot.Declined, snapshot.Tentative} {
		for _, userID := range partition {
			seen[userID]++
		}
	}
	if len(seen) != len(records) {
		t.Fatalf("expected %d distinct responders, got %d", len(records), len(seen))
	}
	for userID, count := range seen {
		if count != 1 {
			t.Fatalf("responder %s appears %d times", userID, count)
		}
	}
}
