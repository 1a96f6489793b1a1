// Package attendance computes RSVP partitions and manages reservable role
// slots. Partitions are recomputed from scratch on every change; attendee
// counts are small enough that the trivially correct approach wins.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

var (
	// ErrSlotTaken is returned when the requested role slot is occupied by
	// another member.
	ErrSlotTaken = errors.New("attendance: role slot already taken")
	// ErrAlreadyHolds is returned when the claimant already holds a different
	// slot on the same event and must release it first.
	ErrAlreadyHolds = errors.New("attendance: member already holds a role slot")
	// ErrPermissionDenied is returned when a release is attempted by someone
	// other than the holder or staff.
	ErrPermissionDenied = errors.New("attendance: permission denied")
)

// Snapshot is the partitioned view of an event's RSVP state. Accepted and
// Standby preserve arrival order; Declined and Tentative are ordered the same
// way for display stability but carry no capacity semantics.
type Snapshot struct {
	EventID   string
	Accepted  []string
	Standby   []string
	Declined  []string
	Tentative []string
	Roles     []persistence.RoleSlot
}

// EventSource is the event access the engine needs.
type EventSource interface {
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
	PatchEvent(ctx context.Context, id string, patch persistence.EventPatch) (persistence.Event, error)
}

// RecordStore is the attendance record access the engine needs.
type RecordStore interface {
	UpsertRecord(ctx context.Context, record persistence.AttendanceRecord) error
	GetRecord(ctx context.Context, eventID, userID string) (persistence.AttendanceRecord, error)
	ListRecordsForEvent(ctx context.Context, eventID string) ([]persistence.AttendanceRecord, error)
	DeleteRecord(ctx context.Context, eventID, userID string) error
}

// Renderer receives re-render requests after successful changes. Calls are
// fire-and-forget; failures are logged, never retried synchronously.
type Renderer interface {
	RenderEvent(ctx context.Context, event persistence.Event, snapshot Snapshot)
}

// Engine orchestrates status changes and role claims over the stores.
type Engine struct {
	events   EventSource
	records  RecordStore
	renderer Renderer
	now      func() time.Time
	logger   *slog.Logger
}

// NewEngine wires dependencies for attendance operations. A nil renderer
// disables re-render requests; a nil now falls back to the wall clock.
func NewEngine(events EventSource, records RecordStore, renderer Renderer, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		events:   events,
		records:  records,
		renderer: renderer,
		now:      now,
		logger:   logger,
	}
}

// SetStatus records a member's response and returns the recomputed snapshot.
// Setting the status the member already holds is a no-op: no write, no
// re-render.
func (e *Engine) SetStatus(ctx context.Context, eventID, userID string, status persistence.AttendanceStatus) (Snapshot, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}

	existing, err := e.records.GetRecord(ctx, eventID, userID)
	switch {
	case err == nil:
		if existing.Status == status {
			return e.snapshotFor(ctx, event)
		}
	case errors.Is(err, persistence.ErrNotFound):
		// First response from this member.
	default:
		return Snapshot{}, err
	}

	record := persistence.AttendanceRecord{
		EventID:     eventID,
		UserID:      userID,
		Status:      status,
		LastUpdated: e.now().UTC(),
	}
	if err := e.records.UpsertRecord(ctx, record); err != nil {
		return Snapshot{}, err
	}

	snapshot, err := e.snapshotFor(ctx, event)
	if err != nil {
		return Snapshot{}, err
	}

	e.requestRender(ctx, event, snapshot)
	return snapshot, nil
}

// ClearStatus removes a member's response, returning the member to the
// implicit no-response state. Clearing an absent response is a no-op.
func (e *Engine) ClearStatus(ctx context.Context, eventID, userID string) (Snapshot, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := e.records.DeleteRecord(ctx, eventID, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return e.snapshotFor(ctx, event)
		}
		return Snapshot{}, err
	}

	snapshot, err := e.snapshotFor(ctx, event)
	if err != nil {
		return Snapshot{}, err
	}

	e.requestRender(ctx, event, snapshot)
	return snapshot, nil
}

// Snapshot recomputes the partitioned view without mutating anything.
func (e *Engine) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshotFor(ctx, event)
}

// ClaimRole assigns a vacant reservable slot to the member. A member may hold
// at most one slot per event.
func (e *Engine) ClaimRole(ctx context.Context, eventID, userID, label string) (Snapshot, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}

	roles := make([]persistence.RoleSlot, len(event.ReservableRoles))
	copy(roles, event.ReservableRoles)

	target := -1
	for i, slot := range roles {
		if slot.Label == label {
			target = i
			continue
		}
		if slot.OccupantID == userID {
			return Snapshot{}, ErrAlreadyHolds
		}
	}
	if target == -1 {
		return Snapshot{}, fmt.Errorf("%w: unknown role %q", persistence.ErrNotFound, label)
	}

	switch roles[target].OccupantID {
	case "":
		roles[target].OccupantID = userID
	case userID:
		// Re-claiming the held slot is a no-op.
		return e.snapshotFor(ctx, event)
	default:
		return Snapshot{}, ErrSlotTaken
	}

	updated, err := e.events.PatchEvent(ctx, eventID, persistence.EventPatch{ReservableRoles: &roles})
	if err != nil {
		return Snapshot{}, err
	}

	snapshot, err := e.snapshotFor(ctx, updated)
	if err != nil {
		return Snapshot{}, err
	}

	e.requestRender(ctx, updated, snapshot)
	return snapshot, nil
}

// ReleaseRole vacates a slot. Only the current holder or staff may release.
func (e *Engine) ReleaseRole(ctx context.Context, eventID, actorID, label string, actorIsStaff bool) (Snapshot, error) {
	event, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}

	roles := make([]persistence.RoleSlot, len(event.ReservableRoles))
	copy(roles, event.ReservableRoles)

	target := -1
	for i, slot := range roles {
		if slot.Label == label {
			target = i
			break
		}
	}
	if target == -1 {
		return Snapshot{}, fmt.Errorf("%w: unknown role %q", persistence.ErrNotFound, label)
	}

	if roles[target].OccupantID == "" {
		return e.snapshotFor(ctx, event)
	}
	if roles[target].OccupantID != actorID && !actorIsStaff {
		return Snapshot{}, ErrPermissionDenied
	}

	roles[target].OccupantID = ""

	updated, err := e.events.PatchEvent(ctx, eventID, persistence.EventPatch{ReservableRoles: &roles})
	if err != nil {
		return Snapshot{}, err
	}

	snapshot, err := e.snapshotFor(ctx, updated)
	if err != nil {
		return Snapshot{}, err
	}

	e.requestRender(ctx, updated, snapshot)
	return snapshot, nil
}

func (e *Engine) snapshotFor(ctx context.Context, event persistence.Event) (Snapshot, error) {
	records, err := e.records.ListRecordsForEvent(ctx, event.ID)
	if err != nil {
		return Snapshot{}, err
	}
	return Partition(event, records), nil
}

func (e *Engine) requestRender(ctx context.Context, event persistence.Event, snapshot Snapshot) {
	if e.renderer == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("renderer panicked", "event_id", event.ID, "panic", p)
		}
	}()

	e.renderer.RenderEvent(ctx, event, snapshot)
}

// Partition computes the four RSVP partitions from raw records. Accepted
// records are ordered by LastUpdated ascending; the first MaxPlayers (when the
// bound is numeric) are accepted and the remainder spill to standby in arrival
// order, never dropped.
func Partition(event persistence.Event, records []persistence.AttendanceRecord) Snapshot {
	snapshot := Snapshot{EventID: event.ID}

	ordered := make([]persistence.AttendanceRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].LastUpdated.Equal(ordered[j].LastUpdated) {
			return ordered[i].UserID < ordered[j].UserID
		}
		return ordered[i].LastUpdated.Before(ordered[j].LastUpdated)
	})

	for _, record := range ordered {
		switch record.Status {
		case persistence.StatusAccepted:
			if event.MaxPlayers > 0 && len(snapshot.Accepted) >= event.MaxPlayers {
				snapshot.Standby = append(snapshot.Standby, record.UserID)
			} else {
				snapshot.Accepted = append(snapshot.Accepted, record.UserID)
			}
		case persistence.StatusDeclined:
			snapshot.Declined = append(snapshot.Declined, record.UserID)
		case persistence.StatusTentative:
			snapshot.Tentative = append(snapshot.Tentative, record.UserID)
		}
	}

	if len(event.ReservableRoles) > 0 {
		snapshot.Roles = make([]persistence.RoleSlot, len(event.ReservableRoles))
		copy(snapshot.Roles, event.ReservableRoles)
	}

	return snapshot
}
