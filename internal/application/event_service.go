package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/persistence"
)

// Player count bounds enforced on creation and edit.
const (
	MinPlayerBound = 1
	MaxPlayerBound = 50
)

// EventRepository captures the persistence interactions needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event persistence.Event) error
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
	PatchEvent(ctx context.Context, id string, patch persistence.EventPatch) (persistence.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// RecordStore captures the attendance record interactions needed for cascades
// and archival snapshots.
type RecordStore interface {
	ListRecordsForEvent(ctx context.Context, eventID string) ([]persistence.AttendanceRecord, error)
	DeleteRecordsForEvent(ctx context.Context, eventID string) error
}

// HistoryStore appends immutable archival entries.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry persistence.EventHistoryEntry) error
}

// NameResolver resolves member identities to display names. Implementations
// should fall back to the raw identity on lookup failure rather than erroring.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

// InterestList is the workshop interest subsystem boundary. Consuming a
// workshop event removes its matched attendees from the list's pending set.
type InterestList interface {
	RemovePending(ctx context.Context, listName string, userIDs []string) error
	RequestRender(ctx context.Context, listName string)
}

// EventService orchestrates validation, authorization, and persistence for
// event operations.
type EventService struct {
	events      EventRepository
	records     RecordStore
	history     HistoryStore
	names       NameResolver
	interest    InterestList
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, records RecordStore, history HistoryStore, names NameResolver, interest InterestList, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		records:     records,
		history:     history,
		names:       names,
		interest:    interest,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateEvent validates the input before delegating to persistence.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (persistence.Event, error) {
	input := params.Input

	vErr := &ValidationError{}
	validateEventCore(input, vErr)
	if vErr.HasErrors() {
		return persistence.Event{}, vErr
	}

	createdAt := s.now().UTC()
	event := persistence.Event{
		ID:               s.idGenerator(),
		Type:             input.Type,
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		ExternalURL:      input.ExternalURL,
		Location:         input.Location,
		MinPlayers:       input.MinPlayers,
		MaxPlayers:       input.MaxPlayers,
		IsNSFW:           input.IsNSFW,
		ScheduledAt:      input.ScheduledAt.UTC(),
		Duration:         input.Duration,
		AuthorID:         params.Principal.UserID,
		ReservableRoles:  input.ReservableRoles,
		WorkshopInterest: input.WorkshopInterest,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return persistence.Event{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "events", "create", "event_id", event.ID).
		Info("event created", "author_id", event.AuthorID, "type", string(event.Type))

	return event, nil
}

// GetEvent retrieves an event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return persistence.Event{}, mapRepoError(err)
	}
	return event, nil
}

// ListEvents enumerates events matching the filter ordered by scheduled time.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) ([]persistence.Event, error) {
	events, err := s.events.ListEvents(ctx, persistence.EventFilter{
		AuthorID:       params.AuthorID,
		Type:           params.Type,
		ScheduledAfter: params.ScheduledAfter,
		EndsBefore:     params.EndsBefore,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return events, nil
}

// UpdateEvent authorizes and validates a field level patch, then applies it in
// one atomic write.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (persistence.Event, error) {
	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return persistence.Event{}, mapRepoError(err)
	}

	if existing.AuthorID != params.Principal.UserID && !params.Principal.IsStaff {
		return persistence.Event{}, ErrPermissionDenied
	}

	vErr := &ValidationError{}
	validateEventPatch(existing, params.Patch, vErr)
	if vErr.HasErrors() {
		return persistence.Event{}, vErr
	}

	updated, err := s.events.PatchEvent(ctx, params.EventID, params.Patch)
	if err != nil {
		return persistence.Event{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "events", "update", "event_id", updated.ID).
		Info("event updated", "actor_id", params.Principal.UserID)

	return updated, nil
}

// DeleteEvent archives then removes an event. Only the author or staff may
// delete.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	existing, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return mapRepoError(err)
	}

	if existing.AuthorID != principal.UserID && !principal.IsStaff {
		return ErrPermissionDenied
	}

	return s.archive(ctx, existing, false)
}

// ArchiveExpired archives the event regardless of actor, marking the history
// entry as automatically deleted. The reminder sweep uses it for events whose
// scheduled time plus duration has passed.
func (s *EventService) ArchiveExpired(ctx context.Context, eventID string) error {
	existing, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return mapRepoError(err)
	}
	return s.archive(ctx, existing, true)
}

// archive snapshots the event into history, consumes workshop interest, and
// removes the live records. The history write happens first so a failed
// delete never loses the audit trail.
func (s *EventService) archive(ctx context.Context, event persistence.Event, autoDeleted bool) error {
	logger := serviceLogger(ctx, s.logger, "events", "archive", "event_id", event.ID)

	records, err := s.records.ListRecordsForEvent(ctx, event.ID)
	if err != nil {
		return mapRepoError(err)
	}
	snapshot := attendance.Partition(event, records)

	entry := persistence.EventHistoryEntry{
		ID:            s.idGenerator(),
		EventID:       event.ID,
		Type:          event.Type,
		Title:         event.Title,
		AuthorID:      event.AuthorID,
		AuthorName:    s.resolveName(ctx, event.AuthorID),
		ScheduledAt:   event.ScheduledAt,
		Accepted:      s.resolveNames(ctx, snapshot.Accepted),
		Declined:      s.resolveNames(ctx, snapshot.Declined),
		Tentative:     s.resolveNames(ctx, snapshot.Tentative),
		RoleOccupants: resolveRoles(ctx, s.names, snapshot.Roles),
		AutoDeleted:   autoDeleted,
		ArchivedAt:    s.now().UTC(),
	}

	if s.history != nil {
		if err := s.history.AppendHistory(ctx, entry); err != nil {
			return mapRepoError(err)
		}
	}

	s.consumeWorkshopInterest(ctx, logger, event, snapshot)

	if err := s.records.DeleteRecordsForEvent(ctx, event.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return mapRepoError(err)
	}
	if err := s.events.DeleteEvent(ctx, event.ID); err != nil {
		return mapRepoError(err)
	}

	logger.Info("event archived", "auto_deleted", autoDeleted, "accepted", len(entry.Accepted))
	return nil
}

// consumeWorkshopInterest removes the accepted attendees from the referenced
// interest list's pending set. Failures are logged and do not abort the
// archive.
func (s *EventService) consumeWorkshopInterest(ctx context.Context, logger *slog.Logger, event persistence.Event, snapshot attendance.Snapshot) {
	if s.interest == nil || event.WorkshopInterest == nil || len(snapshot.Accepted) == 0 {
		return
	}

	listName := *event.WorkshopInterest
	if err := s.interest.RemovePending(ctx, listName, snapshot.Accepted); err != nil {
		logger.Error("failed to consume workshop interest", "list", listName, "error", err)
		return
	}
	s.interest.RequestRender(ctx, listName)
}

func (s *EventService) resolveName(ctx context.Context, userID string) string {
	if s.names == nil {
		return userID
	}
	return s.names.DisplayName(ctx, userID)
}

func (s *EventService) resolveNames(ctx context.Context, userIDs []string) []string {
	if len(userIDs) == 0 {
		return nil
	}
	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		names[i] = s.resolveName(ctx, id)
	}
	return names
}

func resolveRoles(ctx context.Context, names NameResolver, roles []persistence.RoleSlot) []persistence.RoleSlot {
	if len(roles) == 0 {
		return nil
	}
	resolved := make([]persistence.RoleSlot, len(roles))
	for i, slot := range roles {
		resolved[i] = slot
		if slot.OccupantID != "" && names != nil {
			resolved[i].OccupantID = names.DisplayName(ctx, slot.OccupantID)
		}
	}
	return resolved
}

func validateEventCore(input EventInput, vErr *ValidationError) {
	switch input.Type {
	case persistence.EventTypeOperation, persistence.EventTypeWorkshop, persistence.EventTypeEvent:
	default:
		vErr.add("type", "unknown event type")
	}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}

	validatePlayerCounts(input.MinPlayers, input.MaxPlayers, vErr)

	if input.ScheduledAt.IsZero() {
		vErr.add("scheduled_at", "scheduled time is required")
	}

	if input.Duration < 0 {
		vErr.add("duration", "duration cannot be negative")
	}

	if input.ExternalURL != nil && *input.ExternalURL != "" {
		if _, err := url.ParseRequestURI(*input.ExternalURL); err != nil {
			vErr.add("external_url", "must be a valid URL")
		}
	}
}

func validateEventPatch(existing persistence.Event, patch persistence.EventPatch, vErr *ValidationError) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		vErr.add("title", "title is required")
	}

	minPlayers := existing.MinPlayers
	if patch.MinPlayers != nil {
		minPlayers = *patch.MinPlayers
	}
	maxPlayers := existing.MaxPlayers
	if patch.MaxPlayers != nil {
		maxPlayers = *patch.MaxPlayers
	}
	if patch.MinPlayers != nil || patch.MaxPlayers != nil {
		validatePlayerCounts(minPlayers, maxPlayers, vErr)
	}

	if patch.ScheduledAt != nil && patch.ScheduledAt.IsZero() {
		vErr.add("scheduled_at", "scheduled time is required")
	}

	if patch.Duration != nil && *patch.Duration < 0 {
		vErr.add("duration", "duration cannot be negative")
	}

	if patch.ExternalURL != nil && *patch.ExternalURL != nil && **patch.ExternalURL != "" {
		if _, err := url.ParseRequestURI(**patch.ExternalURL); err != nil {
			vErr.add("external_url", "must be a valid URL")
		}
	}
}

func validatePlayerCounts(minPlayers, maxPlayers int, vErr *ValidationError) {
	if minPlayers < MinPlayerBound || minPlayers > MaxPlayerBound {
		vErr.add("min_players", fmt.Sprintf("must be between %d and %d", MinPlayerBound, MaxPlayerBound))
	}

	switch maxPlayers {
	case persistence.MaxPlayersUnlimited, persistence.MaxPlayersAnonymous:
		return
	}

	if maxPlayers < MinPlayerBound || maxPlayers > MaxPlayerBound {
		vErr.add("max_players", fmt.Sprintf("must be between %d and %d", MinPlayerBound, MaxPlayerBound))
		return
	}
	if minPlayers > maxPlayers {
		vErr.add("players", "minimum cannot exceed maximum")
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
