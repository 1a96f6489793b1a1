// Package memory provides an in-memory implementation of the persistence
// repositories. It backs tests and small single-guild deployments where a
// database file is unwanted.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// Store implements every persistence repository interface in memory. All
// methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	events      map[string]persistence.Event
	attendance  map[string]map[string]persistence.AttendanceRecord
	preferences map[string]persistence.MemberPreference
	reminders   map[string]persistence.Reminder
	history     []persistence.EventHistoryEntry
	jobStates   map[string]persistence.JobState
}

// NewStore returns an empty in-memory store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(nil)
}

// NewStoreWithClock returns an empty in-memory store stamping timestamps from
// now. When now is nil the wall clock is used.
func NewStoreWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:         now,
		events:      make(map[string]persistence.Event),
		attendance:  make(map[string]map[string]persistence.AttendanceRecord),
		preferences: make(map[string]persistence.MemberPreference),
		reminders:   make(map[string]persistence.Reminder),
		jobStates:   make(map[string]persistence.JobState),
	}
}

// --- EventRepository implementation ---

// CreateEvent stores a new event.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return persistence.ErrDuplicate
	}

	s.events[event.ID] = cloneEvent(event)
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}

	return cloneEvent(event), nil
}

// ListEvents returns events matching the filter ordered by scheduled time.
func (s *Store) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]persistence.Event, 0)
	for _, event := range s.events {
		if !matchesEventFilter(event, filter) {
			continue
		}
		events = append(events, cloneEvent(event))
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].ScheduledAt.Equal(events[j].ScheduledAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].ScheduledAt.Before(events[j].ScheduledAt)
	})

	return events, nil
}

// PatchEvent applies non-nil patch fields under the store lock, so the
// read-modify-write is atomic with respect to other patches.
func (s *Store) PatchEvent(ctx context.Context, id string, patch persistence.EventPatch) (persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}

	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.ExternalURL != nil {
		event.ExternalURL = clonePtr(*patch.ExternalURL)
	}
	if patch.Location != nil {
		event.Location = clonePtr(*patch.Location)
	}
	if patch.MinPlayers != nil {
		event.MinPlayers = *patch.MinPlayers
	}
	if patch.MaxPlayers != nil {
		event.MaxPlayers = *patch.MaxPlayers
	}
	if patch.IsNSFW != nil {
		event.IsNSFW = *patch.IsNSFW
	}
	if patch.ScheduledAt != nil {
		event.ScheduledAt = patch.ScheduledAt.UTC()
	}
	if patch.Duration != nil {
		event.Duration = *patch.Duration
	}
	if patch.ReservableRoles != nil {
		event.ReservableRoles = cloneRoles(*patch.ReservableRoles)
	}
	if patch.MessageID != nil {
		event.ScheduleMessageID = clonePtr(*patch.MessageID)
	}
	event.UpdatedAt = s.now().UTC()

	s.events[id] = event
	return cloneEvent(event), nil
}

// DeleteEvent removes an event and cascades to its attendance records.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.events, id)
	delete(s.attendance, id)
	return nil
}

// --- AttendanceRepository implementation ---

// UpsertRecord inserts or overwrites the record for (event, user).
func (s *Store) UpsertRecord(ctx context.Context, record persistence.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.attendance[record.EventID]
	if !ok {
		records = make(map[string]persistence.AttendanceRecord)
		s.attendance[record.EventID] = records
	}

	records[record.UserID] = record
	return nil
}

// GetRecord retrieves the record for (event, user).
func (s *Store) GetRecord(ctx context.Context, eventID, userID string) (persistence.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.attendance[eventID][userID]
	if !ok {
		return persistence.AttendanceRecord{}, persistence.ErrNotFound
	}

	return record, nil
}

// ListRecordsForEvent returns records ordered by last update then user ID.
func (s *Store) ListRecordsForEvent(ctx context.Context, eventID string) ([]persistence.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]persistence.AttendanceRecord, 0, len(s.attendance[eventID]))
	for _, record := range s.attendance[eventID] {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].LastUpdated.Equal(records[j].LastUpdated) {
			return records[i].UserID < records[j].UserID
		}
		return records[i].LastUpdated.Before(records[j].LastUpdated)
	})

	return records, nil
}

// DeleteRecord removes the record for (event, user).
func (s *Store) DeleteRecord(ctx context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attendance[eventID][userID]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.attendance[eventID], userID)
	return nil
}

// DeleteRecordsForEvent removes all records for an event.
func (s *Store) DeleteRecordsForEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attendance, eventID)
	return nil
}

// --- MemberRepository implementation ---

// UpsertPreference stores or replaces a member's timezone preference.
func (s *Store) UpsertPreference(ctx context.Context, pref persistence.MemberPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[pref.UserID] = pref
	return nil
}

// GetPreference retrieves a member's timezone preference.
func (s *Store) GetPreference(ctx context.Context, userID string) (persistence.MemberPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.preferences[userID]
	if !ok {
		return persistence.MemberPreference{}, persistence.ErrNotFound
	}

	return pref, nil
}

// ClearPreference removes a member's timezone preference.
func (s *Store) ClearPreference(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.preferences, userID)
	return nil
}

// --- ReminderRepository implementation ---

// CreateReminder inserts a pending reminder.
func (s *Store) CreateReminder(ctx context.Context, reminder persistence.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reminders[reminder.ID]; ok {
		return persistence.ErrDuplicate
	}

	s.reminders[reminder.ID] = reminder
	return nil
}

// ListReminders returns all pending reminders ordered by trigger time.
func (s *Store) ListReminders(ctx context.Context) ([]persistence.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminders := make([]persistence.Reminder, 0, len(s.reminders))
	for _, reminder := range s.reminders {
		reminders = append(reminders, reminder)
	}

	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].TriggerAt.Equal(reminders[j].TriggerAt) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].TriggerAt.Before(reminders[j].TriggerAt)
	})

	return reminders, nil
}

// DeleteReminder removes a delivered one-shot reminder.
func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reminders[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.reminders, id)
	return nil
}

// RescheduleReminder moves a recurring reminder forward to its next trigger.
func (s *Store) RescheduleReminder(ctx context.Context, id string, triggerAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, ok := s.reminders[id]
	if !ok {
		return persistence.ErrNotFound
	}

	reminder.TriggerAt = triggerAt
	s.reminders[id] = reminder
	return nil
}

// --- HistoryRepository implementation ---

// AppendHistory stores an immutable history entry.
func (s *Store) AppendHistory(ctx context.Context, entry persistence.EventHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, cloneHistoryEntry(entry))
	return nil
}

// ListHistory returns entries scheduled at or after since, newest first.
func (s *Store) ListHistory(ctx context.Context, since time.Time) ([]persistence.EventHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]persistence.EventHistoryEntry, 0)
	for _, entry := range s.history {
		if entry.ScheduledAt.Before(since) {
			continue
		}
		entries = append(entries, cloneHistoryEntry(entry))
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ScheduledAt.Equal(entries[j].ScheduledAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].ScheduledAt.After(entries[j].ScheduledAt)
	})

	return entries, nil
}

// LastHostedByAuthor returns the most recent scheduled time per author.
func (s *Store) LastHostedByAuthor(ctx context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]time.Time)
	for _, entry := range s.history {
		if last, ok := result[entry.AuthorID]; !ok || entry.ScheduledAt.After(last) {
			result[entry.AuthorID] = entry.ScheduledAt
		}
	}

	return result, nil
}

// --- JobStateRepository implementation ---

// GetJobState retrieves the persisted state for a named job.
func (s *Store) GetJobState(ctx context.Context, name string) (persistence.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.jobStates[name]
	if !ok {
		return persistence.JobState{}, persistence.ErrNotFound
	}

	return state, nil
}

// PutJobState stores or replaces the state for a named job.
func (s *Store) PutJobState(ctx context.Context, state persistence.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobStates[state.Name] = state
	return nil
}

// --- Helpers ---

func cloneEvent(event persistence.Event) persistence.Event {
	event.ExternalURL = clonePtr(event.ExternalURL)
	event.Location = clonePtr(event.Location)
	event.WorkshopInterest = clonePtr(event.WorkshopInterest)
	event.ScheduleMessageID = clonePtr(event.ScheduleMessageID)
	event.ReservableRoles = cloneRoles(event.ReservableRoles)
	return event
}

func cloneHistoryEntry(entry persistence.EventHistoryEntry) persistence.EventHistoryEntry {
	entry.Accepted = cloneStrings(entry.Accepted)
	entry.Declined = cloneStrings(entry.Declined)
	entry.Tentative = cloneStrings(entry.Tentative)
	entry.RoleOccupants = cloneRoles(entry.RoleOccupants)
	return entry
}

func cloneRoles(roles []persistence.RoleSlot) []persistence.RoleSlot {
	if roles == nil {
		return nil
	}
	out := make([]persistence.RoleSlot, len(roles))
	copy(out, roles)
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func clonePtr(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func matchesEventFilter(event persistence.Event, filter persistence.EventFilter) bool {
	if filter.AuthorID != nil && event.AuthorID != *filter.AuthorID {
		return false
	}
	if filter.Type != nil && event.Type != *filter.Type {
		return false
	}
	if filter.ScheduledAfter != nil && !event.ScheduledAt.After(*filter.ScheduledAfter) {
		return false
	}
	if filter.EndsBefore != nil && !event.ScheduledAt.Add(event.Duration).Before(*filter.EndsBefore) {
		return false
	}
	return true
}
