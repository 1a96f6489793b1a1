// Package reminder runs the periodic sweep: due reminders are delivered and
// consumed, expired events are archived, and the long-horizon audit and report
// jobs fire off their persisted next-due timestamps. Everything the sweep does
// is load-modify-save against persistence, so a crash between sweeps loses
// nothing.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/platform"
)

// Defaults applied when Config fields are zero.
const (
	DefaultSweepInterval   = 5 * time.Minute
	DefaultAuditLookback   = 60 * 24 * time.Hour
	DefaultAuditCadence    = 7 * 24 * time.Hour
	DefaultReportCadence   = 182 * 24 * time.Hour
	DefaultNewcomerCheckIn = 7 * 24 * time.Hour
)

// Job names used as job_states keys.
const (
	jobExpertAudit = "expert-audit"
	jobUnitReport  = "unit-report"
)

// ReminderStore captures the reminder persistence the sweep needs.
type ReminderStore interface {
	CreateReminder(ctx context.Context, reminder persistence.Reminder) error
	ListReminders(ctx context.Context) ([]persistence.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	RescheduleReminder(ctx context.Context, id string, triggerAt time.Time) error
}

// EventLister enumerates events for the expiry pass.
type EventLister interface {
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
}

// Archiver archives an expired event through the application layer so the
// history snapshot and cascades run the same as a manual delete.
type Archiver interface {
	ArchiveExpired(ctx context.Context, eventID string) error
}

// HistoryStore feeds the audit and report jobs.
type HistoryStore interface {
	ListHistory(ctx context.Context, since time.Time) ([]persistence.EventHistoryEntry, error)
	LastHostedByAuthor(ctx context.Context) (map[string]time.Time, error)
}

// JobStore persists next-due timestamps for the long-horizon jobs.
type JobStore interface {
	GetJobState(ctx context.Context, name string) (persistence.JobState, error)
	PutJobState(ctx context.Context, state persistence.JobState) error
}

// Config carries sweep tunables.
type Config struct {
	// SweepInterval is the fixed sweep cadence.
	SweepInterval time.Duration
	// StaffChannelID receives audit and report output.
	StaffChannelID string
	// MentionRole is pinged on the first notification per channel per sweep.
	MentionRole string
	// AuditLookback flags authors whose last hosted event is older than this.
	AuditLookback time.Duration
	// AuditCadence is the period between activity audits.
	AuditCadence time.Duration
	// ReportCadence is the period between unit activity reports.
	ReportCadence time.Duration
	// NewcomerCheckIn is the delay before a newcomer follow-up fires.
	NewcomerCheckIn time.Duration
}

func (c *Config) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.AuditLookback <= 0 {
		c.AuditLookback = DefaultAuditLookback
	}
	if c.AuditCadence <= 0 {
		c.AuditCadence = DefaultAuditCadence
	}
	if c.ReportCadence <= 0 {
		c.ReportCadence = DefaultReportCadence
	}
	if c.NewcomerCheckIn <= 0 {
		c.NewcomerCheckIn = DefaultNewcomerCheckIn
	}
}

// Scheduler owns reminder creation and the periodic sweep.
type Scheduler struct {
	cfg         Config
	reminders   ReminderStore
	events      EventLister
	archiver    Archiver
	history     HistoryStore
	jobs        JobStore
	gateway     platform.Gateway
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	cron *cron.Cron
}

// NewScheduler wires sweep dependencies.
func NewScheduler(cfg Config, reminders ReminderStore, events EventLister, archiver Archiver, history HistoryStore, jobs JobStore, gateway platform.Gateway, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Scheduler {
	cfg.applyDefaults()
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:         cfg,
		reminders:   reminders,
		events:      events,
		archiver:    archiver,
		history:     history,
		jobs:        jobs,
		gateway:     gateway,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// ScheduleUserReminder persists a member-scheduled reminder. A non-zero repeat
// makes it recurring.
func (s *Scheduler) ScheduleUserReminder(ctx context.Context, userID, channelID, message string, triggerAt time.Time, repeat time.Duration) (persistence.Reminder, error) {
	reminder := persistence.Reminder{
		ID:          s.idGenerator(),
		Kind:        persistence.ReminderKindUser,
		TriggerAt:   triggerAt.UTC(),
		RecipientID: userID,
		ChannelID:   channelID,
		Message:     message,
		Repeat:      repeat,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.reminders.CreateReminder(ctx, reminder); err != nil {
		return persistence.Reminder{}, err
	}
	return reminder, nil
}

// ScheduleNewcomerCheck persists a one-shot follow-up on a recently joined
// member, due after the configured check-in delay.
func (s *Scheduler) ScheduleNewcomerCheck(ctx context.Context, userID, channelID string) (persistence.Reminder, error) {
	now := s.now().UTC()
	reminder := persistence.Reminder{
		ID:          s.idGenerator(),
		Kind:        persistence.ReminderKindNewcomerCheck,
		TriggerAt:   now.Add(s.cfg.NewcomerCheckIn),
		RecipientID: userID,
		ChannelID:   channelID,
		Message:     fmt.Sprintf("Check in with <@%s>: they joined recently and may have questions.", userID),
		CreatedAt:   now,
	}
	if err := s.reminders.CreateReminder(ctx, reminder); err != nil {
		return persistence.Reminder{}, err
	}
	return reminder, nil
}

// Start runs the sweep on its fixed cadence until Stop is called.
func (s *Scheduler) Start() {
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	interval := s.cfg.SweepInterval
	s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		s.Sweep(ctx)
	})
	s.cron.Start()
	s.logger.Info("reminder sweep started", "interval", interval.String())
}

// Stop halts the cadence and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("reminder sweep stopped")
}

// Sweep runs one pass: deliver due reminders, archive expired events, and run
// any long-horizon job whose next-due timestamp has passed. Failures in one
// stage never block the others.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now().UTC()

	s.deliverDue(ctx, now)
	s.archiveExpired(ctx, now)
	s.runDueJob(ctx, jobExpertAudit, s.cfg.AuditCadence, now, s.runExpertAudit)
	s.runDueJob(ctx, jobUnitReport, s.cfg.ReportCadence, now, s.runUnitReport)
}

// deliverDue fires every reminder whose trigger has passed, then consumes it:
// one-shots are deleted, recurring ones are rescheduled past now. Only the
// first notification per channel in a batch carries the role mention.
func (s *Scheduler) deliverDue(ctx context.Context, now time.Time) {
	reminders, err := s.reminders.ListReminders(ctx)
	if err != nil {
		s.logger.Error("failed to list reminders", "error", err)
		return
	}

	mentioned := make(map[string]bool)
	for _, reminder := range reminders {
		if reminder.TriggerAt.After(now) {
			continue
		}

		mention := ""
		if !mentioned[reminder.ChannelID] {
			mention = s.cfg.MentionRole
			mentioned[reminder.ChannelID] = true
		}
		if err := s.gateway.NotifyChannel(ctx, reminder.ChannelID, reminder.Message, mention); err != nil {
			s.logger.Error("failed to deliver reminder", "reminder_id", reminder.ID, "error", err)
			// Left in place; the next sweep retries.
			continue
		}

		if reminder.Repeat <= 0 {
			if err := s.reminders.DeleteReminder(ctx, reminder.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				s.logger.Error("failed to consume reminder", "reminder_id", reminder.ID, "error", err)
			}
			continue
		}

		next := reminder.TriggerAt.Add(reminder.Repeat)
		for !next.After(now) {
			next = next.Add(reminder.Repeat)
		}
		if err := s.reminders.RescheduleReminder(ctx, reminder.ID, next); err != nil {
			s.logger.Error("failed to reschedule reminder", "reminder_id", reminder.ID, "error", err)
		}
	}
}

// archiveExpired removes events whose scheduled time plus duration has passed,
// routing through the application layer so history and cascades apply.
func (s *Scheduler) archiveExpired(ctx context.Context, now time.Time) {
	expired, err := s.events.ListEvents(ctx, persistence.EventFilter{EndsBefore: &now})
	if err != nil {
		s.logger.Error("failed to list expired events", "error", err)
		return
	}

	for _, event := range expired {
		if err := s.archiver.ArchiveExpired(ctx, event.ID); err != nil {
			s.logger.Error("failed to archive expired event", "event_id", event.ID, "error", err)
			continue
		}
		s.logger.Info("expired event archived", "event_id", event.ID, "title", event.Title)
	}
}
