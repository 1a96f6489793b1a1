package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
)

// runDueJob runs fn when the job's persisted next-due timestamp has passed,
// then advances the timestamp regardless of the run's outcome so a failing job
// keeps its cadence instead of retrying every sweep.
func (s *Scheduler) runDueJob(ctx context.Context, name string, period time.Duration, now time.Time, fn func(context.Context, time.Time) error) {
	state, err := s.jobs.GetJobState(ctx, name)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		// First run on a fresh install fires immediately.
		state = persistence.JobState{Name: name, NextDue: now}
	case err != nil:
		s.logger.Error("failed to load job state", "job", name, "error", err)
		return
	}

	if state.NextDue.After(now) {
		return
	}

	if err := fn(ctx, now); err != nil {
		s.logger.Error("job run failed", "job", name, "error", err)
	} else {
		s.logger.Info("job run completed", "job", name)
	}

	state.NextDue = now.Add(period)
	state.UpdatedAt = now
	if err := s.jobs.PutJobState(ctx, state); err != nil {
		s.logger.Error("failed to persist job state", "job", name, "error", err)
	}
}

// runExpertAudit reports authors whose most recent hosted event is older than
// the lookback window, with days since each last hosting.
func (s *Scheduler) runExpertAudit(ctx context.Context, now time.Time) error {
	lastHosted, err := s.history.LastHostedByAuthor(ctx)
	if err != nil {
		return fmt.Errorf("load hosting statistics: %w", err)
	}

	type stale struct {
		author string
		days   int
	}
	var inactive []stale
	cutoff := now.Add(-s.cfg.AuditLookback)
	for author, last := range lastHosted {
		if last.Before(cutoff) {
			inactive = append(inactive, stale{author: author, days: int(now.Sub(last).Hours() / 24)})
		}
	}

	if len(inactive) == 0 {
		return nil
	}
	sort.Slice(inactive, func(i, j int) bool { return inactive[i].days > inactive[j].days })

	var b strings.Builder
	fmt.Fprintf(&b, "Activity audit: %d hosts past the %d-day mark.\n", len(inactive), int(s.cfg.AuditLookback.Hours()/24))
	for _, entry := range inactive {
		fmt.Fprintf(&b, "- <@%s>: last hosted %d days ago\n", entry.author, entry.days)
	}

	return s.gateway.NotifyChannel(ctx, s.cfg.StaffChannelID, strings.TrimRight(b.String(), "\n"), s.cfg.MentionRole)
}

// runUnitReport summarizes archived activity over the report period: event
// counts per type and total attendance.
func (s *Scheduler) runUnitReport(ctx context.Context, now time.Time) error {
	since := now.Add(-s.cfg.ReportCadence)
	entries, err := s.history.ListHistory(ctx, since)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	byType := make(map[persistence.EventType]int)
	attendance := 0
	for _, entry := range entries {
		byType[entry.Type]++
		attendance += len(entry.Accepted)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Activity report since %s: %d events, %d total attendances.\n",
		since.Format("2006-01-02"), len(entries), attendance)
	for _, eventType := range []persistence.EventType{persistence.EventTypeOperation, persistence.EventTypeWorkshop, persistence.EventTypeEvent} {
		if count := byType[eventType]; count > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", eventType, count)
		}
	}

	return s.gateway.NotifyChannel(ctx, s.cfg.StaffChannelID, strings.TrimRight(b.String(), "\n"), s.cfg.MentionRole)
}
