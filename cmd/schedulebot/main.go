package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/config"
	"github.com/example/guild-scheduler/internal/dispatch"
	"github.com/example/guild-scheduler/internal/flow"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/persistence/sqlite"
	"github.com/example/guild-scheduler/internal/platform"
	"github.com/example/guild-scheduler/internal/reminder"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	eventRepo := sqlite.NewEventRepository(pool, now)
	recordRepo := sqlite.NewAttendanceRepository(pool)
	memberRepo := sqlite.NewMemberRepository(pool)
	reminderRepo := sqlite.NewReminderRepository(pool)
	historyRepo := sqlite.NewHistoryRepository(pool)
	jobRepo := sqlite.NewJobStateRepository(pool)

	gateway := platform.NewLogGateway(logger)
	names := identityResolver{}

	renderer := dispatch.NewRenderer(gateway, eventRepo, names, cfg.ScheduleChannelID, logger)
	engine := attendance.NewEngine(eventRepo, recordRepo, renderer, now, logger)
	eventService := application.NewEventService(eventRepo, recordRepo, historyRepo, names, nil, idGenerator, now, logger)

	flows := flow.NewManager(flow.Config{PromptTimeout: cfg.PromptTimeout},
		eventService, memberRepo, engine, renderer, gateway, now, logger)

	sweeper := reminder.NewScheduler(reminder.Config{
		SweepInterval:   cfg.SweepInterval,
		StaffChannelID:  cfg.StaffChannelID,
		MentionRole:     cfg.MentionRole,
		AuditLookback:   cfg.AuditLookback,
		AuditCadence:    cfg.AuditCadence,
		ReportCadence:   cfg.ReportCadence,
		NewcomerCheckIn: cfg.NewcomerCheckIn,
	}, reminderRepo, eventRepo, eventService, historyRepo, jobRepo, gateway, idGenerator, now, logger)

	dispatcher := dispatch.NewDispatcher(engine, flows, eventService, memberRepo, sweeper, gateway, now, logger)

	sweeper.Start()
	go runConsole(ctx, dispatcher, logger)

	logger.Info("scheduler bot running", "schedule_channel", cfg.ScheduleChannelID)
	<-ctx.Done()

	sweeper.Stop()
	flows.Shutdown()
	logger.Info("scheduler bot stopped")
}

// identityResolver stands in for the platform member directory: identities
// render as-is until a live gateway supplies display names.
type identityResolver struct{}

func (identityResolver) DisplayName(ctx context.Context, userID string) string {
	return userID
}

// runConsole feeds actions from stdin while no live platform connection is
// wired, mirroring the interactions a gateway adapter would deliver.
//
// Commands:
//
//	rsvp <event> <user> <accepted|declined|tentative>
//	clear <event> <user>
//	claim <event> <user> <role>
//	release <event> <user> <role>
//	create <user> <channel> <operation|workshop|event>
//	edit <user> <event> <channel>
//	delete <user> <event>
//	say <user> <channel> <text...>
//	tz <user> <zone>
//	remind <user> <channel> <expr> <text...>
func runConsole(ctx context.Context, dispatcher *dispatch.Dispatcher, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		action, ok := parseConsoleAction(fields)
		if !ok {
			logger.Warn("unrecognized console command", "input", fields[0])
			continue
		}
		dispatcher.Dispatch(ctx, action)
	}
}

func parseConsoleAction(fields []string) (dispatch.Action, bool) {
	switch fields[0] {
	case "rsvp":
		if len(fields) != 4 {
			return nil, false
		}
		return dispatch.SetStatus{
			EventID: fields[1],
			UserID:  fields[2],
			Status:  persistence.AttendanceStatus(fields[3]),
		}, true
	case "clear":
		if len(fields) != 3 {
			return nil, false
		}
		return dispatch.ClearStatus{EventID: fields[1], UserID: fields[2]}, true
	case "claim":
		if len(fields) != 4 {
			return nil, false
		}
		return dispatch.ClaimRole{EventID: fields[1], UserID: fields[2], Label: fields[3]}, true
	case "release":
		if len(fields) != 4 {
			return nil, false
		}
		return dispatch.ReleaseRole{EventID: fields[1], ActorID: fields[2], Label: fields[3]}, true
	case "create":
		if len(fields) != 4 {
			return nil, false
		}
		return dispatch.BeginCreate{
			UserID:    fields[1],
			ChannelID: fields[2],
			EventType: persistence.EventType(fields[3]),
		}, true
	case "edit":
		if len(fields) != 4 {
			return nil, false
		}
		return dispatch.BeginEdit{
			Principal: application.Principal{UserID: fields[1]},
			EventID:   fields[2],
			ChannelID: fields[3],
		}, true
	case "delete":
		if len(fields) != 3 {
			return nil, false
		}
		return dispatch.DeleteEvent{
			Principal: application.Principal{UserID: fields[1]},
			EventID:   fields[2],
		}, true
	case "say":
		if len(fields) < 4 {
			return nil, false
		}
		return dispatch.DirectMessage{
			UserID:    fields[1],
			ChannelID: fields[2],
			Text:      strings.Join(fields[3:], " "),
		}, true
	case "tz":
		if len(fields) != 3 {
			return nil, false
		}
		return dispatch.SetTimezone{UserID: fields[1], Zone: fields[2]}, true
	case "remind":
		if len(fields) < 5 {
			return nil, false
		}
		return dispatch.RemindMe{
			UserID:    fields[1],
			ChannelID: fields[2],
			In:        fields[3],
			Message:   strings.Join(fields[4:], " "),
		}, true
	}
	return nil, false
}
