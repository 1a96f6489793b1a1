package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/timeparse"
)

const (
	msgCanceled  = "Canceled. No changes were made."
	msgTimedOut  = "This session timed out. No changes were made."
	msgEditDone  = "Done editing."
	msgCommitErr = "Something went wrong saving the event. Please try again later."
)

var playerCountPattern = regexp.MustCompile(`^(\d+)(?:\s*-\s*(\d+))?$`)

// session is one member's in-flight conversation. The draft lives only here
// until commit; cancel and timeout discard it.
type session struct {
	key     sessionKey
	replies chan string
	timeout time.Duration
	manager *Manager
}

// await blocks for the next in-scope reply. The literal token "cancel"
// (case-insensitive) aborts from any state.
func (s *session) await() (string, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case text := <-s.replies:
		if strings.EqualFold(strings.TrimSpace(text), "cancel") {
			return "", errCanceled
		}
		return strings.TrimSpace(text), nil
	case <-timer.C:
		return "", errTimedOut
	case <-s.manager.done:
		return "", errShutdown
	}
}

// prompt sends one DM. Send failures abort the session; there is no point
// waiting on a prompt the member never saw.
func (s *session) prompt(ctx context.Context, text string) error {
	return s.manager.gateway.SendDirectMessage(ctx, s.key.UserID, s.key.ChannelID, text)
}

// ask sends the prompt, awaits a reply, validates it, and re-prompts on
// invalid input. Each re-prompt restarts the full inactivity window.
func (s *session) ask(ctx context.Context, promptText string, validate func(string) (string, error)) (string, error) {
	for {
		if err := s.prompt(ctx, promptText); err != nil {
			return "", err
		}

		reply, err := s.await()
		if err != nil {
			return "", err
		}

		value, vErr := validate(reply)
		if vErr == nil {
			return value, nil
		}

		if err := s.prompt(ctx, vErr.Error()); err != nil {
			return "", err
		}
	}
}

// finish sends the terminal notice for an aborted session.
func (s *session) finish(ctx context.Context, err error) {
	switch {
	case errors.Is(err, errCanceled):
		_ = s.prompt(ctx, msgCanceled)
	case errors.Is(err, errTimedOut):
		_ = s.prompt(ctx, msgTimedOut)
	}
}

func (m *Manager) runCreate(s *session, eventType persistence.EventType) {
	ctx := context.Background()
	logger := m.logger.With("flow", "create", "user_id", s.key.UserID)

	draft := application.EventInput{Type: eventType, MinPlayers: 1}

	title, err := s.ask(ctx, "What is the event title?", validateRequired("Title cannot be empty. What is the event title?"))
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.Title = title

	description, err := s.ask(ctx, "Describe the event. Reply \"none\" to skip.", validateAny)
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.Description = noneToEmpty(description)

	link, err := s.ask(ctx, "Add a reference link, or reply \"none\".", validateURL)
	if err != nil {
		s.finish(ctx, err)
		return
	}
	if link != "" {
		draft.ExternalURL = &link
	}

	minPlayers, maxPlayers, err := s.askPlayerCount(ctx)
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.MinPlayers = minPlayers
	draft.MaxPlayers = maxPlayers

	nsfw, err := s.askYesNo(ctx, "Does this event need a content warning? (yes/no)")
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.IsNSFW = nsfw

	scheduledAt, err := s.askTime(ctx)
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.ScheduledAt = scheduledAt

	duration, err := s.askDuration(ctx)
	if err != nil {
		s.finish(ctx, err)
		return
	}
	draft.Duration = duration

	event, err := m.events.CreateEvent(ctx, application.CreateEventParams{
		Principal: application.Principal{UserID: s.key.UserID},
		Input:     draft,
	})
	if err != nil {
		logger.Error("failed to commit draft", "error", err, "kind", application.ErrorKind(err))
		_ = s.prompt(ctx, msgCommitErr)
		return
	}

	m.renderCommitted(ctx, event)
	_ = s.prompt(ctx, fmt.Sprintf("Event %q is on the schedule.", event.Title))
	logger.Info("create flow committed", "event_id", event.ID)
}

// editableFields maps menu numbers to the edit handlers. The menu loops until
// the member stops responding or replies "done".
var editableFields = []string{
	"Title",
	"Description",
	"Link",
	"Player count",
	"Content warning",
	"Time",
	"Duration",
}

func (m *Manager) runEdit(s *session, principal application.Principal, eventID string) {
	ctx := context.Background()
	logger := m.logger.With("flow", "edit", "user_id", s.key.UserID, "event_id", eventID)

	event, err := m.events.GetEvent(ctx, eventID)
	if err != nil {
		_ = s.prompt(ctx, "That event no longer exists.")
		return
	}
	if event.AuthorID != principal.UserID && !principal.IsStaff {
		_ = s.prompt(ctx, "Only the event author or staff can edit this event.")
		return
	}

	menu := buildEditMenu(event.Title)

	for {
		if err := s.prompt(ctx, menu); err != nil {
			return
		}

		reply, err := s.await()
		if err != nil {
			s.finish(ctx, err)
			return
		}
		if strings.EqualFold(reply, "done") {
			_ = s.prompt(ctx, msgEditDone)
			return
		}

		choice, convErr := strconv.Atoi(reply)
		if convErr != nil || choice < 1 || choice > len(editableFields) {
			if err := s.prompt(ctx, fmt.Sprintf("Reply with a number between 1 and %d, or \"done\".", len(editableFields))); err != nil {
				return
			}
			continue
		}

		patch, err := m.collectFieldPatch(ctx, s, choice)
		if err != nil {
			s.finish(ctx, err)
			return
		}

		updated, err := m.events.UpdateEvent(ctx, application.UpdateEventParams{
			Principal: principal,
			EventID:   eventID,
			Patch:     patch,
		})
		if err != nil {
			logger.Error("failed to apply edit", "error", err, "kind", application.ErrorKind(err))
			_ = s.prompt(ctx, msgCommitErr)
			continue
		}

		m.renderCommitted(ctx, updated)
		_ = s.prompt(ctx, fmt.Sprintf("%s updated.", editableFields[choice-1]))
	}
}

func buildEditMenu(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Editing %q. Which field?\n", title)
	for i, field := range editableFields {
		fmt.Fprintf(&b, "%d. %s\n", i+1, field)
	}
	b.WriteString("Reply \"done\" when finished.")
	return b.String()
}

// collectFieldPatch prompts for a single field's new value and returns a
// one-field patch.
func (m *Manager) collectFieldPatch(ctx context.Context, s *session, choice int) (persistence.EventPatch, error) {
	var patch persistence.EventPatch

	switch choice {
	case 1:
		title, err := s.ask(ctx, "New title?", validateRequired("Title cannot be empty. New title?"))
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	case 2:
		description, err := s.ask(ctx, "New description? Reply \"none\" to clear.", validateAny)
		if err != nil {
			return patch, err
		}
		cleared := noneToEmpty(description)
		patch.Description = &cleared
	case 3:
		link, err := s.ask(ctx, "New link? Reply \"none\" to clear.", validateURL)
		if err != nil {
			return patch, err
		}
		var value *string
		if link != "" {
			value = &link
		}
		patch.ExternalURL = &value
	case 4:
		minPlayers, maxPlayers, err := s.askPlayerCount(ctx)
		if err != nil {
			return patch, err
		}
		patch.MinPlayers = &minPlayers
		patch.MaxPlayers = &maxPlayers
	case 5:
		nsfw, err := s.askYesNo(ctx, "Does this event need a content warning? (yes/no)")
		if err != nil {
			return patch, err
		}
		patch.IsNSFW = &nsfw
	case 6:
		scheduledAt, err := s.askTime(ctx)
		if err != nil {
			return patch, err
		}
		patch.ScheduledAt = &scheduledAt
	case 7:
		duration, err := s.askDuration(ctx)
		if err != nil {
			return patch, err
		}
		patch.Duration = &duration
	}

	return patch, nil
}

// renderCommitted refreshes the schedule message after a successful write.
// Failures are logged by the renderer; the flow does not retry.
func (m *Manager) renderCommitted(ctx context.Context, event persistence.Event) {
	if m.renderer == nil || m.snapshot == nil {
		return
	}
	snapshot, err := m.snapshot.Snapshot(ctx, event.ID)
	if err != nil {
		m.logger.Error("failed to snapshot for render", "event_id", event.ID, "error", err)
		return
	}
	m.renderer.RenderEvent(ctx, event, snapshot)
}

// askPlayerCount accepts "N" or "N-M" with both within bounds. A single
// number sets minimum and maximum to the same value.
func (s *session) askPlayerCount(ctx context.Context) (int, int, error) {
	promptText := fmt.Sprintf("How many players? Reply \"N\" or \"N-M\" (%d-%d).",
		application.MinPlayerBound, application.MaxPlayerBound)

	reply, err := s.ask(ctx, promptText, func(input string) (string, error) {
		if _, _, ok := parsePlayerCount(input); !ok {
			return "", fmt.Errorf("That doesn't look right. Reply \"N\" or \"N-M\" with values between %d and %d.",
				application.MinPlayerBound, application.MaxPlayerBound)
		}
		return input, nil
	})
	if err != nil {
		return 0, 0, err
	}

	minPlayers, maxPlayers, _ := parsePlayerCount(reply)
	return minPlayers, maxPlayers, nil
}

func parsePlayerCount(input string) (int, int, bool) {
	parts := playerCountPattern.FindStringSubmatch(strings.TrimSpace(input))
	if parts == nil {
		return 0, 0, false
	}

	minPlayers, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}

	maxPlayers := minPlayers
	if parts[2] != "" {
		if maxPlayers, err = strconv.Atoi(parts[2]); err != nil {
			return 0, 0, false
		}
	}

	if minPlayers < application.MinPlayerBound || maxPlayers > application.MaxPlayerBound || minPlayers > maxPlayers {
		return 0, 0, false
	}

	return minPlayers, maxPlayers, true
}

func (s *session) askYesNo(ctx context.Context, promptText string) (bool, error) {
	reply, err := s.ask(ctx, promptText, func(input string) (string, error) {
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "yes", "y", "no", "n":
			return strings.ToLower(strings.TrimSpace(input)), nil
		}
		return "", errors.New("Please reply yes or no.")
	})
	if err != nil {
		return false, err
	}
	return reply == "yes" || reply == "y", nil
}

// askTime resolves the member's timezone preference, prompting for one when
// absent, then collects a strict absolute time.
func (s *session) askTime(ctx context.Context) (time.Time, error) {
	zone, err := s.resolveZone(ctx)
	if err != nil {
		return time.Time{}, err
	}

	now := s.manager.now()
	example := timeparse.FormatAbsolute(now, zone)
	promptText := fmt.Sprintf("When is the event? Use exactly this format: %s", example)

	reply, err := s.ask(ctx, promptText, func(input string) (string, error) {
		parsed, parseErr := timeparse.ParseAbsolute(input, zone)
		if parseErr != nil {
			return "", fmt.Errorf("That didn't match. Use exactly this format: %s", example)
		}
		if !parsed.After(now) {
			return "", errors.New("That time is in the past. Pick a future time.")
		}
		return input, nil
	})
	if err != nil {
		return time.Time{}, err
	}

	parsed, err := timeparse.ParseAbsolute(reply, zone)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

// resolveZone loads the stored preference or prompts for one. "none" or an
// unrecognized name clears the preference and falls back to UTC for this
// session.
func (s *session) resolveZone(ctx context.Context) (*time.Location, error) {
	pref, err := s.manager.members.GetPreference(ctx, s.key.UserID)
	if err == nil {
		if zone, ok := timeparse.LoadZone(pref.Timezone); ok {
			return zone, nil
		}
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	reply, err := s.ask(ctx,
		"What timezone are you in? Reply with an IANA name like \"America/New_York\", or \"none\" to use UTC.",
		validateAny)
	if err != nil {
		return nil, err
	}

	zone, ok := timeparse.LoadZone(reply)
	if !ok {
		if err := s.manager.members.ClearPreference(ctx, s.key.UserID); err != nil {
			return nil, err
		}
		return time.UTC, nil
	}

	if err := s.manager.members.UpsertPreference(ctx, persistence.MemberPreference{
		UserID:    s.key.UserID,
		Timezone:  reply,
		UpdatedAt: s.manager.now().UTC(),
	}); err != nil {
		return nil, err
	}

	return zone, nil
}

func (s *session) askDuration(ctx context.Context) (time.Duration, error) {
	reply, err := s.ask(ctx, "How long will it run? (e.g. \"2h 30m\" or \"90 minutes\")", func(input string) (string, error) {
		duration, parseErr := timeparse.ParseDuration(input)
		if parseErr != nil || duration <= 0 {
			return "", errors.New("That didn't parse. Try something like \"2h 30m\" or \"90 minutes\".")
		}
		return input, nil
	})
	if err != nil {
		return 0, err
	}

	return timeparse.ParseDuration(reply)
}

func validateRequired(message string) func(string) (string, error) {
	return func(input string) (string, error) {
		if strings.TrimSpace(input) == "" {
			return "", errors.New(message)
		}
		return strings.TrimSpace(input), nil
	}
}

func validateAny(input string) (string, error) {
	return strings.TrimSpace(input), nil
}

func validateURL(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.EqualFold(trimmed, "none") {
		return "", nil
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", errors.New("That doesn't look like a link. Send a full URL or \"none\".")
	}
	return trimmed, nil
}

func noneToEmpty(input string) string {
	if strings.EqualFold(input, "none") {
		return ""
	}
	return input
}
