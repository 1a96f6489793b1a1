package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/platform"
	"github.com/example/guild-scheduler/internal/timeparse"
)

// EventPatcher persists the platform message ID after the first post.
type EventPatcher interface {
	PatchEvent(ctx context.Context, id string, patch persistence.EventPatch) (persistence.Event, error)
}

// NameResolver resolves member identities to display names for the message
// body.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) string
}

// Renderer publishes schedule messages through the gateway. It remembers the
// last view it sent per event and skips updates that would repaint identical
// content, so a burst of no-op interactions does not hammer the platform.
type Renderer struct {
	gateway   platform.Gateway
	events    EventPatcher
	names     NameResolver
	channelID string
	logger    *slog.Logger

	mu   sync.Mutex
	sent map[string]string
}

// NewRenderer wires the schedule message renderer. channelID is the channel
// schedule messages live in.
func NewRenderer(gateway platform.Gateway, events EventPatcher, names NameResolver, channelID string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		gateway:   gateway,
		events:    events,
		names:     names,
		channelID: channelID,
		logger:    logger,
		sent:      make(map[string]string),
	}
}

// RenderEvent posts the event's schedule message if it has none, otherwise
// edits the existing one in place. Errors are logged; render is always
// fire-and-forget for callers.
func (r *Renderer) RenderEvent(ctx context.Context, event persistence.Event, snapshot attendance.Snapshot) {
	view := r.buildView(ctx, event, snapshot)
	fingerprint := fmt.Sprintf("%+v", view)

	r.mu.Lock()
	unchanged := event.ScheduleMessageID != nil && r.sent[event.ID] == fingerprint
	r.mu.Unlock()
	if unchanged {
		return
	}

	if event.ScheduleMessageID == nil {
		messageID, err := r.gateway.PostScheduleMessage(ctx, r.channelID, view)
		if err != nil {
			r.logger.Error("failed to post schedule message", "event_id", event.ID, "error", err)
			return
		}
		idRef := &messageID
		if _, err := r.events.PatchEvent(ctx, event.ID, persistence.EventPatch{MessageID: &idRef}); err != nil {
			r.logger.Error("failed to record schedule message id", "event_id", event.ID, "error", err)
		}
	} else {
		if err := r.gateway.UpdateScheduleMessage(ctx, r.channelID, *event.ScheduleMessageID, view); err != nil {
			r.logger.Error("failed to update schedule message", "event_id", event.ID, "error", err)
			return
		}
	}

	r.mu.Lock()
	r.sent[event.ID] = fingerprint
	r.mu.Unlock()
}

// Forget drops the cached view for a removed event.
func (r *Renderer) Forget(eventID string) {
	r.mu.Lock()
	delete(r.sent, eventID)
	r.mu.Unlock()
}

func (r *Renderer) buildView(ctx context.Context, event persistence.Event, snapshot attendance.Snapshot) platform.ScheduleView {
	view := platform.ScheduleView{
		EventID:       event.ID,
		Title:         event.Title,
		Description:   event.Description,
		TimeDisplay:   timeparse.FormatAbsolute(event.ScheduledAt, nil) + " UTC",
		Duration:      formatDuration(event.Duration),
		PlayerCount:   formatPlayerCount(event, snapshot),
		ContentNotice: event.IsNSFW,
		Accepted:      r.resolveAll(ctx, snapshot.Accepted),
		Standby:       r.resolveAll(ctx, snapshot.Standby),
		Declined:      r.resolveAll(ctx, snapshot.Declined),
		Tentative:     r.resolveAll(ctx, snapshot.Tentative),
	}

	if event.ExternalURL != nil {
		view.ExternalURL = *event.ExternalURL
	}
	if event.Location != nil {
		view.Location = *event.Location
	}

	for _, slot := range snapshot.Roles {
		occupant := ""
		if slot.OccupantID != "" {
			occupant = r.resolve(ctx, slot.OccupantID)
		}
		view.Roles = append(view.Roles, platform.RoleView{Label: slot.Label, Occupant: occupant})
	}

	return view
}

func (r *Renderer) resolve(ctx context.Context, userID string) string {
	if r.names == nil {
		return userID
	}
	return r.names.DisplayName(ctx, userID)
}

func (r *Renderer) resolveAll(ctx context.Context, userIDs []string) []string {
	if len(userIDs) == 0 {
		return nil
	}
	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		names[i] = r.resolve(ctx, id)
	}
	return names
}

// formatPlayerCount renders the attendee line respecting the MaxPlayers
// sentinels: anonymous hides the count entirely, unlimited shows only how many
// are going.
func formatPlayerCount(event persistence.Event, snapshot attendance.Snapshot) string {
	switch event.MaxPlayers {
	case persistence.MaxPlayersAnonymous:
		return ""
	case persistence.MaxPlayersUnlimited:
		return fmt.Sprintf("%d going", len(snapshot.Accepted))
	}
	return fmt.Sprintf("%d/%d", len(snapshot.Accepted), event.MaxPlayers)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
