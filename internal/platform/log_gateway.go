package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// LogGateway writes outbound traffic to the logger instead of a live
// platform connection. It keeps the binary runnable without credentials and
// doubles as a development sink.
type LogGateway struct {
	logger  *slog.Logger
	counter atomic.Uint64
}

// NewLogGateway creates a gateway that logs every outbound call.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

// SendDirectMessage logs the DM payload.
func (g *LogGateway) SendDirectMessage(ctx context.Context, userID, channelID, text string) error {
	g.logger.Info("outbound direct message", "user_id", userID, "channel_id", channelID, "text", text)
	return nil
}

// PostScheduleMessage logs the view and fabricates a message ID.
func (g *LogGateway) PostScheduleMessage(ctx context.Context, channelID string, view ScheduleView) (string, error) {
	id := fmt.Sprintf("log-msg-%d", g.counter.Add(1))
	g.logger.Info("outbound schedule message", "channel_id", channelID, "message_id", id, "event_id", view.EventID, "title", view.Title)
	return id, nil
}

// UpdateScheduleMessage logs the edit.
func (g *LogGateway) UpdateScheduleMessage(ctx context.Context, channelID, messageID string, view ScheduleView) error {
	g.logger.Info("outbound schedule update", "channel_id", channelID, "message_id", messageID, "event_id", view.EventID)
	return nil
}

// NotifyChannel logs the notification.
func (g *LogGateway) NotifyChannel(ctx context.Context, channelID, text, mentionRole string) error {
	g.logger.Info("outbound notification", "channel_id", channelID, "mention_role", mentionRole, "text", text)
	return nil
}
