// Package platform is the boundary to the chat platform. The core never talks
// to a platform SDK directly; it emits outbound calls through Gateway and the
// hosting process supplies the wiring.
package platform

import "context"

// ScheduleView is the display payload for one event message. Rendering into
// platform-native embeds and buttons happens on the other side of the
// boundary.
type ScheduleView struct {
	EventID       string
	Title         string
	Description   string
	ExternalURL   string
	Location      string
	TimeDisplay   string
	Duration      string
	PlayerCount   string
	ContentNotice bool
	Accepted      []string
	Standby       []string
	Declined      []string
	Tentative     []string
	Roles         []RoleView
}

// RoleView is one reservable slot line in a schedule message.
type RoleView struct {
	Label    string
	Occupant string
}

// Gateway sends outbound traffic to the chat platform.
type Gateway interface {
	// SendDirectMessage delivers a prompt or notice to a member's DM channel.
	SendDirectMessage(ctx context.Context, userID, channelID, text string) error
	// PostScheduleMessage publishes a new event message and returns its
	// platform message ID for later updates.
	PostScheduleMessage(ctx context.Context, channelID string, view ScheduleView) (string, error)
	// UpdateScheduleMessage edits a previously posted event message in place.
	UpdateScheduleMessage(ctx context.Context, channelID, messageID string, view ScheduleView) error
	// NotifyChannel posts a reminder notification. A non-empty mentionRole is
	// pinged; batch callers suppress the mention after the first message.
	NotifyChannel(ctx context.Context, channelID, text, mentionRole string) error
}
