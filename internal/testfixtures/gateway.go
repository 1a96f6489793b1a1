package testfixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/guild-scheduler/internal/platform"
)

// GatewayCall records one outbound gateway invocation.
type GatewayCall struct {
	Method      string
	UserID      string
	ChannelID   string
	MessageID   string
	Text        string
	MentionRole string
	View        platform.ScheduleView
}

// RecordingGateway implements platform.Gateway for tests, recording every
// outbound call in order. Err, when set, is returned from all methods.
type RecordingGateway struct {
	mu      sync.Mutex
	calls   []GatewayCall
	counter int

	Err error
}

// NewRecordingGateway returns an empty recording gateway.
func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{}
}

// Calls returns a copy of the recorded calls in invocation order.
func (g *RecordingGateway) Calls() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GatewayCall, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsTo filters recorded calls by method name.
func (g *RecordingGateway) CallsTo(method string) []GatewayCall {
	var out []GatewayCall
	for _, call := range g.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Reset discards recorded calls.
func (g *RecordingGateway) Reset() {
	g.mu.Lock()
	g.calls = nil
	g.mu.Unlock()
}

func (g *RecordingGateway) record(call GatewayCall) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

// SendDirectMessage records the DM.
func (g *RecordingGateway) SendDirectMessage(ctx context.Context, userID, channelID, text string) error {
	if g.Err != nil {
		return g.Err
	}
	g.record(GatewayCall{Method: "SendDirectMessage", UserID: userID, ChannelID: channelID, Text: text})
	return nil
}

// PostScheduleMessage records the post and fabricates a message ID.
func (g *RecordingGateway) PostScheduleMessage(ctx context.Context, channelID string, view platform.ScheduleView) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.mu.Lock()
	g.counter++
	id := fmt.Sprintf("msg-%d", g.counter)
	g.calls = append(g.calls, GatewayCall{Method: "PostScheduleMessage", ChannelID: channelID, MessageID: id, View: view})
	g.mu.Unlock()
	return id, nil
}

// UpdateScheduleMessage records the update.
func (g *RecordingGateway) UpdateScheduleMessage(ctx context.Context, channelID, messageID string, view platform.ScheduleView) error {
	if g.Err != nil {
		return g.Err
	}
	g.record(GatewayCall{Method: "UpdateScheduleMessage", ChannelID: channelID, MessageID: messageID, View: view})
	return nil
}

// NotifyChannel records the notification.
func (g *RecordingGateway) NotifyChannel(ctx context.Context, channelID, text, mentionRole string) error {
	if g.Err != nil {
		return g.Err
	}
	g.record(GatewayCall{Method: "NotifyChannel", ChannelID: channelID, Text: text, MentionRole: mentionRole})
	return nil
}
