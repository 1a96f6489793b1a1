// Package flow runs the conversational create and edit sessions. Each session
// is an independent task keyed by (userID, channelID) with an explicit
// registry, so one slow member never stalls another member's flow.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/guild-scheduler/internal/application"
	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/platform"
)

// DefaultPromptTimeout is the inactivity window per prompt. Each re-prompt
// restarts the full window.
const DefaultPromptTimeout = 10 * time.Minute

var (
	// ErrSessionActive is returned when the member already has a flow running
	// in the same channel.
	ErrSessionActive = errors.New("flow: session already active")

	errCanceled = errors.New("flow: canceled")
	errTimedOut = errors.New("flow: timed out")
	errShutdown = errors.New("flow: shutting down")
)

// EventService captures the event operations the flows need.
type EventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (persistence.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (persistence.Event, error)
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
}

// MemberStore captures the timezone preference operations the flows need.
type MemberStore interface {
	GetPreference(ctx context.Context, userID string) (persistence.MemberPreference, error)
	UpsertPreference(ctx context.Context, pref persistence.MemberPreference) error
	ClearPreference(ctx context.Context, userID string) error
}

// Snapshotter recomputes the attendance view after a commit.
type Snapshotter interface {
	Snapshot(ctx context.Context, eventID string) (attendance.Snapshot, error)
}

// Renderer publishes or refreshes the schedule message after a commit.
type Renderer interface {
	RenderEvent(ctx context.Context, event persistence.Event, snapshot attendance.Snapshot)
}

// Config carries flow tunables.
type Config struct {
	PromptTimeout time.Duration
}

// Manager owns the session registry. Sessions are created on StartCreate and
// StartEdit and evicted on commit, cancel, timeout, or shutdown.
type Manager struct {
	cfg      Config
	events   EventService
	members  MemberStore
	snapshot Snapshotter
	renderer Renderer
	gateway  platform.Gateway
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

type sessionKey struct {
	UserID    string
	ChannelID string
}

// NewManager wires dependencies for conversational flows.
func NewManager(cfg Config, events EventService, members MemberStore, snapshot Snapshotter, renderer Renderer, gateway platform.Gateway, now func() time.Time, logger *slog.Logger) *Manager {
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = DefaultPromptTimeout
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		events:   events,
		members:  members,
		snapshot: snapshot,
		renderer: renderer,
		gateway:  gateway,
		now:      now,
		logger:   logger,
		sessions: make(map[sessionKey]*session),
		done:     make(chan struct{}),
	}
}

// StartCreate launches a create flow for the member in their DM channel.
func (m *Manager) StartCreate(userID, channelID string, eventType persistence.EventType) error {
	sess, err := m.register(userID, channelID)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.evict(sess.key)
		m.runCreate(sess, eventType)
	}()

	return nil
}

// StartEdit launches an edit flow for an existing event.
func (m *Manager) StartEdit(principal application.Principal, eventID, channelID string) error {
	sess, err := m.register(principal.UserID, channelID)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.evict(sess.key)
		m.runEdit(sess, principal, eventID)
	}()

	return nil
}

// HandleMessage routes a direct message to the active session for the
// (user, channel) pair. It reports whether the message was consumed; messages
// outside any session scope are ignored, not consumed.
func (m *Manager) HandleMessage(userID, channelID, text string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionKey{UserID: userID, ChannelID: channelID}]
	m.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case sess.replies <- text:
		return true
	default:
		// The session is still processing the previous reply; extra input is
		// ignored rather than queued.
		return false
	}
}

// ActiveSessions reports the number of registered sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown aborts all sessions and waits for their goroutines to finish. No
// partial commit occurs; drafts are discarded.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) register(userID, channelID string) (*session, error) {
	key := sessionKey{UserID: userID, ChannelID: channelID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errShutdown
	}
	if _, ok := m.sessions[key]; ok {
		return nil, ErrSessionActive
	}

	sess := &session{
		key:     key,
		replies: make(chan string, 1),
		timeout: m.cfg.PromptTimeout,
		manager: m,
	}
	m.sessions[key] = sess
	return sess, nil
}

func (m *Manager) evict(key sessionKey) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}
