package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/guild-scheduler/internal/persistence"
	"github.com/example/guild-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Events    persistence.EventRepository
	Records   persistence.AttendanceRepository
	Members   persistence.MemberRepository
	Reminders persistence.ReminderRepository
	History   persistence.HistoryRepository
	Jobs      persistence.JobStateRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a temporary database file. Cleanup is
// registered with the provided testing.TB; Close may also be called directly.
func NewSQLiteHarness(tb testing.TB, now func() time.Time) *SQLiteHarness {
	tb.Helper()

	if now == nil {
		now = time.Now
	}

	path := filepath.Join(tb.TempDir(), "guild-scheduler.db")

	pool, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Events:    sqlite.NewEventRepository(pool, now),
		Records:   sqlite.NewAttendanceRepository(pool),
		Members:   sqlite.NewMemberRepository(pool),
		Reminders: sqlite.NewReminderRepository(pool),
		History:   sqlite.NewHistoryRepository(pool),
		Jobs:      sqlite.NewJobStateRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
