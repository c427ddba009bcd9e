package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/edu-project-api/internal/database"
	"github.com/yukikurage/edu-project-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.MigrateDatabase(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return db, mock
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "hashedpassword", Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func uint64Ptr(v uint64) *uint64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

// recordingPublisher is an in-memory EventPublisher.
type recordingPublisher struct {
	mu        sync.Mutex
	ready     bool
	err       error
	events    []publishedEvent
	onPublish func()
}

type publishedEvent struct {
	UserID  uint64
	Event   string
	Payload interface{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ready: true}
}

func (p *recordingPublisher) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *recordingPublisher) PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onPublish != nil {
		p.onPublish()
	}
	p.events = append(p.events, publishedEvent{UserID: userID, Event: event, Payload: payload})
	return p.err
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// mockNotifier is a testify mock of Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, input NotifyInput) (*models.Notification, error) {
	args := m.Called(ctx, input)
	notification, _ := args.Get(0).(*models.Notification)
	return notification, args.Error(1)
}

func (m *mockNotifier) NotifyBulk(ctx context.Context, input NotifyBulkInput) (*BulkNotifyResult, error) {
	args := m.Called(ctx, input)
	result, _ := args.Get(0).(*BulkNotifyResult)
	return result, args.Error(1)
}

// fakeTimers replaces time.AfterFunc; tests fire timers explicitly.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) jobTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *fakeTimers) last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fire runs the callback synchronously unless the timer was stopped. Like a
// real timer, a callback that already started is not prevented by Stop.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
}

// forceFire runs the callback even if Stop was called, simulating a timer
// that already fired when the job was cancelled.
func (t *fakeTimer) forceFire() {
	t.fn()
}
