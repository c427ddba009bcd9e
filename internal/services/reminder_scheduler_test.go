package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"gorm.io/gorm"
)

var schedulerNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type schedulerFixture struct {
	db        *gorm.DB
	scheduler *ReminderScheduler
	timers    *fakeTimers
	notifier  *mockNotifier
	user      *models.User
	other     *models.User
}

func newSchedulerFixture(t *testing.T, opts ...SchedulerOption) *schedulerFixture {
	t.Helper()

	db := setupTestDB(t)
	timers := &fakeTimers{}
	notifier := &mockNotifier{}
	t.Cleanup(func() { notifier.AssertExpectations(t) })

	opts = append([]SchedulerOption{
		WithClock(func() time.Time { return schedulerNow }),
		withTimerFactory(timers.afterFunc),
	}, opts...)

	scheduler := NewReminderScheduler(
		repository.NewReminderRepository(db),
		repository.NewTaskRepository(db),
		repository.NewProjectRepository(db),
		notifier,
		logger.NewNop(),
		opts...,
	)

	return &schedulerFixture{
		db:        db,
		scheduler: scheduler,
		timers:    timers,
		notifier:  notifier,
		user:      createUser(t, db, "student", models.RoleStudent),
		other:     createUser(t, db, "other", models.RoleStudent),
	}
}

func (f *schedulerFixture) create(t *testing.T, title, description string, in time.Duration) *models.Reminder {
	t.Helper()
	reminder, err := f.scheduler.CreateReminder(context.Background(), CreateReminderInput{
		UserID:      f.user.ID,
		Title:       title,
		Description: description,
		ScheduledAt: schedulerNow.Add(in),
	})
	require.NoError(t, err)
	return reminder
}

func (f *schedulerFixture) stored(t *testing.T, id uint64) models.Reminder {
	t.Helper()
	var reminder models.Reminder
	require.NoError(t, f.db.First(&reminder, id).Error)
	return reminder
}

func notifyInput(userID uint64, message, notificationType string) interface{} {
	return mock.MatchedBy(func(in NotifyInput) bool {
		return in.UserID == userID && in.Message == message && in.Type == notificationType
	})
}

func TestCreateReminder_Validation(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.CreateReminder(ctx, CreateReminderInput{UserID: f.user.ID, Title: "Past", ScheduledAt: schedulerNow.Add(-time.Minute)})
	assert.ErrorIs(t, err, ErrReminderNotInFuture)

	_, err = f.scheduler.CreateReminder(ctx, CreateReminderInput{UserID: f.user.ID, Title: "Now", ScheduledAt: schedulerNow})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.scheduler.CreateReminder(ctx, CreateReminderInput{UserID: f.user.ID, Title: "  ", ScheduledAt: schedulerNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrReminderTitleRequired)

	var count int64
	require.NoError(t, f.db.Model(&models.Reminder{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.timers.count())
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
}

func TestReminder_FiresOnceAndDeactivates(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Read chapter 3", "pages 40-60", 2*time.Hour)

	timer := f.timers.last()
	require.NotNil(t, timer)
	assert.Equal(t, 2*time.Hour, timer.delay)
	assert.True(t, reminder.IsActive)
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Read chapter 3 - pages 40-60", models.NotificationTypeReminder)).
		Return(&models.Notification{ID: 1}, nil).Once()

	timer.fire()

	assert.False(t, f.stored(t, reminder.ID).IsActive)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)

	// A late duplicate callback finds no registered job.
	timer.forceFire()
	f.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestReminder_MessageWithoutDescription(t *testing.T) {
	assert.Equal(t, "Reminder: Quiz", ReminderMessage(&models.Reminder{Title: "Quiz"}))
	assert.Equal(t, "Reminder: Quiz - bring a pencil", ReminderMessage(&models.Reminder{Title: "Quiz", Description: "bring a pencil"}))
}

func TestReminder_InactiveRowIsNotDelivered(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Stale", "", time.Hour)

	require.NoError(t, f.db.Model(&models.Reminder{}).Where("id = ?", reminder.ID).Update("is_active", false).Error)

	f.timers.last().fire()
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
}

func TestReminder_NotifyFailureKeepsRowActive(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Submit", "", time.Hour)

	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil, ErrChannelNotReady).Once()

	f.timers.last().fire()

	assert.True(t, f.stored(t, reminder.ID).IsActive)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
}

func TestReminder_PanicStillDeregisters(t *testing.T) {
	f := newSchedulerFixture(t)
	f.create(t, "Boom", "", time.Hour)

	f.notifier.On("Notify", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		panic("notifier exploded")
	}).Once()

	assert.NotPanics(t, func() { f.timers.last().fire() })
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
}

func TestReminder_DeleteDuringDeliveryStaysDeleted(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Racing delete", "", time.Hour)

	f.notifier.On("Notify", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		require.NoError(t, f.scheduler.DeleteReminder(ctx, reminder.ID, f.user.ID))
	}).Return(&models.Notification{ID: 1}, nil).Once()

	f.timers.last().fire()

	var count int64
	require.NoError(t, f.db.Model(&models.Reminder{}).Where("id = ?", reminder.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
}

func TestReminder_EditDuringDeliveryIsKept(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Old title", "", time.Hour)

	title := "New title"
	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Old title", models.NotificationTypeReminder)).Run(func(args mock.Arguments) {
		_, err := f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{Title: &title})
		require.NoError(t, err)
	}).Return(&models.Notification{ID: 1}, nil).Once()

	f.timers.last().fire()

	stored := f.stored(t, reminder.ID)
	assert.Equal(t, "New title", stored.Title)
	assert.False(t, stored.IsActive)
}

func TestReminder_RescheduleDuringDeliveryFiresAgain(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Snooze", "", time.Hour)
	first := f.timers.last()

	later := schedulerNow.Add(2 * time.Hour)
	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Snooze", models.NotificationTypeReminder)).Run(func(args mock.Arguments) {
		_, err := f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{ScheduledAt: &later})
		require.NoError(t, err)
	}).Return(&models.Notification{ID: 1}, nil).Once()

	first.fire()

	stored := f.stored(t, reminder.ID)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.ScheduledAt.Equal(later))
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)

	second := f.timers.last()
	require.NotSame(t, first, second)
	assert.Equal(t, 2*time.Hour, second.delay)

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Snooze", models.NotificationTypeReminder)).
		Return(&models.Notification{ID: 2}, nil).Once()
	second.fire()
	assert.False(t, f.stored(t, reminder.ID).IsActive)
}

func TestReminder_ConcurrentFiresDeliverOnce(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Twice armed", "", time.Hour)
	first := f.timers.last()

	f.notifier.On("Notify", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// A second callback for the same job arrives while the first is delivering.
		first.forceFire()
	}).Return(&models.Notification{ID: 1}, nil).Once()

	first.fire()

	f.notifier.AssertNumberOfCalls(t, "Notify", 1)
	assert.False(t, f.stored(t, reminder.ID).IsActive)
}

func TestUpdateReminder_DeletedRowIsNotRecreated(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Gone", "", time.Hour)

	require.NoError(t, f.db.Delete(&models.Reminder{}, reminder.ID).Error)

	title := "Back?"
	_, err := f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{Title: &title})
	assert.ErrorIs(t, err, ErrReminderNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Reminder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteReminder_CancelsTimer(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Cancel me", "", time.Hour)
	timer := f.timers.last()

	err := f.scheduler.DeleteReminder(ctx, reminder.ID, f.other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)

	require.NoError(t, f.scheduler.DeleteReminder(ctx, reminder.ID, f.user.ID))
	assert.True(t, timer.stopped)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)

	timer.forceFire()
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	_, err = f.scheduler.GetReminder(ctx, reminder.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrReminderNotFound)
}

func TestUpdateReminder_Reschedules(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Move me", "", time.Hour)
	oldTimer := f.timers.last()

	newTime := schedulerNow.Add(3 * time.Hour)
	updated, err := f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{ScheduledAt: &newTime})
	require.NoError(t, err)
	assert.True(t, updated.ScheduledAt.Equal(newTime))

	newTimer := f.timers.last()
	require.NotSame(t, oldTimer, newTimer)
	assert.True(t, oldTimer.stopped)
	assert.Equal(t, 3*time.Hour, newTimer.delay)
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)

	oldTimer.forceFire()
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Move me", models.NotificationTypeReminder)).
		Return(&models.Notification{ID: 2}, nil).Once()
	newTimer.fire()
	assert.False(t, f.stored(t, reminder.ID).IsActive)
}

func TestUpdateReminder_TitleOnlyKeepsTimer(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Old", "", time.Hour)

	title := "New"
	updated, err := f.scheduler.UpdateReminder(context.Background(), reminder.ID, f.user.ID, UpdateReminderInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, 1, f.timers.count())

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: New", models.NotificationTypeReminder)).
		Return(&models.Notification{ID: 3}, nil).Once()
	f.timers.last().fire()
}

func TestUpdateReminder_ToggleActive(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	reminder := f.create(t, "Toggle", "", time.Hour)

	off := false
	_, err := f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{IsActive: &off})
	require.NoError(t, err)
	assert.Zero(t, f.scheduler.Status().ActiveJobs)
	assert.False(t, f.stored(t, reminder.ID).IsActive)

	on := true
	_, err = f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{IsActive: &on})
	require.NoError(t, err)
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)
	assert.Equal(t, 2, f.timers.count())

	past := schedulerNow.Add(-time.Hour)
	_, err = f.scheduler.UpdateReminder(ctx, reminder.ID, f.user.ID, UpdateReminderInput{ScheduledAt: &past})
	assert.ErrorIs(t, err, ErrReminderNotInFuture)

	_, err = f.scheduler.UpdateReminder(ctx, reminder.ID, f.other.ID, UpdateReminderInput{IsActive: &off})
	assert.ErrorIs(t, err, ErrReminderForbidden)
}

func TestListReminders(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	later := f.create(t, "Later", "", 3*time.Hour)
	sooner := f.create(t, "Sooner", "", time.Hour)

	off := false
	_, err := f.scheduler.UpdateReminder(ctx, later.ID, f.user.ID, UpdateReminderInput{IsActive: &off})
	require.NoError(t, err)

	all, err := f.scheduler.ListReminders(ctx, f.user.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sooner.ID, all[0].ID)

	active, err := f.scheduler.ListReminders(ctx, f.user.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, sooner.ID, active[0].ID)

	none, err := f.scheduler.ListReminders(ctx, f.other.ID, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCustomReminder(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.ScheduleCustomReminder(ctx, CustomReminderInput{UserID: f.user.ID, Message: "x", ScheduledAt: schedulerNow})
	assert.ErrorIs(t, err, ErrReminderNotInFuture)
	_, err = f.scheduler.ScheduleCustomReminder(ctx, CustomReminderInput{UserID: f.user.ID, ScheduledAt: schedulerNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrReminderMessageEmpty)

	jobID, err := f.scheduler.ScheduleCustomReminder(ctx, CustomReminderInput{
		UserID:      f.user.ID,
		Message:     "Office hours",
		ScheduledAt: schedulerNow.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(jobID, "custom_"))
	firstTimer := f.timers.last()
	assert.Equal(t, 30*time.Minute, firstTimer.delay)

	// Same user and same clock reading still yields a distinct job.
	secondID, err := f.scheduler.ScheduleCustomReminder(ctx, CustomReminderInput{
		UserID:      f.user.ID,
		Message:     "Second",
		ScheduledAt: schedulerNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEqual(t, jobID, secondID)
	assert.Equal(t, 2, f.scheduler.Status().ActiveJobs)

	assert.ErrorIs(t, f.scheduler.CancelCustomReminder(secondID, f.other.ID), ErrForbidden)
	// Keys never collide, so no scheduled job is replaced.
	seen := map[string]bool{jobID: true, secondID: true}
	for i := 0; i < 5; i++ {
		id, err := f.scheduler.ScheduleCustomReminder(ctx, CustomReminderInput{
			UserID:      f.user.ID,
			Message:     "Burst",
			ScheduledAt: schedulerNow.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
		require.NoError(t, f.scheduler.CancelCustomReminder(id, f.user.ID))
	}
	assert.Equal(t, 2, f.scheduler.Status().ActiveJobs)

	require.NoError(t, f.scheduler.CancelCustomReminder(secondID, f.user.ID))
	assert.ErrorIs(t, f.scheduler.CancelCustomReminder(secondID, f.user.ID), ErrNotFound)

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Office hours", models.NotificationTypeCustomReminder)).
		Return(&models.Notification{ID: 4}, nil).Once()
	firstTimer.fire()
	assert.Zero(t, f.scheduler.Status().ActiveJobs)

	var count int64
	require.NoError(t, f.db.Model(&models.Reminder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelReminder(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Cancel", "", time.Hour)

	assert.True(t, f.scheduler.CancelReminder(reminderJobKey(reminder.ID)))
	assert.False(t, f.scheduler.CancelReminder(reminderJobKey(reminder.ID)))
	assert.False(t, f.scheduler.CancelReminder("unknown"))
	assert.True(t, f.stored(t, reminder.ID).IsActive)
}

func TestReload_RearmsActiveReminders(t *testing.T) {
	f := newSchedulerFixture(t)

	rows := []*models.Reminder{
		{UserID: f.user.ID, Title: "Overdue", ScheduledAt: schedulerNow.Add(-time.Hour), IsActive: true},
		{UserID: f.user.ID, Title: "Upcoming", ScheduledAt: schedulerNow.Add(time.Hour), IsActive: true},
		{UserID: f.user.ID, Title: "Done", ScheduledAt: schedulerNow.Add(time.Hour), IsActive: false},
	}
	for _, row := range rows {
		require.NoError(t, f.db.Create(row).Error)
	}

	restored, err := f.scheduler.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	assert.Equal(t, 2, f.scheduler.Status().ActiveJobs)

	require.Equal(t, 2, f.timers.count())
	assert.Equal(t, time.Duration(0), f.timers.timers[0].delay)
	assert.Equal(t, time.Hour, f.timers.timers[1].delay)
	assert.True(t, f.scheduler.hasJob(reminderJobKey(rows[0].ID)))
	assert.False(t, f.scheduler.hasJob(reminderJobKey(rows[2].ID)))

	f.notifier.On("Notify", mock.Anything, notifyInput(f.user.ID, "Reminder: Overdue", models.NotificationTypeReminder)).
		Return(&models.Notification{ID: 5}, nil).Once()
	f.timers.timers[0].fire()
	assert.False(t, f.stored(t, rows[0].ID).IsActive)
}

func TestReload_ReplacesExistingJob(t *testing.T) {
	f := newSchedulerFixture(t)
	reminder := f.create(t, "Once", "", time.Hour)
	first := f.timers.last()

	_, err := f.scheduler.Reload(context.Background())
	require.NoError(t, err)

	assert.True(t, first.stopped)
	assert.Equal(t, 1, f.scheduler.Status().ActiveJobs)
	assert.True(t, f.scheduler.hasJob(reminderJobKey(reminder.ID)))
}

func TestScheduler_StartStop(t *testing.T) {
	f := newSchedulerFixture(t, WithSweepInterval(time.Hour))
	ctx := context.Background()

	status := f.scheduler.Status()
	assert.False(t, status.Running)
	assert.Nil(t, status.NextSweep)

	require.NoError(t, f.db.Create(&models.Reminder{UserID: f.user.ID, Title: "Persisted", ScheduledAt: schedulerNow.Add(time.Hour), IsActive: true}).Error)

	require.NoError(t, f.scheduler.Start(ctx))
	require.NoError(t, f.scheduler.Start(ctx))

	status = f.scheduler.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.NextSweep)
	assert.True(t, status.NextSweep.Equal(schedulerNow.Add(time.Hour)))
	assert.Equal(t, 1, status.ActiveJobs)

	f.scheduler.Stop()
	status = f.scheduler.Status()
	assert.False(t, status.Running)
	assert.Zero(t, status.ActiveJobs)
	assert.True(t, f.timers.last().stopped)
}

func TestScheduler_StartFailsWhenStoreFails(t *testing.T) {
	db, mock := setupMockDB(t)
	scheduler := NewReminderScheduler(
		repository.NewReminderRepository(db),
		repository.NewTaskRepository(db),
		repository.NewProjectRepository(db),
		&mockNotifier{},
		logger.NewNop(),
	)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("db down"))

	err := scheduler.Start(context.Background())
	var persistenceErr *PersistenceError
	require.True(t, errors.As(err, &persistenceErr))
	assert.False(t, scheduler.Status().Running)
}
