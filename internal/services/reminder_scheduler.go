package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrReminderNotFound      = notFound("reminder")
	ErrReminderForbidden     = forbidden("reminder belongs to another user")
	ErrReminderTitleRequired = invalid("reminder title is required")
	ErrReminderMessageEmpty  = invalid("reminder message is required")
	ErrReminderNotInFuture   = invalid("reminder must be scheduled in the future")
	ErrReminderJobNotFound   = notFound("scheduled reminder job")
)

const defaultSweepInterval = time.Hour

// jobTimer is the part of *time.Timer the registry needs.
type jobTimer interface {
	Stop() bool
}

type timerFactory func(d time.Duration, f func()) jobTimer

func realTimer(d time.Duration, f func()) jobTimer {
	return time.AfterFunc(d, f)
}

type scheduledJob struct {
	key        string
	ownerID    uint64
	reminderID uint64
	fireAt     time.Time
	timer      jobTimer
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	Running    bool       `json:"running"`
	NextSweep  *time.Time `json:"next_sweep,omitempty"`
	ActiveJobs int        `json:"active_jobs"`
}

// DedupStore remembers keys for a limited time. MarkOnce reports true only for
// the first call with a key inside the ttl.
type DedupStore interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReminderScheduler owns the in-memory registry of reminder timers and the
// periodic deadline sweep. Create exactly one per process.
type ReminderScheduler struct {
	reminderRepo  repository.ReminderRepository
	taskRepo      repository.TaskRepository
	projectRepo   repository.ProjectRepository
	notifier      Notifier
	dedup         DedupStore
	logger        *logger.Logger
	sweepInterval time.Duration
	now           func() time.Time
	afterFunc     timerFactory

	mu        sync.Mutex
	jobs      map[string]*scheduledJob
	running   bool
	nextSweep time.Time
	stop      context.CancelFunc
	done      chan struct{}
}

// SchedulerOption customizes a ReminderScheduler
type SchedulerOption func(*ReminderScheduler)

// WithSweepInterval sets how often deadlines are scanned
func WithSweepInterval(interval time.Duration) SchedulerOption {
	return func(s *ReminderScheduler) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithDedupStore makes the sweep send each deadline reminder once per horizon
func WithDedupStore(store DedupStore) SchedulerOption {
	return func(s *ReminderScheduler) {
		s.dedup = store
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *ReminderScheduler) {
		s.now = now
	}
}

func withTimerFactory(factory timerFactory) SchedulerOption {
	return func(s *ReminderScheduler) {
		s.afterFunc = factory
	}
}

// NewReminderScheduler creates a new ReminderScheduler
func NewReminderScheduler(
	reminderRepo repository.ReminderRepository,
	taskRepo repository.TaskRepository,
	projectRepo repository.ProjectRepository,
	notifier Notifier,
	log *logger.Logger,
	opts ...SchedulerOption,
) *ReminderScheduler {
	s := &ReminderScheduler{
		reminderRepo:  reminderRepo,
		taskRepo:      taskRepo,
		projectRepo:   projectRepo,
		notifier:      notifier,
		logger:        log,
		sweepInterval: defaultSweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
		afterFunc:     realTimer,
		jobs:          make(map[string]*scheduledJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReminderInput represents input for creating a reminder
type CreateReminderInput struct {
	UserID      uint64
	Title       string
	Description string
	ScheduledAt time.Time
	RelatedID   *uint64
	RelatedType *string
}

// UpdateReminderInput represents a partial reminder update
type UpdateReminderInput struct {
	Title       *string
	Description *string
	ScheduledAt *time.Time
	IsActive    *bool
}

// CustomReminderInput represents an ad-hoc reminder that has no stored row
type CustomReminderInput struct {
	UserID      uint64
	Message     string
	ScheduledAt time.Time
	RelatedID   *uint64
	RelatedType *string
}

func reminderJobKey(id uint64) string {
	return fmt.Sprintf("reminder_%d", id)
}

// ReminderMessage formats the notification text sent when a reminder fires.
func ReminderMessage(r *models.Reminder) string {
	message := "Reminder: " + r.Title
	if r.Description != "" {
		message += " - " + r.Description
	}
	return message
}

// CreateReminder stores a reminder and arms its timer.
func (s *ReminderScheduler) CreateReminder(ctx context.Context, input CreateReminderInput) (*models.Reminder, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrReminderTitleRequired
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, ErrReminderNotInFuture
	}

	reminder := &models.Reminder{
		UserID:      input.UserID,
		Title:       title,
		Description: input.Description,
		ScheduledAt: input.ScheduledAt.UTC(),
		IsActive:    true,
		RelatedID:   input.RelatedID,
		RelatedType: input.RelatedType,
	}

	if err := s.reminderRepo.Create(ctx, reminder); err != nil {
		return nil, persistenceError("create reminder", err)
	}

	s.armReminder(reminder)

	return reminder, nil
}

// GetReminder returns one of the user's reminders
func (s *ReminderScheduler) GetReminder(ctx context.Context, id, actorID uint64) (*models.Reminder, error) {
	return s.findOwned(ctx, id, actorID)
}

// ListReminders returns the user's reminders ordered by schedule
func (s *ReminderScheduler) ListReminders(ctx context.Context, userID uint64, activeOnly bool) ([]models.Reminder, error) {
	reminders, err := s.reminderRepo.List(ctx, repository.ReminderFilter{
		UserID:     &userID,
		ActiveOnly: activeOnly,
	})
	if err != nil {
		return nil, persistenceError("list reminders", err)
	}
	return reminders, nil
}

// UpdateReminder applies a partial update and writes only the changed
// columns. A new schedule reactivates the reminder unless the update turns it
// off, so a reschedule also works after the reminder fired. A new schedule or
// a change of the active flag replaces the in-memory job.
func (s *ReminderScheduler) UpdateReminder(ctx context.Context, id, actorID uint64, input UpdateReminderInput) (*models.Reminder, error) {
	reminder, err := s.findOwned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	rearm := false

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrReminderTitleRequired
		}
		reminder.Title = title
		changes["title"] = title
	}
	if input.Description != nil {
		reminder.Description = *input.Description
		changes["description"] = *input.Description
	}
	if input.ScheduledAt != nil {
		if !input.ScheduledAt.After(s.now()) {
			return nil, ErrReminderNotInFuture
		}
		if !input.ScheduledAt.Equal(reminder.ScheduledAt) {
			reminder.ScheduledAt = input.ScheduledAt.UTC()
			changes["scheduled_at"] = reminder.ScheduledAt
			if input.IsActive == nil {
				reminder.IsActive = true
				changes["is_active"] = true
			}
			rearm = true
		}
	}
	if input.IsActive != nil {
		if *input.IsActive && !reminder.ScheduledAt.After(s.now()) {
			return nil, ErrReminderNotInFuture
		}
		reminder.IsActive = *input.IsActive
		changes["is_active"] = *input.IsActive
		rearm = true
	}

	if err := s.reminderRepo.UpdateFields(ctx, reminder.ID, changes); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, persistenceError("update reminder", err)
	}

	if rearm {
		s.cancelJob(reminderJobKey(reminder.ID))
		if reminder.IsActive {
			s.armReminder(reminder)
		}
	}

	return reminder, nil
}

// DeleteReminder cancels the reminder's job and deletes the row. Deleting a
// reminder that already fired is allowed.
func (s *ReminderScheduler) DeleteReminder(ctx context.Context, id, actorID uint64) error {
	reminder, err := s.findOwned(ctx, id, actorID)
	if err != nil {
		return err
	}

	s.cancelJob(reminderJobKey(reminder.ID))

	if err := s.reminderRepo.Delete(ctx, reminder.ID); err != nil {
		return persistenceError("delete reminder", err)
	}
	return nil
}

// ScheduleCustomReminder arms a one-shot notification with no stored reminder
// row and returns the job id used to cancel it.
func (s *ReminderScheduler) ScheduleCustomReminder(ctx context.Context, input CustomReminderInput) (string, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return "", ErrReminderMessageEmpty
	}
	now := s.now()
	if !input.ScheduledAt.After(now) {
		return "", ErrReminderNotInFuture
	}

	key := fmt.Sprintf("custom_%d_%s", input.UserID, uuid.NewString())

	notify := NotifyInput{
		UserID:      input.UserID,
		Message:     message,
		Type:        models.NotificationTypeCustomReminder,
		RelatedID:   input.RelatedID,
		RelatedType: input.RelatedType,
	}
	s.register(key, input.UserID, 0, input.ScheduledAt, func(ctx context.Context) {
		if _, err := s.notifier.Notify(ctx, notify); err != nil {
			s.logger.Error("Custom reminder delivery failed",
				zap.String("job_id", key),
				zap.Uint64("user_id", input.UserID),
				zap.Error(err),
			)
		}
	})

	s.logger.Debug("Custom reminder scheduled",
		zap.String("job_id", key),
		zap.Time("scheduled_at", input.ScheduledAt),
	)

	return key, nil
}

// CancelReminder stops and removes a job by its id. It reports whether a job
// was registered under that id.
func (s *ReminderScheduler) CancelReminder(jobID string) bool {
	return s.cancelJob(jobID)
}

// CancelCustomReminder cancels an ad-hoc job owned by the user.
func (s *ReminderScheduler) CancelCustomReminder(jobID string, userID uint64) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()

	if !ok || job.reminderID != 0 {
		return ErrReminderJobNotFound
	}
	if job.ownerID != userID {
		return ErrReminderForbidden
	}

	if !s.cancelJob(jobID) {
		return ErrReminderJobNotFound
	}
	return nil
}

// Status reports whether the sweep loop runs, when it runs next and how many
// timers are armed.
func (s *ReminderScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:    s.running,
		ActiveJobs: len(s.jobs),
	}
	if s.running {
		next := s.nextSweep
		status.NextSweep = &next
	}
	return status
}

// Reload arms a timer for every active reminder in storage. Reminders whose
// time passed while the process was down fire immediately.
func (s *ReminderScheduler) Reload(ctx context.Context) (int, error) {
	reminders, err := s.reminderRepo.List(ctx, repository.ReminderFilter{ActiveOnly: true})
	if err != nil {
		return 0, persistenceError("load active reminders", err)
	}

	for i := range reminders {
		s.armReminder(&reminders[i])
	}
	return len(reminders), nil
}

// Start reloads stored reminders and launches the deadline sweep loop.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	restored, err := s.Reload(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.running = true
	s.nextSweep = s.now().Add(s.sweepInterval)
	s.stop = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Reminder scheduler started",
		zap.Int("restored_reminders", restored),
		zap.Duration("sweep_interval", s.sweepInterval),
	)

	go s.sweepLoop(loopCtx, done)
	return nil
}

// Stop ends the sweep loop and disarms every pending timer.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.running = false
	s.stop = nil
	for key, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	s.logger.Info("Reminder scheduler stopped")
}

func (s *ReminderScheduler) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.nextSweep = s.now().Add(s.sweepInterval)
			s.mu.Unlock()

			report := s.CheckDeadlines(ctx)
			s.logger.Info("Deadline sweep finished",
				zap.Int("task_reminders", report.TaskReminders),
				zap.Int("project_reminders", report.ProjectReminders),
				zap.Int("skipped", report.Skipped),
				zap.Int("failures", report.Failures),
			)
		}
	}
}

func (s *ReminderScheduler) armReminder(reminder *models.Reminder) {
	id := reminder.ID
	s.register(reminderJobKey(id), reminder.UserID, id, reminder.ScheduledAt, func(ctx context.Context) {
		s.fireReminder(ctx, id)
	})
}

// fireReminder sends the reminder once. Clearing the active flag claims the
// delivery; the row is read after the claim so edits made before it are sent.
func (s *ReminderScheduler) fireReminder(ctx context.Context, id uint64) {
	claimed, err := s.reminderRepo.Deactivate(ctx, id)
	if err != nil {
		s.logger.Error("Failed to claim reminder for delivery", zap.Uint64("reminder_id", id), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	reminder, err := s.reminderRepo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to load reminder for delivery", zap.Uint64("reminder_id", id), zap.Error(err))
		}
		return
	}

	_, err = s.notifier.Notify(ctx, NotifyInput{
		UserID:      reminder.UserID,
		Message:     ReminderMessage(reminder),
		Type:        models.NotificationTypeReminder,
		RelatedID:   reminder.RelatedID,
		RelatedType: reminder.RelatedType,
	})
	if err == nil {
		return
	}

	s.logger.Error("Reminder delivery failed", zap.Uint64("reminder_id", id), zap.Error(err))
	// Undelivered reminders stay active so the next reload retries them.
	if _, err := s.reminderRepo.Reactivate(ctx, id); err != nil {
		s.logger.Error("Failed to reactivate undelivered reminder", zap.Uint64("reminder_id", id), zap.Error(err))
	}
}

// register arms a timer under key, replacing any job already registered there.
func (s *ReminderScheduler) register(key string, ownerID, reminderID uint64, fireAt time.Time, fire func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[key]; ok {
		existing.timer.Stop()
	}

	job := &scheduledJob{
		key:        key,
		ownerID:    ownerID,
		reminderID: reminderID,
		fireAt:     fireAt,
	}
	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	job.timer = s.afterFunc(delay, func() { s.runJob(job, fire) })
	s.jobs[key] = job
}

// runJob executes a fired timer if its job is still the registered one and
// always removes it afterwards.
func (s *ReminderScheduler) runJob(job *scheduledJob, fire func(ctx context.Context)) {
	s.mu.Lock()
	current, ok := s.jobs[job.key]
	s.mu.Unlock()
	if !ok || current != job {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Reminder job panicked", zap.String("job_id", job.key), zap.Any("panic", r))
		}
		s.deregister(job)
	}()

	fire(context.Background())
}

func (s *ReminderScheduler) deregister(job *scheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.jobs[job.key]; ok && current == job {
		delete(s.jobs, job.key)
	}
}

func (s *ReminderScheduler) cancelJob(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return false
	}
	job.timer.Stop()
	delete(s.jobs, key)
	return true
}

func (s *ReminderScheduler) hasJob(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]
	return ok
}

func (s *ReminderScheduler) findOwned(ctx context.Context, id, actorID uint64) (*models.Reminder, error) {
	reminder, err := s.reminderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, persistenceError("find reminder", err)
	}
	if reminder.UserID != actorID {
		return nil, ErrReminderForbidden
	}
	return reminder, nil
}
