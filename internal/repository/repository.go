package repository

import (
	"context"
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/utils"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// CreateBatch creates all tasks in a single transaction
	CreateBatch(ctx context.Context, tasks []*models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks matching the filter, oldest first
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// Update updates a task
	Update(ctx context.Context, task *models.Task) error

	// UpdateBatch saves all tasks in a single transaction
	UpdateBatch(ctx context.Context, tasks []*models.Task) error

	// Delete soft deletes a task
	Delete(ctx context.Context, id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	TutorID         *uint64
	ProjectID       *uint64
	ResponsibleID   *uint64
	OnlyAssigned    bool
	Status          *models.WorkStatus
	ExcludeStatuses []models.WorkStatus
	DueDateFrom     *time.Time
	DueDateTo       *time.Time
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// Create creates a new project
	Create(ctx context.Context, project *models.Project) error

	// FindByID finds a project by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Project, error)

	// FindByInviteCode finds a project by invite code
	FindByInviteCode(ctx context.Context, code string) (*models.Project, error)

	// List retrieves projects matching the filter with participants preloaded
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, error)

	// Update updates a project
	Update(ctx context.Context, project *models.Project) error

	// Delete deletes a project and its participants
	Delete(ctx context.Context, id uint64) error

	// AddParticipant adds a participant to a project
	AddParticipant(ctx context.Context, participant *models.ProjectParticipant) error

	// RemoveParticipant removes a participant from a project
	RemoveParticipant(ctx context.Context, projectID, userID uint64) error

	// FindParticipant finds a specific project participant
	FindParticipant(ctx context.Context, projectID, userID uint64) (*models.ProjectParticipant, error)

	// ListParticipants lists all participants of a project with users preloaded
	ListParticipants(ctx context.Context, projectID uint64) ([]models.ProjectParticipant, error)
}

// ProjectFilter holds filtering options for listing projects
type ProjectFilter struct {
	// MemberID matches projects the user tutors or participates in
	MemberID        *uint64
	ExcludeStatuses []models.WorkStatus
	EndDateFrom     *time.Time
	EndDateTo       *time.Time
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByIDs returns the users that exist among the given IDs
	FindByIDs(ctx context.Context, ids []uint64) ([]models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create persists a new notification
	Create(ctx context.Context, notification *models.Notification) error

	// FindByID finds a notification by ID
	FindByID(ctx context.Context, id uint64) (*models.Notification, error)

	// List returns notifications matching the filter, newest first
	List(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error)

	// MarkRead sets the read flag of one notification
	MarkRead(ctx context.Context, id uint64) error

	// MarkAllRead sets the read flag of every unread notification of a user
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)

	// Delete removes a notification
	Delete(ctx context.Context, id uint64) error
}

// NotificationFilter holds filtering options for listing notifications
type NotificationFilter struct {
	UserID     uint64
	UnreadOnly bool
	Pagination utils.PaginationParams
}

// ReminderRepository defines the interface for reminder data access
type ReminderRepository interface {
	// Create persists a new reminder
	Create(ctx context.Context, reminder *models.Reminder) error

	// FindByID finds a reminder by ID
	FindByID(ctx context.Context, id uint64) (*models.Reminder, error)

	// List returns reminders matching the filter ordered by schedule
	List(ctx context.Context, filter ReminderFilter) ([]models.Reminder, error)

	// UpdateFields writes only the given columns. It returns
	// gorm.ErrRecordNotFound when the reminder no longer exists.
	UpdateFields(ctx context.Context, id uint64, fields map[string]interface{}) error

	// Deactivate clears the active flag if it is still set and reports
	// whether this call cleared it.
	Deactivate(ctx context.Context, id uint64) (bool, error)

	// Reactivate sets the active flag of an inactive reminder again
	Reactivate(ctx context.Context, id uint64) (bool, error)

	// Delete removes a reminder
	Delete(ctx context.Context, id uint64) error
}

// ReminderFilter holds filtering options for listing reminders
type ReminderFilter struct {
	UserID     *uint64
	ActiveOnly bool
}
