package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound         = notFound("task")
	ErrNotTaskTutor         = forbidden("only the task tutor can perform this action")
	ErrTaskPermissionDenied = forbidden("user does not have permission to access this task")
	ErrStatusOnlyUpdate     = forbidden("responsible students may only change the task status")
	ErrTaskNameRequired     = invalid("task name is required")
	ErrInvalidTaskStatus    = invalid("unknown task status")
	ErrInvalidTaskPriority  = invalid("unknown task priority")
	ErrInvalidTaskAssignee  = invalid("one or more responsible users do not exist or are not project participants")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	logger      *logger.Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	log *logger.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      log,
	}
}

// CreateTaskInput represents input for creating a task. One row is stored per
// responsible user.
type CreateTaskInput struct {
	TutorID        uint64
	Name           string
	Description    string
	DueDate        *time.Time
	Priority       models.TaskPriority
	Type           string
	Status         models.WorkStatus
	ProjectID      *uint64
	ResponsibleIDs []uint64
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Name         *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *models.TaskPriority
	Type         *string
	Status       *models.WorkStatus
}

func (in UpdateTaskInput) statusOnly() bool {
	return !in.changesDefinition() && in.Status != nil
}

// changesDefinition reports whether the update touches a field shared by every
// row of the logical task.
func (in UpdateTaskInput) changesDefinition() bool {
	return in.Name != nil || in.Description != nil || in.DueDate != nil || in.ClearDueDate ||
		in.Priority != nil || in.Type != nil
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	UserID    uint64
	ProjectID *uint64
	Status    *models.WorkStatus
}

func validPriority(p models.TaskPriority) bool {
	switch p {
	case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}

// CreateTask stores one task row per responsible user (or a single
// unassigned row) and notifies each responsible about their row.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) ([]models.Task, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTaskNameRequired
	}
	if !validPriority(input.Priority) {
		return nil, ErrInvalidTaskPriority
	}
	if input.Status == "" {
		input.Status = models.StatusPending
	}
	if !input.Status.Valid() {
		return nil, ErrInvalidTaskStatus
	}

	responsibleIDs := uniqueUint64(input.ResponsibleIDs)
	if err := s.ensureAssignable(ctx, input.TutorID, input.ProjectID, responsibleIDs); err != nil {
		return nil, err
	}

	template := models.Task{
		Name:        name,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Type:        input.Type,
		Status:      input.Status,
		ProjectID:   input.ProjectID,
		TutorID:     input.TutorID,
	}

	rows := make([]*models.Task, 0, len(responsibleIDs))
	if len(responsibleIDs) == 0 {
		row := template
		rows = append(rows, &row)
	}
	for _, id := range responsibleIDs {
		row := template
		responsibleID := id
		row.ResponsibleID = &responsibleID
		rows = append(rows, &row)
	}

	if err := s.taskRepo.CreateBatch(ctx, rows); err != nil {
		return nil, persistenceError("create tasks", err)
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, *row)
		if row.ResponsibleID != nil {
			s.notifyTask(ctx, *row.ResponsibleID, row, models.NotificationTypeTaskAssigned,
				fmt.Sprintf("New task assigned: %q", row.Name))
		}
	}

	return tasks, nil
}

// ListTutorTaskGroups returns the tutor's tasks merged into logical groups.
// The status filter applies to the aggregated group status, so every row is
// loaded before grouping.
func (s *TaskService) ListTutorTaskGroups(ctx context.Context, input ListTasksInput) ([]LogicalTaskGroup, error) {
	tutorID := input.UserID
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{
		TutorID:   &tutorID,
		ProjectID: input.ProjectID,
	})
	if err != nil {
		return nil, persistenceError("list tasks", err)
	}

	groups := GroupForTutor(tasks)
	if input.Status != nil {
		groups = FilterGroupsByStatus(groups, *input.Status)
	}
	return groups, nil
}

// ListTasksForUser returns the task rows a student may see: rows assigned to
// them and unassigned rows of their projects.
func (s *TaskService) ListTasksForUser(ctx context.Context, input ListTasksInput) ([]models.Task, error) {
	var projectIDs []uint64
	if input.ProjectID != nil {
		if err := s.ensureProjectMember(ctx, *input.ProjectID, input.UserID); err != nil {
			return nil, err
		}
		projectIDs = []uint64{*input.ProjectID}
	} else {
		projects, err := s.projectRepo.List(ctx, repository.ProjectFilter{MemberID: &input.UserID})
		if err != nil {
			return nil, persistenceError("list projects", err)
		}
		for _, p := range projects {
			projectIDs = append(projectIDs, p.ID)
		}
	}

	seen := make(map[uint64]struct{})
	var tasks []models.Task
	collect := func(filter repository.TaskFilter) error {
		filter.Status = input.Status
		rows, err := s.taskRepo.List(ctx, filter)
		if err != nil {
			return persistenceError("list tasks", err)
		}
		for _, row := range rows {
			if _, dup := seen[row.ID]; dup {
				continue
			}
			seen[row.ID] = struct{}{}
			tasks = append(tasks, row)
		}
		return nil
	}

	for i := range projectIDs {
		if err := collect(repository.TaskFilter{ProjectID: &projectIDs[i]}); err != nil {
			return nil, err
		}
	}
	if input.ProjectID == nil {
		if err := collect(repository.TaskFilter{ResponsibleID: &input.UserID}); err != nil {
			return nil, err
		}
	}

	return ViewForNonTutor(tasks, input.UserID), nil
}

// GetTaskGroup returns the logical group containing the task
func (s *TaskService) GetTaskGroup(ctx context.Context, taskID, tutorID uint64) (*LogicalTaskGroup, error) {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.TutorID != tutorID {
		return nil, ErrNotTaskTutor
	}

	siblings, err := s.taskRepo.List(ctx, repository.TaskFilter{
		TutorID:   &tutorID,
		ProjectID: task.ProjectID,
	})
	if err != nil {
		return nil, persistenceError("list tasks", err)
	}

	group := GroupSingleTaskForTutor(*task, siblings, tutorID)
	if group == nil {
		return nil, ErrTaskNotFound
	}
	return group, nil
}

// GetTaskForUser returns a single task row visible to a student
func (s *TaskService) GetTaskForUser(ctx context.Context, taskID, userID uint64) (*models.Task, error) {
	task, err := s.findTask(ctx, taskID, "Responsible", "Project")
	if err != nil {
		return nil, err
	}
	if err := s.ensureCanView(ctx, task, userID); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask updates a task row. The tutor may change every field; the
// responsible student may only change the status. Definition edits by the
// tutor are applied to every row of the logical task so the group stays
// together; the status stays per row.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	original := *task

	isTutor := task.TutorID == actorID
	isResponsible := task.ResponsibleID != nil && *task.ResponsibleID == actorID
	switch {
	case isTutor:
	case isResponsible:
		if !input.statusOnly() {
			return nil, ErrStatusOnlyUpdate
		}
	default:
		return nil, ErrTaskPermissionDenied
	}

	previousStatus := task.Status

	if err := applyDefinition(task, input); err != nil {
		return nil, err
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidTaskStatus
		}
		task.Status = *input.Status
	}

	rows := []*models.Task{task}
	if isTutor && input.changesDefinition() {
		siblings, err := s.siblingsOf(ctx, original)
		if err != nil {
			return nil, err
		}
		for i := range siblings {
			if err := applyDefinition(&siblings[i], input); err != nil {
				return nil, err
			}
			rows = append(rows, &siblings[i])
		}
	}

	if err := s.taskRepo.UpdateBatch(ctx, rows); err != nil {
		return nil, persistenceError("update task", err)
	}

	switch {
	case isTutor:
		for _, row := range rows {
			if row.ResponsibleID != nil && *row.ResponsibleID != actorID {
				s.notifyTask(ctx, *row.ResponsibleID, row, models.NotificationTypeTaskUpdated,
					fmt.Sprintf("Task %q was updated", row.Name))
			}
		}
	case task.Status != previousStatus:
		s.notifyTask(ctx, task.TutorID, task, models.NotificationTypeTaskStatus,
			fmt.Sprintf("Task %q changed status to %s", task.Name, task.Status))
	}

	return s.findTask(ctx, task.ID, "Responsible")
}

// applyDefinition copies the shared fields of the update onto a row.
func applyDefinition(task *models.Task, input UpdateTaskInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ErrTaskNameRequired
		}
		task.Name = name
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		due := *input.DueDate
		task.DueDate = &due
	}
	if input.Priority != nil {
		if !validPriority(*input.Priority) {
			return ErrInvalidTaskPriority
		}
		task.Priority = *input.Priority
	}
	if input.Type != nil {
		task.Type = *input.Type
	}
	return nil
}

// siblingsOf returns the other rows of the task's logical group.
func (s *TaskService) siblingsOf(ctx context.Context, task models.Task) ([]models.Task, error) {
	tutorID := task.TutorID
	rows, err := s.taskRepo.List(ctx, repository.TaskFilter{
		TutorID:   &tutorID,
		ProjectID: task.ProjectID,
	})
	if err != nil {
		return nil, persistenceError("list tasks", err)
	}

	siblings := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		if row.ID != task.ID && SameDefinition(row, task) {
			row.Responsible = nil
			siblings = append(siblings, row)
		}
	}
	return siblings, nil
}

// DeleteTask deletes a task row if the actor is its tutor
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID uint64) error {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.TutorID != actorID {
		return ErrNotTaskTutor
	}

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return persistenceError("delete task", err)
	}

	if task.ResponsibleID != nil {
		s.notifyTask(ctx, *task.ResponsibleID, task, models.NotificationTypeTaskDeleted,
			fmt.Sprintf("Task %q was deleted", task.Name))
	}
	return nil
}

// notifyTask sends a task notification. The task change already happened, so
// failures are only logged.
func (s *TaskService) notifyTask(ctx context.Context, userID uint64, task *models.Task, notificationType, message string) {
	taskID := task.ID
	relatedType := models.RelatedTypeTask
	_, err := s.notifier.Notify(ctx, NotifyInput{
		UserID:      userID,
		Message:     message,
		Type:        notificationType,
		RelatedID:   &taskID,
		RelatedType: &relatedType,
	})
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.Uint64("task_id", task.ID),
		zap.Uint64("user_id", userID),
		zap.String("type", notificationType),
		zap.Error(err),
	}
	// Nothing can be delivered until the realtime channel is wired at startup.
	if errors.Is(err, ErrChannelNotReady) {
		s.logger.Error("Task notification dropped: event channel not ready", fields...)
		return
	}
	s.logger.Warn("Task notification failed", fields...)
}

func (s *TaskService) findTask(ctx context.Context, taskID uint64, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, persistenceError("find task", err)
	}
	return task, nil
}

// ensureAssignable verifies the tutor owns the project and every responsible
// exists and, inside a project, participates in it.
func (s *TaskService) ensureAssignable(ctx context.Context, tutorID uint64, projectID *uint64, responsibleIDs []uint64) error {
	participants := map[uint64]struct{}{}
	if projectID != nil {
		project, err := s.projectRepo.FindByID(ctx, *projectID, "Participants")
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return persistenceError("find project", err)
		}
		if project.TutorID != tutorID {
			return ErrNotProjectTutor
		}
		for _, id := range project.ParticipantIDs() {
			participants[id] = struct{}{}
		}
	}

	if len(responsibleIDs) == 0 {
		return nil
	}

	users, err := s.userRepo.FindByIDs(ctx, responsibleIDs)
	if err != nil {
		return persistenceError("verify responsible users", err)
	}
	if len(users) != len(responsibleIDs) {
		return ErrInvalidTaskAssignee
	}
	if projectID != nil {
		for _, id := range responsibleIDs {
			if _, ok := participants[id]; !ok {
				return ErrInvalidTaskAssignee
			}
		}
	}
	return nil
}

func (s *TaskService) ensureCanView(ctx context.Context, task *models.Task, userID uint64) error {
	if task.TutorID == userID {
		return nil
	}
	if task.ResponsibleID != nil {
		if *task.ResponsibleID == userID {
			return nil
		}
		return ErrTaskPermissionDenied
	}
	if task.ProjectID == nil {
		return ErrTaskPermissionDenied
	}
	if err := s.ensureProjectMember(ctx, *task.ProjectID, userID); err != nil {
		if errors.Is(err, ErrNotProjectMember) {
			return ErrTaskPermissionDenied
		}
		return err
	}
	return nil
}

func (s *TaskService) ensureProjectMember(ctx context.Context, projectID, userID uint64) error {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return persistenceError("find project", err)
	}
	if project.TutorID == userID {
		return nil
	}

	if _, err := s.projectRepo.FindParticipant(ctx, projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotProjectMember
		}
		return persistenceError("verify project membership", err)
	}
	return nil
}

// uniqueUint64 removes duplicate values from a slice of uint64
func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
