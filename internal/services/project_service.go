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
	"github.com/yukikurage/edu-project-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound            = notFound("project")
	ErrProjectParticipantNotFound = notFound("project participant")
	ErrNotProjectTutor            = forbidden("only the project tutor can perform this action")
	ErrNotProjectMember           = forbidden("user is not a member of the project")
	ErrInvalidProjectName         = invalid("project name cannot be empty")
	ErrInvalidProjectStatus       = invalid("unknown project status")
	ErrInvalidInviteCode          = invalid("invalid invite code")
	ErrAlreadyProjectMember       = invalid("user is already a member of this project")
	ErrCannotRemoveYourself       = invalid("cannot remove yourself from the project")
	ErrInviteCodeGenerationFailed = errors.New("failed to generate invite code")
)

// ProjectService provides business logic for project operations.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	logger      *logger.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, userRepo repository.UserRepository, notifier Notifier, log *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      log,
	}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	TutorID     uint64
	Name        string
	Description string
	EndDate     *time.Time
	Status      models.WorkStatus
}

// UpdateProjectInput represents a partial project update.
type UpdateProjectInput struct {
	Name         *string
	Description  *string
	EndDate      *time.Time
	ClearEndDate bool
	Status       *models.WorkStatus
}

// CreateProject creates a new project owned by the tutor.
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidProjectName
	}
	if input.Status == "" {
		input.Status = models.StatusPending
	}
	if !input.Status.Valid() {
		return nil, ErrInvalidProjectStatus
	}

	inviteCode, err := utils.GenerateInviteCode()
	if err != nil {
		return nil, ErrInviteCodeGenerationFailed
	}

	project := &models.Project{
		Name:        name,
		Description: input.Description,
		Status:      input.Status,
		EndDate:     input.EndDate,
		TutorID:     input.TutorID,
		InviteCode:  inviteCode,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, persistenceError("create project", err)
	}

	return project, nil
}

// ListProjectsForUser returns projects the user tutors or participates in.
func (s *ProjectService) ListProjectsForUser(ctx context.Context, userID uint64) ([]models.Project, error) {
	projects, err := s.projectRepo.List(ctx, repository.ProjectFilter{MemberID: &userID})
	if err != nil {
		return nil, persistenceError("list projects", err)
	}
	return projects, nil
}

// GetProject returns a project without participants.
func (s *ProjectService) GetProject(ctx context.Context, projectID uint64) (*models.Project, error) {
	return s.findProject(ctx, projectID)
}

// GetProjectWithParticipants returns a project and all of its participants.
func (s *ProjectService) GetProjectWithParticipants(ctx context.Context, projectID uint64) (*models.Project, []models.ProjectParticipant, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	participants, err := s.projectRepo.ListParticipants(ctx, projectID)
	if err != nil {
		return nil, nil, persistenceError("list project participants", err)
	}

	return project, participants, nil
}

// IsMember reports whether the user tutors or participates in the project.
func (s *ProjectService) IsMember(ctx context.Context, project *models.Project, userID uint64) (bool, error) {
	if project.TutorID == userID {
		return true, nil
	}
	if _, err := s.projectRepo.FindParticipant(ctx, project.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, persistenceError("verify project membership", err)
	}
	return true, nil
}

// UpdateProject applies a partial update and notifies the participants.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID, actorID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.findOwnedProject(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidProjectName
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.ClearEndDate {
		project.EndDate = nil
	} else if input.EndDate != nil {
		project.EndDate = input.EndDate
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidProjectStatus
		}
		project.Status = *input.Status
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, persistenceError("update project", err)
	}

	participants, err := s.projectRepo.ListParticipants(ctx, project.ID)
	if err != nil {
		s.logger.Warn("Failed to load participants for update notice", zap.Uint64("project_id", project.ID), zap.Error(err))
		return project, nil
	}
	recipients := make([]uint64, 0, len(participants))
	for _, p := range participants {
		recipients = append(recipients, p.UserID)
	}
	s.notifyProject(ctx, recipients, project, models.NotificationTypeProjectUpdated,
		fmt.Sprintf("Project %q was updated", project.Name))

	return project, nil
}

// DeleteProject removes a project owned by the actor.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, actorID uint64) error {
	if _, err := s.findOwnedProject(ctx, projectID, actorID); err != nil {
		return err
	}

	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return persistenceError("delete project", err)
	}

	return nil
}

// JoinProjectByInvite adds a user to a project via invite code and tells the
// tutor.
func (s *ProjectService) JoinProjectByInvite(ctx context.Context, userID uint64, inviteCode string) (*models.Project, error) {
	project, err := s.projectRepo.FindByInviteCode(ctx, strings.TrimSpace(inviteCode))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, persistenceError("find project by invite code", err)
	}

	member, err := s.IsMember(ctx, project, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyProjectMember
	}

	participant := &models.ProjectParticipant{
		ProjectID: project.ID,
		UserID:    userID,
		JoinedAt:  time.Now(),
	}

	if err := s.projectRepo.AddParticipant(ctx, participant); err != nil {
		return nil, persistenceError("add participant to project", err)
	}

	name := fmt.Sprintf("user %d", userID)
	if user, err := s.userRepo.FindByID(ctx, userID); err == nil {
		name = user.Name()
	}
	s.notifyProject(ctx, []uint64{project.TutorID}, project, models.NotificationTypeProjectJoined,
		fmt.Sprintf("%s joined project %q", name, project.Name))

	return project, nil
}

// RegenerateInviteCode generates a new invite code for the project.
func (s *ProjectService) RegenerateInviteCode(ctx context.Context, projectID, actorID uint64) (*models.Project, error) {
	project, err := s.findOwnedProject(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}

	code, err := utils.GenerateInviteCode()
	if err != nil {
		return nil, ErrInviteCodeGenerationFailed
	}

	project.InviteCode = code
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, persistenceError("update invite code", err)
	}

	return project, nil
}

// RemoveParticipant removes a participant from the project.
func (s *ProjectService) RemoveParticipant(ctx context.Context, projectID, actorID, targetID uint64) error {
	if targetID == actorID {
		return ErrCannotRemoveYourself
	}
	if _, err := s.findOwnedProject(ctx, projectID, actorID); err != nil {
		return err
	}

	if _, err := s.projectRepo.FindParticipant(ctx, projectID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectParticipantNotFound
		}
		return persistenceError("find project participant", err)
	}

	if err := s.projectRepo.RemoveParticipant(ctx, projectID, targetID); err != nil {
		return persistenceError("remove participant", err)
	}

	return nil
}

func (s *ProjectService) notifyProject(ctx context.Context, recipients []uint64, project *models.Project, notificationType, message string) {
	if len(recipients) == 0 {
		return
	}
	projectID := project.ID
	relatedType := models.RelatedTypeProject
	result, err := s.notifier.NotifyBulk(ctx, NotifyBulkInput{
		UserIDs:     recipients,
		Message:     message,
		Type:        notificationType,
		RelatedID:   &projectID,
		RelatedType: &relatedType,
	})
	if err != nil {
		s.logger.Warn("Project notification failed", zap.Uint64("project_id", project.ID), zap.String("type", notificationType), zap.Error(err))
		return
	}
	if len(result.Failed) > 0 {
		s.logger.Warn("Project notification partially failed",
			zap.Uint64("project_id", project.ID),
			zap.Int("failed", len(result.Failed)),
		)
	}
}

func (s *ProjectService) findProject(ctx context.Context, projectID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, persistenceError("find project", err)
	}
	return project, nil
}

func (s *ProjectService) findOwnedProject(ctx context.Context, projectID, actorID uint64) (*models.Project, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.TutorID != actorID {
		return nil, ErrNotProjectTutor
	}
	return project, nil
}
