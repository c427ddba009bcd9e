package repository

import (
	"context"

	"github.com/yukikurage/edu-project-api/internal/database"
	"github.com/yukikurage/edu-project-api/internal/models"
	"gorm.io/gorm"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project
func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// FindByID finds a project by ID with optional preloading
func (r *GormProjectRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db.WithContext(ctx)
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByInviteCode finds a project by invite code
func (r *GormProjectRepository) FindByInviteCode(ctx context.Context, code string) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// List retrieves projects matching the filter with participants preloaded
func (r *GormProjectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	var projects []models.Project

	query := r.db.WithContext(ctx).Model(&models.Project{})

	if filter.MemberID != nil {
		participantSubQuery := r.db.Model(&models.ProjectParticipant{}).
			Select("1").
			Where("project_participants.project_id = projects.id").
			Where("project_participants.user_id = ?", *filter.MemberID)
		query = query.Where("projects.tutor_id = ? OR EXISTS (?)", *filter.MemberID, participantSubQuery)
	}

	query = query.Scopes(
		database.StatusNotIn("projects.status", filter.ExcludeStatuses),
		database.Window("projects.end_date", filter.EndDateFrom, filter.EndDateTo),
	)

	if err := query.Preload("Participants").Order("projects.id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return projects, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit("Tutor", "Participants").Save(project).Error
}

// Delete deletes a project and its participants in a transaction
func (r *GormProjectRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectParticipant{}).Error; err != nil {
			return err
		}

		// Tasks survive their project as standalone tasks
		if err := tx.Model(&models.Task{}).Where("project_id = ?", id).Update("project_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, id).Error
	})
}

// AddParticipant adds a participant to a project
func (r *GormProjectRepository) AddParticipant(ctx context.Context, participant *models.ProjectParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

// RemoveParticipant removes a participant from a project
func (r *GormProjectRepository) RemoveParticipant(ctx context.Context, projectID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectParticipant{}).Error
}

// FindParticipant finds a specific project participant
func (r *GormProjectRepository) FindParticipant(ctx context.Context, projectID, userID uint64) (*models.ProjectParticipant, error) {
	var participant models.ProjectParticipant
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

// ListParticipants lists all participants of a project
func (r *GormProjectRepository) ListParticipants(ctx context.Context, projectID uint64) ([]models.ProjectParticipant, error) {
	var participants []models.ProjectParticipant
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}
