package repository

import (
	"context"

	"github.com/yukikurage/edu-project-api/internal/models"
	"gorm.io/gorm"
)

// GormReminderRepository is a GORM implementation of ReminderRepository
type GormReminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository creates a new ReminderRepository
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &GormReminderRepository{db: db}
}

// Create persists a new reminder
func (r *GormReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return r.db.WithContext(ctx).Omit("User").Create(reminder).Error
}

// FindByID finds a reminder by ID
func (r *GormReminderRepository) FindByID(ctx context.Context, id uint64) (*models.Reminder, error) {
	var reminder models.Reminder
	if err := r.db.WithContext(ctx).First(&reminder, id).Error; err != nil {
		return nil, err
	}
	return &reminder, nil
}

// List returns reminders matching the filter ordered by schedule
func (r *GormReminderRepository) List(ctx context.Context, filter ReminderFilter) ([]models.Reminder, error) {
	var reminders []models.Reminder

	query := r.db.WithContext(ctx).Model(&models.Reminder{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Order("scheduled_at ASC, id ASC").Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

// UpdateFields writes only the given columns of an existing reminder
func (r *GormReminderRepository) UpdateFields(ctx context.Context, id uint64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Deactivate clears the active flag. Only one caller can win for a given
// activation.
func (r *GormReminderRepository) Deactivate(ctx context.Context, id uint64) (bool, error) {
	return r.setActive(ctx, id, false)
}

// Reactivate sets the active flag of an inactive reminder
func (r *GormReminderRepository) Reactivate(ctx context.Context, id uint64) (bool, error) {
	return r.setActive(ctx, id, true)
}

func (r *GormReminderRepository) setActive(ctx context.Context, id uint64, active bool) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND is_active = ?", id, !active).
		Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes a reminder
func (r *GormReminderRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Reminder{}, id).Error
}
