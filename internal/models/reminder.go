package models

import "time"

type Reminder struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	UserID      uint64    `gorm:"not null;index" json:"user_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	ScheduledAt time.Time `gorm:"not null;index" json:"scheduled_at"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	RelatedID   *uint64   `json:"related_id,omitempty"`
	RelatedType *string   `gorm:"type:varchar(50)" json:"related_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
