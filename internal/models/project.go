package models

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Status      WorkStatus     `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	EndDate     *time.Time     `json:"end_date"`
	TutorID     uint64         `gorm:"not null;index" json:"tutor_id"`
	InviteCode  string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"invite_code,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Tutor        User                 `gorm:"foreignKey:TutorID" json:"-"`
	Participants []ProjectParticipant `gorm:"foreignKey:ProjectID" json:"participants,omitempty"`
}

// ParticipantIDs returns the ids of the preloaded participants.
func (p Project) ParticipantIDs() []uint64 {
	ids := make([]uint64, 0, len(p.Participants))
	for _, participant := range p.Participants {
		ids = append(ids, participant.UserID)
	}
	return ids
}
