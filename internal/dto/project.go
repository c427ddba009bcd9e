package dto

import (
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          uint64            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      models.WorkStatus `json:"status"`
	EndDate     *time.Time        `json:"end_date"`
	TutorID     uint64            `json:"tutor_id"`
	InviteCode  string            `json:"invite_code,omitempty"`
}

// ProjectParticipantDTO represents a participant of a project
type ProjectParticipantDTO struct {
	User     UserDTO   `json:"user"`
	JoinedAt time.Time `json:"joined_at"`
}

// ProjectDetailDTO represents detailed project information
type ProjectDetailDTO struct {
	ProjectDTO
	Participants []ProjectParticipantDTO `json:"participants"`
	IsTutor      bool                    `json:"is_tutor"`
}

// ToProjectDTO converts a Project model. Only the tutor sees the invite code.
func ToProjectDTO(project models.Project, includeInviteCode bool) ProjectDTO {
	dto := ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		EndDate:     project.EndDate,
		TutorID:     project.TutorID,
	}
	if includeInviteCode {
		dto.InviteCode = project.InviteCode
	}
	return dto
}

// ToProjectDTOs converts projects for the given viewer
func ToProjectDTOs(projects []models.Project, viewerID uint64) []ProjectDTO {
	items := make([]ProjectDTO, len(projects))
	for i, project := range projects {
		items[i] = ToProjectDTO(project, project.TutorID == viewerID)
	}
	return items
}

// ToProjectDetailDTO converts a project with participants
func ToProjectDetailDTO(project models.Project, participants []models.ProjectParticipant, viewerID uint64) ProjectDetailDTO {
	isTutor := project.TutorID == viewerID
	items := make([]ProjectParticipantDTO, len(participants))
	for i, participant := range participants {
		items[i] = ProjectParticipantDTO{
			User:     ToUserDTO(participant.User),
			JoinedAt: participant.JoinedAt,
		}
	}

	return ProjectDetailDTO{
		ProjectDTO:   ToProjectDTO(project, isTutor),
		Participants: items,
		IsTutor:      isTutor,
	}
}
