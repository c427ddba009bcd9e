package services

import (
	"context"
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

func newProjectService(t *testing.T) (*ProjectService, *mockNotifier, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	notifier := &mockNotifier{}
	t.Cleanup(func() { notifier.AssertExpectations(t) })
	return NewProjectService(repository.NewProjectRepository(db), repository.NewUserRepository(db), notifier, logger.NewNop()), notifier, db
}

func TestProjectService_CreateAndList(t *testing.T) {
	service, _, db := newProjectService(t)
	ctx := context.Background()
	tutor := createUser(t, db, "tutor", models.RoleTutor)
	end := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	_, err := service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidProjectName)

	_, err = service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "Bad", Status: "Archived"})
	assert.ErrorIs(t, err, ErrInvalidProjectStatus)

	project, err := service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "Garden", EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, project.Status)
	assert.Len(t, project.InviteCode, 14)

	projects, err := service.ListProjectsForUser(ctx, tutor.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Garden", projects[0].Name)
}

func TestProjectService_JoinNotifiesTutor(t *testing.T) {
	service, notifier, db := newProjectService(t)
	ctx := context.Background()
	tutor := createUser(t, db, "tutor", models.RoleTutor)
	student := &models.User{Username: "stu", DisplayName: "Stu Dent", PasswordHash: "x", Role: models.RoleStudent}
	require.NoError(t, db.Create(student).Error)

	project, err := service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "Garden"})
	require.NoError(t, err)

	_, err = service.JoinProjectByInvite(ctx, student.ID, "nope")
	assert.ErrorIs(t, err, ErrInvalidInviteCode)

	notifier.On("NotifyBulk", mock.Anything, mock.MatchedBy(func(in NotifyBulkInput) bool {
		return len(in.UserIDs) == 1 && in.UserIDs[0] == tutor.ID &&
			in.Type == models.NotificationTypeProjectJoined &&
			in.Message == `Stu Dent joined project "Garden"` &&
			*in.RelatedID == project.ID
	})).Return(bulkResult(1), nil).Once()

	joined, err := service.JoinProjectByInvite(ctx, student.ID, " "+project.InviteCode+" ")
	require.NoError(t, err)
	assert.Equal(t, project.ID, joined.ID)

	_, err = service.JoinProjectByInvite(ctx, student.ID, project.InviteCode)
	assert.ErrorIs(t, err, ErrAlreadyProjectMember)
	_, err = service.JoinProjectByInvite(ctx, tutor.ID, project.InviteCode)
	assert.ErrorIs(t, err, ErrAlreadyProjectMember)

	projects, err := service.ListProjectsForUser(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	_, participants, err := service.GetProjectWithParticipants(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, student.ID, participants[0].UserID)
}

func TestProjectService_UpdateNotifiesParticipants(t *testing.T) {
	service, notifier, db := newProjectService(t)
	ctx := context.Background()
	tutor := createUser(t, db, "tutor", models.RoleTutor)
	a := createUser(t, db, "a", models.RoleStudent)
	b := createUser(t, db, "b", models.RoleStudent)

	project, err := service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "Garden"})
	require.NoError(t, err)
	for _, u := range []*models.User{a, b} {
		require.NoError(t, db.Omit("Project", "User").Create(&models.ProjectParticipant{ProjectID: project.ID, UserID: u.ID, JoinedAt: time.Now()}).Error)
	}

	name := "Garden 2"
	_, err = service.UpdateProject(ctx, project.ID, a.ID, UpdateProjectInput{Name: &name})
	assert.ErrorIs(t, err, ErrNotProjectTutor)

	notifier.On("NotifyBulk", mock.Anything, mock.MatchedBy(func(in NotifyBulkInput) bool {
		return in.Type == models.NotificationTypeProjectUpdated && sameIDs(a.ID, b.ID)(in)
	})).Return(bulkResult(2), nil).Once()

	status := models.StatusInProgress
	updated, err := service.UpdateProject(ctx, project.ID, tutor.ID, UpdateProjectInput{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Garden 2", updated.Name)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestProjectService_InviteCodeAndMembers(t *testing.T) {
	service, _, db := newProjectService(t)
	ctx := context.Background()
	tutor := createUser(t, db, "tutor", models.RoleTutor)
	student := createUser(t, db, "student", models.RoleStudent)

	project, err := service.CreateProject(ctx, CreateProjectInput{TutorID: tutor.ID, Name: "Garden"})
	require.NoError(t, err)
	require.NoError(t, db.Omit("Project", "User").Create(&models.ProjectParticipant{ProjectID: project.ID, UserID: student.ID, JoinedAt: time.Now()}).Error)

	regenerated, err := service.RegenerateInviteCode(ctx, project.ID, tutor.ID)
	require.NoError(t, err)
	assert.NotEqual(t, project.InviteCode, regenerated.InviteCode)

	_, err = service.RegenerateInviteCode(ctx, project.ID, student.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, service.RemoveParticipant(ctx, project.ID, tutor.ID, tutor.ID), ErrCannotRemoveYourself)
	assert.ErrorIs(t, service.RemoveParticipant(ctx, project.ID, tutor.ID, 9999), ErrProjectParticipantNotFound)
	require.NoError(t, service.RemoveParticipant(ctx, project.ID, tutor.ID, student.ID))

	member, err := service.IsMember(ctx, project, student.ID)
	require.NoError(t, err)
	assert.False(t, member)

	assert.ErrorIs(t, service.DeleteProject(ctx, project.ID, student.ID), ErrNotProjectTutor)
	require.NoError(t, service.DeleteProject(ctx, project.ID, tutor.ID))
	_, err = service.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
