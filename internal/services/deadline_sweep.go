package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"go.uber.org/zap"
)

type deadlineHorizon struct {
	window time.Duration
	label  string
}

var deadlineHorizons = []deadlineHorizon{
	{window: 24 * time.Hour, label: "24 hours"},
	{window: time.Hour, label: "1 hour"},
}

// SweepReport summarizes one CheckDeadlines run.
type SweepReport struct {
	TaskReminders    int
	ProjectReminders int
	Skipped          int
	Failures         int
}

// CheckDeadlines notifies responsibles of unfinished tasks and members of
// unfinished projects whose deadline falls inside one of the horizons. A
// failure for one item is logged and the sweep continues.
func (s *ReminderScheduler) CheckDeadlines(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.now()

	for _, horizon := range deadlineHorizons {
		if ctx.Err() != nil {
			return report
		}
		s.sweepTasks(ctx, now, horizon, &report)
		s.sweepProjects(ctx, now, horizon, &report)
	}

	return report
}

func (s *ReminderScheduler) sweepTasks(ctx context.Context, now time.Time, horizon deadlineHorizon, report *SweepReport) {
	until := now.Add(horizon.window)
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{
		OnlyAssigned:    true,
		ExcludeStatuses: models.CompletedStatuses,
		DueDateFrom:     &now,
		DueDateTo:       &until,
	})
	if err != nil {
		s.logger.Error("Deadline sweep failed to load tasks", zap.String("horizon", horizon.label), zap.Error(err))
		report.Failures++
		return
	}

	relatedType := models.RelatedTypeTask
	for i := range tasks {
		task := &tasks[i]
		if task.ResponsibleID == nil {
			continue
		}
		userID := *task.ResponsibleID

		if !s.firstDeadlineNotice(ctx, "task", task.ID, horizon, userID) {
			report.Skipped++
			continue
		}

		taskID := task.ID
		_, err := s.notifier.Notify(ctx, NotifyInput{
			UserID:      userID,
			Message:     fmt.Sprintf("Deadline reminder: task %q is due in %s", task.Name, horizon.label),
			Type:        models.NotificationTypeDeadlineReminder,
			RelatedID:   &taskID,
			RelatedType: &relatedType,
		})
		if err != nil {
			s.logger.Error("Task deadline reminder failed",
				zap.Uint64("task_id", task.ID),
				zap.Uint64("user_id", userID),
				zap.Error(err),
			)
			report.Failures++
			continue
		}
		report.TaskReminders++
	}
}

func (s *ReminderScheduler) sweepProjects(ctx context.Context, now time.Time, horizon deadlineHorizon, report *SweepReport) {
	until := now.Add(horizon.window)
	projects, err := s.projectRepo.List(ctx, repository.ProjectFilter{
		ExcludeStatuses: models.CompletedStatuses,
		EndDateFrom:     &now,
		EndDateTo:       &until,
	})
	if err != nil {
		s.logger.Error("Deadline sweep failed to load projects", zap.String("horizon", horizon.label), zap.Error(err))
		report.Failures++
		return
	}

	relatedType := models.RelatedTypeProject
	for i := range projects {
		project := &projects[i]

		recipients := make([]uint64, 0, len(project.Participants)+1)
		for _, userID := range uniqueUint64(append(project.ParticipantIDs(), project.TutorID)) {
			if s.firstDeadlineNotice(ctx, "project", project.ID, horizon, userID) {
				recipients = append(recipients, userID)
			} else {
				report.Skipped++
			}
		}
		if len(recipients) == 0 {
			continue
		}

		projectID := project.ID
		result, err := s.notifier.NotifyBulk(ctx, NotifyBulkInput{
			UserIDs:     recipients,
			Message:     fmt.Sprintf("Deadline reminder: project %q ends in %s", project.Name, horizon.label),
			Type:        models.NotificationTypeDeadlineReminder,
			RelatedID:   &projectID,
			RelatedType: &relatedType,
		})
		if err != nil {
			s.logger.Error("Project deadline reminder failed", zap.Uint64("project_id", project.ID), zap.Error(err))
			report.Failures++
			continue
		}
		report.ProjectReminders += len(result.Notifications)
		report.Failures += len(result.Failed)
	}
}

// firstDeadlineNotice reports whether the reminder should be sent. Without a
// dedup store every sweep repeats the reminder. Store errors fail open.
func (s *ReminderScheduler) firstDeadlineNotice(ctx context.Context, kind string, id uint64, horizon deadlineHorizon, userID uint64) bool {
	if s.dedup == nil {
		return true
	}

	key := fmt.Sprintf("deadline:%s:%d:%s:%d", kind, id, horizon.window, userID)
	first, err := s.dedup.MarkOnce(ctx, key, horizon.window)
	if err != nil {
		s.logger.Warn("Deadline dedup store unavailable", zap.String("key", key), zap.Error(err))
		return true
	}
	return first
}
