package services

import (
	"strconv"
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
)

// TaskResponsible is one assignee of a logical task together with the status
// of that assignee's own task row.
type TaskResponsible struct {
	TaskID       uint64            `json:"task_id"`
	AssigneeID   *uint64           `json:"assignee_id"`
	AssigneeName string            `json:"assignee_name"`
	Status       models.WorkStatus `json:"status"`
}

// LogicalTaskGroup is the tutor's view of one task definition handed to
// several students. It is rebuilt from the task rows on every read.
type LogicalTaskGroup struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	DueDate      *time.Time          `json:"due_date"`
	Priority     models.TaskPriority `json:"priority"`
	Type         string              `json:"type"`
	ProjectID    *uint64             `json:"project_id"`
	TutorID      uint64              `json:"tutor_id"`
	Status       models.WorkStatus   `json:"status"`
	Responsibles []TaskResponsible   `json:"responsibles"`
}

type taskGroupKey struct {
	name        string
	description string
	dueDate     string
	projectID   string
	priority    string
	taskType    string
}

func groupKeyOf(task models.Task) taskGroupKey {
	key := taskGroupKey{
		name:        task.Name,
		description: task.Description,
		priority:    string(task.Priority),
		taskType:    task.Type,
	}
	if task.DueDate != nil {
		key.dueDate = task.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if task.ProjectID != nil {
		key.projectID = strconv.FormatUint(*task.ProjectID, 10)
	}
	return key
}

// statusRank orders statuses by how blocked they are: Pending > In Progress > Completed.
func statusRank(status models.WorkStatus) int {
	switch status {
	case models.StatusPending, models.StatusPendiente:
		return 2
	case models.StatusInProgress, models.StatusEnProgreso:
		return 1
	default:
		return 0
	}
}

func groupStatusLabel(status models.WorkStatus) models.WorkStatus {
	if statusRank(status) > 0 || status.IsCompleted() {
		return status
	}
	return models.StatusCompleted
}

func responsibleOf(task models.Task) TaskResponsible {
	r := TaskResponsible{
		TaskID:     task.ID,
		AssigneeID: task.ResponsibleID,
		Status:     task.Status,
	}
	if task.Responsible != nil {
		r.AssigneeName = task.Responsible.Name()
	}
	return r
}

func (g *LogicalTaskGroup) add(task models.Task) {
	g.Responsibles = append(g.Responsibles, responsibleOf(task))
	if statusRank(task.Status) > statusRank(g.Status) {
		g.Status = groupStatusLabel(task.Status)
	}
}

func newLogicalTaskGroup(task models.Task) *LogicalTaskGroup {
	return &LogicalTaskGroup{
		Name:         task.Name,
		Description:  task.Description,
		DueDate:      task.DueDate,
		Priority:     task.Priority,
		Type:         task.Type,
		ProjectID:    task.ProjectID,
		TutorID:      task.TutorID,
		Status:       groupStatusLabel(task.Status),
		Responsibles: []TaskResponsible{responsibleOf(task)},
	}
}

// GroupForTutor merges task rows that share a definition into logical groups.
// Groups appear in the order their first row was seen and responsibles keep
// input order.
func GroupForTutor(tasks []models.Task) []LogicalTaskGroup {
	index := make(map[taskGroupKey]int, len(tasks))
	groups := make([]*LogicalTaskGroup, 0, len(tasks))

	for _, task := range tasks {
		key := groupKeyOf(task)
		if i, ok := index[key]; ok {
			groups[i].add(task)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, newLogicalTaskGroup(task))
	}

	result := make([]LogicalTaskGroup, len(groups))
	for i, g := range groups {
		result[i] = *g
	}
	return result
}

// ViewForNonTutor returns the tasks assigned to the user plus unassigned tasks.
func ViewForNonTutor(tasks []models.Task, userID uint64) []models.Task {
	visible := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ResponsibleID == nil || *task.ResponsibleID == userID {
			visible = append(visible, task)
		}
	}
	return visible
}

// GroupSingleTaskForTutor builds the group the task belongs to from the tutor's
// task rows. It returns nil when no row owned by the tutor shares the task's key.
func GroupSingleTaskForTutor(task models.Task, tasks []models.Task, tutorID uint64) *LogicalTaskGroup {
	key := groupKeyOf(task)

	var group *LogicalTaskGroup
	for _, candidate := range tasks {
		if candidate.TutorID != tutorID || groupKeyOf(candidate) != key {
			continue
		}
		if group == nil {
			group = newLogicalTaskGroup(candidate)
			continue
		}
		group.add(candidate)
	}
	return group
}

// FilterGroupsByStatus keeps the groups whose aggregated status has the same
// precedence as status. Spanish and English labels match each other.
func FilterGroupsByStatus(groups []LogicalTaskGroup, status models.WorkStatus) []LogicalTaskGroup {
	filtered := make([]LogicalTaskGroup, 0, len(groups))
	for _, g := range groups {
		if statusRank(g.Status) == statusRank(status) {
			filtered = append(filtered, g)
		}
	}
	return filtered
}

// SameDefinition reports whether two task rows belong to the same logical task.
func SameDefinition(a, b models.Task) bool {
	return a.TutorID == b.TutorID && groupKeyOf(a) == groupKeyOf(b)
}
