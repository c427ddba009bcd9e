package models

// WorkStatus is the progress state shared by tasks and projects.
type WorkStatus string

const (
	StatusPending    WorkStatus = "Pending"
	StatusInProgress WorkStatus = "In Progress"
	StatusCompleted  WorkStatus = "Completed"

	// Labels written by the Spanish-language clients.
	StatusPendiente  WorkStatus = "Pendiente"
	StatusEnProgreso WorkStatus = "En Progreso"
	StatusCompletada WorkStatus = "Completada"
)

// CompletedStatuses lists every label that means the work is finished.
var CompletedStatuses = []WorkStatus{StatusCompleted, StatusCompletada}

// IsCompleted reports whether the status is a finished state.
func (s WorkStatus) IsCompleted() bool {
	for _, c := range CompletedStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// Valid reports whether the status is a known label.
func (s WorkStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted,
		StatusPendiente, StatusEnProgreso, StatusCompletada:
		return true
	}
	return false
}
