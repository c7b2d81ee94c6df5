package policy

import "github.com/yukikurage/taskboard/internal/models"

// TaskScope describes which tasks a listing exposes.
type TaskScope struct {
	// All exposes every task in the system.
	All bool
	// SubjectID restricts the listing to tasks the subject owns or is
	// assigned to. Ignored when All is set.
	SubjectID uint64
}

// TaskScopeFor returns the tasks viewer may see when looking at subject's
// task list. An admin looking at their own list sees everything; everyone
// else sees the subject's associated tasks.
func TaskScopeFor(viewer, subject *models.User) TaskScope {
	if viewer != nil && viewer.IsAdmin() && viewer.Is(subject) {
		return TaskScope{All: true}
	}
	var id uint64
	if subject != nil {
		id = subject.ID
	}
	return TaskScope{SubjectID: id}
}

// Includes reports whether task falls inside the scope.
func (s TaskScope) Includes(task *models.Task) bool {
	if s.All {
		return true
	}
	if task == nil || s.SubjectID == 0 {
		return false
	}
	return task.UserID == s.SubjectID || (task.AssigneeID != nil && *task.AssigneeID == s.SubjectID)
}
