package policy

import "github.com/yukikurage/taskboard/internal/models"

const (
	FieldTaskName    = "name"
	FieldDescription = "description"
	FieldAssignee    = "assignee"
	FieldAttachment  = "attachment"
)

type TaskPolicy struct {
	Actor  *models.User
	Record *models.Task
}

func ForTask(actor *models.User, record *models.Task) TaskPolicy {
	return TaskPolicy{Actor: actor, Record: record}
}

func (p TaskPolicy) CanShow() bool    { return true }
func (p TaskPolicy) CanCreate() bool  { return p.Actor != nil }
func (p TaskPolicy) CanUpdate() bool  { return p.manage() }
func (p TaskPolicy) CanDestroy() bool { return p.manage() }

// CanAdvance also lets the assignee move the task along.
func (p TaskPolicy) CanAdvance() bool {
	return p.manage() || (p.Record != nil && p.Record.IsAssignedTo(p.Actor))
}

// PermittedFields never contains the owner.
func (p TaskPolicy) PermittedFields() []string {
	return []string{FieldTaskName, FieldDescription, FieldAssignee, FieldAttachment}
}

func (p TaskPolicy) manage() bool {
	if p.Actor == nil {
		return false
	}
	return p.Actor.IsAdmin() || (p.Record != nil && p.Record.IsOwnedBy(p.Actor))
}

func (TaskPolicy) sealed() {}
