package policy

import "github.com/yukikurage/taskboard/internal/models"

const (
	FieldEmail                = "email"
	FieldName                 = "name"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
	FieldRole                 = "role"
)

type UserPolicy struct {
	Actor  *models.User
	Record *models.User
}

func ForUser(actor, record *models.User) UserPolicy {
	return UserPolicy{Actor: actor, Record: record}
}

func (p UserPolicy) CanShow() bool    { return true }
func (p UserPolicy) CanCreate() bool  { return true }
func (p UserPolicy) CanUpdate() bool  { return p.manage() }
func (p UserPolicy) CanDestroy() bool { return p.manage() }

// PermittedFields includes the role only when an admin edits someone
// else, so admins cannot demote themselves.
func (p UserPolicy) PermittedFields() []string {
	fields := []string{FieldEmail, FieldName, FieldPassword, FieldPasswordConfirmation}
	if p.Actor != nil && p.Actor.IsAdmin() && !p.Actor.Is(p.Record) {
		fields = append(fields, FieldRole)
	}
	return fields
}

func (p UserPolicy) manage() bool {
	return p.Actor != nil && (p.Actor.IsAdmin() || p.Actor.Is(p.Record))
}

func (UserPolicy) sealed() {}
