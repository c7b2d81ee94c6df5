// Package policy decides what an actor may do with users and tasks.
//
// The actor is always passed explicitly; a nil actor is an anonymous
// request. Each resource type has its own policy value and the caller
// picks it with ForUser or ForTask.
package policy

import (
	"errors"
	"slices"
)

// ErrNotPermitted is returned by Authorize when the policy denies an action.
var ErrNotPermitted = errors.New("not permitted")

type Action string

const (
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	ActionAdvance Action = "advance"
)

// Policy is implemented by UserPolicy and TaskPolicy only.
type Policy interface {
	CanShow() bool
	CanCreate() bool
	CanUpdate() bool
	CanDestroy() bool
	PermittedFields() []string

	sealed()
}

// Authorize returns ErrNotPermitted unless p allows action. Actions a
// policy does not define are denied.
func Authorize(p Policy, action Action) error {
	if allowed(p, action) {
		return nil
	}
	return ErrNotPermitted
}

func allowed(p Policy, action Action) bool {
	switch action {
	case ActionShow:
		return p.CanShow()
	case ActionCreate:
		return p.CanCreate()
	case ActionUpdate:
		return p.CanUpdate()
	case ActionDestroy:
		return p.CanDestroy()
	case ActionAdvance:
		tp, ok := p.(TaskPolicy)
		return ok && tp.CanAdvance()
	}
	return false
}

// Permits reports whether field is settable under p.
func Permits(p Policy, field string) bool {
	return slices.Contains(p.PermittedFields(), field)
}
