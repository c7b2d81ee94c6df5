package models

import (
	"time"
)

type TaskState string

const (
	TaskStateTodo     TaskState = "todo"
	TaskStateStarted  TaskState = "started"
	TaskStateFinished TaskState = "finished"
)

// TaskStates lists the states in cycle order.
var TaskStates = []TaskState{TaskStateTodo, TaskStateStarted, TaskStateFinished}

// Next returns the state reached by advancing from s. The cycle is
// todo -> started -> finished -> todo. Unknown values restart at the
// beginning of the cycle.
func (s TaskState) Next() TaskState {
	switch s {
	case TaskStateTodo:
		return TaskStateStarted
	case TaskStateStarted:
		return TaskStateFinished
	default:
		return TaskStateTodo
	}
}

type Task struct {
	ID                    uint64    `gorm:"primarykey" json:"id"`
	Name                  string    `gorm:"type:varchar(255);not null" json:"name"`
	Description           string    `gorm:"type:text" json:"description"`
	State                 TaskState `gorm:"type:varchar(20);not null;default:'todo'" json:"state"`
	UserID                uint64    `gorm:"not null;index" json:"user_id"`
	AssigneeID            *uint64   `gorm:"index" json:"assignee_id"`
	AttachmentKey         string    `gorm:"type:varchar(512)" json:"-"`
	AttachmentFilename    string    `gorm:"type:varchar(255)" json:"attachment_filename,omitempty"`
	AttachmentContentType string    `gorm:"type:varchar(255)" json:"attachment_content_type,omitempty"`
	AttachmentSize        int64     `json:"attachment_size,omitempty"`
	AttachmentThumbKey    string    `gorm:"type:varchar(512)" json:"-"`
	CreatedAt             time.Time `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	// Relations
	User     User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Assignee *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

func (t *Task) HasAttachment() bool {
	return t.AttachmentKey != ""
}

// HasThumbnail reports whether an image attachment was stored with a
// thumbnail.
func (t *Task) HasThumbnail() bool {
	return t.AttachmentThumbKey != ""
}

// IsOwnedBy reports whether u created the task.
func (t *Task) IsOwnedBy(u *User) bool {
	return u != nil && u.ID != 0 && t.UserID == u.ID
}

// IsAssignedTo reports whether u is the task's assignee.
func (t *Task) IsAssignedTo(u *User) bool {
	return u != nil && u.ID != 0 && t.AssigneeID != nil && *t.AssigneeID == u.ID
}
