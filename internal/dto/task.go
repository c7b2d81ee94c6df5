package dto

import (
	"fmt"
	"time"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/utils"
)

// AttachmentDTO describes a task's uploaded file
type AttachmentDTO struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ThumbURL    string `json:"thumb_url,omitempty"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	State       models.TaskState `json:"state"`
	UserID      uint64           `json:"user_id"`
	AssigneeID  *uint64          `json:"assignee_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	User        *UserSummaryDTO  `json:"user,omitempty"`
	Assignee    *UserSummaryDTO  `json:"assignee,omitempty"`
	Attachment  *AttachmentDTO   `json:"attachment"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		State:       task.State,
		UserID:      task.UserID,
		AssigneeID:  task.AssigneeID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	if task.User.ID != 0 {
		user := ToUserSummaryDTO(task.User)
		dto.User = &user
	}
	if task.Assignee != nil {
		assignee := ToUserSummaryDTO(*task.Assignee)
		dto.Assignee = &assignee
	}
	if task.HasAttachment() {
		dto.Attachment = &AttachmentDTO{
			Filename:    task.AttachmentFilename,
			ContentType: task.AttachmentContentType,
			Size:        task.AttachmentSize,
			URL:         fmt.Sprintf("/api/tasks/%d/attachment", task.ID),
		}
		if task.HasThumbnail() {
			dto.Attachment.ThumbURL = dto.Attachment.URL + "?version=thumb"
		}
	}

	return dto
}

// ToTaskListResponse converts a page of tasks
func ToTaskListResponse(tasks []models.Task, page utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return TaskListResponse{
		Tasks:      items,
		Pagination: page.Response(total),
	}
}
