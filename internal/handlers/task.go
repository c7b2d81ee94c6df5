package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/utils"
	"github.com/yukikurage/taskboard/internal/validation"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// taskRequest is the body of create and update requests, sent either as
// JSON or as a multipart form carrying the attachment.
type taskRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	AssigneeID  dto.OptionalID `json:"assignee_id"`

	attachment *multipart.FileHeader
}

// ListTasks returns every task, newest first
func (h *TaskHandler) ListTasks(c *gin.Context) {
	page := utils.GetPaginationParams(c)

	tasks, total, err := h.taskService.ListTasks(page)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, page, total))
}

// GetTask returns a specific task by ID
// Task is already loaded with relations by LoadTask middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task := middleware.GetTask(c)
	if err := h.taskService.ShowTask(middleware.GetActor(c), task); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a task owned by the current user
func (h *TaskHandler) CreateTask(c *gin.Context) {
	req, ok := bindTaskRequest(c)
	if !ok {
		return
	}

	input := services.CreateTaskInput{AssigneeID: req.AssigneeID.Value}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}

	attachment, closeFile, err := openAttachment(req.attachment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer closeFile()
	input.Attachment = attachment

	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.GetActor(c), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask updates the given fields of a task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	req, ok := bindTaskRequest(c)
	if !ok {
		return
	}

	input := services.UpdateTaskInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.AssigneeID.Set {
		input.AssigneeID = req.AssigneeID.Value
		input.ClearAssignee = req.AssigneeID.Value == nil
	}

	attachment, closeFile, err := openAttachment(req.attachment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer closeFile()
	input.Attachment = attachment

	task, err := h.taskService.UpdateTask(c.Request.Context(), middleware.GetActor(c), middleware.GetTask(c), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskService.DestroyTask(c.Request.Context(), middleware.GetActor(c), middleware.GetTask(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AdvanceTask moves the task to its next state
func (h *TaskHandler) AdvanceTask(c *gin.Context) {
	task, err := h.taskService.AdvanceTask(middleware.GetActor(c), middleware.GetTask(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DownloadAttachment streams the task's attachment. ?version=thumb serves
// the thumbnail of an image instead.
func (h *TaskHandler) DownloadAttachment(c *gin.Context) {
	task := middleware.GetTask(c)
	version := c.Query("version")

	rc, err := h.taskService.OpenAttachment(c.Request.Context(), middleware.GetActor(c), task, version)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer rc.Close()

	size, filename := task.AttachmentSize, task.AttachmentFilename
	if version == services.AttachmentVersionThumb {
		size, filename = -1, "thumb_"+filename
	}

	c.DataFromReader(http.StatusOK, size, task.AttachmentContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// bindTaskRequest reads a JSON or multipart body. On failure it has
// already responded.
func bindTaskRequest(c *gin.Context) (taskRequest, bool) {
	var req taskRequest

	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.BadRequest(c, "Invalid request body")
			return req, false
		}
		return req, true
	}

	if err := c.Request.ParseMultipartForm(constants.MaxAttachmentSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(c)
			return req, false
		}
		apierrors.BadRequest(c, "Invalid form body")
		return req, false
	}

	if v, ok := c.GetPostForm("name"); ok {
		req.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		req.Description = &v
	}
	if v, ok := c.GetPostForm("assignee_id"); ok {
		req.AssigneeID.Set = true
		if v = strings.TrimSpace(v); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				apierrors.UnprocessableEntity(c, validation.Errors{"assignee": {"is invalid"}})
				return req, false
			}
			req.AssigneeID.Value = &id
		}
	}
	if fh, err := c.FormFile(constants.AttachmentField); err == nil {
		req.attachment = fh
	} else if !errors.Is(err, http.ErrMissingFile) {
		apierrors.BadRequest(c, "Invalid attachment")
		return req, false
	}

	return req, true
}

// openAttachment opens an uploaded file. The returned func closes it and
// is safe to call when there is none.
func openAttachment(fh *multipart.FileHeader) (*services.Attachment, func(), error) {
	if fh == nil {
		return nil, func() {}, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open upload: %w", err)
	}

	return &services.Attachment{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	}, func() { f.Close() }, nil
}
