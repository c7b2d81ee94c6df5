package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/storage"
	"github.com/yukikurage/taskboard/internal/utils"
	"github.com/yukikurage/taskboard/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttachmentVersionThumb selects the thumbnail of an image attachment.
const AttachmentVersionThumb = "thumb"

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrStorageUnavailable = errors.New("attachment storage is not configured")
)

var taskPreloads = []string{"User", "User.Role", "Assignee"}

// TaskService handles task business logic
type TaskService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	store    storage.Store
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, store storage.Store) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		userRepo: userRepo,
		store:    store,
	}
}

// Attachment is an uploaded file. Content must be rewindable so the type
// can be sniffed before upload.
type Attachment struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Name        string
	Description string
	AssigneeID  *uint64
	Attachment  *Attachment
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Name          *string
	Description   *string
	AssigneeID    *uint64
	ClearAssignee bool
	Attachment    *Attachment
}

type taskFields struct {
	Name string `json:"name" validate:"required"`
}

// ListTasks lists every task, newest first.
func (s *TaskService) ListTasks(page utils.PaginationParams) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(repository.TaskFilter{
		Scope:      policy.TaskScope{All: true},
		Pagination: &page,
		Preload:    taskPreloads,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a task with its owner and assignee
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, taskPreloads...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// ShowTask checks that actor may see task.
func (s *TaskService) ShowTask(actor *models.User, task *models.Task) error {
	return policy.Authorize(policy.ForTask(actor, task), policy.ActionShow)
}

// CreateTask creates a task owned by actor. An attachment is stored inside
// the insert transaction so a failed upload leaves no task behind.
func (s *TaskService) CreateTask(ctx context.Context, actor *models.User, input CreateTaskInput) (*models.Task, error) {
	p := policy.ForTask(actor, nil)
	if err := policy.Authorize(p, policy.ActionCreate); err != nil {
		return nil, err
	}

	task := &models.Task{
		Name:   strings.TrimSpace(input.Name),
		State:  models.TaskStateTodo,
		UserID: actor.ID,
	}
	if policy.Permits(p, policy.FieldDescription) {
		task.Description = input.Description
	}

	errs := validation.Struct(taskFields{Name: task.Name})
	if input.AssigneeID != nil && policy.Permits(p, policy.FieldAssignee) {
		if err := s.checkAssignee(*input.AssigneeID, errs); err != nil {
			return nil, err
		}
		task.AssigneeID = input.AssigneeID
	}

	var pending *upload
	if input.Attachment != nil && policy.Permits(p, policy.FieldAttachment) {
		var err error
		if pending, err = s.prepareUpload(input.Attachment, errs); err != nil {
			return nil, err
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var stored blobKeys
	var afterCreate func(*models.Task) error
	if pending != nil {
		afterCreate = func(t *models.Task) error {
			keys, err := s.putAttachment(ctx, t, pending)
			stored = keys
			return err
		}
	}

	if err := s.taskRepo.Create(task, afterCreate); err != nil {
		stored.remove(ctx, s.store)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.GetTask(task.ID)
}

// UpdateTask applies the permitted fields of input. The owner and state
// never change here.
func (s *TaskService) UpdateTask(ctx context.Context, actor *models.User, task *models.Task, input UpdateTaskInput) (*models.Task, error) {
	p := policy.ForTask(actor, task)
	if err := policy.Authorize(p, policy.ActionUpdate); err != nil {
		return nil, err
	}

	updated := *task
	errs := validation.Errors{}

	if input.Name != nil && policy.Permits(p, policy.FieldTaskName) {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil && policy.Permits(p, policy.FieldDescription) {
		updated.Description = *input.Description
	}
	errs.Merge(validation.Struct(taskFields{Name: updated.Name}))

	if policy.Permits(p, policy.FieldAssignee) {
		switch {
		case input.ClearAssignee:
			updated.AssigneeID = nil
		case input.AssigneeID != nil:
			if err := s.checkAssignee(*input.AssigneeID, errs); err != nil {
				return nil, err
			}
			updated.AssigneeID = input.AssigneeID
		}
	}

	var pending *upload
	if input.Attachment != nil && policy.Permits(p, policy.FieldAttachment) {
		var err error
		if pending, err = s.prepareUpload(input.Attachment, errs); err != nil {
			return nil, err
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	// New blobs go under fresh keys. The previous ones are removed only once
	// the row points away from them.
	previous := attachmentBlobs(task)
	if pending != nil {
		stored, err := s.putAttachment(ctx, &updated, pending)
		if err != nil {
			return nil, err
		}
		if err := s.taskRepo.Update(&updated); err != nil {
			stored.remove(ctx, s.store)
			return nil, s.updateError(err)
		}
		previous.remove(ctx, s.store)
	} else if err := s.taskRepo.Update(&updated); err != nil {
		return nil, s.updateError(err)
	}

	return s.GetTask(updated.ID)
}

// DestroyTask deletes a task and its attachment
func (s *TaskService) DestroyTask(ctx context.Context, actor *models.User, task *models.Task) error {
	if err := policy.Authorize(policy.ForTask(actor, task), policy.ActionDestroy); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	attachmentBlobs(task).remove(ctx, s.store)
	return nil
}

// AdvanceTask moves task to its next state. The owner, an admin and the
// assignee may do this.
func (s *TaskService) AdvanceTask(actor *models.User, task *models.Task) (*models.Task, error) {
	if err := policy.Authorize(policy.ForTask(actor, task), policy.ActionAdvance); err != nil {
		return nil, err
	}

	if err := s.taskRepo.AdvanceState(task); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to advance task: %w", err)
	}

	zap.L().Debug("task advanced",
		zap.Uint64("task_id", task.ID),
		zap.String("state", string(task.State)),
	)
	return s.GetTask(task.ID)
}

// OpenAttachment streams the task's attachment, or its thumbnail when
// version is AttachmentVersionThumb. The caller closes it.
func (s *TaskService) OpenAttachment(ctx context.Context, actor *models.User, task *models.Task, version string) (io.ReadCloser, error) {
	if err := policy.Authorize(policy.ForTask(actor, task), policy.ActionShow); err != nil {
		return nil, err
	}

	var key string
	switch version {
	case "":
		key = task.AttachmentKey
	case AttachmentVersionThumb:
		key = task.AttachmentThumbKey
	}
	if key == "" {
		return nil, ErrAttachmentNotFound
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	rc, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	return rc, nil
}

func (s *TaskService) checkAssignee(id uint64, errs validation.Errors) error {
	if _, err := s.userRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errs.Add(policy.FieldAssignee, "must exist")
			return nil
		}
		return fmt.Errorf("failed to find assignee: %w", err)
	}
	return nil
}

type upload struct {
	filename    string
	size        int64
	contentType string
	content     io.Reader
	thumb       []byte
}

// prepareUpload checks the size limit, sniffs the content type and renders
// the thumbnail of an image.
func (s *TaskService) prepareUpload(a *Attachment, errs validation.Errors) (*upload, error) {
	if a.Size > constants.MaxAttachmentSize {
		errs.Add(policy.FieldAttachment, "is too big (should be at most 2 MB)")
		return nil, nil
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	mtype, err := mimetype.DetectReader(a.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to detect attachment type: %w", err)
	}
	if err := rewind(a.Content); err != nil {
		return nil, err
	}

	u := &upload{
		filename:    storage.SanitizeFilename(a.Filename),
		size:        a.Size,
		contentType: mtype.String(),
		content:     a.Content,
	}
	if strings.HasPrefix(u.contentType, "image/") {
		if u.thumb, err = makeThumbnail(a.Content); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// putAttachment uploads u, and its thumbnail when there is one, under a
// fresh key and records them on task.
func (s *TaskService) putAttachment(ctx context.Context, task *models.Task, u *upload) (blobKeys, error) {
	uploadID, err := utils.NewUploadID()
	if err != nil {
		return blobKeys{}, err
	}

	keys := blobKeys{key: storage.AttachmentKey(task.ID, uploadID, u.filename)}
	if err := s.store.Put(ctx, keys.key, u.content, u.size, u.contentType); err != nil {
		return blobKeys{}, fmt.Errorf("failed to store attachment: %w", err)
	}
	if u.thumb != nil {
		thumbKey := storage.ThumbKey(keys.key)
		if err := s.store.Put(ctx, thumbKey, bytes.NewReader(u.thumb), int64(len(u.thumb)), u.contentType); err != nil {
			keys.remove(ctx, s.store)
			return blobKeys{}, fmt.Errorf("failed to store thumbnail: %w", err)
		}
		keys.thumbKey = thumbKey
	}

	task.AttachmentKey = keys.key
	task.AttachmentThumbKey = keys.thumbKey
	task.AttachmentFilename = u.filename
	task.AttachmentContentType = u.contentType
	task.AttachmentSize = u.size
	return keys, nil
}

func (s *TaskService) updateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("failed to update task: %w", err)
}

// blobKeys are the stored blobs of one attachment upload.
type blobKeys struct {
	key      string
	thumbKey string
}

func attachmentBlobs(t *models.Task) blobKeys {
	return blobKeys{key: t.AttachmentKey, thumbKey: t.AttachmentThumbKey}
}

// remove deletes the blobs on a best-effort basis.
func (k blobKeys) remove(ctx context.Context, store storage.Store) {
	removeAttachment(ctx, store, k.thumbKey)
	removeAttachment(ctx, store, k.key)
}
