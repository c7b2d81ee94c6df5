package repository

import (
	"time"

	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxAdvanceAttempts = 5

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task, afterCreate func(*models.Task) error) error {
	if task.State == "" {
		task.State = models.TaskStateTodo
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}
		if afterCreate == nil {
			return nil
		}
		if err := afterCreate(task); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(task).Error
	})
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	scoped := func() *gorm.DB {
		return r.db.Model(&models.Task{}).Scopes(database.VisibleTasks(filter.Scope))
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := scoped().Scopes(database.OrderedTasks)
	if filter.Pagination != nil {
		listQuery = listQuery.Scopes(database.Paginate(*filter.Pagination))
	}
	for _, p := range filter.Preload {
		listQuery = listQuery.Preload(p)
	}

	tasks := []models.Task{}
	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// editableTaskColumns excludes the owner and the state, which only
// AdvanceState writes.
var editableTaskColumns = []string{
	"name", "description", "assignee_id",
	"attachment_key", "attachment_filename", "attachment_content_type", "attachment_size",
	"attachment_thumb_key",
	"updated_at",
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	result := r.db.Model(task).Select(editableTaskColumns).Updates(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete deletes a task
func (r *GormTaskRepository) Delete(id uint64) error {
	result := r.db.Delete(&models.Task{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdvanceState compares and swaps the state column so two concurrent
// advances never both read the same state.
func (r *GormTaskRepository) AdvanceState(task *models.Task) error {
	current := task.State
	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		next := current.Next()
		now := time.Now()

		result := r.db.Model(&models.Task{}).
			Where("id = ? AND state = ?", task.ID, current).
			Updates(map[string]interface{}{"state": next, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			task.State = next
			task.UpdatedAt = now
			return nil
		}

		var fresh models.Task
		if err := r.db.Select("id", "state").First(&fresh, task.ID).Error; err != nil {
			return err
		}
		current = fresh.State
	}
	return ErrConcurrentStateChange
}
