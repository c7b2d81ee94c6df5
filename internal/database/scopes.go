package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// OrderedTasks sorts newest first. Rows created in the same instant keep
// their insertion order through the id.
func OrderedTasks(db *gorm.DB) *gorm.DB {
	return db.Order("tasks.created_at DESC").Order("tasks.id DESC")
}

// VisibleTasks restricts a task query to scope.
func VisibleTasks(scope policy.TaskScope) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if scope.All {
			return db
		}
		return db.Where("tasks.user_id = ? OR tasks.assignee_id = ?", scope.SubjectID, scope.SubjectID)
	}
}
