package repository

import (
	"errors"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/utils"
)

// ErrConcurrentStateChange is returned when a task's state kept changing
// underneath an advance.
var ErrConcurrentStateChange = errors.New("task state changed concurrently")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create inserts task. When afterCreate is set it runs inside the same
	// transaction once the id is known; an error rolls the insert back and
	// changes it makes to task are saved.
	Create(task *models.Task, afterCreate func(*models.Task) error) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks visible under the filter's scope, newest first
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update saves the editable columns; state and owner are left alone
	Update(task *models.Task) error

	// Delete removes a task permanently
	Delete(id uint64) error

	// AdvanceState moves the task to its next state atomically and
	// refreshes task with the persisted values
	AdvanceState(task *models.Task) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Scope      policy.TaskScope
	Pagination *utils.PaginationParams
	Preload    []string
}

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	// FindByName finds a role by name, ignoring case
	FindByName(name string) (*models.Role, error)

	// List returns all roles ordered by name
	List() ([]models.Role, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID with the role loaded
	FindByID(id uint64) (*models.User, error)

	// FindByEmail finds a user by email, ignoring case
	FindByEmail(email string) (*models.User, error)

	// FindByAuthToken finds the user holding exactly token
	FindByAuthToken(token string) (*models.User, error)

	// EmailTaken reports whether another user already uses email, ignoring case
	EmailTaken(email string, exceptID uint64) (bool, error)

	// NameTaken reports whether another user already uses name, ignoring case
	NameTaken(name string, exceptID uint64) (bool, error)

	// TokenExists reports whether any user holds token
	TokenExists(token string) (bool, error)

	// Update saves the user's own columns
	Update(user *models.User) error

	// Delete removes the user and the tasks they own and clears their
	// assignments, returning the removed tasks
	Delete(id uint64) ([]models.Task, error)

	// ListByName returns all users ordered by name
	ListByName() ([]models.User, error)
}
