package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/storage"
	"github.com/yukikurage/taskboard/internal/utils"
	"github.com/yukikurage/taskboard/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService handles user business logic
type UserService struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	taskRepo repository.TaskRepository
	store    storage.Store
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	taskRepo repository.TaskRepository,
	store storage.Store,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		taskRepo: taskRepo,
		store:    store,
	}
}

// UpdateUserInput represents input for updating a user. Nil fields are
// left untouched.
type UpdateUserInput struct {
	Email                *string
	Name                 *string
	Password             *string
	PasswordConfirmation *string
	// Role names the new role; an empty string removes it.
	Role *string
}

type userFields struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=3,max=30"`
}

type passwordFields struct {
	Password             string `json:"password" validate:"min=4,max=20"`
	PasswordConfirmation string `json:"password_confirmation" validate:"omitempty,eqfield=Password"`
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ShowUser checks that actor may see record.
func (s *UserService) ShowUser(actor, record *models.User) error {
	return policy.Authorize(policy.ForUser(actor, record), policy.ActionShow)
}

// UpdateUser applies the fields of input the policy permits. Fields the
// actor may not set are ignored. record is not modified when the update
// fails.
func (s *UserService) UpdateUser(actor, record *models.User, input UpdateUserInput) (*models.User, error) {
	p := policy.ForUser(actor, record)
	if err := policy.Authorize(p, policy.ActionUpdate); err != nil {
		return nil, err
	}

	updated := *record
	errs := validation.Errors{}

	if input.Email != nil && policy.Permits(p, policy.FieldEmail) {
		updated.Email = normalizeEmail(*input.Email)
	}
	if input.Name != nil && policy.Permits(p, policy.FieldName) {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	errs.Merge(validation.Struct(userFields{Email: updated.Email, Name: updated.Name}))

	// A blank password keeps the current one.
	if input.Password != nil && *input.Password != "" && policy.Permits(p, policy.FieldPassword) {
		fields := passwordFields{Password: *input.Password}
		if input.PasswordConfirmation != nil && policy.Permits(p, policy.FieldPasswordConfirmation) {
			fields.PasswordConfirmation = *input.PasswordConfirmation
		}
		if perrs := validation.Struct(fields); len(perrs) > 0 {
			errs.Merge(perrs)
		} else {
			digest, err := bcrypt.GenerateFromPassword([]byte(fields.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, ErrFailedToHashPassword
			}
			updated.PasswordDigest = string(digest)
		}
	}

	if input.Role != nil && policy.Permits(p, policy.FieldRole) {
		if err := s.applyRole(&updated, *input.Role, errs); err != nil {
			return nil, err
		}
	}

	if err := checkUnique(s.userRepo, errs, updated.Email, updated.Name, updated.ID); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(&updated); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			raced := validation.Errors{}
			if err := checkUnique(s.userRepo, raced, updated.Email, updated.Name, updated.ID); err != nil {
				return nil, err
			}
			if err := raced.Err(); err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.GetUser(updated.ID)
}

func (s *UserService) applyRole(user *models.User, name string, errs validation.Errors) error {
	name = strings.TrimSpace(name)
	if name == "" {
		user.RoleID = nil
		user.Role = nil
		return nil
	}

	role, err := s.roleRepo.FindByName(name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errs.Add(policy.FieldRole, "is invalid")
			return nil
		}
		return fmt.Errorf("failed to find role: %w", err)
	}
	user.RoleID = &role.ID
	user.Role = role
	return nil
}

// DestroyUser removes record together with the tasks it owns. Tasks
// assigned to it lose their assignee.
func (s *UserService) DestroyUser(ctx context.Context, actor, record *models.User) error {
	if err := policy.Authorize(policy.ForUser(actor, record), policy.ActionDestroy); err != nil {
		return err
	}

	removed, err := s.userRepo.Delete(record.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	for i := range removed {
		attachmentBlobs(&removed[i]).remove(ctx, s.store)
	}
	return nil
}

// ListUserTasks lists the tasks viewer may see on subject's task list,
// newest first.
func (s *UserService) ListUserTasks(viewer, subject *models.User, page utils.PaginationParams) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(repository.TaskFilter{
		Scope:      policy.TaskScopeFor(viewer, subject),
		Pagination: &page,
		Preload:    taskPreloads,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListAssignees returns every user ordered by name.
func (s *UserService) ListAssignees() ([]models.User, error) {
	users, err := s.userRepo.ListByName()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListRoles returns the roles an admin can grant.
func (s *UserService) ListRoles() ([]models.Role, error) {
	roles, err := s.roleRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// removeAttachment deletes a stored blob. Failures leave an orphan behind
// and are only logged.
func removeAttachment(ctx context.Context, store storage.Store, key string) {
	if key == "" || store == nil {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		zap.L().Warn("failed to remove attachment", zap.String("key", key), zap.Error(err))
	}
}
