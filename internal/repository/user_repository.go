package repository

import (
	"fmt"

	"github.com/yukikurage/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Omit(clause.Associations).Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Role").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Role").Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByAuthToken finds a user by auth token. Some MySQL collations compare
// case-insensitively, so the match is confirmed in Go.
func (r *GormUserRepository) FindByAuthToken(token string) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Role").Where("auth_token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	if user.AuthToken != token {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *GormUserRepository) EmailTaken(email string, exceptID uint64) (bool, error) {
	return r.taken("LOWER(email) = LOWER(?)", email, exceptID)
}

func (r *GormUserRepository) NameTaken(name string, exceptID uint64) (bool, error) {
	return r.taken("LOWER(name) = LOWER(?)", name, exceptID)
}

func (r *GormUserRepository) taken(cond string, value string, exceptID uint64) (bool, error) {
	var count int64
	query := r.db.Model(&models.User{}).Where(cond, value)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TokenExists reports whether the token is already assigned
func (r *GormUserRepository) TokenExists(token string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("auth_token = ?", token).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// editableUserColumns leaves out the auth token, which is fixed at creation.
var editableUserColumns = []string{"email", "name", "password_digest", "role_id", "updated_at"}

// Update writes the editable columns of user. It never inserts, so a user
// deleted in the meantime stays deleted.
func (r *GormUserRepository) Update(user *models.User) error {
	result := r.db.Model(user).Select(editableUserColumns).Updates(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete deletes a user with their owned tasks and releases their
// assignments in a transaction
func (r *GormUserRepository) Delete(id uint64) ([]models.Task, error) {
	var owned []models.Task
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Find(&owned).Error; err != nil {
			return fmt.Errorf("failed to load owned tasks: %w", err)
		}

		if err := tx.Model(&models.Task{}).
			Where("assignee_id = ?", id).
			Update("assignee_id", nil).Error; err != nil {
			return fmt.Errorf("failed to clear assignments: %w", err)
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete owned tasks: %w", err)
		}

		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owned, nil
}

// ListByName lists users alphabetically
func (r *GormUserRepository) ListByName() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
