package repository

import (
	"github.com/yukikurage/taskboard/internal/models"
	"gorm.io/gorm"
)

// GormRoleRepository is a GORM implementation of RoleRepository
type GormRoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new RoleRepository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) FindByName(name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.Where("LOWER(name) = LOWER(?)", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) List() ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
