package database

import (
	"errors"
	"fmt"

	"github.com/yukikurage/taskboard/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the application.
var Models = []interface{}{
	&models.Role{},
	&models.User{},
	&models.Task{},
}

// Migrate creates or updates the schema and makes sure every known role
// exists.
func Migrate(db *gorm.DB) error {
	zap.L().Info("Running database migrations")
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := ensureLowerIndexes(db); err != nil {
		return err
	}
	if err := EnsureRoles(db); err != nil {
		return err
	}
	zap.L().Info("Database migrations completed")
	return nil
}

// lowerIndexes make user emails and names unique regardless of case. The
// plain unique indexes compare case-sensitively on sqlite and postgres.
var lowerIndexes = []struct{ name, column string }{
	{"idx_users_email_lower", "email"},
	{"idx_users_name_lower", "name"},
}

func ensureLowerIndexes(db *gorm.DB) error {
	for _, idx := range lowerIndexes {
		if db.Migrator().HasIndex(&models.User{}, idx.name) {
			continue
		}
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX %s ON users ((LOWER(%s)))", idx.name, idx.column)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// EnsureRoles inserts the roles of models.RoleNames that are missing.
// Names are compared case-insensitively.
func EnsureRoles(db *gorm.DB) error {
	for _, name := range models.RoleNames {
		var role models.Role
		err := db.Where("LOWER(name) = LOWER(?)", string(name)).First(&role).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check role %s: %w", name, err)
		}

		if err := db.Create(&models.Role{Name: string(name)}).Error; err != nil {
			return fmt.Errorf("failed to create role %s: %w", name, err)
		}
		zap.L().Info("Created role", zap.String("name", string(name)))
	}
	return nil
}
