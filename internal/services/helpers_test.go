package services

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db       *gorm.DB
	fs       afero.Fs
	store    storage.Store
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	taskRepo repository.TaskRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	require.NoError(t, database.Migrate(db))

	fs := afero.NewMemMapFs()
	return &fixture{
		db:       db,
		fs:       fs,
		store:    storage.NewFSStore(fs, "/uploads"),
		userRepo: repository.NewUserRepository(db),
		roleRepo: repository.NewRoleRepository(db),
		taskRepo: repository.NewTaskRepository(db),
	}
}

func (f *fixture) authService(opts ...AuthOption) *AuthService {
	return NewAuthService(f.userRepo, opts...)
}

func (f *fixture) userService() *UserService {
	return NewUserService(f.userRepo, f.roleRepo, f.taskRepo, f.store)
}

func (f *fixture) taskService() *TaskService {
	return NewTaskService(f.taskRepo, f.userRepo, f.store)
}

// createUser inserts a user with password "secret" and returns it with the
// role loaded.
func (f *fixture) createUser(t *testing.T, name string, admin bool) *models.User {
	t.Helper()

	digest, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:          name + "@example.com",
		Name:           name,
		PasswordDigest: string(digest),
		AuthToken:      "token-" + name,
	}
	if admin {
		role, err := f.roleRepo.FindByName(string(models.RoleAdmin))
		require.NoError(t, err)
		user.RoleID = &role.ID
	}
	require.NoError(t, f.db.Create(user).Error)

	loaded, err := f.userRepo.FindByID(user.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) createTask(t *testing.T, name string, owner, assignee *models.User, at time.Time) *models.Task {
	t.Helper()

	task := &models.Task{Name: name, State: models.TaskStateTodo, UserID: owner.ID, CreatedAt: at}
	if assignee != nil {
		id := assignee.ID
		task.AssigneeID = &id
	}
	require.NoError(t, f.db.Create(task).Error)
	return task
}

func ptr[T any](v T) *T {
	return &v
}
