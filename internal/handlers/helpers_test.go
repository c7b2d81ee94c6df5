package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db          *gorm.DB
	fs          afero.Fs
	router      *gin.Engine
	authService *services.AuthService
	userService *services.UserService
	taskService *services.TaskService
	roleRepo    repository.RoleRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	store := storage.NewFSStore(fs, "/uploads")
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	env := &testEnv{
		db:          db,
		fs:          fs,
		authService: services.NewAuthService(userRepo),
		userService: services.NewUserService(userRepo, roleRepo, taskRepo, store),
		taskService: services.NewTaskService(taskRepo, userRepo, store),
		roleRepo:    roleRepo,
	}

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.Use(middleware.ResolveActor(env.authService))
	env.router = r
	return env
}

// createUser inserts a user with password "secret".
func (e *testEnv) createUser(t *testing.T, name string, admin bool) *models.User {
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
		role, err := e.roleRepo.FindByName(string(models.RoleAdmin))
		require.NoError(t, err)
		user.RoleID = &role.ID
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createTask(t *testing.T, name string, owner, assignee *models.User) *models.Task {
	t.Helper()

	task := &models.Task{Name: name, State: models.TaskStateTodo, UserID: owner.ID}
	if assignee != nil {
		id := assignee.ID
		task.AssigneeID = &id
	}
	require.NoError(t, e.db.Create(task).Error)
	return task
}

// do sends a request authenticated by user's token, or anonymously when
// user is nil. A non-nil body is sent as JSON.
func (e *testEnv) do(t *testing.T, method, path string, user *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set(constants.HeaderAuthentication, user.AuthToken)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details"`
}

