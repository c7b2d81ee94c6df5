package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every new connection would open its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Email:          name + "@example.com",
		Name:           name,
		PasswordDigest: "hashed",
		AuthToken:      "token-" + name,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTask(t *testing.T, db *gorm.DB, name string, owner *models.User, assignee *models.User, at time.Time) *models.Task {
	t.Helper()
	task := &models.Task{Name: name, UserID: owner.ID, State: models.TaskStateTodo, CreatedAt: at}
	if assignee != nil {
		id := assignee.ID
		task.AssigneeID = &id
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func TestUserRepository_FindByAuthTokenIsExact(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := createUser(t, db, "alice")

	found, err := repo.FindByAuthToken(user.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByAuthToken("TOKEN-ALICE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_UniquenessIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := createUser(t, db, "alice")

	taken, err := repo.EmailTaken("ALICE@example.com", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.EmailTaken("ALICE@example.com", user.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a user does not conflict with itself")

	taken, err = repo.NameTaken("Alice", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	exists, err := repo.TokenExists(user.AuthToken)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_CreateRejectsDuplicateToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	createUser(t, db, "alice")

	err := repo.Create(&models.User{Email: "b@example.com", Name: "bob", PasswordDigest: "x", AuthToken: "token-alice"})

	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserRepository_DeleteCascadesOwnedAndClearsAssigned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	doomed := createUser(t, db, "doomed")
	other := createUser(t, db, "other")

	now := time.Now()
	owned := createTask(t, db, "A", doomed, nil, now)
	assigned := createTask(t, db, "B", other, doomed, now)

	removed, err := repo.Delete(doomed.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, owned.ID, removed[0].ID)

	err = db.First(&models.Task{}, owned.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var kept models.Task
	require.NoError(t, db.First(&kept, assigned.ID).Error)
	assert.Nil(t, kept.AssigneeID)

	_, err = repo.FindByID(doomed.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_UpdateKeepsToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := createUser(t, db, "alice")

	user.Name = "alicia"
	user.AuthToken = "replaced"
	require.NoError(t, repo.Update(user))

	stored, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", stored.Name)
	assert.Equal(t, "token-alice", stored.AuthToken)
}

func TestUserRepository_UpdateAfterDeleteDoesNotInsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := createUser(t, db, "alice")

	_, err := repo.Delete(user.ID)
	require.NoError(t, err)

	user.Name = "renamed"
	assert.ErrorIs(t, repo.Update(user), gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUserRepository_StoreRejectsCaseVariants(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	createUser(t, db, "bob")

	err := repo.Create(&models.User{Email: "other@example.com", Name: "Bob", PasswordDigest: "x", AuthToken: "t1"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	err = repo.Create(&models.User{Email: "BOB@example.com", Name: "robert", PasswordDigest: "x", AuthToken: "t2"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserRepository_ListByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	createUser(t, db, "zed")
	createUser(t, db, "amy")

	users, err := repo.ListByName()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "amy", users[0].Name)
}

func TestRoleRepository_FindByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoleRepository(db)

	role, err := repo.FindByName("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleAdmin), role.Name)

	roles, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestTaskRepository_CreateRollsBackWhenAfterCreateFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, db, "owner")

	task := &models.Task{Name: "with attachment", UserID: owner.ID}
	err := repo.Create(task, func(*models.Task) error { return errors.New("upload failed") })
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTaskRepository_CreateSavesAfterCreateChanges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, db, "owner")

	task := &models.Task{Name: "with attachment", UserID: owner.ID}
	require.NoError(t, repo.Create(task, func(task *models.Task) error {
		task.AttachmentKey = fmt.Sprintf("uploads/task/attachment/%d/a.txt", task.ID)
		return nil
	}))

	stored, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateTodo, stored.State)
	assert.Equal(t, task.AttachmentKey, stored.AttachmentKey)
}

func TestTaskRepository_ListAppliesScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, db, "owner")
	other := createUser(t, db, "other")

	base := time.Now().Add(-time.Hour)
	createTask(t, db, "A", owner, nil, base)
	createTask(t, db, "B", other, owner, base.Add(time.Minute))
	createTask(t, db, "C", other, nil, base.Add(2*time.Minute))

	tasks, total, err := repo.List(TaskFilter{Scope: policy.TaskScope{SubjectID: owner.ID}, Preload: []string{"User"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "B", tasks[0].Name)
	assert.Equal(t, "other", tasks[0].User.Name)
	assert.Equal(t, "A", tasks[1].Name)

	page := utils.NewPaginationParams(1, 2)
	tasks, total, err = repo.List(TaskFilter{Scope: policy.TaskScope{All: true}, Pagination: &page})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, tasks, 2)
	assert.Equal(t, "C", tasks[0].Name)
}

func TestTaskRepository_AdvanceStateCycles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, db, "owner")
	task := createTask(t, db, "A", owner, nil, time.Now())

	want := []models.TaskState{models.TaskStateStarted, models.TaskStateFinished, models.TaskStateTodo}
	for _, state := range want {
		require.NoError(t, repo.AdvanceState(task))
		assert.Equal(t, state, task.State)

		stored, err := repo.FindByID(task.ID)
		require.NoError(t, err)
		assert.Equal(t, state, stored.State)
	}
}

func TestTaskRepository_AdvanceStateFromStaleCopy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	owner := createUser(t, db, "owner")
	task := createTask(t, db, "A", owner, nil, time.Now())

	stale := *task
	require.NoError(t, repo.AdvanceState(task))

	// The stale copy still believes the task is todo; the swap must build on
	// the persisted state instead of overwriting it.
	require.NoError(t, repo.AdvanceState(&stale))
	assert.Equal(t, models.TaskStateFinished, stale.State)
}

func TestTaskRepository_DeleteMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)

	assert.ErrorIs(t, repo.Delete(404), gorm.ErrRecordNotFound)
}
