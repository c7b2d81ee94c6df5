package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every new connection would open its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, Migrate(db))
	return db
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(&config.Config{DBDriver: driver, DBName: "tasks"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestEnsureRoles_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, EnsureRoles(db))
	require.NoError(t, EnsureRoles(db))

	var count int64
	require.NoError(t, db.Model(&models.Role{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.RoleNames)), count)
}

func TestMigrate_LowerIndexes(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Migrate(db))

	for _, idx := range lowerIndexes {
		assert.True(t, db.Migrator().HasIndex(&models.User{}, idx.name), idx.name)
	}
}

func TestVisibleTasksAndOrdering(t *testing.T) {
	db := setupTestDB(t)

	owner := models.User{Email: "o@example.com", Name: "owner", PasswordDigest: "x", AuthToken: "t1"}
	other := models.User{Email: "x@example.com", Name: "other", PasswordDigest: "x", AuthToken: "t2"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&other).Error)

	base := time.Now().Add(-time.Hour)
	ownerID := owner.ID
	a := models.Task{Name: "A", UserID: owner.ID, State: models.TaskStateTodo, CreatedAt: base}
	b := models.Task{Name: "B", UserID: other.ID, AssigneeID: &ownerID, State: models.TaskStateTodo, CreatedAt: base.Add(time.Minute)}
	c := models.Task{Name: "C", UserID: other.ID, State: models.TaskStateTodo, CreatedAt: base.Add(2 * time.Minute)}
	for _, task := range []*models.Task{&a, &b, &c} {
		require.NoError(t, db.Create(task).Error)
	}

	var scoped []models.Task
	require.NoError(t, db.Model(&models.Task{}).
		Scopes(VisibleTasks(policy.TaskScope{SubjectID: owner.ID}), OrderedTasks).
		Find(&scoped).Error)
	require.Len(t, scoped, 2)
	assert.Equal(t, []string{"B", "A"}, []string{scoped[0].Name, scoped[1].Name})

	var all []models.Task
	require.NoError(t, db.Model(&models.Task{}).
		Scopes(VisibleTasks(policy.TaskScope{All: true}), OrderedTasks).
		Find(&all).Error)
	assert.Equal(t, []string{"C", "B", "A"}, []string{all[0].Name, all[1].Name, all[2].Name})

	var page []models.Task
	require.NoError(t, db.Model(&models.Task{}).
		Scopes(OrderedTasks, Paginate(utils.NewPaginationParams(2, 2))).
		Find(&page).Error)
	require.Len(t, page, 1)
	assert.Equal(t, "A", page[0].Name)
}

func TestOrderedTasks_TiesKeepInsertionOrder(t *testing.T) {
	db := setupTestDB(t)

	owner := models.User{Email: "o@example.com", Name: "owner", PasswordDigest: "x", AuthToken: "t1"}
	require.NoError(t, db.Create(&owner).Error)

	same := time.Now().Truncate(time.Second)
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, db.Create(&models.Task{Name: name, UserID: owner.ID, State: models.TaskStateTodo, CreatedAt: same}).Error)
	}

	var tasks []models.Task
	require.NoError(t, db.Scopes(OrderedTasks).Find(&tasks).Error)
	assert.Equal(t, []string{"third", "second", "first"}, []string{tasks[0].Name, tasks[1].Name, tasks[2].Name})
}
