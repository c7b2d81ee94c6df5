package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/taskboard/internal/models"
)

func TestTaskScopeFor(t *testing.T) {
	admin := adminUser(1)
	alice := plainUser(2)

	assert.Equal(t, TaskScope{All: true}, TaskScopeFor(admin, admin))
	assert.Equal(t, TaskScope{SubjectID: alice.ID}, TaskScopeFor(admin, alice))
	assert.Equal(t, TaskScope{SubjectID: admin.ID}, TaskScopeFor(alice, admin))
	assert.Equal(t, TaskScope{SubjectID: alice.ID}, TaskScopeFor(alice, alice))
	assert.Equal(t, TaskScope{SubjectID: alice.ID}, TaskScopeFor(nil, alice))
}

func TestTaskScope_Includes(t *testing.T) {
	aliceID := uint64(2)
	owned := &models.Task{UserID: aliceID}
	assigned := &models.Task{UserID: 5, AssigneeID: &aliceID}
	unrelated := &models.Task{UserID: 5}

	scope := TaskScope{SubjectID: aliceID}
	assert.True(t, scope.Includes(owned))
	assert.True(t, scope.Includes(assigned))
	assert.False(t, scope.Includes(unrelated))

	all := TaskScope{All: true}
	assert.True(t, all.Includes(unrelated))

	assert.False(t, TaskScope{}.Includes(owned))
}
