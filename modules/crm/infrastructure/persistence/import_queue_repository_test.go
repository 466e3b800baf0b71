//go:build integration

package persistence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
	"github.com/meridianhq/crm-backoffice/modules/crm/infrastructure/persistence"
	"github.com/meridianhq/crm-backoffice/pkg/itf"
)

func queueTask(env *itf.Env) importjob.Task {
	return importjob.Task{
		ID:         uuid.New(),
		JobID:      uuid.New(),
		TenantID:   env.TenantID,
		UserID:     env.UserID,
		EntityKind: "customers",
		FileID:     uuid.New(),
		Columns:    []string{"name"},
		Mappings:   map[string]string{"name": "name"},
		EnqueuedAt: time.Now(),
	}
}

func TestImportQueue_ClaimAckCycle(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	queue := persistence.NewImportQueue()

	task := queueTask(env)
	require.NoError(t, queue.Enqueue(env.Ctx, task))

	depth, err := queue.Depth(env.Ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	claimed, err := queue.Claim(env.Ctx, 10*time.Minute, 3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, task.JobID, claimed.JobID)
	assert.Equal(t, 1, claimed.Attempts, "claim increments attempts")
	assert.Equal(t, task.Mappings, claimed.Mappings)

	// A locked task is invisible to other claimants.
	second, err := queue.Claim(env.Ctx, 10*time.Minute, 3)
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, queue.Ack(env.Ctx, claimed.ID))
	depth, err = queue.Depth(env.Ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth)
}

func TestImportQueue_ReleaseMakesTaskClaimable(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	queue := persistence.NewImportQueue()

	require.NoError(t, queue.Enqueue(env.Ctx, queueTask(env)))
	claimed, err := queue.Claim(env.Ctx, 10*time.Minute, 3)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, queue.Release(env.Ctx, claimed.ID, "transient failure"))
	again, err := queue.Claim(env.Ctx, 10*time.Minute, 3)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Attempts)
}

func TestImportQueue_AttemptsExhausted(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	queue := persistence.NewImportQueue()

	require.NoError(t, queue.Enqueue(env.Ctx, queueTask(env)))
	for i := 0; i < 2; i++ {
		claimed, err := queue.Claim(env.Ctx, 10*time.Minute, 2)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.NoError(t, queue.Release(env.Ctx, claimed.ID, "boom"))
	}

	claimed, err := queue.Claim(env.Ctx, 10*time.Minute, 2)
	require.NoError(t, err)
	assert.Nil(t, claimed, "task over the attempt cap is never handed out")
}

func TestImportQueue_StaleLockReclaimed(t *testing.T) {
	env := itf.Setup(t, persistence.Schema)
	queue := persistence.NewImportQueue()

	require.NoError(t, queue.Enqueue(env.Ctx, queueTask(env)))
	first, err := queue.Claim(env.Ctx, 10*time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, first)

	// With a zero TTL every lock is immediately stale.
	second, err := queue.Claim(env.Ctx, 0, 5)
	require.NoError(t, err)
	require.NotNil(t, second, "abandoned claim is handed out again")
	assert.Equal(t, first.ID, second.ID)
}
