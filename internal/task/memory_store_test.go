package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateActiveIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	first, err := store.GetOrCreateActive(ctx, "14155550100", now)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, first.Status)
	assert.Empty(t, first.Turns)

	second, err := store.GetOrCreateActive(ctx, "14155550100", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := store.GetOrCreateActive(ctx, "14155550199", now)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestAppendTurnsOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	created, err := store.GetOrCreateActive(ctx, "14155550100", now)
	require.NoError(t, err)

	err = store.AppendTurns(ctx, created.ID,
		Turn{Role: RoleUser, Content: "Book a meeting", Timestamp: now, MessageID: "m1", MessageType: "text"},
		Turn{Role: RoleModel, Content: "When?", Timestamp: now},
		now, "")
	require.NoError(t, err)

	err = store.AppendTurns(ctx, created.ID,
		Turn{Role: RoleUser, Content: "Tomorrow at 10", Timestamp: now, MessageID: "m2", MessageType: "text"},
		Turn{Role: RoleModel, Content: "Booked.", Timestamp: now},
		now.Add(time.Second), "")
	require.NoError(t, err)

	got, err := store.GetOrCreateActive(ctx, "14155550100", now)
	require.NoError(t, err)
	require.Len(t, got.Turns, 4)
	assert.Equal(t, "Book a meeting", got.Turns[0].Content)
	assert.Equal(t, "When?", got.Turns[1].Content)
	assert.Equal(t, "Tomorrow at 10", got.Turns[2].Content)
	assert.Equal(t, "Booked.", got.Turns[3].Content)
}

func TestCompletedTaskFreesKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	first, err := store.GetOrCreateActive(ctx, "14155550100", now)
	require.NoError(t, err)

	err = store.AppendTurns(ctx, first.ID,
		Turn{Role: RoleUser, Content: "Yes, confirm", Timestamp: now},
		Turn{Role: RoleModel, Content: "Done!", Timestamp: now},
		now, StatusCompleted)
	require.NoError(t, err)

	next, err := store.GetOrCreateActive(ctx, "14155550100", now.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Empty(t, next.Turns)
}

func TestAppendTurnsUnknownTask(t *testing.T) {
	store := NewMemoryStore()
	err := store.AppendTurns(context.Background(), "task-missing",
		Turn{Role: RoleUser}, Turn{Role: RoleModel}, time.Now(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSameKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := store.GetOrCreateActive(ctx, "14155550100", now)
			require.NoError(t, err)
			ids[i] = got.ID
		}(i)
	}
	wg.Wait()
	for i := 1; i < 8; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}
