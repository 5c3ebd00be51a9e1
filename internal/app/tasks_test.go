package app_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsals/searchcoachdeploy/internal/app"
)

func TestTaskQueueRunsInSubmissionOrder(t *testing.T) {
	queue := app.NewTaskQueue(2, quietLogger())
	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, queue.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	queue.Close()

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestTaskQueueRejectsAfterClose(t *testing.T) {
	queue := app.NewTaskQueue(1, quietLogger())
	queue.Close()
	err := queue.Submit(context.Background(), func(context.Context) {})
	require.ErrorIs(t, err, app.ErrQueueClosed)
}

func TestTaskQueueSurvivesPanickingTask(t *testing.T) {
	queue := app.NewTaskQueue(2, quietLogger())
	ran := false
	require.NoError(t, queue.Submit(context.Background(), func(context.Context) { panic("boom") }))
	require.NoError(t, queue.Submit(context.Background(), func(context.Context) { ran = true }))
	queue.Close()
	require.True(t, ran)
}
