package taskmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []TaskStatus
}

func (r *recordingNotifier) SendToUser(userID, messageType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, payload.(Task).Status)
}

func waitFinished(t *testing.T, m *Manager, id uuid.UUID) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		var err error
		task, err = m.Get(id)
		return err == nil && task.Status.Finished()
	}, time.Second, 5*time.Millisecond)
	return task
}

func TestSubmitCompletes(t *testing.T) {
	m := New(Config{MaxTasks: 2})
	n := &recordingNotifier{}
	m.SetNotifier(n)

	id, err := m.Submit(context.Background(), "story-1", "user-1", func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)

	task := waitFinished(t, m, id)
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, 42, task.Result)
	_, busy := m.ActiveForKey("story-1")
	assert.False(t, busy)

	assert.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.statuses) == 2 && n.statuses[0] == TaskStatusRunning && n.statuses[1] == TaskStatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestOneActiveTaskPerKey(t *testing.T) {
	m := New(Config{MaxTasks: 5})
	release := make(chan struct{})
	id, err := m.Submit(context.Background(), "story-1", "", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), "story-1", "", func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrKeyBusy)

	close(release)
	waitFinished(t, m, id)
	_, err = m.Submit(context.Background(), "story-1", "", func(ctx context.Context) (any, error) { return nil, nil })
	assert.NoError(t, err)
}

func TestCancelKey(t *testing.T) {
	m := New(Config{})
	id, err := m.Submit(context.Background(), "story-1", "", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	cancelled, err := m.CancelKey("story-1")
	require.NoError(t, err)
	assert.Equal(t, id, cancelled)

	task := waitFinished(t, m, id)
	assert.Equal(t, TaskStatusCancelled, task.Status)
	assert.True(t, errors.Is(task.Err, context.Canceled))
	assert.ErrorIs(t, m.Cancel(id), ErrTaskFinished)
}

func TestMaxTasks(t *testing.T) {
	m := New(Config{MaxTasks: 1})
	release := make(chan struct{})
	defer close(release)
	_, err := m.Submit(context.Background(), "a", "", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	_, err = m.Submit(context.Background(), "b", "", func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrTooManyTasks)
}

func TestShutdownCancelsStragglers(t *testing.T) {
	m := New(Config{})
	id, err := m.Submit(context.Background(), "k", "", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)

	task, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCancelled, task.Status)

	_, err = m.Submit(context.Background(), "k2", "", func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Equal(t, 0, m.Cleanup(time.Hour))
}
