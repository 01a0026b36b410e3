package taskmanager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTooManyTasks = errors.New("too many active tasks")
	ErrTaskFinished = errors.New("task already finished")
	ErrKeyBusy      = errors.New("a task for this key is already active")
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// TaskStatus — состояние задачи.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Finished сообщает, что статус конечный.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskFunc — работа, выполняемая задачей. ctx отменяется через Cancel, CancelKey или Shutdown.
type TaskFunc func(ctx context.Context) (any, error)

// Task — снимок состояния задачи.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	Key       string     `json:"key"`
	OwnerID   string     `json:"ownerId"`
	Status    TaskStatus `json:"status"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Err       error      `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Notifier получает каждое изменение статуса задачи, у которой есть владелец.
type Notifier interface {
	SendToUser(userID, messageType string, payload any)
}

type task struct {
	Task
	cancel context.CancelFunc
}

// Manager управляет фоновыми задачами по ключам. На один ключ активна не более чем одна задача.
type Manager struct {
	mu        sync.RWMutex
	tasks     map[uuid.UUID]*task
	activeKey map[string]uuid.UUID
	maxTasks  int
	notifier  Notifier
	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// Config — настройки Manager.
type Config struct {
	MaxTasks int
}

func New(cfg Config) *Manager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &Manager{
		tasks:     make(map[uuid.UUID]*task),
		activeKey: make(map[string]uuid.UUID),
		maxTasks:  maxTasks,
		closing:   make(chan struct{}),
	}
}

// SetNotifier устанавливает получателя изменений статуса.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// Submit запускает fn в фоне. Контекст задачи отвязан от ctx,
// но несёт его zerolog логгер.
func (m *Manager) Submit(ctx context.Context, key, ownerID string, fn TaskFunc) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.closing:
		return uuid.Nil, ErrShuttingDown
	default:
	}
	if key != "" {
		if _, busy := m.activeKey[key]; busy {
			return uuid.Nil, ErrKeyBusy
		}
	}
	active := 0
	for _, t := range m.tasks {
		if !t.Status.Finished() {
			active++
		}
	}
	if active >= m.maxTasks {
		return uuid.Nil, ErrTooManyTasks
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	taskCtx := log.Ctx(ctx).WithContext(baseCtx)

	now := time.Now()
	t := &task{
		Task: Task{
			ID:        uuid.New(),
			Key:       key,
			OwnerID:   ownerID,
			Status:    TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	m.tasks[t.ID] = t
	if key != "" {
		m.activeKey[key] = t.ID
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(taskCtx, t, fn)
	}()
	return t.ID, nil
}

func (m *Manager) run(ctx context.Context, t *task, fn TaskFunc) {
	m.update(ctx, t, TaskStatusRunning, nil, nil)

	result, err := fn(ctx)
	switch {
	case err == nil:
		log.Ctx(ctx).Info().Str("taskID", t.ID.String()).Msg("Task completed")
		m.update(ctx, t, TaskStatusCompleted, result, nil)
	case errors.Is(ctx.Err(), context.Canceled):
		log.Ctx(ctx).Info().Str("taskID", t.ID.String()).Msg("Task cancelled")
		m.update(ctx, t, TaskStatusCancelled, nil, err)
	default:
		log.Ctx(ctx).Error().Err(err).Str("taskID", t.ID.String()).Msg("Task failed")
		m.update(ctx, t, TaskStatusFailed, nil, err)
	}
}

func (m *Manager) update(ctx context.Context, t *task, status TaskStatus, result any, err error) {
	m.mu.Lock()
	t.Status = status
	t.Result = result
	t.Err = err
	if err != nil {
		t.Error = err.Error()
	}
	t.UpdatedAt = time.Now()
	if status.Finished() && t.Key != "" && m.activeKey[t.Key] == t.ID {
		delete(m.activeKey, t.Key)
	}
	snapshot := t.Task
	notifier := m.notifier
	m.mu.Unlock()

	if notifier != nil && snapshot.OwnerID != "" {
		notifier.SendToUser(snapshot.OwnerID, "task_update", snapshot)
	}
	log.Ctx(ctx).Debug().
		Str("taskID", snapshot.ID.String()).
		Str("status", string(status)).
		Msg("Task status updated")
}

// Get возвращает копию задачи.
func (m *Manager) Get(id uuid.UUID) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t.Task, nil
}

// Cancel отменяет выполняющуюся задачу. Итоговый статус выставляется, когда функция задачи вернётся;
// задача, успевшая зафиксировать результат, остаётся completed.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.Finished() {
		return ErrTaskFinished
	}
	t.cancel()
	return nil
}

// CancelKey отменяет активную задачу по ключу, если она есть.
func (m *Manager) CancelKey(key string) (uuid.UUID, error) {
	m.mu.RLock()
	id, ok := m.activeKey[key]
	m.mu.RUnlock()
	if !ok {
		return uuid.Nil, ErrTaskNotFound
	}
	return id, m.Cancel(id)
}

// ActiveForKey возвращает ID активной задачи по ключу.
func (m *Manager) ActiveForKey(key string) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.activeKey[key]
	return id, ok
}

// Cleanup удаляет завершённые задачи старше age.
func (m *Manager) Cleanup(age time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	now := time.Now()
	for id, t := range m.tasks {
		if t.Status.Finished() && now.Sub(t.UpdatedAt) > age {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Shutdown перестаёт принимать задачи и ждёт выполняющиеся, пока не истечёт ctx,
// затем отменяет оставшиеся.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.closing) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.mu.RLock()
		for _, t := range m.tasks {
			if !t.Status.Finished() {
				t.cancel()
			}
		}
		m.mu.RUnlock()
		<-done
		return ctx.Err()
	}
}
