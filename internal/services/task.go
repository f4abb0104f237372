package services

import (
	"context"
	"log/slog"

	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context) ([]types.Task, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, fields types.TaskFields) (types.Task, error)
	Update(ctx context.Context, id int, update types.TaskUpdate) (types.Task, error)
	Delete(ctx context.Context, id int) (types.Task, error)
}

// TaskService encapsulates task use-cases.
type TaskService struct {
	repo   TaskRepository
	events EventPublisher
	log    *slog.Logger
}

func NewTaskService(repo TaskRepository, pub EventPublisher, log *slog.Logger) *TaskService {
	return &TaskService{repo: repo, events: pub, log: log}
}

func (s *TaskService) List(ctx context.Context) ([]types.Task, error) {
	return s.repo.List(ctx)
}

func (s *TaskService) Get(ctx context.Context, id int) (types.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) Create(ctx context.Context, fields types.TaskFields) (types.Task, error) {
	task, err := s.repo.Create(ctx, fields)
	if err != nil {
		return types.Task{}, err
	}
	publish(ctx, s.log, s.events, events.TypeTaskCreated, task)
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, id int, update types.TaskUpdate) (types.Task, error) {
	task, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return types.Task{}, err
	}
	publish(ctx, s.log, s.events, events.TypeTaskUpdated, task)
	return task, nil
}

// Delete removes a task and returns its fields without the id.
func (s *TaskService) Delete(ctx context.Context, id int) (types.TaskFields, error) {
	task, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.TaskFields{}, err
	}
	publish(ctx, s.log, s.events, events.TypeTaskDeleted, map[string]int{"id": task.ID})
	return task.Fields(), nil
}
