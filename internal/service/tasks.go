package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/repository"
)

const maxEstimatedHours = 1000

// TaskService manages tasks and first-start assignments.
type TaskService interface {
	List(ctx context.Context, p model.Principal) ([]model.Task, error)
	Create(ctx context.Context, p model.Principal, t model.NewTask) (model.Task, error)
	// Assign records that userID started taskID. Employees may only register themselves.
	Assign(ctx context.Context, p model.Principal, taskID, userID int64) (model.Assignment, error)
}

type TaskServiceImpl struct {
	tasks repository.TaskRepository
}

func NewTaskService(tasks repository.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks}
}

func (s *TaskServiceImpl) List(ctx context.Context, _ model.Principal) ([]model.Task, error) {
	return s.tasks.List(ctx)
}

func (s *TaskServiceImpl) Create(ctx context.Context, p model.Principal, t model.NewTask) (model.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return model.Task{}, fmt.Errorf("title is required: %w", errs.ErrValidation)
	}
	if math.IsNaN(t.EstimatedHours) || t.EstimatedHours < 0 || t.EstimatedHours > maxEstimatedHours {
		return model.Task{}, fmt.Errorf("estimated hours must be within 0..%d: %w", maxEstimatedHours, errs.ErrValidation)
	}
	if t.AssignedBy == 0 {
		t.AssignedBy = p.UserID
	}
	return s.tasks.Create(ctx, t)
}

func (s *TaskServiceImpl) Assign(ctx context.Context, p model.Principal, taskID, userID int64) (model.Assignment, error) {
	if taskID <= 0 || userID <= 0 {
		return model.Assignment{}, fmt.Errorf("taskId and userId are required: %w", errs.ErrValidation)
	}
	if !p.IsSuperior() && userID != p.UserID {
		return model.Assignment{}, errs.ErrForbidden
	}
	return s.tasks.Assign(ctx, taskID, userID)
}
