package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/repository"
)

type fakeTasks struct {
	created  []model.NewTask
	assigned [][2]int64
	err      error
}

var _ repository.TaskRepository = (*fakeTasks)(nil)

func (f *fakeTasks) Create(_ context.Context, t model.NewTask) (model.Task, error) {
	if f.err != nil {
		return model.Task{}, f.err
	}
	f.created = append(f.created, t)
	return model.Task{ID: int64(len(f.created)), Title: t.Title, Description: t.Description,
		EstimatedHours: t.EstimatedHours, AssignedBy: t.AssignedBy, IsPublic: true, CreatedAt: time.Now()}, nil
}
func (f *fakeTasks) Get(_ context.Context, id int64) (*model.Task, error) {
	if id <= 0 || int(id) > len(f.created) {
		return nil, errs.ErrNotFound
	}
	return &model.Task{ID: id, Title: f.created[id-1].Title}, nil
}
func (f *fakeTasks) List(context.Context) ([]model.Task, error) {
	out := make([]model.Task, 0, len(f.created))
	for i, t := range f.created {
		out = append(out, model.Task{ID: int64(i + 1), Title: t.Title})
	}
	return out, f.err
}
func (f *fakeTasks) Assign(_ context.Context, taskID, userID int64) (model.Assignment, error) {
	if f.err != nil {
		return model.Assignment{}, f.err
	}
	f.assigned = append(f.assigned, [2]int64{taskID, userID})
	return model.Assignment{ID: int64(len(f.assigned)), TaskID: taskID, UserID: userID}, nil
}

var (
	employee = model.Principal{UserID: 42, Role: model.RoleEmployee}
	superior = model.Principal{UserID: 1, Role: model.RoleSuperior}
)

func TestTasks_CreateValidation(t *testing.T) {
	t.Parallel()
	repo := &fakeTasks{}
	s := NewTaskService(repo)
	ctx := context.Background()

	for _, nt := range []model.NewTask{
		{Title: "  "},
		{Title: "x", EstimatedHours: -1},
		{Title: "x", EstimatedHours: 1000.5},
	} {
		if _, err := s.Create(ctx, superior, nt); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Create(%+v): want ErrValidation, got %v", nt, err)
		}
	}

	got, err := s.Create(ctx, superior, model.NewTask{Title: " Write report ", EstimatedHours: 2.5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Title != "Write report" || got.AssignedBy != superior.UserID {
		t.Fatalf("unexpected task: %+v", got)
	}

	if _, err := s.Create(ctx, employee, model.NewTask{Title: "y", AssignedBy: 5}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.created[1].AssignedBy != 5 {
		t.Fatalf("explicit assignedBy overwritten: %+v", repo.created[1])
	}

	list, err := s.List(ctx, employee)
	if err != nil || len(list) != 2 {
		t.Fatalf("List: %v %v", list, err)
	}
}

func TestTasks_Assign(t *testing.T) {
	t.Parallel()
	repo := &fakeTasks{}
	s := NewTaskService(repo)
	ctx := context.Background()

	if _, err := s.Assign(ctx, employee, 0, 42); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if _, err := s.Assign(ctx, employee, 5, 43); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden for another user, got %v", err)
	}
	a, err := s.Assign(ctx, employee, 5, 42)
	if err != nil || a.TaskID != 5 || a.UserID != 42 {
		t.Fatalf("Assign: %+v %v", a, err)
	}
	if _, err := s.Assign(ctx, superior, 5, 43); err != nil {
		t.Fatalf("superior Assign: %v", err)
	}
	if len(repo.assigned) != 2 {
		t.Fatalf("want 2 assignments, got %v", repo.assigned)
	}

	repo.err = errs.ErrNotFound
	if _, err := s.Assign(ctx, employee, 99, 42); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want propagated ErrNotFound, got %v", err)
	}
}
