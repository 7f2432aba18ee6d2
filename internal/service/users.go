package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/repository"
)

// UserService exposes the superior-only directory and overview.
type UserService interface {
	ListUsers(ctx context.Context, p model.Principal, role model.Role) ([]model.User, error)
	Stats(ctx context.Context, p model.Principal) (model.Stats, error)
}

type UserServiceImpl struct {
	users repository.UserRepository
	stats repository.StatsRepository
	loc   *time.Location
	now   func() time.Time
}

// NewUserService builds a UserService; "today" for stats is computed in loc.
func NewUserService(users repository.UserRepository, stats repository.StatsRepository, loc *time.Location) *UserServiceImpl {
	if loc == nil {
		loc = time.Local
	}
	return &UserServiceImpl{users: users, stats: stats, loc: loc, now: time.Now}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, p model.Principal, role model.Role) ([]model.User, error) {
	if !p.IsSuperior() {
		return nil, errs.ErrForbidden
	}
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, errs.ErrValidation)
	}
	return s.users.List(ctx, role)
}

func (s *UserServiceImpl) Stats(ctx context.Context, p model.Principal) (model.Stats, error) {
	if !p.IsSuperior() {
		return model.Stats{}, errs.ErrForbidden
	}
	n := s.now().In(s.loc)
	dayStart := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	return s.stats.Stats(ctx, dayStart)
}
