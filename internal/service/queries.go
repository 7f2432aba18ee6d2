package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/repository"
)

// QueryService manages task queries and superior replies.
type QueryService interface {
	List(ctx context.Context, p model.Principal, status string) ([]model.Query, error)
	Raise(ctx context.Context, p model.Principal, q model.NewQuery) (model.Query, error)
	Replies(ctx context.Context, p model.Principal, queryID int64) ([]model.QueryReply, error)
	// Reply answers a query and resolves it. Superiors only.
	Reply(ctx context.Context, p model.Principal, r model.NewReply) (model.QueryReply, error)
}

type QueryServiceImpl struct {
	queries repository.QueryRepository
}

func NewQueryService(queries repository.QueryRepository) *QueryServiceImpl {
	return &QueryServiceImpl{queries: queries}
}

func (s *QueryServiceImpl) List(ctx context.Context, _ model.Principal, status string) ([]model.Query, error) {
	switch status {
	case "", model.QueryOpen, model.QueryResolved:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, errs.ErrValidation)
	}
	return s.queries.List(ctx, status)
}

func (s *QueryServiceImpl) Raise(ctx context.Context, p model.Principal, q model.NewQuery) (model.Query, error) {
	q.Subject = strings.TrimSpace(q.Subject)
	if q.TaskID <= 0 {
		return model.Query{}, fmt.Errorf("taskId is required: %w", errs.ErrValidation)
	}
	if q.Subject == "" {
		return model.Query{}, fmt.Errorf("subject is required: %w", errs.ErrValidation)
	}
	if q.RaisedBy == 0 {
		q.RaisedBy = p.UserID
	}
	if !p.IsSuperior() && q.RaisedBy != p.UserID {
		return model.Query{}, errs.ErrForbidden
	}
	return s.queries.Create(ctx, q)
}

func (s *QueryServiceImpl) Replies(ctx context.Context, _ model.Principal, queryID int64) ([]model.QueryReply, error) {
	if queryID < 0 {
		return nil, fmt.Errorf("invalid queryId: %w", errs.ErrValidation)
	}
	return s.queries.Replies(ctx, queryID)
}

func (s *QueryServiceImpl) Reply(ctx context.Context, p model.Principal, r model.NewReply) (model.QueryReply, error) {
	if !p.IsSuperior() {
		return model.QueryReply{}, errs.ErrForbidden
	}
	r.Message = strings.TrimSpace(r.Message)
	if r.QueryID <= 0 || r.Message == "" {
		return model.QueryReply{}, fmt.Errorf("queryId and message are required: %w", errs.ErrValidation)
	}
	r.RepliedBy = p.UserID
	return s.queries.Reply(ctx, r)
}
