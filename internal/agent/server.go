package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/tasktime/internal/convert"
	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/timer"
)

// Controller is the subset of *timer.Controller the agent drives.
type Controller interface {
	LoadForUser(ctx context.Context, userID int64, today string) error
	PersistForUser(ctx context.Context, userID int64) error
	UserID() int64
	Today() string
	Status() timer.Status
	StartTask(ctx context.Context, taskID int64) error
	PauseTask(ctx context.Context) error
	ResumeTask(ctx context.Context) error
	StopTask(ctx context.Context, taskID int64) error
	StartBreak(ctx context.Context) error
	PauseBreak(ctx context.Context) error
	ResumeBreak(ctx context.Context) error
	StopBreak(ctx context.Context) error
}

const eventBuffer = 32

// Server implements TimerServer over a Controller.
type Server struct {
	ctrl Controller
	hub  *Hub
	log  *zap.Logger
}

// NewServer wires a Server. hub must be the controller's notifier for Events to work.
func NewServer(ctrl Controller, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ctrl: ctrl, hub: hub, log: log}
}

// reply runs op and answers with the resulting status.
func (s *Server) reply(op func() error) (*structpb.Struct, error) {
	if err := op(); err != nil {
		return nil, toStatus(err)
	}
	st, err := convert.StatusToProto(s.ctrl.Status())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

func taskID(in *wrapperspb.Int64Value) (int64, error) {
	if in.GetValue() <= 0 {
		return 0, fmt.Errorf("task id must be positive: %w", errs.ErrValidation)
	}
	return in.GetValue(), nil
}

// Status returns the current status.
func (s *Server) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return nil })
}

// LoadUser persists the current user, if any, and switches to another one.
func (s *Server) LoadUser(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return s.reply(func() error {
		id := in.GetValue()
		if id <= 0 {
			return fmt.Errorf("user id must be positive: %w", errs.ErrValidation)
		}
		if cur := s.ctrl.UserID(); cur != 0 {
			if cur == id {
				return nil
			}
			if err := s.ctrl.PersistForUser(ctx, cur); err != nil {
				return err
			}
		}
		s.log.Info("loading user", zap.Int64("user_id", id))
		return s.ctrl.LoadForUser(ctx, id, s.ctrl.Today())
	})
}

// StartTask starts a task.
func (s *Server) StartTask(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return s.reply(func() error {
		id, err := taskID(in)
		if err != nil {
			return err
		}
		return s.ctrl.StartTask(ctx, id)
	})
}

// PauseTask pauses the active task.
func (s *Server) PauseTask(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.PauseTask(ctx) })
}

// ResumeTask resumes the active task.
func (s *Server) ResumeTask(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.ResumeTask(ctx) })
}

// StopTask stops a task if it is active.
func (s *Server) StopTask(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return s.reply(func() error {
		id, err := taskID(in)
		if err != nil {
			return err
		}
		return s.ctrl.StopTask(ctx, id)
	})
}

// StartBreak opens a break.
func (s *Server) StartBreak(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.StartBreak(ctx) })
}

// PauseBreak pauses the break.
func (s *Server) PauseBreak(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.PauseBreak(ctx) })
}

// ResumeBreak resumes the break.
func (s *Server) ResumeBreak(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.ResumeBreak(ctx) })
}

// StopBreak closes the break.
func (s *Server) StopBreak(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(func() error { return s.ctrl.StopBreak(ctx) })
}

// Events replays the remembered events, then streams new ones until the client goes away.
func (s *Server) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "events not enabled")
	}
	past, ch, cancel := s.hub.SubscribeWithHistory(eventBuffer)
	defer cancel()
	send := func(e timer.Event) error {
		msg, err := convert.EventToProto(e)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		return stream.Send(msg)
	}
	for _, e := range past {
		if err := send(e); err != nil {
			return err
		}
	}
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := send(e); err != nil {
				return err
			}
		}
	}
}
