package agent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/tasktime/internal/convert"
	"github.com/and161185/tasktime/internal/timer"
)

// Client talks to a running agent.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to the agent at addr. The agent only listens on loopback, so the
// connection is plaintext. The connection is lazy; errors surface on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) call(ctx context.Context, method string, in proto.Message) (timer.Status, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return timer.Status{}, fromStatus(method, err)
	}
	return convert.StatusFromProto(out)
}

func id(v int64) *wrapperspb.Int64Value { return wrapperspb.Int64(v) }

// Status returns the agent's current status.
func (c *Client) Status(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodStatus, &emptypb.Empty{})
}

// LoadUser switches the agent to userID.
func (c *Client) LoadUser(ctx context.Context, userID int64) (timer.Status, error) {
	return c.call(ctx, MethodLoadUser, id(userID))
}

// StartTask starts taskID.
func (c *Client) StartTask(ctx context.Context, taskID int64) (timer.Status, error) {
	return c.call(ctx, MethodStartTask, id(taskID))
}

// PauseTask pauses the active task.
func (c *Client) PauseTask(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodPauseTask, &emptypb.Empty{})
}

// ResumeTask resumes the active task.
func (c *Client) ResumeTask(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodResumeTask, &emptypb.Empty{})
}

// StopTask stops taskID if active.
func (c *Client) StopTask(ctx context.Context, taskID int64) (timer.Status, error) {
	return c.call(ctx, MethodStopTask, id(taskID))
}

// StartBreak opens a break.
func (c *Client) StartBreak(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodStartBreak, &emptypb.Empty{})
}

// PauseBreak pauses the break.
func (c *Client) PauseBreak(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodPauseBreak, &emptypb.Empty{})
}

// ResumeBreak resumes the break.
func (c *Client) ResumeBreak(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodResumeBreak, &emptypb.Empty{})
}

// StopBreak closes the break.
func (c *Client) StopBreak(ctx context.Context) (timer.Status, error) {
	return c.call(ctx, MethodStopBreak, &emptypb.Empty{})
}

// Events calls fn for every event until ctx ends, the stream closes or fn returns an
// error. A cancelled ctx is not an error.
func (c *Client) Events(ctx context.Context, fn func(timer.Event) error) error {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodEvents))
	if err != nil {
		return fromStatus(MethodEvents, err)
	}
	s := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := s.Send(&emptypb.Empty{}); err != nil {
		return fromStatus(MethodEvents, err)
	}
	if err := s.CloseSend(); err != nil {
		return fromStatus(MethodEvents, err)
	}
	for {
		msg, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fromStatus(MethodEvents, err)
		}
		e, err := convert.EventFromProto(msg)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
