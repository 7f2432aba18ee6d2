package agent

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/timer"
)

// ErrUnavailable is returned by Client when the agent cannot be reached.
var ErrUnavailable = errors.New("agent unavailable")

// toStatus maps controller errors onto gRPC codes. Precondition failures carry the
// sentinel text so the client can restore them.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, p := range errs.Preconditions {
		if errors.Is(err, p) {
			return status.Error(codes.FailedPrecondition, p.Error())
		}
	}
	switch {
	case errors.Is(err, timer.ErrNotLoaded):
		return status.Error(codes.FailedPrecondition, timer.ErrNotLoaded.Error())
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus reverses toStatus on the client side.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		for _, p := range errs.Preconditions {
			if st.Message() == p.Error() {
				return p
			}
		}
		if st.Message() == timer.ErrNotLoaded.Error() {
			return timer.ErrNotLoaded
		}
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), errs.ErrValidation)
	case codes.Unavailable:
		return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, st.Message())
	}
	return fmt.Errorf("%s: %s: %s", op, st.Code(), st.Message())
}
