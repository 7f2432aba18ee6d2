package httpapi

import (
	"context"

	"github.com/and161185/tasktime/internal/model"
)

type ctxKey string

const (
	principalKey ctxKey = "tt.principal"
	requestKey   ctxKey = "tt.request"
)

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok {
		info.userID = p.UserID
	}
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the authenticated caller from context.
func PrincipalFromCtx(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok && p.UserID > 0
}

// requestInfo is shared by the outer middlewares and filled in further down the chain.
type requestInfo struct {
	id     string
	userID int64
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestKey, info)
}

// RequestIDFromCtx returns the id assigned by the RequestID middleware.
func RequestIDFromCtx(ctx context.Context) string {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

func userIDFromInfo(ctx context.Context) int64 {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok {
		return info.userID
	}
	return 0
}
