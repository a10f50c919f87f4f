package logger

import (
	"context"

	"kopikita-be/internal/utils"

	"go.uber.org/zap"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// contextFields collects the request id and the authenticated caller.
func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if reqID := RequestIDFrom(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if userID, ok := utils.GetUserIDFromContext(ctx); ok {
		fields = append(fields, zap.Uint("user_id", userID))
	}
	if role := utils.GetUserRoleFromContext(ctx); role != "" {
		fields = append(fields, zap.String("role", role))
	}
	return fields
}

// FromCtx returns the global logger tagged with request and caller fields found in ctx.
func FromCtx(ctx context.Context) *zap.Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}
