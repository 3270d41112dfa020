package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated caller's id, set by the
	// auth middleware and read by rate-limit key extractors.
	CtxKeyUserID ctxKey = "user_id"
)

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, id)
}

// UserIDFrom extracts the authenticated user id, or "" when anonymous.
func UserIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return id
	}
	return ""
}
