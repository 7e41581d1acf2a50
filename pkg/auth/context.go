package auth

import "context"

type ctxKey int

const (
	sessionKey ctxKey = iota + 1
	roleKey
)

func SetAuthContext(ctx context.Context, sessionID, role string) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sessionID)
	return context.WithValue(ctx, roleKey, role)
}

func GetSessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey).(string)
	return sid
}

func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(roleKey).(string)
	return role == RoleAdmin
}
