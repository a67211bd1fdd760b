package auth

import "context"

type contextKey string

const accountIDContextKey = contextKey("account_id")

// ContextWithAccountID injects the authenticated account ID into a request
// context. Used by the session middleware and by tests.
func ContextWithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDContextKey, accountID)
}

// AccountIDFromContext returns the authenticated account ID, or "" when the
// request carries no valid session.
func AccountIDFromContext(ctx context.Context) string {
	accountID, _ := ctx.Value(accountIDContextKey).(string)
	return accountID
}
