package identity

import "context"

// Identity is the acting user of a request. The zero value is anonymous.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (i Identity) Anonymous() bool {
	return i.UserID == 0
}

type contextKey string

const identityKey = contextKey("identity")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by the session middleware, or the
// anonymous identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
