package auth

import "context"

type contextKey struct{}

// Session identifies the device account the agent acts as. It is built once
// at startup from the backend login response and injected everywhere identity
// is needed; there is no ambient global.
type Session struct {
	UserID  int64
	Email   string
	Token   string
	IsStaff bool
}

// Valid reports whether the session carries a usable auth token.
func (s Session) Valid() bool {
	return s.Token != ""
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func UserID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.UserID
}

func Email(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.Email
}
