package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader names the acting user on write requests.
const UserHeader = "X-User-Name"

type userNameKey struct{}

func WithUserName(ctx context.Context, userName string) context.Context {
	return context.WithValue(ctx, userNameKey{}, userName)
}

func UserNameFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userNameKey{}).(string)
	return v, ok && v != ""
}

// devAuth is a local/dev-only auth shim.
//
// It accepts the acting username via X-User-Name and stores it in request
// context. Handlers of write endpoints resolve it to a user.
func devAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := strings.TrimSpace(r.Header.Get(UserHeader)); name != "" {
			r = r.WithContext(WithUserName(r.Context(), name))
		}
		next.ServeHTTP(w, r)
	})
}
