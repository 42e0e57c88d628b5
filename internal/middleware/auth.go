package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/soaringjerry/Vox/internal/services"
)

type authCtxKey int

const sessionKey authCtxKey = 7

// SessionHeader carries the admin session token on every gated request.
const SessionHeader = "x-session-token"

type SessionValidator interface {
	Validate(ctx context.Context, token string) (*services.AdminSession, error)
}

// RequireSession validates the session token header and stores the session
// in the request context. Failures are handed to onErr, which owns the
// response body.
func RequireSession(v SessionValidator, onErr func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := strings.TrimSpace(r.Header.Get(SessionHeader))
			sess, err := v.Validate(r.Context(), tok)
			if err != nil {
				onErr(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*services.AdminSession, bool) {
	s, ok := ctx.Value(sessionKey).(*services.AdminSession)
	return s, ok && s != nil
}

// SessionToken returns the raw token sent with r.
func SessionToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}
