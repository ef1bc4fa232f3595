package api

import (
	"context"
	"net/http"
	"strings"

	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/service"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	sessionKey    ctxKey = "session"
	sessionErrKey ctxKey = "sessionErr"
	tokenKey      ctxKey = "accessToken"
)

// GetSession returns the session state resolved by authMiddleware.
// The error of a failed resolution is returned as is so the browser gets its
// redirect hint; a request without a token gets a plain 401.
func GetSession(ctx context.Context) (*state.AppState, error) {
	if st, ok := ctx.Value(sessionKey).(*state.AppState); ok && st != nil {
		return st, nil
	}
	if err, ok := ctx.Value(sessionErrKey).(error); ok && err != nil {
		return nil, err
	}
	return nil, domainerrors.Unauthorized("Authentication required")
}

// accessToken returns the bearer token of the request, if any.
func accessToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on an EventSource, so the stream also accepts
// ?access_token=.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return r.URL.Query().Get("access_token")
}

// authMiddleware resolves the bearer token to its session and stores it in
// context. Requests without a token continue unauthenticated; handlers use
// GetSession to require one.
func authMiddleware(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, token)
			st, err := sessions.Resolve(ctx, token)
			if err != nil {
				ctx = context.WithValue(ctx, sessionErrKey, err)
			} else {
				ctx = context.WithValue(ctx, sessionKey, st)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sseSession adapts the resolved session to the stream handler.
func sseSession(r *http.Request) (sessionID, userID string, ok bool) {
	st, err := GetSession(r.Context())
	if err != nil {
		return "", "", false
	}
	return st.SessionID(), st.UserID(), true
}
