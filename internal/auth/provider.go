// Package auth identifies the editor behind a request, either through an
// Ed25519 signed challenge or through Clerk sessions.
package auth

import (
	"net/http"

	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/rs/zerolog"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

type AuthProvider interface {
	WithHeaderAuthorization() func(http.Handler) http.Handler

	GetUserIDFromSession(r *http.Request) (model.UserID, error)

	EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}

// RequireUser lets a request through only when the provider can enforce a
// user; the user id is then available from the request context.
func RequireUser(p AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := p.EnforceUserAndGetID(w, r)
			if err != nil {
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// Anonymous is used when authentication is disabled: every request is let
// through without a user.
type Anonymous struct{}

func (Anonymous) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (Anonymous) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	return "", nil
}

func (Anonymous) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	return "", nil
}

func (Anonymous) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
