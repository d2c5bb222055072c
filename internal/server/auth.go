package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
)

// TokenParser resolves the user a bearer token was issued to.
type TokenParser interface {
	Parse(token string) (model.UserID, error)
}

type callerKey struct{}

func callerFromContext(ctx context.Context) (model.UserID, bool) {
	id, ok := ctx.Value(callerKey{}).(model.UserID)
	return id, ok
}

// Authenticate rejects requests without a valid bearer token and stores the
// token's user in the request context.
func Authenticate(tokens TokenParser, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			raw, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, errors.New("missing authorization token"))
				return
			}

			caller, err := tokens.Parse(raw)
			if err != nil {
				logger.Debug("Ops server: rejected token", "path", req.URL.Path, "error", err)
				unauthorized(w, errors.New("invalid authorization token"))
				return
			}

			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), callerKey{}, caller)))
		})
	}
}

// RequireUser lets a caller reach only its own {userID} routes, unless the
// caller is an administrator.
func RequireUser(admins []model.UserID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			caller, ok := callerFromContext(req.Context())
			target := model.UserID(chi.URLParam(req, "userID"))
			if !ok || (caller != target && !slices.Contains(admins, caller)) {
				writeError(w, http.StatusForbidden, errors.New("access denied"))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sharekeeper"`)
	writeError(w, http.StatusUnauthorized, err)
}
