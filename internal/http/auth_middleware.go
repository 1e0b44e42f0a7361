package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mashpotato9/placefinder/internal/domain"
	"github.com/mashpotato9/placefinder/internal/service/auth"
)

type authContextKey string

const contextKeyIdentity authContextKey = "placefinder-identity"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
// A missing token is answered with 401, anything unverifiable with 403.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	var identity domain.Identity
	if err == nil {
		identity, err = r.auth.Authenticate(token)
	}
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingToken):
		r.logger.Warn("authorization token missing", "path", req.URL.Path)
		r.metrics.authFailure("missing")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return req.Context(), false
	default:
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		r.metrics.authFailure("invalid")
		writeError(w, http.StatusForbidden, "Forbidden")
		return req.Context(), false
	}
	ctx := context.WithValue(req.Context(), contextKeyIdentity, identity)
	return ctx, true
}

// identityFromContext extracts the authenticated caller from context.
func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(domain.Identity)
	return identity, ok && identity.UserID != ""
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 0:
		return "", auth.ErrMissingToken
	case len(parts) == 1 && strings.EqualFold(parts[0], "Bearer"):
		return "", auth.ErrMissingToken
	case len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer"):
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}
