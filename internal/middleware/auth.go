// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

const (
	PrincipalKey contextKey = "principal"

	DefaultScheme = "bearer"
)

// Principal is the authenticated caller, produced once per request by an
// Authorizer and handed to protected handlers.
type Principal struct {
	UserID      string
	Email       string
	Role        string
	AccessToken string
	ExpiresAt   time.Time
}

type Authorizer interface {
	Authorize(ctx context.Context, token string) (*Principal, error)
}

func Authenticator(a Authorizer, scheme string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, scheme)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			p, err := a.Authorize(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *p)))
		})
	}
}

// OptionalAuth attaches a principal when a valid token is present and lets the
// request through anonymously otherwise.
func OptionalAuth(a Authorizer, scheme string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r, scheme); token != "" {
				if p, err := a.Authorize(r.Context(), token); err == nil {
					r = r.WithContext(WithPrincipal(r.Context(), *p))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, role := range roles {
		roleSet[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			switch {
			case !ok:
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			case !roleSet[p.Role]:
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Authed adapts a handler that needs the caller into an http.HandlerFunc.
func Authed(fn func(w http.ResponseWriter, r *http.Request, p Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			core.JSONError(w, core.UnauthorizedError(""))
			return
		}
		fn(w, r, p)
	}
}

// ExtractToken reads "Authorization: <scheme> <token>". The scheme is matched
// case-insensitively.
func ExtractToken(r *http.Request, scheme string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}

	prefix, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(prefix, scheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// handleAuthError answers 401 only for failures that are about the token.
// Anything else is the server's problem and must not look like a bad token.
func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid),
		errors.Is(err, core.ErrTokenClaimMismatch),
		errors.Is(err, core.ErrUnauthorized):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrTransient):
		core.JSONError(w, core.ServiceUnavailableError("try again later"))
	default:
		core.InternalServerError(w, err)
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

func GetUserID(ctx context.Context) string {
	if p, ok := GetPrincipal(ctx); ok {
		return p.UserID
	}
	return ""
}
