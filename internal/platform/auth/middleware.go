package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/platform/phi"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated actor attached to a request. The role is
// immutable for the token's lifetime; it is assigned at registration and
// never grantable through self-service update paths.
type Principal struct {
	ID    string
	Email string
	Role  phi.Role
}

// PrincipalFromContext returns the authenticated principal, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// WithPrincipal returns a context carrying the principal. Exposed for tests
// and for middleware composition.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Middleware returns echo middleware that validates the Bearer token and
// stores the principal in the request context. Requests without a valid token
// get a uniform 401.
func Middleware(issuer *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
			}

			p := &Principal{
				ID:    claims.UserID,
				Email: claims.Subject,
				Role:  claims.Role,
			}
			ctx := WithPrincipal(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole returns middleware that rejects requests whose principal does
// not hold one of the given roles. There is no implicit admin bypass: the
// authorization matrix, not this guard, decides PHI access.
func RequireRole(roles ...phi.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, role := range roles {
				if p.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
	}
}
