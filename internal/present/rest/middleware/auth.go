package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyRequester verifies the bearer token and stores the requester's
// identity, role and community on the echo context. Requests without a
// valid token are rejected: every route behind this middleware is
// community-scoped.
func (m *AuthMiddleware) IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyRequester")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
		}

		split := strings.Split(authHeader, " ")
		if len(split) != 2 || split[0] != "Bearer" {
			span.RecordError(fmt.Errorf("invalid authentication header"))
			return echo.NewHTTPError(http.StatusUnauthorized, "only Bearer is acceptable")
		}

		result, err := m.auth.AuthToken(ctx, split[1])
		if err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyRequester: token verification failed"))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		span.SetAttributes(attribute.String("RequesterId", result.UserID))

		c.Set(domain.RequesterIDCtxKey, result.UserID)
		c.Set(domain.RequesterRoleCtxKey, result.Role)
		c.Set(domain.RequesterCommunityCtxKey, result.CommunityID)

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireRole gates a route to the given roles. Admins pass every gate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(domain.RequesterRoleCtxKey).(string)
			if role == domain.RoleAdmin {
				return next(c)
			}
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}
