package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/pix-panel/internal/auth"
)

// Context keys set by Authenticate.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// TokenVerifier turns a raw credential into an identity.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Authenticate requires a valid session token, read from cookieName or from
// an "Authorization: Bearer" header. On success the user id and role are
// stored under UserIDKey and RoleKey; otherwise the request ends with 401.
func Authenticate(v TokenVerifier, cookieName string) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = "token"
	}
	return func(c *gin.Context) {
		raw, _ := c.Cookie(cookieName)
		if raw == "" {
			if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
				raw = strings.TrimSpace(h[7:])
			}
		}
		id, err := v.Verify(raw)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Set(UserIDKey, id.UserID)
		c.Set(RoleKey, id.Role)
		c.Next()
	}
}

// RequireAdmin allows only identities with the admin role. It must run after
// Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	v, _ := c.Get(UserIDKey)
	return asString(v)
}

// IsAdmin reports whether the authenticated identity is an admin.
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(RoleKey)
	return asString(v) == "admin"
}

// MaintenanceSwitch reports whether maintenance mode is on.
type MaintenanceSwitch interface {
	MaintenanceMode(ctx context.Context) bool
}

// Maintenance answers 503 to non-admin callers while the switch is on. Run it
// after Authenticate so admins keep access.
func Maintenance(sw MaintenanceSwitch) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sw != nil && !IsAdmin(c) && sw.MaintenanceMode(c.Request.Context()) {
			c.Header("Retry-After", "60")
			abortJSON(c, http.StatusServiceUnavailable, "maintenance", "service under maintenance")
			return
		}
		c.Next()
	}
}

// UserProvisioner creates the local record for an authenticated identity.
type UserProvisioner interface {
	Provision(ctx context.Context, id, role string) error
}

// ProvisionUser gives every authenticated caller a wallet row before the
// handler runs, since identities are issued outside this service. Run it
// after Authenticate.
func ProvisionUser(p UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(RoleKey)
		if err := p.Provision(c.Request.Context(), UserID(c), asString(role)); err != nil {
			LoggerFrom(c).Error().Err(err).Str("user_id", UserID(c)).Msg("user provisioning failed")
			abortJSON(c, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
			return
		}
		c.Next()
	}
}
