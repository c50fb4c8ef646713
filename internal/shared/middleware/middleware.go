package middleware

import (
	"net/http"
	"time"

	"staybook/internal/auth"
	"staybook/internal/shared/utils/response"
	"staybook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextIdentity = "identity"

	ContextRequestID = "request_id"
	HeaderRequestID  = "X-Request-ID"
)

// RequestLogger tags each request with an id (the caller's X-Request-ID when
// present) and logs it once the handler chain finishes.
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		RequestScoped(c, l).LogHTTPRequest(c, time.Since(start))
	}
}

// RequestScoped narrows l to the current request id and, once JWTAuth has
// run, the calling guest.
func RequestScoped(c *gin.Context, l *logger.Logger) *logger.Logger {
	if l == nil {
		l = logger.GetDefault()
	}
	if requestID := c.GetString(ContextRequestID); requestID != "" {
		l = l.WithRequestID(requestID)
	}
	if guestID := c.GetString(ContextUserID); guestID != "" {
		l = l.WithGuestID(guestID)
	}
	return l
}

// JWTAuth resolves the bearer token through the oracle and stores the identity
func JWTAuth(oracle auth.Oracle) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := oracle.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), err.Error(), c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, err.Error(), nil, nil)
			c.Abort()
			return
		}

		c.Set(ContextIdentity, identity)
		c.Set(ContextUserID, identity.GuestID)
		c.Set(ContextUserRole, string(identity.Role))
		c.Next()
	}
}

// GetIdentity returns the identity stored by JWTAuth
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

// RequireRole middleware checks if user has required role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return RequireRoles(requiredRole)
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(string(auth.RoleAdmin))
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(ContextUserRole)
		if !exists {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range requiredRoles {
			if userRole.(string) == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
