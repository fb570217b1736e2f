// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements session authentication and the admin gate.
//
//   - Auth() verifies the caller's session JWT (HMAC-signed), taken from the
//     session cookie or an Authorization bearer token, resolves the token
//     subject to an application user, and stores the user ID in the Gin
//     context under "userID".
//   - AdminOnly() guards admin routes behind a shared-secret header check and
//     marks passing requests for rate-limit bypass, since admin remediation
//     jobs are operator-driven and must not compete with end-user traffic
//     for tokens.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// userIDKey is the Gin context key holding the authenticated user's ID.
	userIDKey = "userID"
	// ctxKeyRateBypass marks a request as exempt from rate limiting.
	ctxKeyRateBypass = "rateBypass"
	// adminSecretHeader carries the shared admin secret.
	adminSecretHeader = "X-Admin-Secret"
)

// IdentityResolver maps a verified token identity to an application user ID.
// Implementations typically upsert the user row on first sight.
type IdentityResolver func(ctx context.Context, subject, name, email string) (string, error)

// AuthOptions configures Auth().
type AuthOptions struct {
	// Secret is the HMAC key session tokens are signed with.
	Secret string
	// CookieName is the session cookie checked before the Authorization header.
	CookieName string
	// Resolve maps token subjects to user IDs. When nil the subject itself is
	// used as the user ID.
	Resolve IdentityResolver
}

// Auth returns a middleware that authenticates each request.
//
// Token lookup order: session cookie first, then "Authorization: Bearer".
// Only HMAC-signed tokens are accepted; a token signed with any other method
// is rejected. On success the resolved user ID is stored under "userID" and
// the request proceeds; otherwise the request is aborted with 401 and the
// standard JSON error envelope.
func Auth(opt AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c, opt.CookieName)
		if raw == "" {
			abortUnauthorized(c, "missing credentials")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(opt.Secret), nil
		})
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		subject, _ := claims["sub"].(string)
		if subject == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		userID := subject
		if opt.Resolve != nil {
			name, _ := claims["name"].(string)
			email, _ := claims["email"].(string)
			id, err := opt.Resolve(c.Request.Context(), subject, name, email)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "internal_error",
					"message":    "could not resolve user",
				})
				return
			}
			userID = id
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// AdminOnly returns a middleware that admits only requests presenting the
// configured admin secret in the X-Admin-Secret header.
//
// An empty configured secret disables the gate entirely: every request is
// rejected, so admin routes cannot be opened by accident on a deployment
// that never set the secret. Passing requests are flagged for rate-limit
// bypass (see IsRateBypass).
func AdminOnly(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(adminSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "admin_required",
				"message":    "admin access required",
			})
			return
		}
		c.Set(ctxKeyRateBypass, true)
		c.Next()
	}
}

// AdminBypass returns a middleware that flags requests presenting the correct
// admin secret for rate-limit bypass without enforcing anything. Install it
// before the rate limiter so admin calls are exempt; AdminOnly still guards
// the admin routes themselves.
func AdminBypass(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			presented := c.GetHeader(adminSecretHeader)
			if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user's ID from the Gin context, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// tokenFromRequest extracts the raw session token, preferring the cookie.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
