// Idempotency support for the unsafe POST endpoints. The middleware
// validates an Idempotency-Key request header, optionally consults a
// user-supplied lookup to detect previously completed requests, and
// annotates the request context so downstream handlers can read the
// normalized key (GetIdempotencyKey), detect replays (IsReplay), and let
// replayed requests skip rate limiting.
//
// The middleware never serves a cached payload itself; handlers stay in
// control of how a replay is answered (typically by fetching the record the
// original request produced).
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for safe retries of
// unsafe operations. The value must be stable for a given semantic
// operation so that network or client retries deduplicate.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys stashing idempotency state, read via the accessors below.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
)

// GetIdempotencyKey returns the validated idempotency key stored by
// IdempotencyValidator. Handlers should prefer this over reading the header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request would replay a previously completed
// operation for its (user, scope, key) tuple.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
// TTL enforcement belongs in the lookup, not here.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative
	// RFC7230-like token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a successful, still-valid result exists
// for (userID, scope, key) at the given time. Return exists=true when the
// prior response can be replayed; return an error only for lookup failures,
// which must not block normal processing.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (exists bool, err error)

// requestScope returns the dedup scope for the current request: the
// resource id for routes that carry one (message sends dedup per
// conversation), otherwise the matched route pattern (creations dedup per
// collection).
func requestScope(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.FullPath()
}

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes the normalized key, and marks detected replays so handlers can
// short-circuit and the rate limiter can skip them.
//
// Behavior:
//   - Absent header: no-op.
//   - Invalid header: 400 with a compact error body.
//   - Lookup reports a replay: replay + rate-bypass flags are set.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := UserID(c)
			if exists, _ := lookup(c.Request.Context(), uid, requestScope(c), key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
