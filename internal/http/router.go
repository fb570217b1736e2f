// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/avatar"
	"github.com/xAGI-labs/charstream-sub001/internal/config"
	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/http/handlers"
	"github.com/xAGI-labs/charstream-sub001/internal/http/middleware"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
	"github.com/xAGI-labs/charstream-sub001/internal/services"
)

// characterRepoShim adapts the repository free functions to the
// services.CharacterRepo interface expected by the CharacterService. This
// keeps services decoupled from the concrete repo package while reusing
// existing functions.
type characterRepoShim struct{}

// CreateCharacter proxies repo.CreateCharacter.
func (characterRepoShim) CreateCharacter(ctx context.Context, db *gorm.DB, ownerID, name, description, imageURL string, public bool) (*domain.Character, error) {
	return repo.CreateCharacter(ctx, db, ownerID, name, description, imageURL, public)
}

// GetCharacter proxies repo.GetCharacter.
func (characterRepoShim) GetCharacter(ctx context.Context, db *gorm.DB, id string) (*domain.Character, error) {
	return repo.GetCharacter(ctx, db, id)
}

// CountPublicCharacters proxies repo.CountPublicCharacters.
func (characterRepoShim) CountPublicCharacters(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPublicCharacters(ctx, db)
}

// ListPublicCharactersPage proxies repo.ListPublicCharactersPage.
func (characterRepoShim) ListPublicCharactersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Character, error) {
	return repo.ListPublicCharactersPage(ctx, db, offset, limit)
}

// CountOwnedCharacters proxies repo.CountOwnedCharacters.
func (characterRepoShim) CountOwnedCharacters(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountOwnedCharacters(ctx, db, ownerID)
}

// ListOwnedCharactersPage proxies repo.ListOwnedCharactersPage.
func (characterRepoShim) ListOwnedCharactersPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Character, error) {
	return repo.ListOwnedCharactersPage(ctx, db, ownerID, offset, limit)
}

// UpdateCharacter proxies repo.UpdateCharacter.
func (characterRepoShim) UpdateCharacter(ctx context.Context, db *gorm.DB, id, ownerID string, updates map[string]any) error {
	return repo.UpdateCharacter(ctx, db, id, ownerID, updates)
}

// DeleteCharacter proxies repo.DeleteCharacter.
func (characterRepoShim) DeleteCharacter(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return repo.DeleteCharacter(ctx, db, id, ownerID)
}

// remediationStoreShim binds the migration job to the GORM-backed repo
// functions over both avatar-bearing tables.
type remediationStoreShim struct {
	db *gorm.DB
}

func (s remediationStoreShim) ListTransientCharacters(ctx context.Context, hosts []string) ([]domain.Character, error) {
	return repo.ListTransientAvatarCharacters(ctx, s.db, hosts)
}

func (s remediationStoreShim) ListTransientHomeCharacters(ctx context.Context, hosts []string) ([]domain.HomeCharacter, error) {
	return repo.ListTransientAvatarHomeCharacters(ctx, s.db, hosts)
}

func (s remediationStoreShim) UpdateCharacterImage(ctx context.Context, id, imageURL string) error {
	return repo.UpdateCharacterImage(ctx, s.db, id, imageURL)
}

func (s remediationStoreShim) UpdateHomeCharacterImage(ctx context.Context, id, imageURL string) error {
	return repo.UpdateHomeCharacterImage(ctx, s.db, id, imageURL)
}

// characterFinderShim backs the by-name avatar lookup with the character
// table (case-insensitive, newest row wins).
type characterFinderShim struct {
	db *gorm.DB
}

func (s characterFinderShim) FindByName(ctx context.Context, name string) (*domain.Character, error) {
	return repo.GetCharacterByName(ctx, s.db, name)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before the limiter, so replays bypass it)
//  8. Response compression
//  9. Rate limiter (per user/IP, bypass for admin-gated requests)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency-Key validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Gzip responses (listing payloads compress well)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 9) Token-bucket rate limiter per user/IP (admin-secret requests exempt)
	r.Use(middleware.AdminBypass(cfg.Auth.AdminSecret))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-Admin-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-Admin-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/resolver
	provider := avatar.NewProviderClient(cfg.Together)
	store := avatar.NewStoreClient(cfg.Cloudinary)
	resolver := avatar.NewResolver(provider, store, cfg.Avatar.DurableHosts)

	charSvc := services.NewCharacterService(db, characterRepoShim{}, resolver, cfg.Avatar.PlaceholderBase)
	homeSvc := services.NewHomeCharacterService(db, resolver, cfg.Avatar.PlaceholderBase)
	convSvc := &services.ConversationService{
		DB:              db,
		MaxMessageRunes: 2000,
		TitleLocale:     language.English,
	}
	remSvc := &services.RemediationService{
		Store:          remediationStoreShim{db: db},
		Resolver:       resolver,
		TransientHosts: cfg.Avatar.TransientHosts,
	}

	h := handlers.New(handlers.Deps{
		Characters:      charSvc,
		HomeCharacters:  homeSvc,
		Conversations:   convSvc,
		Avatars:         resolver,
		Finder:          characterFinderShim{db: db},
		Remediation:     remSvc,
		PlaceholderBase: cfg.Avatar.PlaceholderBase,
		APIBasePath:     cfg.APIBasePath,
		AvatarCache:     avatar.NewURLCache(),
	})

	authn := middleware.Auth(middleware.AuthOptions{
		Secret:     cfg.Auth.JWTSecret,
		CookieName: cfg.Auth.CookieName,
		Resolve: func(ctx context.Context, subject, name, email string) (string, error) {
			u, err := repo.UpsertUserBySubject(ctx, db, subject, name, email)
			if err != nil {
				return "", err
			}
			return u.ID, nil
		},
	})

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)

	// Public API (no session required)
	{
		api.GET("/home-characters", h.ListHomeCharacters)
		api.GET("/avatar", h.ServeAvatar)
	}

	// Session API
	user := api.Group("", authn)
	{
		// Characters
		user.POST("/characters", h.CreateCharacter)
		user.GET("/characters", h.ListCharacters)
		user.GET("/characters/:id", h.GetCharacter)
		user.PUT("/characters/:id", h.UpdateCharacter)
		user.DELETE("/characters/:id", h.DeleteCharacter)

		// Avatars
		user.POST("/avatar", h.ResolveAvatar)

		// Conversations
		user.POST("/conversations", h.StartConversation)
		user.GET("/conversations", h.ListConversations)
		user.GET("/conversations/:id/messages", h.ListMessages)
		user.POST("/conversations/:id/messages", h.SendMessage)
	}

	// Admin API (secret header gate, rate-limit bypass)
	admin := api.Group("/admin", middleware.AdminOnly(cfg.Auth.AdminSecret))
	{
		admin.POST("/home-characters", h.CreateHomeCharacter)
		admin.PUT("/home-characters/:id", h.UpdateHomeCharacter)
		admin.DELETE("/home-characters/:id", h.DeleteHomeCharacter)
		admin.POST("/avatars/migrate", h.MigrateAvatars)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
