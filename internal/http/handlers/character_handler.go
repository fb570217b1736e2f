// Character HTTP handlers.
//
// This file exposes REST endpoints for character resources:
//   - POST   /characters        (create, avatar resolved server-side)
//   - GET    /characters        (list public or owned, paginated, ETag support)
//   - GET    /characters/{id}   (fetch, visibility-checked)
//   - PUT    /characters/{id}   (update, durable image guard)
//   - DELETE /characters/{id}   (delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/avatar"
	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/http/middleware"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
	"github.com/xAGI-labs/charstream-sub001/internal/services"
	"github.com/xAGI-labs/charstream-sub001/internal/sysutil"
	"github.com/xAGI-labs/charstream-sub001/internal/utils"
)

//
// Service contracts (context-aware)
//

// CharacterService defines character lifecycle operations consumed by the
// HTTP layer. Implementations should be safe for concurrent use and must
// honor the provided context for cancellation and timeouts.
type CharacterService interface {
	// Create stores a new character for ownerID, resolving an avatar.
	Create(ctx context.Context, ownerID, name, description string, public bool) (*domain.Character, error)
	// Get fetches a character visible to userID (public or owned).
	Get(ctx context.Context, userID, id string) (*domain.Character, error)
	// ListPublicPage returns a page of public characters and the total count.
	ListPublicPage(ctx context.Context, page, pageSize int) ([]domain.Character, int64, error)
	// ListOwnedPage returns a page of ownerID's characters and the total count.
	ListOwnedPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Character, int64, error)
	// Update applies a partial update to a character owned by ownerID.
	Update(ctx context.Context, ownerID, id string, upd services.CharacterUpdate) error
	// Delete removes a character owned by ownerID.
	Delete(ctx context.Context, ownerID, id string) error
}

// HomeCharacterService defines operations over the curated landing-page set.
type HomeCharacterService interface {
	List(ctx context.Context, category string) ([]domain.HomeCharacter, error)
	Create(ctx context.Context, name, description, category string, displayOrder int) (*domain.HomeCharacter, error)
	Update(ctx context.Context, id string, upd services.HomeCharacterUpdate) error
	Delete(ctx context.Context, id string) error
}

// ConversationService defines conversation operations consumed by handlers.
type ConversationService interface {
	Start(ctx context.Context, userID, characterID string) (*domain.Conversation, error)
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	Append(ctx context.Context, userID, conversationID, content string) (*domain.Message, error)
	ListMessagesPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

// AvatarService is the resolver slice the avatar endpoints depend on.
type AvatarService interface {
	Generate(ctx context.Context, name, description string) (string, error)
}

// CharacterFinder locates the character record backing a by-name avatar
// lookup.
type CharacterFinder interface {
	FindByName(ctx context.Context, name string) (*domain.Character, error)
}

// RemediationService runs the bulk avatar migration job.
type RemediationService interface {
	MigrateAvatars(ctx context.Context) (*services.MigrationSummary, error)
}

//
// Handler wiring
//

// Deps carries every service dependency the handler set needs.
type Deps struct {
	Characters     CharacterService
	HomeCharacters HomeCharacterService
	Conversations  ConversationService
	Avatars        AvatarService
	Finder         CharacterFinder
	Remediation    RemediationService

	// PlaceholderBase is the deterministic fallback image service.
	PlaceholderBase string
	// APIBasePath prefixes avatar route URLs handed out in responses.
	APIBasePath string
	// AvatarCache memoizes avatar route URLs; may be nil.
	AvatarCache *avatar.URLCache
}

// Handlers groups the HTTP endpoints for characters, curated characters,
// avatars, conversations, and admin remediation. It depends on abstract
// service interfaces to keep transport concerns separate from business
// logic.
type Handlers struct {
	charSvc  CharacterService
	homeSvc  HomeCharacterService
	convSvc  ConversationService
	avatars  AvatarService
	finder   CharacterFinder
	remSvc   RemediationService
	phBase   string
	apiBase  string
	urlCache *avatar.URLCache
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		charSvc:  d.Characters,
		homeSvc:  d.HomeCharacters,
		convSvc:  d.Conversations,
		avatars:  d.Avatars,
		finder:   d.Finder,
		remSvc:   d.Remediation,
		phBase:   d.PlaceholderBase,
		apiBase:  d.APIBasePath,
		urlCache: d.AvatarCache,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateCharacterRequest is the JSON payload for creating a character.
type CreateCharacterRequest struct {
	// Name is the persona's display name (required).
	Name string `json:"name" binding:"required" example:"Harry Potter"`
	// Description feeds the avatar prompt and the chat system prompt.
	Description string `json:"description" example:"A young wizard with round glasses"`
	// Public lists the character for all users.
	Public bool `json:"public"`
}

// UpdateCharacterRequest is the JSON payload for a partial character update.
// Absent fields are left unchanged.
type UpdateCharacterRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Public      *bool   `json:"public,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListCharactersResponse wraps a page of characters and pagination info.
type ListCharactersResponse struct {
	Characters []domain.Character `json:"characters"`
	Pagination Pagination         `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// fillAvatarRoutes points records without a stored image at the avatar
// serving route, which resolves per request.
func (h *Handlers) fillAvatarRoutes(items []domain.Character) {
	for i := range items {
		if items[i].ImageURL == "" {
			items[i].ImageURL = h.avatarRouteFor(items[i].Name)
		}
	}
}

func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// CreateCharacter godoc
// @ID          createCharacter
// @Summary     Create a character
// @Description Creates a character for the current user. The avatar is
// @Description resolved server-side; on resolution failure a deterministic
// @Description placeholder URL is stored instead. Supports safe retries via
// @Description the Idempotency-Key header (same key returns the original
// @Description character).
// @Tags        Characters
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body  body  handlers.CreateCharacterRequest  true  "Create character payload"
// @Success     201  {object}  domain.Character
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /characters [post]
func (h *Handlers) CreateCharacter(c *gin.Context) {
	var req CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	currentUser := userID(c)
	// Creations carry no resource id; the route pattern is the dedup scope,
	// mirroring the validator middleware.
	scope := c.FullPath()

	// Replay path: a completed create with this key returns the original
	// character instead of inserting a duplicate.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.charSvc.(*services.CharacterService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetCharacter(ctx, svc.DB, rec.RecordID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	ch, err := h.charSvc.Create(ctx, currentUser, req.Name, req.Description, req.Public)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Store path, best effort.
	if idemKey != "" {
		if svc, okSvc := h.charSvc.(*services.CharacterService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, scope, idemKey, ch.ID, http.StatusCreated, idempotencyTTL)
		}
	}

	ok(c, http.StatusCreated, ch)
}

// ListCharacters godoc
// @ID          listCharacters
// @Summary     List characters (paginated)
// @Description Returns a page of public characters, or the caller's own when
// @Description mine=true. The public listing supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        Characters
// @Produce     json
// @Param       mine       query   bool    false "List own characters instead of public"
// @Param       page       query   int     false "Page number"    minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page" minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListCharactersResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /characters [get]
func (h *Handlers) ListCharacters(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if sysutil.IsTruthy(c.Query("mine")) {
		items, total, err := h.charSvc.ListOwnedPage(ctx, userID(c), page, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		h.fillAvatarRoutes(items)
		ok(c, http.StatusOK, ListCharactersResponse{Characters: items, Pagination: paginationFor(page, pageSize, total)})
		return
	}

	// ETag pre-check on the public listing (best effort).
	var db *gorm.DB
	if svc, okCast := h.charSvc.(*services.CharacterService); okCast {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.PublicCharactersStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"characters:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.charSvc.ListPublicPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	h.fillAvatarRoutes(items)
	ok(c, http.StatusOK, ListCharactersResponse{Characters: items, Pagination: paginationFor(page, pageSize, total)})
}

// GetCharacter godoc
// @ID          getCharacter
// @Summary     Fetch a character
// @Description Returns a character visible to the current user.
// @Tags        Characters
// @Produce     json
// @Param       id  path  string  true  "Character ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Character
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Character not found"
// @Router      /characters/{id} [get]
func (h *Handlers) GetCharacter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character id must be a UUID")
		return
	}

	ch, err := h.charSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrCharacterNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateCharacter godoc
// @ID          updateCharacter
// @Summary     Update a character
// @Description Applies a partial update to a character owned by the current
// @Description user. Overwriting a durable avatar URL with a transient
// @Description provider URL is rejected.
// @Tags        Characters
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Character ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateCharacterRequest  true  "Fields to update"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Character not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /characters/{id} [put]
func (h *Handlers) UpdateCharacter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character id must be a UUID")
		return
	}

	var req UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	upd := services.CharacterUpdate{
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
		ImageURL:    req.ImageURL,
	}
	if err := h.charSvc.Update(c.Request.Context(), userID(c), id, upd); err != nil {
		switch {
		case errors.Is(err, services.ErrCharacterNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
		case errors.Is(err, services.ErrTransientImageURL):
			fail(c, http.StatusBadRequest, ErrCodeTransientImage, "image_url must point at the durable store")
		case errors.Is(err, services.ErrEmptyName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	noContent(c)
}

// DeleteCharacter godoc
// @ID          deleteCharacter
// @Summary     Delete a character
// @Description Deletes a character owned by the current user. Conversations
// @Description with the character are removed with it.
// @Tags        Characters
// @Produce     json
// @Param       id  path  string  true  "Character ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Character not found"
// @Router      /characters/{id} [delete]
func (h *Handlers) DeleteCharacter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character id must be a UUID")
		return
	}

	if err := h.charSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		if errors.Is(err, services.ErrCharacterNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
