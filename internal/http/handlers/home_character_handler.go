// Curated landing-page character handlers.
//
// The public listing is read-only; mutations are mounted under the admin
// group and guarded by the admin-secret middleware:
//   - GET    /home-characters                 (public, ETag support)
//   - POST   /admin/home-characters           (create)
//   - PUT    /admin/home-characters/{id}      (update)
//   - DELETE /admin/home-characters/{id}      (delete)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
	"github.com/xAGI-labs/charstream-sub001/internal/services"
)

// CreateHomeCharacterRequest is the JSON payload for creating a curated
// character.
type CreateHomeCharacterRequest struct {
	Name        string `json:"name" binding:"required" example:"Sherlock Holmes"`
	Description string `json:"description" example:"The world's only consulting detective"`
	// Category groups characters on the landing page; defaults to "featured".
	Category     string `json:"category" example:"featured"`
	DisplayOrder int    `json:"display_order"`
}

// UpdateHomeCharacterRequest is the JSON payload for a partial update.
type UpdateHomeCharacterRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
}

// ListHomeCharactersResponse wraps the curated listing.
type ListHomeCharactersResponse struct {
	Characters []domain.HomeCharacter `json:"characters"`
}

// ListHomeCharacters godoc
// @ID          listHomeCharacters
// @Summary     List curated characters
// @Description Returns the curated landing-page characters in display order,
// @Description optionally filtered by category. Supports weak ETag.
// @Tags        HomeCharacters
// @Produce     json
// @Param       category  query  string  false  "Category filter"  example(featured)
// @Success     200  {object} handlers.ListHomeCharactersResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /home-characters [get]
func (h *Handlers) ListHomeCharacters(c *gin.Context) {
	ctx := c.Request.Context()
	category := c.Query("category")

	var db *gorm.DB
	if svc, okCast := h.homeSvc.(*services.HomeCharacterService); okCast {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.HomeCharactersStats(ctx, db, category)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"home:%s:%d:%d"`, category, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.homeSvc.List(ctx, category)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	for i := range items {
		if items[i].ImageURL == "" {
			items[i].ImageURL = h.avatarRouteFor(items[i].Name)
		}
	}
	ok(c, http.StatusOK, ListHomeCharactersResponse{Characters: items})
}

// CreateHomeCharacter godoc
// @ID          createHomeCharacter
// @Summary     Create a curated character (admin)
// @Tags        HomeCharacters
// @Accept      json
// @Produce     json
// @Param       X-Admin-Secret  header  string  true  "Admin secret"
// @Param       body  body  handlers.CreateHomeCharacterRequest  true  "Create payload"
// @Success     201  {object}  domain.HomeCharacter
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Admin required"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/home-characters [post]
func (h *Handlers) CreateHomeCharacter(c *gin.Context) {
	var req CreateHomeCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	hc, err := h.homeSvc.Create(c.Request.Context(), req.Name, req.Description, req.Category, req.DisplayOrder)
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
	ok(c, http.StatusCreated, hc)
}

// UpdateHomeCharacter godoc
// @ID          updateHomeCharacter
// @Summary     Update a curated character (admin)
// @Tags        HomeCharacters
// @Accept      json
// @Produce     json
// @Param       X-Admin-Secret  header  string  true  "Admin secret"
// @Param       id    path  string  true  "HomeCharacter ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateHomeCharacterRequest  true  "Fields to update"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/home-characters/{id} [put]
func (h *Handlers) UpdateHomeCharacter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a UUID")
		return
	}

	var req UpdateHomeCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	upd := services.HomeCharacterUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		DisplayOrder: req.DisplayOrder,
		ImageURL:     req.ImageURL,
	}
	if err := h.homeSvc.Update(c.Request.Context(), id, upd); err != nil {
		switch {
		case errors.Is(err, services.ErrHomeCharacterNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "home character not found")
		case errors.Is(err, services.ErrTransientImageURL):
			fail(c, http.StatusBadRequest, ErrCodeTransientImage, "image_url must point at the durable store")
		case errors.Is(err, services.ErrEmptyName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	noContent(c)
}

// DeleteHomeCharacter godoc
// @ID          deleteHomeCharacter
// @Summary     Delete a curated character (admin)
// @Tags        HomeCharacters
// @Produce     json
// @Param       X-Admin-Secret  header  string  true  "Admin secret"
// @Param       id  path  string  true  "HomeCharacter ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /admin/home-characters/{id} [delete]
func (h *Handlers) DeleteHomeCharacter(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a UUID")
		return
	}

	if err := h.homeSvc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrHomeCharacterNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "home character not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
