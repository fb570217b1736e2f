// Avatar HTTP handlers.
//
// Two endpoints cover avatar resolution:
//   - POST /avatar  resolves a durable avatar URL for a (name, description)
//     pair and returns it as JSON. When resolution fails the deterministic
//     placeholder URL is returned instead, flagged as a fallback, so clients
//     always receive a renderable image URL.
//   - GET  /avatar  serves an image redirect for a character name. It
//     consults the character record first (checkDb), then the resolver, and
//     finally the placeholder, on every request. Only route URLs pointing at
//     this endpoint are memoized (see avatar.RouteURL); resolved image URLs
//     never are, so a record update takes effect on the next request.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xAGI-labs/charstream-sub001/internal/avatar"
	"github.com/xAGI-labs/charstream-sub001/internal/http/middleware"
	"github.com/xAGI-labs/charstream-sub001/internal/sysutil"
	"github.com/xAGI-labs/charstream-sub001/internal/utils"
)

// ResolveAvatarRequest is the JSON payload for POST /avatar.
type ResolveAvatarRequest struct {
	Name        string `json:"name" binding:"required" example:"Harry Potter"`
	Description string `json:"description" example:"A young wizard with round glasses"`
}

// AvatarResponse carries the resolved (or fallback) avatar URL.
type AvatarResponse struct {
	AvatarURL string `json:"avatarUrl" example:"https://res.cloudinary.com/demo/character-avatars/abc.png"`
	// Fallback is true when resolution failed and AvatarURL is the
	// deterministic placeholder.
	Fallback bool `json:"fallback,omitempty"`
}

// ResolveAvatar godoc
// @ID          resolveAvatar
// @Summary     Resolve a durable avatar URL
// @Description Generates an avatar for the given persona and uploads it to
// @Description durable storage. On upstream failure the deterministic
// @Description placeholder URL is returned with fallback=true; the endpoint
// @Description never returns a transient provider URL.
// @Tags        Avatars
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ResolveAvatarRequest  true  "Persona"
// @Success     200  {object}  handlers.AvatarResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /avatar [post]
func (h *Handlers) ResolveAvatar(c *gin.Context) {
	var req ResolveAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	if h.avatars != nil {
		if u, err := h.avatars.Generate(c.Request.Context(), req.Name, req.Description); err == nil {
			ok(c, http.StatusOK, AvatarResponse{AvatarURL: u})
			return
		} else {
			middleware.LoggerFrom(c).Warn().
				Err(err).
				Str("name", req.Name).
				Msg("avatar resolution failed, serving placeholder")
		}
	}

	ok(c, http.StatusOK, AvatarResponse{
		AvatarURL: avatar.PlaceholderURL(h.phBase, req.Name, 0),
		Fallback:  true,
	})
}

// ServeAvatar godoc
// @ID          serveAvatar
// @Summary     Redirect to an avatar image
// @Description Resolves an image URL for the named character and issues a
// @Description 302 redirect. With checkDb (default true) the stored
// @Description character record is consulted first; otherwise, or when no
// @Description record carries an image, resolution falls through to the
// @Description provider and finally the deterministic placeholder.
// @Tags        Avatars
// @Param       name     query  string  true   "Character name"
// @Param       width    query  int     false  "Image width (aliases: size, height)" default(128)
// @Param       height   query  int     false  "Image height (square output, used when width absent)"
// @Param       checkDb  query  bool    false  "Consult the character record first" default(true)
// @Success     302  {string} string "Redirect to image"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /avatar [get]
func (h *Handlers) ServeAvatar(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name query parameter required")
		return
	}
	// Output is square, so width, size and height all name the same
	// dimension; the first one present wins.
	width := utils.AtoiDefault(sysutil.FirstNonEmpty(c.Query("width"), c.Query("size"), c.Query("height")), defaultAvatarSize)
	if width <= 0 {
		width = defaultAvatarSize
	}

	checkDb := true
	if v := c.Query("checkDb"); v != "" {
		checkDb = sysutil.IsTruthy(v)
	}

	ctx := c.Request.Context()
	target := ""

	if checkDb && h.finder != nil {
		if ch, err := h.finder.FindByName(ctx, name); err == nil && ch.ImageURL != "" {
			target = ch.ImageURL
		}
	}
	if target == "" && h.avatars != nil {
		if u, err := h.avatars.Generate(ctx, name, ""); err == nil {
			target = u
		}
	}
	if target == "" {
		target = avatar.PlaceholderURL(h.phBase, name, width)
	}

	c.Redirect(http.StatusFound, target)
}

// defaultAvatarSize is the pixel dimension used when a request or a record
// render names none.
const defaultAvatarSize = 128

// avatarRouteFor builds the serving-route URL for a character without a
// stored image. The route resolves on every hit; only the URL string is
// memoized, keyed by (name, size).
func (h *Handlers) avatarRouteFor(name string) string {
	return avatar.RouteURL(h.urlCache, h.apiBase, name, defaultAvatarSize)
}
