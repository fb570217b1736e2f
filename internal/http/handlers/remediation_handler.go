// Admin remediation handler.
//
// POST /admin/avatars/migrate sweeps both character tables for avatar URLs
// still pointing at transient provider hosts and migrates each to the
// durable store. The endpoint is synchronous and returns a per-record
// summary; individual failures never abort the batch.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MigrateAvatars godoc
// @ID          migrateAvatars
// @Summary     Migrate stale avatar URLs (admin)
// @Description Rewrites every character and curated-character avatar still
// @Description hosted on a transient provider URL to durable storage and
// @Description returns a per-record outcome summary.
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret  header  string  true  "Admin secret"
// @Success     200  {object}  services.MigrationSummary
// @Failure     403  {object}  handlers.ErrorResponse "Admin required"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/avatars/migrate [post]
func (h *Handlers) MigrateAvatars(c *gin.Context) {
	summary, err := h.remSvc.MigrateAvatars(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeMigrateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, summary)
}
