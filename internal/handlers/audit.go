package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carepulse/backend/internal/services"
	"github.com/carepulse/backend/pkg/response"
)

// AuditHandler exposes the notification audit trail.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns paginated audit entries, newest first. Supports ?page=,
// ?page_size=, ?action=, ?recipient_id=, ?since= and ?until= (RFC 3339).
func (h *AuditHandler) List(c *gin.Context) {
	opts := services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		Filters: services.AuditFilters{
			Action:      c.Query("action"),
			RecipientID: c.Query("recipient_id"),
		},
	}
	if since, err := time.Parse(time.RFC3339, c.Query("since")); err == nil {
		opts.Filters.Since = &since
	}
	if until, err := time.Parse(time.RFC3339, c.Query("until")); err == nil {
		opts.Filters.Until = &until
	}

	entries, total, err := h.audit.List(c.Request.Context(), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
	})
}
