package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/metrics"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
)

// writeError maps business conditions to HTTP statuses. Denied
// authorization carries its machine reason so clients can tell "not shared
// with you" from "viewers cannot write"; nothing beyond the reason leaks.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		metrics.AuthzDenialsTotal.WithLabelValues("not_owner").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "reason": "not_owner"})
	case errors.Is(err, session.ErrForbidden):
		reason := denyReason(err)
		metrics.AuthzDenialsTotal.WithLabelValues(reason).Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "reason": reason})
	case errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrShareNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session has ended"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func denyReason(err error) string {
	var fe *session.ForbiddenError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return "forbidden"
}
