package handlers

import (
	"net/http"

	"barangay-portal/models"

	"github.com/gin-gonic/gin"
)

// Notifications returns the derived per-report notifications for the caller,
// with unread computed against the caller's last-read mark.
func (h *Handlers) Notifications(c *gin.Context) {
	viewerID, _ := callerIdentity(c)

	notifications, err := h.reports.Notifications(c.Request.Context(), viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	unread := 0
	for _, n := range notifications {
		if n.Unread {
			unread++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread":        unread,
	})
}

// MarkNotificationsRead sets the caller's last-read mark to now
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	viewerID, _ := callerIdentity(c)

	if err := h.reports.MarkNotificationsRead(c.Request.Context(), viewerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "notifications marked read"})
}
