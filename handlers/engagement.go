package handlers

import (
	"net/http"

	"barangay-portal/models"

	"github.com/gin-gonic/gin"
)

// React toggles the caller's reaction on a report and returns the counts
func (h *Handlers) React(c *gin.Context) {
	var req models.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	viewerID, _ := callerIdentity(c)
	counts, err := h.engagement.React(c.Request.Context(), c.Param("id"), viewerID, req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}

	viewer, err := h.engagement.ViewerReaction(c.Request.Context(), c.Param("id"), viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"counts":          counts,
		"viewer_reaction": viewer,
	})
}

// GetReactions returns the per-kind counts for a report
func (h *Handlers) GetReactions(c *gin.Context) {
	counts, err := h.engagement.ReactionCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// AddComment appends a comment to a report
func (h *Handlers) AddComment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	callerID, _ := callerIdentity(c)
	authorName := ""
	if user, err := h.users.GetUser(c.Request.Context(), callerID); err == nil {
		authorName = user.DisplayName
	}

	comment, err := h.engagement.AddComment(c.Request.Context(), c.Param("id"), authorName, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// ListComments returns a report's comments in insertion order
func (h *Handlers) ListComments(c *gin.Context) {
	comments, err := h.engagement.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, comments)
}
