package handlers

import (
	"net/http"

	"barangay-portal/database"
	"barangay-portal/middleware"
	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// AdminListReports returns all active reports, including those still
// awaiting approval.
func (h *Handlers) AdminListReports(c *gin.Context) {
	filter := database.ReportFilter{
		Issue:  c.Query("issue"),
		Search: c.Query("q"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.NormalizeStatus(raw)
		filter.Status = &status
	}

	reports, err := h.reports.ListReports(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// SetReportStatus moves a report through the status workflow
func (h *Handlers) SetReportStatus(c *gin.Context) {
	var req models.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	id := c.Param("id")
	before, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	oldStatus := before.Status

	report, err := h.reports.SetStatus(c.Request.Context(), id, req.Status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	if report.Status != oldStatus {
		middleware.CountStatusTransition(string(report.Status))
		h.events.PublishStatusChanged(report, oldStatus)
		log.Infof("Report %s moved from %s to %s", id, oldStatus, report.Status)
	}

	c.JSON(http.StatusOK, report)
}

// ArchiveReport moves a terminal-state report into the archive
func (h *Handlers) ArchiveReport(c *gin.Context) {
	if err := h.reports.ArchiveReport(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "report archived"})
}

// RestoreReport moves an archived report back to the active set
func (h *Handlers) RestoreReport(c *gin.Context) {
	report, err := h.reports.RestoreReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListArchivedReports returns the report archive
func (h *Handlers) ListArchivedReports(c *gin.Context) {
	reports, err := h.reports.ListArchivedReports(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// ListUsers returns all active resident profiles
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// ListArchivedUsers returns all deactivated profiles
func (h *Handlers) ListArchivedUsers(c *gin.Context) {
	users, err := h.users.ListArchivedUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// DeactivateUser moves a profile into the archive and kills its sessions
func (h *Handlers) DeactivateUser(c *gin.Context) {
	if err := h.users.ArchiveUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "user deactivated"})
}

// RestoreUser moves an archived profile back to the active set
func (h *Handlers) RestoreUser(c *gin.Context) {
	user, err := h.users.RestoreUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
