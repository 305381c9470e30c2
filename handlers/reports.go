package handlers

import (
	"net/http"

	"barangay-portal/database"
	"barangay-portal/middleware"
	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// ListReports returns the public report feed. Only accepted (visible)
// reports are served on the public route; filters are ?status=, ?issue= and
// ?q= for substring search.
func (h *Handlers) ListReports(c *gin.Context) {
	filter := database.ReportFilter{
		Issue:       c.Query("issue"),
		Search:      c.Query("q"),
		VisibleOnly: true,
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

// GetReport returns a single report
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// MyReports lists the caller's own submissions regardless of visibility.
func (h *Handlers) MyReports(c *gin.Context) {
	callerID, _ := callerIdentity(c)

	reports, err := h.reports.ListReports(c.Request.Context(),
		database.ReportFilter{SubmitterID: callerID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// SubmitReport handles a new report submission. Every submission enters the
// workflow at Awaiting Approval.
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req models.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	callerID, _ := callerIdentity(c)
	user, err := h.users.GetUser(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}

	submitterID := &user.ID
	report, err := h.reports.CreateReport(c.Request.Context(), req, submitterID, user.DisplayName)
	if err != nil {
		middleware.CountReportSubmission("rejected")
		respondError(c, err)
		return
	}
	middleware.CountReportSubmission("accepted")

	h.events.PublishReportCreated(report)
	log.Infof("Report %s submitted by %s", report.ID, user.ID)

	c.JSON(http.StatusCreated, report)
}

// UpdateReport patches a report's content fields; submitter or admin only
func (h *Handlers) UpdateReport(c *gin.Context) {
	var req models.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	callerID, isAdmin := callerIdentity(c)
	report, err := h.reports.UpdateReport(c.Request.Context(), c.Param("id"), callerID, isAdmin, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// DeleteReport removes a report; submitter or admin only
func (h *Handlers) DeleteReport(c *gin.Context) {
	callerID, isAdmin := callerIdentity(c)
	if err := h.reports.DeleteReport(c.Request.Context(), c.Param("id"), callerID, isAdmin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "report deleted"})
}
