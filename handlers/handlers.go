package handlers

import (
	"errors"
	"net/http"

	"barangay-portal/cache"
	"barangay-portal/database"
	"barangay-portal/middleware"
	"barangay-portal/models"
	"barangay-portal/services"
	"barangay-portal/utils/email"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// Handlers handles HTTP requests for the portal
type Handlers struct {
	users       *database.UserService
	reports     *database.ReportService
	engagement  *database.EngagementService
	snapshots   cache.Store
	hub         *services.Hub
	events      *services.EventPublisher
	emailSender *email.Sender
	googleOAuth *oauth2.Config
	frontendURL string
}

// NewHandlers creates a new handlers instance. events, emailSender and
// googleOAuth may be nil; the corresponding endpoints degrade gracefully.
func NewHandlers(
	users *database.UserService,
	reports *database.ReportService,
	engagement *database.EngagementService,
	snapshots cache.Store,
	hub *services.Hub,
	events *services.EventPublisher,
	emailSender *email.Sender,
	googleOAuth *oauth2.Config,
	frontendURL string,
) *Handlers {
	return &Handlers{
		users:       users,
		reports:     reports,
		engagement:  engagement,
		snapshots:   snapshots,
		hub:         hub,
		events:      events,
		emailSender: emailSender,
		googleOAuth: googleOAuth,
		frontendURL: frontendURL,
	}
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      "barangay-portal",
		"feed_clients": h.hub.ConnectedClients(),
	})
}

// VerifyLogin is the bearer-token verification endpoint (POST /api/login).
// It verifies the token, refreshes the login timestamp and returns the user
// ID, or 401 on an invalid/expired token.
func (h *Handlers) VerifyLogin(c *gin.Context) {
	tokenString := middleware.ExtractToken(c.GetHeader("Authorization"))
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing bearer token"})
		return
	}

	userID, kind, err := h.users.ValidateToken(tokenString)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.users.TouchLastLogin(c.Request.Context(), userID); err != nil {
		log.Errorf("Failed to refresh login timestamp for %s: %v", userID, err)
	}

	c.JSON(http.StatusOK, models.VerifyLoginResponse{UserID: userID, Kind: kind})
}

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrAuthFailure):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, models.ErrAccountDeactivated):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "account has been deactivated"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "you are not allowed to modify this report"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
	case errors.Is(err, models.ErrUserExists):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "user already exists"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "something went wrong"})
	}
}

// callerIdentity returns the authenticated caller's ID and admin flag.
func callerIdentity(c *gin.Context) (string, bool) {
	return c.GetString("user_id"), c.GetString("session_kind") == models.KindAdmin
}
