package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"barangay-portal/database"
	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Register handles resident registration
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles email/password authentication
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTokenPair(c, user)
}

// GuestSession establishes a named guest session with no durable account
func (h *Handlers) GuestSession(c *gin.Context) {
	var req models.GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.GuestSession(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTokenPair(c, user)
}

// RefreshToken exchanges a refresh token for a fresh token pair
func (h *Handlers) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	userID, err := h.users.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTokenPair(c, user)
}

// Logout invalidates the caller's access token
func (h *Handlers) Logout(c *gin.Context) {
	userID := c.GetString("user_id")
	token := c.GetString("token")

	if err := h.users.InvalidateToken(c.Request.Context(), userID, token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "logged out"})
}

// GetMe returns the authenticated caller's profile
func (h *Handlers) GetMe(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ForgotPassword issues a reset token and emails the reset link. It always
// answers 200 so the endpoint cannot be used to probe registered emails.
func (h *Handlers) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.users.CreateResetToken(c.Request.Context(), req.Email)
	if err == nil && h.emailSender != nil {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", h.frontendURL, token)
		if err := h.emailSender.SendPasswordResetEmail(req.Email, resetURL); err != nil {
			log.Errorf("Failed to send reset email to %s: %v", req.Email, err)
		}
	} else if err != nil {
		log.Infof("Password reset requested for unknown email")
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "if the email is registered, a reset link has been sent"})
}

// ResetPassword consumes a reset token and sets a new password
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "password updated"})
}

// GoogleAuth redirects to Google's OAuth authorization URL
func (h *Handlers) GoogleAuth(c *gin.Context) {
	if h.googleOAuth == nil {
		c.JSON(http.StatusNotImplemented, models.ErrorResponse{Error: "google sign-in is not configured"})
		return
	}

	state, err := generateState()
	if err != nil {
		log.Errorf("Failed to generate oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "something went wrong"})
		return
	}
	// Store state in cookie for CSRF protection
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)

	url := h.googleOAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback handles the OAuth callback: exchanges the code, fetches the
// Google profile, resolves the local profile and returns a token pair.
func (h *Handlers) GoogleCallback(c *gin.Context) {
	if h.googleOAuth == nil {
		c.JSON(http.StatusNotImplemented, models.ErrorResponse{Error: "google sign-in is not configured"})
		return
	}

	state := c.Query("state")
	savedState, err := c.Cookie("oauth_state")
	if err != nil || state != savedState {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid oauth state"})
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing authorization code"})
		return
	}

	token, err := h.googleOAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Errorf("Failed to exchange oauth code: %v", err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	info, err := h.fetchGoogleUserInfo(c, token)
	if err != nil {
		log.Errorf("Failed to fetch google user info: %v", err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	user, err := h.users.ResolveGoogleUser(c.Request.Context(), *info)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondTokenPair(c, user)
}

func (h *Handlers) fetchGoogleUserInfo(c *gin.Context, token *oauth2.Token) (*database.GoogleUserInfo, error) {
	client := h.googleOAuth.Client(c.Request.Context(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info database.GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (h *Handlers) respondTokenPair(c *gin.Context, user *models.User) {
	token, refreshToken, err := h.users.GenerateTokenPair(c.Request.Context(), user)
	if err != nil {
		log.Errorf("Failed to generate tokens for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Token:        token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    3600, // 1 hour
		Kind:         user.SessionKind(),
		User:         user,
	})
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
