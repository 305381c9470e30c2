package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenExpiry  = 1 * time.Hour
	refreshTokenExpiry = 30 * 24 * time.Hour
	resetTokenExpiry   = 1 * time.Hour
)

// UserService handles profile, session and archival operations for users.
type UserService struct {
	db        *sql.DB
	jwtSecret []byte
}

// NewUserService creates a new user service instance
func NewUserService(db *sql.DB, jwtSecret string) *UserService {
	return &UserService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new resident account with email/password authentication.
// A deactivated email may not re-register; restore the account instead.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	deactivated, err := s.emailDeactivated(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}
	if deactivated {
		return nil, models.ErrAccountDeactivated
	}

	exists, err := s.userExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, models.ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:          "user_" + uuid.NewString(),
		DisplayName: req.FullName(),
		Email:       email,
		IsActive:    true,
		LastLoginAt: time.Now(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, display_name, email, password_hash) VALUES (?, ?, ?, ?)",
		user.ID, user.DisplayName, user.Email, string(passwordHash))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// Login authenticates a resident with email/password and returns the profile.
// A profile found in the archive refuses the session outright.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	deactivated, err := s.emailDeactivated(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}
	if deactivated {
		return nil, models.ErrAccountDeactivated
	}

	var user models.User
	var passwordHash sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, password_hash, is_admin, is_guest, is_active FROM users WHERE email = ?",
		email).Scan(&user.ID, &user.DisplayName, &user.Email, &passwordHash,
		&user.IsAdmin, &user.IsGuest, &user.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrAuthFailure
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !passwordHash.Valid {
		// Google-only account, no password set.
		return nil, models.ErrAuthFailure
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash.String), []byte(req.Password)); err != nil {
		log.Infof("Password mismatch for user %s", user.ID)
		return nil, models.ErrAuthFailure
	}

	if err := s.touchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	user.LastLoginAt = time.Now()

	return &user, nil
}

// GuestSession creates a named guest profile with no durable credentials.
func (s *UserService) GuestSession(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("name", "guest name is required")
	}

	user := &models.User{
		ID:          "guest_" + uuid.NewString(),
		DisplayName: name,
		IsGuest:     true,
		IsActive:    true,
		LastLoginAt: time.Now(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, display_name, is_guest) VALUES (?, ?, TRUE)",
		user.ID, user.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to insert guest: %w", err)
	}

	return user, nil
}

// GoogleUserInfo is the profile returned by Google's userinfo endpoint.
type GoogleUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ResolveGoogleUser finds or creates the profile for a Google sign-in and
// refreshes its login timestamp. Deactivated accounts are refused.
func (s *UserService) ResolveGoogleUser(ctx context.Context, info GoogleUserInfo) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))

	deactivated, err := s.emailDeactivated(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}
	if deactivated {
		return nil, models.ErrAccountDeactivated
	}

	var user models.User
	err = s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, is_admin, is_guest, is_active FROM users WHERE google_id = ? OR email = ?",
		info.ID, email).Scan(&user.ID, &user.DisplayName, &user.Email,
		&user.IsAdmin, &user.IsGuest, &user.IsActive)
	if err == sql.ErrNoRows {
		user = models.User{
			ID:          "user_" + uuid.NewString(),
			DisplayName: info.Name,
			Email:       email,
			IsActive:    true,
			LastLoginAt: time.Now(),
		}
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO users (id, display_name, email, google_id) VALUES (?, ?, ?, ?)",
			user.ID, user.DisplayName, user.Email, info.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	// Link the Google identity and refresh the login timestamp.
	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET google_id = ?, last_login_at = CURRENT_TIMESTAMP WHERE id = ?",
		info.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.LastLoginAt = time.Now()

	return &user, nil
}

// GetUser retrieves an active user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, is_admin, is_guest, is_active, last_login_at, created_at, updated_at FROM users WHERE id = ?",
		userID).Scan(&user.ID, &user.DisplayName, &email, &user.IsAdmin,
		&user.IsGuest, &user.IsActive, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.Email = email.String
	return &user, nil
}

// ListUsers returns all active non-guest profiles.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, email, is_admin, is_guest, is_active, last_login_at, created_at, updated_at FROM users WHERE is_guest = FALSE ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.DisplayName, &email, &u.IsAdmin,
			&u.IsGuest, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email = email.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListArchivedUsers returns all deactivated profiles.
func (s *UserService) ListArchivedUsers(ctx context.Context) ([]models.ArchivedUser, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, email, is_admin, is_guest, deactivated, last_login_at, created_at, archived_at FROM users_archive ORDER BY archived_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query archived users: %w", err)
	}
	defer rows.Close()

	var users []models.ArchivedUser
	for rows.Next() {
		var u models.ArchivedUser
		var email sql.NullString
		if err := rows.Scan(&u.ID, &u.DisplayName, &email, &u.IsAdmin,
			&u.IsGuest, &u.Deactivated, &u.LastLoginAt, &u.CreatedAt, &u.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived user: %w", err)
		}
		u.Email = email.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// ArchiveUser moves a profile into the archive. The insert runs before the
// delete so a crash mid-move duplicates the row instead of losing it.
func (s *UserService) ArchiveUser(ctx context.Context, userID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO users_archive (id, display_name, email, password_hash, google_id, is_admin, is_guest, deactivated, last_login_at, created_at)
		 SELECT id, display_name, email, password_hash, google_id, is_admin, is_guest, TRUE, last_login_at, created_at FROM users WHERE id = ?`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to archive user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("failed to remove archived user: %w", err)
	}

	// Deactivation invalidates every outstanding session.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id = ?", userID); err != nil {
		log.Errorf("Failed to purge tokens for archived user %s: %v", userID, err)
	}

	return nil
}

// RestoreUser moves an archived profile back to the active set, clearing the
// deactivated flag. Insert before delete, same as ArchiveUser.
func (s *UserService) RestoreUser(ctx context.Context, userID string) (*models.User, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users_archive WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("archived user %s: %w", userID, models.ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO users (id, display_name, email, password_hash, google_id, is_admin, is_guest, is_active, last_login_at, created_at)
		 SELECT id, display_name, email, password_hash, google_id, is_admin, is_guest, TRUE, last_login_at, created_at FROM users_archive WHERE id = ?`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM users_archive WHERE id = ?", userID); err != nil {
		return nil, fmt.Errorf("failed to remove restored user from archive: %w", err)
	}

	return s.GetUser(ctx, userID)
}

// TouchLastLogin refreshes the last-login timestamp for a verified session.
func (s *UserService) TouchLastLogin(ctx context.Context, userID string) error {
	return s.touchLastLogin(ctx, userID)
}

// GenerateTokenPair generates access and refresh tokens carrying the session
// kind, and stores their hashes.
func (s *UserService) GenerateTokenPair(ctx context.Context, user *models.User) (string, string, error) {
	now := time.Now()
	accessExpiry := now.Add(accessTokenExpiry)
	refreshExpiry := now.Add(refreshTokenExpiry)
	kind := user.SessionKind()

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"kind":    kind,
		"type":    "access",
		"exp":     accessExpiry.Unix(),
		"iat":     now.Unix(),
	})
	accessTokenString, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", err
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"kind":    kind,
		"type":    "refresh",
		"exp":     refreshExpiry.Unix(),
		"iat":     now.Unix(),
	})
	refreshTokenString, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", err
	}

	if err := s.storeTokens(ctx, user.ID, accessTokenString, refreshTokenString, accessExpiry, refreshExpiry); err != nil {
		return "", "", err
	}

	return accessTokenString, refreshTokenString, nil
}

// ValidateToken validates an access token and returns the user ID and session
// kind. Tokens of archived users are refused with ErrAccountDeactivated.
func (s *UserService) ValidateToken(tokenString string) (string, string, error) {
	userID, kind, err := s.parseToken(tokenString, "access")
	if err != nil {
		return "", "", err
	}

	if err := s.verifyTokenInDB(userID, tokenString, "access"); err != nil {
		return "", "", err
	}

	if err := s.userActive(userID); err != nil {
		return "", "", err
	}

	return userID, kind, nil
}

// ValidateRefreshToken validates a refresh token and returns the user ID.
func (s *UserService) ValidateRefreshToken(tokenString string) (string, error) {
	userID, _, err := s.parseToken(tokenString, "refresh")
	if err != nil {
		return "", err
	}

	if err := s.verifyTokenInDB(userID, tokenString, "refresh"); err != nil {
		return "", err
	}

	if err := s.userActive(userID); err != nil {
		return "", err
	}

	return userID, nil
}

// InvalidateToken removes a token, for logout.
func (s *UserService) InvalidateToken(ctx context.Context, userID, tokenString string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE user_id = ? AND token_hash = ?",
		userID, hashToken(tokenString))
	return err
}

// CreateResetToken issues a password-reset token for the account behind the
// email. Returns ErrNotFound when no active account matches.
func (s *UserService) CreateResetToken(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = ? AND is_guest = FALSE", email).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("email %s: %w", email, models.ErrNotFound)
		}
		return "", fmt.Errorf("failed to query user: %w", err)
	}

	token := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at) VALUES (?, ?, 'reset', FROM_UNIXTIME(?))",
		userID, hashToken(token), time.Now().Add(resetTokenExpiry).Unix())
	if err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and replaces the account password.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM auth_tokens WHERE token_hash = ? AND token_type = 'reset' AND expires_at > NOW()",
		hashToken(token)).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ErrAuthFailure
		}
		return fmt.Errorf("failed to query reset token: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", string(passwordHash), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Reset tokens are single use; drop every outstanding token for the user.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id = ?", userID); err != nil {
		log.Errorf("Failed to purge tokens after password reset for %s: %v", userID, err)
	}

	return nil
}

// Helper methods

func (s *UserService) parseToken(tokenString, wantType string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrAuthFailure
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", "", models.ErrAuthFailure
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", models.ErrAuthFailure
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != wantType {
		return "", "", models.ErrAuthFailure
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", models.ErrAuthFailure
	}
	kind, _ := claims["kind"].(string)
	if kind == "" {
		kind = models.KindUser
	}

	return userID, kind, nil
}

func (s *UserService) verifyTokenInDB(userID, tokenString, tokenType string) error {
	var exists bool
	err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM auth_tokens WHERE user_id = ? AND token_hash = ? AND token_type = ? AND expires_at > NOW())",
		userID, hashToken(tokenString), tokenType).Scan(&exists)
	if err != nil || !exists {
		return models.ErrAuthFailure
	}
	return nil
}

// userActive refuses sessions whose profile has been moved to the archive.
func (s *UserService) userActive(userID string) error {
	var exists bool
	if err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		return nil
	}

	var archived bool
	if err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM users_archive WHERE id = ?)", userID).Scan(&archived); err != nil {
		return fmt.Errorf("failed to check archive: %w", err)
	}
	if archived {
		return models.ErrAccountDeactivated
	}
	return models.ErrAuthFailure
}

func (s *UserService) touchLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *UserService) storeTokens(ctx context.Context, userID, accessToken, refreshToken string, accessExpiry, refreshExpiry time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at) VALUES (?, ?, 'access', FROM_UNIXTIME(?))",
		userID, hashToken(accessToken), accessExpiry.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at) VALUES (?, ?, 'refresh', FROM_UNIXTIME(?))",
		userID, hashToken(refreshToken), refreshExpiry.Unix())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *UserService) userExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
	return exists, err
}

// emailDeactivated checks the archive table for the email.
func (s *UserService) emailDeactivated(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users_archive WHERE email = ?)", email).Scan(&exists)
	return exists, err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
