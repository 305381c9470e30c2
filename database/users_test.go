package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"barangay-portal/models"
)

const testJWTSecret = "test-secret"

func userRow(id, name, email string, isAdmin bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "display_name", "email", "is_admin", "is_guest", "is_active",
		"last_login_at", "created_at", "updated_at",
	}).AddRow(id, name, email, isAdmin, false, true, now, now, now)
}

func TestRegisterDeactivatedEmail(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WithArgs("maria@example.com").
			WillReturnRows(existsRow(true))

		_, err := svc.Register(context.Background(), models.RegisterRequest{
			FirstName: "Maria",
			LastName:  "Santos",
			Email:     "Maria@Example.com",
			Password:  "hunter22",
		})
		if !errors.Is(err, models.ErrAccountDeactivated) {
			t.Fatalf("expected ErrAccountDeactivated, got %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRegisterDuplicateEmail(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("SELECT 1 FROM users WHERE email").
			WillReturnRows(existsRow(true))

		_, err := svc.Register(context.Background(), models.RegisterRequest{
			FirstName: "Maria",
			LastName:  "Santos",
			Email:     "maria@example.com",
			Password:  "hunter22",
		})
		if !errors.Is(err, models.ErrUserExists) {
			t.Fatalf("expected ErrUserExists, got %v", err)
		}
	})
}

func TestRegisterSuccess(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("SELECT 1 FROM users WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "Maria Santos", "maria@example.com", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		user, err := svc.Register(context.Background(), models.RegisterRequest{
			FirstName: "Maria",
			LastName:  "Santos",
			Email:     "  Maria@Example.COM ",
			Password:  "hunter22",
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if user.Email != "maria@example.com" {
			t.Errorf("email not normalized: %q", user.Email)
		}
		if !strings.HasPrefix(user.ID, "user_") {
			t.Errorf("user ID %q missing user_ prefix", user.ID)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestLoginDeactivatedAccount(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WithArgs("juan@example.com").
			WillReturnRows(existsRow(true))

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Email:    "juan@example.com",
			Password: "whatever",
		})
		if !errors.Is(err, models.ErrAccountDeactivated) {
			t.Fatalf("expected ErrAccountDeactivated, got %v", err)
		}

		// The active users table must not even be consulted.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestLoginWrongPassword(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		hash, _ := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("password_hash, is_admin, is_guest, is_active FROM users WHERE email").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "display_name", "email", "password_hash", "is_admin", "is_guest", "is_active",
			}).AddRow("user_1", "Juan", "juan@example.com", string(hash), false, false, true))

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Email:    "juan@example.com",
			Password: "wrong-password",
		})
		if !errors.Is(err, models.ErrAuthFailure) {
			t.Fatalf("expected ErrAuthFailure, got %v", err)
		}
	})
}

func TestLoginSuccess(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		hash, _ := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("password_hash, is_admin, is_guest, is_active FROM users WHERE email").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "display_name", "email", "password_hash", "is_admin", "is_guest", "is_active",
			}).AddRow("user_1", "Juan", "juan@example.com", string(hash), false, false, true))
		mock.ExpectExec("UPDATE users SET last_login_at").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := svc.Login(context.Background(), models.LoginRequest{
			Email:    "juan@example.com",
			Password: "right-password",
		})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if user.ID != "user_1" {
			t.Errorf("user ID = %q, want user_1", user.ID)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestLoginGoogleOnlyAccount(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("password_hash, is_admin, is_guest, is_active FROM users WHERE email").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "display_name", "email", "password_hash", "is_admin", "is_guest", "is_active",
			}).AddRow("user_1", "Juan", "juan@example.com", nil, false, false, true))

		_, err := svc.Login(context.Background(), models.LoginRequest{
			Email:    "juan@example.com",
			Password: "anything",
		})
		if !errors.Is(err, models.ErrAuthFailure) {
			t.Fatalf("expected ErrAuthFailure for passwordless account, got %v", err)
		}
	})
}

func TestGuestSession(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "Lola Remedios").
			WillReturnResult(sqlmock.NewResult(1, 1))

		user, err := svc.GuestSession(context.Background(), " Lola Remedios ")
		if err != nil {
			t.Fatalf("GuestSession failed: %v", err)
		}
		if !user.IsGuest {
			t.Error("guest session must be marked as guest")
		}
		if !strings.HasPrefix(user.ID, "guest_") {
			t.Errorf("guest ID %q missing guest_ prefix", user.ID)
		}
	})
}

func TestGuestSessionRequiresName(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		_, err := svc.GuestSession(context.Background(), "   ")
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestArchiveUserSequencing(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users WHERE id").
			WillReturnRows(existsRow(true))
		mock.ExpectExec("REPLACE INTO users_archive").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM users WHERE id").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM auth_tokens WHERE user_id").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 3))

		if err := svc.ArchiveUser(context.Background(), "user_1"); err != nil {
			t.Fatalf("ArchiveUser failed: %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestArchiveUserNotFound(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users WHERE id").
			WillReturnRows(existsRow(false))

		err := svc.ArchiveUser(context.Background(), "ghost")
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRestoreUser(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE id").
			WillReturnRows(existsRow(true))
		mock.ExpectExec("REPLACE INTO users").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM users_archive WHERE id").
			WithArgs("user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM users WHERE id").
			WillReturnRows(userRow("user_1", "Juan", "juan@example.com", false))

		user, err := svc.RestoreUser(context.Background(), "user_1")
		if err != nil {
			t.Fatalf("RestoreUser failed: %v", err)
		}
		if !user.IsActive {
			t.Error("restored user must be active")
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestTokenRoundTrip(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)
		user := &models.User{ID: "user_1", IsAdmin: true}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO auth_tokens").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO auth_tokens").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		access, refresh, err := svc.GenerateTokenPair(context.Background(), user)
		if err != nil {
			t.Fatalf("GenerateTokenPair failed: %v", err)
		}
		if access == "" || refresh == "" || access == refresh {
			t.Fatal("expected two distinct non-empty tokens")
		}

		mock.ExpectQuery("FROM auth_tokens WHERE user_id").
			WillReturnRows(existsRow(true))
		mock.ExpectQuery("SELECT 1 FROM users WHERE id").
			WillReturnRows(existsRow(true))

		userID, kind, err := svc.ValidateToken(access)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if userID != "user_1" {
			t.Errorf("user ID = %q, want user_1", userID)
		}
		if kind != models.KindAdmin {
			t.Errorf("session kind = %q, want %q", kind, models.KindAdmin)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestValidateTokenRejectsRefreshToken(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)
		user := &models.User{ID: "user_1"}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO auth_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO auth_tokens").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		_, refresh, err := svc.GenerateTokenPair(context.Background(), user)
		if err != nil {
			t.Fatalf("GenerateTokenPair failed: %v", err)
		}

		_, _, err = svc.ValidateToken(refresh)
		if !errors.Is(err, models.ErrAuthFailure) {
			t.Fatalf("expected ErrAuthFailure for a refresh token, got %v", err)
		}
	})
}

func TestValidateTokenArchivedUser(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)
		user := &models.User{ID: "user_1"}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO auth_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO auth_tokens").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		access, _, err := svc.GenerateTokenPair(context.Background(), user)
		if err != nil {
			t.Fatalf("GenerateTokenPair failed: %v", err)
		}

		// Token hash is still on file, but the profile has moved to the
		// archive in the meantime.
		mock.ExpectQuery("FROM auth_tokens WHERE user_id").
			WillReturnRows(existsRow(true))
		mock.ExpectQuery("SELECT 1 FROM users WHERE id").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE id").
			WillReturnRows(existsRow(true))

		_, _, err = svc.ValidateToken(access)
		if !errors.Is(err, models.ErrAccountDeactivated) {
			t.Fatalf("expected ErrAccountDeactivated, got %v", err)
		}
	})
}

func TestResolveGoogleUserCreates(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("FROM users WHERE google_id").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "Juan Dela Cruz", "juan@example.com", "google-123").
			WillReturnResult(sqlmock.NewResult(1, 1))

		user, err := svc.ResolveGoogleUser(context.Background(), GoogleUserInfo{
			ID:    "google-123",
			Email: "Juan@Example.com",
			Name:  "Juan Dela Cruz",
		})
		if err != nil {
			t.Fatalf("ResolveGoogleUser failed: %v", err)
		}
		if user.Email != "juan@example.com" {
			t.Errorf("email not normalized: %q", user.Email)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResolveGoogleUserLinksExisting(t *testing.T) {
	it(func() {
		svc := NewUserService(db, testJWTSecret)

		mock.ExpectQuery("SELECT 1 FROM users_archive WHERE email").
			WillReturnRows(existsRow(false))
		mock.ExpectQuery("FROM users WHERE google_id").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "display_name", "email", "is_admin", "is_guest", "is_active",
			}).AddRow("user_1", "Juan", "juan@example.com", false, false, true))
		mock.ExpectExec("UPDATE users SET google_id").
			WithArgs("google-123", "user_1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := svc.ResolveGoogleUser(context.Background(), GoogleUserInfo{
			ID:    "google-123",
			Email: "juan@example.com",
			Name:  "Juan Dela Cruz",
		})
		if err != nil {
			t.Fatalf("ResolveGoogleUser failed: %v", err)
		}
		if user.ID != "user_1" {
			t.Errorf("user ID = %q, want the existing account", user.ID)
		}
	})
}
