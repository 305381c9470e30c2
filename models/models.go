package models

import (
	"strings"
	"time"
)

// Session kinds resolved from a token's claims.
const (
	KindGuest = "guest"
	KindUser  = "user"
	KindAdmin = "admin"
)

// User represents a resident or admin profile
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	IsGuest     bool      `json:"is_guest"`
	IsActive    bool      `json:"is_active"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionKind returns the session kind the user's profile resolves to.
func (u *User) SessionKind() string {
	switch {
	case u.IsAdmin:
		return KindAdmin
	case u.IsGuest:
		return KindGuest
	default:
		return KindUser
	}
}

// ArchivedUser is a deactivated profile held in the archive table.
type ArchivedUser struct {
	User
	Deactivated bool      `json:"deactivated"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// Report represents a citizen-submitted issue record
type Report struct {
	ID              string    `json:"id"`
	Issue           string    `json:"issue"`
	Description     string    `json:"description"`
	Location        string    `json:"location,omitempty"`
	Image           string    `json:"image,omitempty"` // data URI or empty
	SubmitterName   string    `json:"submitter_name"`
	SubmitterID     *string   `json:"submitter_id"` // nil for guest-less submissions
	Status          Status    `json:"status"`
	StatusUpdatedAt time.Time `json:"status_updated_at"`
	RejectReason    string    `json:"reject_reason,omitempty"`
	Visible         bool      `json:"visible"`
	CreatedAt       time.Time `json:"created_at"`
}

// ArchivedReport is a terminal-state report held in the archive table.
type ArchivedReport struct {
	Report
	ArchivedAt time.Time `json:"archived_at"`
}

// OwnedBy reports whether the given caller may edit the report's content.
func (r *Report) OwnedBy(callerID string) bool {
	return r.SubmitterID != nil && *r.SubmitterID == callerID
}

// Comment is an append-only entry attached to a report.
type Comment struct {
	ID         string    `json:"id"`
	ReportID   string    `json:"report_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReactionKind is one of the six fixed reaction kinds.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionHaha  ReactionKind = "haha"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"
)

// ReactionKinds lists every valid reaction kind.
var ReactionKinds = []ReactionKind{
	ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry,
}

// ValidReactionKind reports whether k is one of the six kinds.
func ValidReactionKind(k ReactionKind) bool {
	for _, kind := range ReactionKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// ReactionCounts maps reaction kinds to their per-report counts.
type ReactionCounts map[ReactionKind]int

// Total sums the counts across all kinds.
func (rc ReactionCounts) Total() int {
	total := 0
	for _, n := range rc {
		total += n
	}
	return total
}

// Notification is derived from a report's status; it is never stored.
type Notification struct {
	ReportID string    `json:"report_id"`
	Issue    string    `json:"issue"`
	Status   Status    `json:"status"`
	When     time.Time `json:"when"`
	Unread   bool      `json:"unread"`
}

// BuildNotifications derives one notification per report. A notification is
// unread when its status changed after the viewer's last-read mark.
func BuildNotifications(reports []Report, lastRead time.Time) []Notification {
	notifications := make([]Notification, 0, len(reports))
	for _, r := range reports {
		notifications = append(notifications, Notification{
			ReportID: r.ID,
			Issue:    r.Issue,
			Status:   r.Status,
			When:     r.StatusUpdatedAt,
			Unread:   r.StatusUpdatedAt.After(lastRead),
		})
	}
	return notifications
}

// IssueCategories is the fixed set of selectable issue categories.
var IssueCategories = []string{
	"Road Damage",
	"Flooding",
	"Garbage Collection",
	"Street Lighting",
	"Water Supply",
	"Noise Complaint",
	"Public Safety",
	"Others",
}

// ValidIssue reports whether the issue is one of the fixed categories.
func ValidIssue(issue string) bool {
	for _, cat := range IssueCategories {
		if cat == issue {
			return true
		}
	}
	return false
}

const (
	// DescriptionMinLen is the minimum trimmed description length on submission.
	DescriptionMinLen = 10
	// DescriptionMaxLen is the maximum description length.
	DescriptionMaxLen = 500
	// CommentMinLen is the minimum trimmed comment length.
	CommentMinLen = 2
	// DefaultRejectReason is stored when an admin rejects without a reason.
	DefaultRejectReason = "No reason given"
	// DefaultCommentAuthor is used when a commenter has no display name.
	DefaultCommentAuthor = "Guest"
)

// ReportEvent is published to the message broker on report lifecycle changes.
type ReportEvent struct {
	Type      string    `json:"type"` // "report.created" or "report.status_changed"
	Report    *Report   `json:"report"`
	OldStatus Status    `json:"old_status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Request/response types

// RegisterRequest represents the request to create a new resident account
type RegisterRequest struct {
	FirstName  string `json:"first_name" binding:"required,max=128"`
	MiddleName string `json:"middle_name" binding:"omitempty,max=128"`
	LastName   string `json:"last_name" binding:"required,max=128"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
}

// FullName composes the display name from the parts supplied at registration.
func (r *RegisterRequest) FullName() string {
	parts := []string{r.FirstName, r.MiddleName, r.LastName}
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, " ")
}

// LoginRequest represents an email/password authentication request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GuestRequest represents a guest session request
type GuestRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

// RefreshTokenRequest represents a token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ForgotPasswordRequest asks for a password-reset email
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest consumes a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// SubmitReportRequest represents a new report submission
type SubmitReportRequest struct {
	Issue       string `json:"issue" binding:"required"`
	Description string `json:"description" binding:"required"`
	Location    string `json:"location"`
	Image       string `json:"image"`
}

// UpdateReportRequest patches a report's content fields
type UpdateReportRequest struct {
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// SetStatusRequest moves a report through the status workflow
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// ReactRequest toggles the caller's reaction on a report
type ReactRequest struct {
	Kind ReactionKind `json:"kind" binding:"required"`
}

// CommentRequest appends a comment to a report
type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// TokenResponse represents the authentication response
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Kind         string `json:"kind"`
	User         *User  `json:"user,omitempty"`
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// VerifyLoginResponse is returned by the token-verification endpoint.
type VerifyLoginResponse struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
}

// FeedMessage is broadcast to live-feed subscribers on every snapshot publish.
type FeedMessage struct {
	Type      string    `json:"type"`
	Reports   []Report  `json:"reports"`
	UpdatedAt time.Time `json:"updated_at"`
}
