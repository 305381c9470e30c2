package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"barangay-portal/models"

	"github.com/google/uuid"
)

// EngagementService handles per-report reactions and comments. Both are
// persisted before any caller-visible state advances, so an interrupted
// request never leaves counts and viewer mappings out of step for long: the
// whole toggle runs in one transaction.
type EngagementService struct {
	db *sql.DB
}

// NewEngagementService creates a new engagement service instance
func NewEngagementService(db *sql.DB) *EngagementService {
	return &EngagementService{db: db}
}

// reactionChange describes how a toggle call alters the counts.
type reactionChange struct {
	dec      models.ReactionKind // kind to decrement, "" for none
	inc      models.ReactionKind // kind to increment, "" for none
	newPrior models.ReactionKind // viewer's reaction after the call, "" for cleared
}

// resolveToggle applies the single-active-reaction rule: re-selecting the
// prior kind clears it, a different kind moves the count, no prior adds one.
func resolveToggle(prior, kind models.ReactionKind) reactionChange {
	switch prior {
	case kind:
		return reactionChange{dec: kind}
	case "":
		return reactionChange{inc: kind, newPrior: kind}
	default:
		return reactionChange{dec: prior, inc: kind, newPrior: kind}
	}
}

// React toggles the viewer's reaction on a report and returns the updated
// counts. Counts never go below zero.
func (s *EngagementService) React(ctx context.Context, reportID, viewerID string, kind models.ReactionKind) (models.ReactionCounts, error) {
	if !models.ValidReactionKind(kind) {
		return nil, models.NewValidationError("kind", "unknown reaction kind")
	}
	if err := s.reportExists(ctx, reportID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prior models.ReactionKind
	err = tx.QueryRowContext(ctx,
		"SELECT kind FROM viewer_reactions WHERE viewer_id = ? AND report_id = ? FOR UPDATE",
		viewerID, reportID).Scan(&prior)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query viewer reaction: %w", err)
	}

	change := resolveToggle(prior, kind)

	if change.dec != "" {
		_, err = tx.ExecContext(ctx,
			"UPDATE report_reactions SET count = count - 1 WHERE report_id = ? AND kind = ? AND count > 0",
			reportID, string(change.dec))
		if err != nil {
			return nil, fmt.Errorf("failed to decrement reaction: %w", err)
		}
	}
	if change.inc != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO report_reactions (report_id, kind, count) VALUES (?, ?, 1) ON DUPLICATE KEY UPDATE count = count + 1",
			reportID, string(change.inc))
		if err != nil {
			return nil, fmt.Errorf("failed to increment reaction: %w", err)
		}
	}

	if change.newPrior == "" {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM viewer_reactions WHERE viewer_id = ? AND report_id = ?",
			viewerID, reportID)
	} else {
		_, err = tx.ExecContext(ctx,
			"REPLACE INTO viewer_reactions (viewer_id, report_id, kind) VALUES (?, ?, ?)",
			viewerID, reportID, string(change.newPrior))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update viewer reaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.ReactionCounts(ctx, reportID)
}

// ReactionCounts returns the per-kind counts for a report, with every kind
// present in the map.
func (s *EngagementService) ReactionCounts(ctx context.Context, reportID string) (models.ReactionCounts, error) {
	counts := models.ReactionCounts{}
	for _, kind := range models.ReactionKinds {
		counts[kind] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, count FROM report_reactions WHERE report_id = ?", reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reaction counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reaction count: %w", err)
		}
		counts[models.ReactionKind(kind)] = count
	}
	return counts, rows.Err()
}

// ViewerReaction returns the viewer's active reaction on a report, "" if none.
func (s *EngagementService) ViewerReaction(ctx context.Context, reportID, viewerID string) (models.ReactionKind, error) {
	var kind models.ReactionKind
	err := s.db.QueryRowContext(ctx,
		"SELECT kind FROM viewer_reactions WHERE viewer_id = ? AND report_id = ?",
		viewerID, reportID).Scan(&kind)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query viewer reaction: %w", err)
	}
	return kind, nil
}

// AddComment appends a comment to a report. Comments shorter than two
// characters after trimming are rejected; comments are never edited or
// deleted once posted.
func (s *EngagementService) AddComment(ctx context.Context, reportID, authorName, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < models.CommentMinLen {
		return nil, models.NewValidationError("text",
			fmt.Sprintf("must be at least %d characters", models.CommentMinLen))
	}
	if err := s.reportExists(ctx, reportID); err != nil {
		return nil, err
	}

	authorName = strings.TrimSpace(authorName)
	if authorName == "" {
		authorName = models.DefaultCommentAuthor
	}

	comment := &models.Comment{
		ID:         uuid.NewString(),
		ReportID:   reportID,
		AuthorName: authorName,
		Text:       text,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO report_comments (id, report_id, author_name, text) VALUES (?, ?, ?, ?)",
		comment.ID, comment.ReportID, comment.AuthorName, comment.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return comment, nil
}

// ListComments returns a report's comments in insertion order.
func (s *EngagementService) ListComments(ctx context.Context, reportID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, report_id, author_name, text, created_at FROM report_comments WHERE report_id = ? ORDER BY created_at ASC, id ASC",
		reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AuthorName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *EngagementService) reportExists(ctx context.Context, reportID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reports WHERE id = ?)", reportID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check report: %w", err)
	}
	if !exists {
		return fmt.Errorf("report %s: %w", reportID, models.ErrNotFound)
	}
	return nil
}
