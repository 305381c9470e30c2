package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"barangay-portal/cache"
	"barangay-portal/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// ReportService handles report storage, the status workflow and archival.
// Every successful write republishes the active-report snapshot into the
// injected snapshot store; the database commit always happens first, so a
// failed publish only means a stale display until the next one.
type ReportService struct {
	db        *sql.DB
	snapshots cache.Store
}

// NewReportService creates a new report service instance
func NewReportService(db *sql.DB, snapshots cache.Store) *ReportService {
	return &ReportService{
		db:        db,
		snapshots: snapshots,
	}
}

// ReportFilter narrows ListReports results. Status and Issue are equality
// filters on normalized values; Search is a case-insensitive substring match
// over description, location and submitter name, applied after the fetch.
type ReportFilter struct {
	Status      *models.Status
	Issue       string
	Search      string
	SubmitterID string
	VisibleOnly bool
}

// CreateReport validates a submission and stores it. Every submission path
// enters the workflow at Awaiting Approval with visibility off.
func (s *ReportService) CreateReport(ctx context.Context, req models.SubmitReportRequest, submitterID *string, submitterName string) (*models.Report, error) {
	if err := validateSubmission(req); err != nil {
		return nil, err
	}
	if submitterName == "" {
		submitterName = models.DefaultCommentAuthor
	}

	now := time.Now()
	report := &models.Report{
		ID:              uuid.NewString(),
		Issue:           req.Issue,
		Description:     strings.TrimSpace(req.Description),
		Location:        strings.TrimSpace(req.Location),
		Image:           req.Image,
		SubmitterName:   submitterName,
		SubmitterID:     submitterID,
		Status:          models.StatusAwaitingApproval,
		StatusUpdatedAt: now,
		Visible:         false,
		CreatedAt:       now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, visible, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Issue, report.Description, report.Location, report.Image,
		report.SubmitterName, report.SubmitterID, string(report.Status),
		report.StatusUpdatedAt, report.Visible, report.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	s.publishSnapshot(ctx)
	return report, nil
}

// GetReport retrieves an active report by ID.
func (s *ReportService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.scanReport(s.db.QueryRowContext(ctx,
		selectReportColumns+" FROM reports WHERE id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return report, nil
}

// ListReports returns active reports newest first, filtered per f.
func (s *ReportService) ListReports(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		selectReportColumns+" FROM reports ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := s.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if matchesFilter(report, f) {
			reports = append(reports, *report)
		}
	}
	return reports, rows.Err()
}

// UpdateReport patches a report's content fields. Only the original
// submitter or an admin may edit, decided against the stored row, and a
// report in a terminal state is no longer editable by its owner.
func (s *ReportService) UpdateReport(ctx context.Context, id, callerID string, isAdmin bool, patch models.UpdateReportRequest) (*models.Report, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	if !isAdmin && !report.OwnedBy(callerID) {
		return nil, models.ErrForbidden
	}
	if !isAdmin && report.Status.IsTerminal() {
		return nil, models.ErrForbidden
	}

	updates := []string{}
	args := []interface{}{}

	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if utf8.RuneCountInString(desc) < models.DescriptionMinLen {
			return nil, models.NewValidationError("description",
				fmt.Sprintf("must be at least %d characters", models.DescriptionMinLen))
		}
		if utf8.RuneCountInString(desc) > models.DescriptionMaxLen {
			return nil, models.NewValidationError("description",
				fmt.Sprintf("must be at most %d characters", models.DescriptionMaxLen))
		}
		updates = append(updates, "description = ?")
		args = append(args, desc)
		report.Description = desc
	}
	if patch.Location != nil {
		updates = append(updates, "location = ?")
		args = append(args, strings.TrimSpace(*patch.Location))
		report.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Image != nil {
		if err := validateImage(*patch.Image); err != nil {
			return nil, err
		}
		updates = append(updates, "image = ?")
		args = append(args, *patch.Image)
		report.Image = *patch.Image
	}

	if len(updates) == 0 {
		return report, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE reports SET %s WHERE id = ?", strings.Join(updates, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	s.publishSnapshot(ctx)
	return report, nil
}

// DeleteReport removes a report. Same ownership rule as UpdateReport.
func (s *ReportService) DeleteReport(ctx context.Context, id, callerID string, isAdmin bool) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && !report.OwnedBy(callerID) {
		return models.ErrForbidden
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	s.publishSnapshot(ctx)
	return nil
}

// SetStatus moves a report through the workflow. The status timestamp is
// bumped only when the value actually changes; re-saving the current status
// is a no-op. Accepting a report (Received) makes it publicly visible, and
// rejecting one records a reason.
func (s *ReportService) SetStatus(ctx context.Context, id, rawStatus, reason string) (*models.Report, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	newStatus := models.NormalizeStatus(rawStatus)
	oldStatus := report.Status
	if newStatus == oldStatus {
		return report, nil
	}

	if !models.CanTransition(oldStatus, newStatus) {
		return nil, fmt.Errorf("%s to %s: %w", oldStatus, newStatus, models.ErrInvalidTransition)
	}

	now := time.Now()
	report.Status = newStatus
	report.StatusUpdatedAt = now

	if newStatus == models.StatusReceived {
		report.Visible = true
	}
	if newStatus == models.StatusRejected {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = models.DefaultRejectReason
		}
		report.RejectReason = reason
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE reports SET status = ?, status_updated_at = ?, visible = ?, reject_reason = ? WHERE id = ?",
		string(report.Status), report.StatusUpdatedAt, report.Visible, report.RejectReason, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	s.publishSnapshot(ctx)
	return report, nil
}

// ArchiveReport moves a terminal-state report into the archive. The insert
// runs before the delete so a crash mid-move duplicates instead of losing.
func (s *ReportService) ArchiveReport(ctx context.Context, id string) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if !report.Status.IsTerminal() {
		return fmt.Errorf("report %s is %s: %w", id, report.Status, models.ErrInvalidTransition)
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO reports_archive (id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, reject_reason, visible, created_at)
		 SELECT id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, reject_reason, visible, created_at FROM reports WHERE id = ?`,
		id)
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove archived report: %w", err)
	}

	s.publishSnapshot(ctx)
	return nil
}

// RestoreReport moves an archived report back to the active set; it re-enters
// the workflow at its prior status.
func (s *ReportService) RestoreReport(ctx context.Context, id string) (*models.Report, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reports_archive WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("archived report %s: %w", id, models.ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO reports (id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, reject_reason, visible, created_at)
		 SELECT id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, reject_reason, visible, created_at FROM reports_archive WHERE id = ?`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to restore report: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM reports_archive WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to remove restored report from archive: %w", err)
	}

	s.publishSnapshot(ctx)
	return s.GetReport(ctx, id)
}

// ListArchivedReports returns archived reports, most recently archived first.
func (s *ReportService) ListArchivedReports(ctx context.Context) ([]models.ArchivedReport, error) {
	rows, err := s.db.QueryContext(ctx,
		selectReportColumns+", archived_at FROM reports_archive ORDER BY archived_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query archived reports: %w", err)
	}
	defer rows.Close()

	reports := []models.ArchivedReport{}
	for rows.Next() {
		var r models.ArchivedReport
		var location, image, rejectReason sql.NullString
		var submitterID sql.NullString
		var status string
		if err := rows.Scan(&r.ID, &r.Issue, &r.Description, &location, &image,
			&r.SubmitterName, &submitterID, &status, &r.StatusUpdatedAt,
			&rejectReason, &r.Visible, &r.CreatedAt, &r.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived report: %w", err)
		}
		r.Location = location.String
		r.Image = image.String
		r.RejectReason = rejectReason.String
		r.Status = models.NormalizeStatus(status)
		if submitterID.Valid {
			id := submitterID.String
			r.SubmitterID = &id
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Notifications derives one notification per active report for the viewer.
func (s *ReportService) Notifications(ctx context.Context, viewerID string) ([]models.Notification, error) {
	reports, err := s.ListReports(ctx, ReportFilter{VisibleOnly: true})
	if err != nil {
		return nil, err
	}

	lastRead, err := s.snapshots.LastRead(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last-read mark: %w", err)
	}

	return models.BuildNotifications(reports, lastRead), nil
}

// MarkNotificationsRead persists the viewer's last-read mark as now.
func (s *ReportService) MarkNotificationsRead(ctx context.Context, viewerID string) error {
	if err := s.snapshots.SetLastRead(ctx, viewerID, time.Now()); err != nil {
		return fmt.Errorf("failed to set last-read mark: %w", err)
	}
	return nil
}

// Helper methods

const selectReportColumns = "SELECT id, issue, description, location, image, submitter_name, submitter_id, status, status_updated_at, reject_reason, visible, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *ReportService) scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var location, image, rejectReason, submitterID sql.NullString
	var status string
	err := row.Scan(&r.ID, &r.Issue, &r.Description, &location, &image,
		&r.SubmitterName, &submitterID, &status, &r.StatusUpdatedAt,
		&rejectReason, &r.Visible, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Location = location.String
	r.Image = image.String
	r.RejectReason = rejectReason.String
	// Parse at the boundary: raw status strings never leave this package.
	r.Status = models.NormalizeStatus(status)
	if submitterID.Valid {
		id := submitterID.String
		r.SubmitterID = &id
	}
	return &r, nil
}

func matchesFilter(r *models.Report, f ReportFilter) bool {
	if f.VisibleOnly && !r.Visible {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Issue != "" && r.Issue != f.Issue {
		return false
	}
	if f.SubmitterID != "" && (r.SubmitterID == nil || *r.SubmitterID != f.SubmitterID) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(r.Description + " " + r.Location + " " + r.SubmitterName)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func validateSubmission(req models.SubmitReportRequest) error {
	if !models.ValidIssue(req.Issue) {
		return models.NewValidationError("issue", "must be one of the fixed categories")
	}
	desc := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(desc) < models.DescriptionMinLen {
		return models.NewValidationError("description",
			fmt.Sprintf("must be at least %d characters", models.DescriptionMinLen))
	}
	if utf8.RuneCountInString(desc) > models.DescriptionMaxLen {
		return models.NewValidationError("description",
			fmt.Sprintf("must be at most %d characters", models.DescriptionMaxLen))
	}
	return validateImage(req.Image)
}

func validateImage(image string) error {
	if image != "" && !strings.HasPrefix(image, "data:image/") {
		return models.NewValidationError("image", "must be an image data URI")
	}
	return nil
}

// publishSnapshot replaces the snapshot store's report list wholesale. The
// snapshot feeds the public live feed, so only visible reports are included.
// A failure here is logged and tolerated; the database remains the source of
// truth and the next write republishes.
func (s *ReportService) publishSnapshot(ctx context.Context) {
	reports, err := s.ListReports(ctx, ReportFilter{VisibleOnly: true})
	if err != nil {
		log.Errorf("Failed to build report snapshot: %v", err)
		return
	}
	snap := &cache.Snapshot{Reports: reports, UpdatedAt: time.Now()}
	if err := s.snapshots.SetSnapshot(ctx, snap); err != nil {
		log.Errorf("Failed to publish report snapshot: %v", err)
	}
}
