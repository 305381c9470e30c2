package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"barangay-portal/cache"
	"barangay-portal/models"
)

func newReportService() (*ReportService, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return NewReportService(db, store), store
}

func TestCreateReportDefaults(t *testing.T) {
	it(func() {
		svc, store := newReportService()

		mock.ExpectExec("INSERT INTO reports").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		submitterID := "user_abc"
		report, err := svc.CreateReport(context.Background(), models.SubmitReportRequest{
			Issue:       "Road Damage",
			Description: "There is a large pothole on Main St",
			Location:    "Main St",
		}, &submitterID, "Juan Dela Cruz")
		if err != nil {
			t.Fatalf("CreateReport failed: %v", err)
		}

		if report.Status != models.StatusAwaitingApproval {
			t.Errorf("new report status = %q, want %q", report.Status, models.StatusAwaitingApproval)
		}
		if report.Visible {
			t.Error("new report must not be visible before acceptance")
		}
		if report.ID == "" {
			t.Error("new report must have a generated ID")
		}

		snap, _ := store.GetSnapshot(context.Background())
		if snap == nil {
			t.Error("expected a snapshot publish after create")
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSnapshotOmitsUnapprovedReports(t *testing.T) {
	it(func() {
		svc, store := newReportService()

		mock.ExpectExec("INSERT INTO reports").
			WillReturnResult(sqlmock.NewResult(0, 1))
		rows := sqlmock.NewRows(reportColumns).
			AddRow("r1", "Road Damage", "There is a large pothole on Main St", "", "",
				"Juan", strPtr("user_abc"), "Awaiting Approval", time.Now(), "", false, time.Now()).
			AddRow("r2", "Flooding", "Knee-deep water on Rizal St after rain", "", "",
				"Maria", nil, "Received", time.Now(), "", true, time.Now())
		mock.ExpectQuery("FROM reports ORDER BY created_at DESC").WillReturnRows(rows)

		submitterID := "user_abc"
		_, err := svc.CreateReport(context.Background(), models.SubmitReportRequest{
			Issue:       "Road Damage",
			Description: "There is a large pothole on Main St",
		}, &submitterID, "Juan Dela Cruz")
		if err != nil {
			t.Fatalf("CreateReport failed: %v", err)
		}

		// The snapshot feeds the unauthenticated live feed: reports still
		// awaiting approval must never appear in it.
		snap, err := store.GetSnapshot(context.Background())
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if snap == nil {
			t.Fatal("expected a snapshot publish after create")
		}
		if len(snap.Reports) != 1 || snap.Reports[0].ID != "r2" {
			t.Errorf("snapshot = %+v, want only the visible report r2", snap.Reports)
		}
		for _, r := range snap.Reports {
			if !r.Visible {
				t.Errorf("snapshot carries invisible report %s", r.ID)
			}
		}
	})
}

func TestCreateReportValidation(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		tests := []struct {
			name string
			req  models.SubmitReportRequest
		}{
			{
				name: "short description",
				req:  models.SubmitReportRequest{Issue: "Road Damage", Description: "bad"},
			},
			{
				name: "unknown issue category",
				req:  models.SubmitReportRequest{Issue: "UFO Sighting", Description: "There is a large pothole on Main St"},
			},
			{
				name: "overlong description",
				req: models.SubmitReportRequest{
					Issue:       "Road Damage",
					Description: strings.Repeat("x", models.DescriptionMaxLen+1),
				},
			},
			{
				name: "too few characters despite enough bytes",
				req:  models.SubmitReportRequest{Issue: "Road Damage", Description: strings.Repeat("ñ", models.DescriptionMinLen-1)},
			},
			{
				name: "non-image payload",
				req: models.SubmitReportRequest{
					Issue:       "Road Damage",
					Description: "There is a large pothole on Main St",
					Image:       "data:text/html,<script></script>",
				},
			},
		}

		for _, tt := range tests {
			_, err := svc.CreateReport(context.Background(), tt.req, nil, "Guest")
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("%s: expected ErrValidation, got %v", tt.name, err)
			}
		}

		// No SQL expectations were registered: a validation failure must not
		// reach the database at all.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected database access: %v", err)
		}
	})
}

// Length limits count characters, not bytes: a 500-character description in
// a non-ASCII script is well over 500 bytes and must still be accepted.
func TestCreateReportMultibyteDescription(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectExec("INSERT INTO reports").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		_, err := svc.CreateReport(context.Background(), models.SubmitReportRequest{
			Issue:       "Road Damage",
			Description: strings.Repeat("ñ", models.DescriptionMaxLen),
		}, nil, "Guest")
		if err != nil {
			t.Fatalf("CreateReport rejected a max-length multibyte description: %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateReportOwnership(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Received", "user_owner", true, time.Now()))

		_, err := svc.UpdateReport(context.Background(), "r1", "user_intruder", false,
			models.UpdateReportRequest{Description: strPtr("a completely different story")})
		if !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}

		// The stored record must be left unmodified: no UPDATE was expected
		// and none may have run.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateReportAsAdmin(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Received", "user_owner", true, time.Now()))
		mock.ExpectExec("UPDATE reports SET description").
			WithArgs("The pothole has grown since last week", "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		report, err := svc.UpdateReport(context.Background(), "r1", "admin_1", true,
			models.UpdateReportRequest{Description: strPtr("The pothole has grown since last week")})
		if err != nil {
			t.Fatalf("UpdateReport failed: %v", err)
		}
		if report.Description != "The pothole has grown since last week" {
			t.Errorf("description not updated: %q", report.Description)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSetStatusNoOpKeepsTimestamp(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		stamped := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Received", "user_owner", true, stamped))

		report, err := svc.SetStatus(context.Background(), "r1", "Received", "")
		if err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		if !report.StatusUpdatedAt.Equal(stamped) {
			t.Errorf("no-op status save bumped the timestamp: %v -> %v", stamped, report.StatusUpdatedAt)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSetStatusInvalidTransition(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		tests := []struct {
			name string
			from string
			to   string
		}{
			{name: "awaiting straight to resolved", from: "Awaiting Approval", to: "Resolved"},
			{name: "resolved is terminal", from: "Resolved", to: "In Progress"},
			{name: "rejected is terminal", from: "Rejected", to: "Received"},
		}

		for _, tt := range tests {
			mock.ExpectQuery("FROM reports WHERE id").
				WillReturnRows(reportRow("r1", tt.from, "user_owner", true, time.Now()))

			_, err := svc.SetStatus(context.Background(), "r1", tt.to, "")
			if !errors.Is(err, models.ErrInvalidTransition) {
				t.Errorf("%s: expected ErrInvalidTransition, got %v", tt.name, err)
			}
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSetStatusRejectDefaultsReason(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Awaiting Approval", "user_owner", false, time.Now()))
		mock.ExpectExec("UPDATE reports SET status").
			WithArgs("Rejected", sqlmock.AnyArg(), false, models.DefaultRejectReason, "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		report, err := svc.SetStatus(context.Background(), "r1", "Rejected", "   ")
		if err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		if report.RejectReason != models.DefaultRejectReason {
			t.Errorf("reject reason = %q, want %q", report.RejectReason, models.DefaultRejectReason)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSetStatusAcceptMakesVisible(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Awaiting Approval", "user_owner", false, time.Now()))
		mock.ExpectExec("UPDATE reports SET status").
			WithArgs("Received", sqlmock.AnyArg(), true, "", "r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		report, err := svc.SetStatus(context.Background(), "r1", "Received", "")
		if err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		if !report.Visible {
			t.Error("accepting a report must make it visible")
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSetStatusFullWorkflow(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		steps := []string{"Received", "In Progress", "Resolved"}
		current := "Awaiting Approval"
		last := time.Time{}

		var stamps []time.Time
		for _, next := range steps {
			mock.ExpectQuery("FROM reports WHERE id").
				WillReturnRows(reportRow("r1", current, "user_owner", current != "Awaiting Approval", last))
			mock.ExpectExec("UPDATE reports SET status").
				WillReturnResult(sqlmock.NewResult(0, 1))
			expectSnapshotRefresh()

			report, err := svc.SetStatus(context.Background(), "r1", next, "")
			if err != nil {
				t.Fatalf("SetStatus(%s) failed: %v", next, err)
			}
			stamps = append(stamps, report.StatusUpdatedAt)
			current = next
			last = report.StatusUpdatedAt
		}

		if current != "Resolved" {
			t.Errorf("final status = %q, want Resolved", current)
		}
		for i := 1; i < len(stamps); i++ {
			if !stamps[i].After(stamps[i-1]) {
				t.Errorf("status timestamps not strictly increasing: %v then %v", stamps[i-1], stamps[i])
			}
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestArchiveReportSequencing(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "Resolved", "user_owner", true, time.Now()))
		// Insert into the archive strictly before deleting from the active
		// set; a crash in between duplicates rather than loses the record.
		mock.ExpectExec("REPLACE INTO reports_archive").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM reports WHERE id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSnapshotRefresh()

		if err := svc.ArchiveReport(context.Background(), "r1"); err != nil {
			t.Fatalf("ArchiveReport failed: %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestArchiveReportRequiresTerminalStatus(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports WHERE id").
			WillReturnRows(reportRow("r1", "In Progress", "user_owner", true, time.Now()))

		err := svc.ArchiveReport(context.Background(), "r1")
		if !errors.Is(err, models.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRestoreReportNotFound(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		mock.ExpectQuery("FROM reports_archive WHERE id").
			WillReturnRows(existsRow(false))

		_, err := svc.RestoreReport(context.Background(), "missing")
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListReportsNormalizesLegacyStatus(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		rows := sqlmock.NewRows(reportColumns).
			AddRow("r1", "Flooding", "Knee-deep water on Rizal St after rain", "", "",
				"Maria", nil, "pending review", time.Now(), "", true, time.Now()).
			AddRow("r2", "Others", "Streetlight flickers through the night", "", "",
				"Jose", nil, "we received this", time.Now(), "", true, time.Now())
		mock.ExpectQuery("FROM reports ORDER BY created_at DESC").WillReturnRows(rows)

		reports, err := svc.ListReports(context.Background(), ReportFilter{})
		if err != nil {
			t.Fatalf("ListReports failed: %v", err)
		}
		if reports[0].Status != models.StatusAwaitingApproval {
			t.Errorf("legacy status normalized to %q, want %q", reports[0].Status, models.StatusAwaitingApproval)
		}
		if reports[1].Status != models.StatusReceived {
			t.Errorf("legacy status normalized to %q, want %q", reports[1].Status, models.StatusReceived)
		}
	})
}

func TestListReportsSearchFilter(t *testing.T) {
	it(func() {
		svc, _ := newReportService()

		rows := sqlmock.NewRows(reportColumns).
			AddRow("r1", "Flooding", "Knee-deep water on Rizal St", "Rizal St", "",
				"Maria", nil, "Received", time.Now(), "", true, time.Now()).
			AddRow("r2", "Road Damage", "Cracked pavement near the market", "Market Rd", "",
				"Jose", nil, "Received", time.Now(), "", true, time.Now())
		mock.ExpectQuery("FROM reports ORDER BY created_at DESC").WillReturnRows(rows)

		reports, err := svc.ListReports(context.Background(), ReportFilter{Search: "rizal"})
		if err != nil {
			t.Fatalf("ListReports failed: %v", err)
		}
		if len(reports) != 1 || reports[0].ID != "r1" {
			t.Errorf("search filter returned %v, want only r1", reports)
		}
	})
}
