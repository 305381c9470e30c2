package database

import (
	"database/sql"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var reportColumns = []string{
	"id", "issue", "description", "location", "image", "submitter_name",
	"submitter_id", "status", "status_updated_at", "reject_reason", "visible",
	"created_at",
}

// reportRow builds a single-row result for the report select queries.
func reportRow(id, status string, submitterID interface{}, visible bool, statusUpdatedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(reportColumns).AddRow(
		id, "Road Damage", "There is a large pothole on Main St", "Main St", "",
		"Juan Dela Cruz", submitterID, status, statusUpdatedAt, "", visible,
		statusUpdatedAt.Add(-time.Hour))
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

// expectSnapshotRefresh matches the list query publishSnapshot issues after
// every successful write.
func expectSnapshotRefresh() {
	mock.ExpectQuery("FROM reports ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(reportColumns))
}

func strPtr(s string) *string { return &s }
