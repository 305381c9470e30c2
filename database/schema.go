package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Schema contains the database schema for the portal
const Schema = `
CREATE DATABASE IF NOT EXISTS barangay;
USE barangay;

CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(256) PRIMARY KEY,
    display_name VARCHAR(256) NOT NULL,
    email VARCHAR(320),
    password_hash VARCHAR(256),
    google_id VARCHAR(256),
    is_admin BOOLEAN DEFAULT FALSE,
    is_guest BOOLEAN DEFAULT FALSE,
    is_active BOOLEAN DEFAULT TRUE,
    last_login_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY unique_email (email),
    INDEX idx_google_id (google_id)
);

CREATE TABLE IF NOT EXISTS users_archive (
    id VARCHAR(256) PRIMARY KEY,
    display_name VARCHAR(256) NOT NULL,
    email VARCHAR(320),
    password_hash VARCHAR(256),
    google_id VARCHAR(256),
    is_admin BOOLEAN DEFAULT FALSE,
    is_guest BOOLEAN DEFAULT FALSE,
    deactivated BOOLEAN DEFAULT TRUE,
    last_login_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_archive_email (email)
);

CREATE TABLE IF NOT EXISTS auth_tokens (
    id INT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(256) NOT NULL,
    token_hash VARCHAR(256) NOT NULL,
    token_type ENUM('access', 'refresh', 'reset') DEFAULT 'access',
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_user_token_type (user_id, token_type),
    INDEX idx_token_hash (token_hash)
);

CREATE TABLE IF NOT EXISTS reports (
    id VARCHAR(256) PRIMARY KEY,
    issue VARCHAR(128) NOT NULL,
    description VARCHAR(500) NOT NULL,
    location VARCHAR(500),
    image MEDIUMTEXT,
    submitter_name VARCHAR(256) NOT NULL,
    submitter_id VARCHAR(256),
    status VARCHAR(64) NOT NULL DEFAULT 'Awaiting Approval',
    status_updated_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
    reject_reason VARCHAR(500) NOT NULL DEFAULT '',
    visible BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_submitter (submitter_id),
    INDEX idx_status (status),
    INDEX idx_created (created_at)
);

CREATE TABLE IF NOT EXISTS reports_archive (
    id VARCHAR(256) PRIMARY KEY,
    issue VARCHAR(128) NOT NULL,
    description VARCHAR(500) NOT NULL,
    location VARCHAR(500),
    image MEDIUMTEXT,
    submitter_name VARCHAR(256) NOT NULL,
    submitter_id VARCHAR(256),
    status VARCHAR(64) NOT NULL,
    status_updated_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
    reject_reason VARCHAR(500) NOT NULL DEFAULT '',
    visible BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_archive_submitter (submitter_id)
);

CREATE TABLE IF NOT EXISTS report_reactions (
    report_id VARCHAR(256) NOT NULL,
    kind ENUM('like', 'love', 'haha', 'wow', 'sad', 'angry') NOT NULL,
    count INT NOT NULL DEFAULT 0,
    PRIMARY KEY (report_id, kind)
);

CREATE TABLE IF NOT EXISTS viewer_reactions (
    viewer_id VARCHAR(256) NOT NULL,
    report_id VARCHAR(256) NOT NULL,
    kind ENUM('like', 'love', 'haha', 'wow', 'sad', 'angry') NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (viewer_id, report_id)
);

CREATE TABLE IF NOT EXISTS report_comments (
    id VARCHAR(256) PRIMARY KEY,
    report_id VARCHAR(256) NOT NULL,
    author_name VARCHAR(256) NOT NULL DEFAULT 'Guest',
    text VARCHAR(1000) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_comment_report (report_id, created_at)
);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
}

// Migrations list all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "add_reject_reason_to_reports",
		Up: `
			SET @dbname = DATABASE();
			SET @tablename = 'reports';
			SET @columnname = 'reject_reason';
			SET @preparedStatement = (SELECT IF(
				(SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS
				WHERE TABLE_SCHEMA = @dbname
				AND TABLE_NAME = @tablename
				AND COLUMN_NAME = @columnname) = 0,
				'ALTER TABLE reports ADD COLUMN reject_reason VARCHAR(500) NOT NULL DEFAULT "";',
				'SELECT 1;'
			));
			PREPARE alterIfNotExists FROM @preparedStatement;
			EXECUTE alterIfNotExists;
			DEALLOCATE PREPARE alterIfNotExists;
		`,
	},
}

// InitializeSchema creates the database schema and runs migrations
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}

// RunMigrations applies any migrations not yet recorded in schema_migrations.
func RunMigrations(db *sql.DB) error {
	for _, m := range Migrations {
		var applied bool
		err := db.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)",
			m.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		log.Infof("Applying migration %d: %s", m.Version, m.Name)
		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
