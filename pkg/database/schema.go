package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for clinical documentation storage
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createUsersTable,
		createClinicalNotesTable,
		createNoteDraftsTable,
		createClinicalSettingsTable,
		createTreatmentGoalsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createClinicalNotesIndexes,
		createNoteDraftsIndexes,
		createTreatmentGoalsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			fname VARCHAR(100) NOT NULL,
			lname VARCHAR(100) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createClinicalNotesTable = `
		CREATE TABLE IF NOT EXISTS clinical_notes (
			id BIGSERIAL PRIMARY KEY,
			note_uuid UUID UNIQUE NOT NULL DEFAULT uuid_generate_v4(),
			patient_id BIGINT NOT NULL,
			provider_id BIGINT NOT NULL,
			appointment_id BIGINT,
			billing_id BIGINT,
			note_type VARCHAR(50) NOT NULL,
			template_type VARCHAR(50) NOT NULL DEFAULT 'standard',
			service_date DATE NOT NULL,
			service_duration INTEGER,
			service_location VARCHAR(200),
			behavior_problem TEXT,
			intervention TEXT,
			response TEXT,
			plan TEXT,
			risk_assessment TEXT,
			presenting_concerns TEXT,
			clinical_observations TEXT,
			mental_status_exam TEXT,
			risk_present BOOLEAN NOT NULL DEFAULT FALSE,
			goals_addressed JSONB,
			interventions_selected JSONB,
			client_presentation JSONB,
			diagnosis_codes JSONB,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			is_locked BOOLEAN NOT NULL DEFAULT FALSE,
			signed_at TIMESTAMP WITH TIME ZONE,
			signed_by BIGINT REFERENCES users(id),
			signature_data TEXT,
			locked_at TIMESTAMP WITH TIME ZONE,
			supervisor_review_required BOOLEAN NOT NULL DEFAULT FALSE,
			supervisor_review_status VARCHAR(20),
			supervisor_signed_at TIMESTAMP WITH TIME ZONE,
			supervisor_signed_by BIGINT REFERENCES users(id),
			supervisor_comments TEXT,
			parent_note_id BIGINT REFERENCES clinical_notes(id),
			is_addendum BOOLEAN NOT NULL DEFAULT FALSE,
			addendum_reason TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createNoteDraftsTable = `
		CREATE TABLE IF NOT EXISTS note_drafts (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT REFERENCES clinical_notes(id) ON DELETE CASCADE,
			provider_id BIGINT NOT NULL,
			patient_id BIGINT NOT NULL,
			appointment_id BIGINT,
			note_type VARCHAR(50) NOT NULL,
			service_date DATE NOT NULL,
			draft_key VARCHAR(120) NOT NULL,
			draft_content JSONB NOT NULL,
			saved_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createClinicalSettingsTable = `
		CREATE TABLE IF NOT EXISTS clinical_settings (
			setting_key VARCHAR(100) PRIMARY KEY,
			setting_value TEXT NOT NULL,
			setting_type VARCHAR(20) NOT NULL DEFAULT 'string',
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_by BIGINT REFERENCES users(id)
		);`

	createTreatmentGoalsTable = `
		CREATE TABLE IF NOT EXISTS treatment_goals (
			id BIGSERIAL PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			provider_id BIGINT NOT NULL,
			goal_text TEXT NOT NULL,
			goal_category VARCHAR(100),
			target_date DATE,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			progress_level INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			achieved_at TIMESTAMP WITH TIME ZONE,
			discontinued_at TIMESTAMP WITH TIME ZONE
		);`
)

// SQL DDL statements for index creation.
// The unique index on note_drafts is what enforces one draft per resolved
// identity; the draft upsert relies on it as the ON CONFLICT target.
const (
	createClinicalNotesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_clinical_notes_patient ON clinical_notes(patient_id, service_date DESC);
		CREATE INDEX IF NOT EXISTS idx_clinical_notes_provider ON clinical_notes(provider_id);
		CREATE INDEX IF NOT EXISTS idx_clinical_notes_parent ON clinical_notes(parent_note_id);
		CREATE INDEX IF NOT EXISTS idx_clinical_notes_status ON clinical_notes(status);`

	createNoteDraftsIndexes = `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_note_drafts_identity ON note_drafts(provider_id, patient_id, draft_key);
		CREATE INDEX IF NOT EXISTS idx_note_drafts_note ON note_drafts(note_id);
		CREATE INDEX IF NOT EXISTS idx_note_drafts_saved ON note_drafts(provider_id, saved_at DESC);`

	createTreatmentGoalsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_treatment_goals_patient ON treatment_goals(patient_id, status);`
)
