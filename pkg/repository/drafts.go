package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// DraftsRepository handles note draft persistence
type DraftsRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewDraftsRepository creates a new note drafts repository
func NewDraftsRepository(db *sql.DB, log *logger.Logger) *DraftsRepository {
	return &DraftsRepository{
		db:     db,
		logger: log,
	}
}

const draftColumns = `
	id, note_id, provider_id, patient_id, appointment_id,
	note_type, service_date, draft_content, saved_at`

// Upsert inserts or refreshes the single draft row for the resolved identity.
// The ON CONFLICT arm rides the unique index on (provider_id, patient_id,
// draft_key), so concurrent saves for the same identity converge on one row
// with last-write-wins content.
func (r *DraftsRepository) Upsert(ctx context.Context, input *types.DraftSaveInput, draftKey string) (*types.NoteDraft, error) {
	query := `
		INSERT INTO note_drafts (
			note_id, provider_id, patient_id, appointment_id,
			note_type, service_date, draft_key, draft_content, saved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (provider_id, patient_id, draft_key) DO UPDATE SET
			draft_content = EXCLUDED.draft_content,
			note_type = EXCLUDED.note_type,
			service_date = EXCLUDED.service_date,
			note_id = COALESCE(EXCLUDED.note_id, note_drafts.note_id),
			appointment_id = COALESCE(EXCLUDED.appointment_id, note_drafts.appointment_id),
			saved_at = NOW()
		RETURNING id, saved_at`

	draft := &types.NoteDraft{
		NoteID:        input.NoteID,
		ProviderID:    input.ProviderID,
		PatientID:     input.PatientID,
		AppointmentID: input.AppointmentID,
		NoteType:      input.NoteType,
		ServiceDate:   input.ServiceDate,
		DraftContent:  input.DraftContent,
	}

	err := r.db.QueryRowContext(ctx, query,
		input.NoteID,
		input.ProviderID,
		input.PatientID,
		input.AppointmentID,
		input.NoteType,
		input.ServiceDate,
		draftKey,
		[]byte(input.DraftContent),
	).Scan(&draft.ID, &draft.SavedAt)

	if err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to save note draft", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"draft_id":    draft.ID,
		"provider_id": input.ProviderID,
		"patient_id":  input.PatientID,
		"draft_key":   draftKey,
	}).Debug("Saved note draft")

	return draft, nil
}

// GetByNoteID retrieves the provider's draft keyed to a persisted note
func (r *DraftsRepository) GetByNoteID(ctx context.Context, providerID, noteID int64) (*types.NoteDraft, error) {
	query := `SELECT ` + draftColumns + `
		FROM note_drafts
		WHERE provider_id = $1 AND note_id = $2`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, providerID, noteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeDraftNotFound,
				fmt.Sprintf("no draft found for note %d", noteID))
		}
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to get note draft", err)
	}

	return draft, nil
}

// GetByAppointmentID retrieves the provider's draft keyed to an appointment
func (r *DraftsRepository) GetByAppointmentID(ctx context.Context, providerID, appointmentID int64) (*types.NoteDraft, error) {
	query := `SELECT ` + draftColumns + `
		FROM note_drafts
		WHERE provider_id = $1 AND appointment_id = $2 AND note_id IS NULL`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, providerID, appointmentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeDraftNotFound,
				fmt.Sprintf("no draft found for appointment %d", appointmentID))
		}
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to get note draft", err)
	}

	return draft, nil
}

// GetLatestByPatient retrieves the provider's most recently saved draft for a patient
func (r *DraftsRepository) GetLatestByPatient(ctx context.Context, providerID, patientID int64) (*types.NoteDraft, error) {
	query := `SELECT ` + draftColumns + `
		FROM note_drafts
		WHERE provider_id = $1 AND patient_id = $2
		ORDER BY saved_at DESC
		LIMIT 1`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, providerID, patientID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeDraftNotFound,
				fmt.Sprintf("no draft found for patient %d", patientID))
		}
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to get note draft", err)
	}

	return draft, nil
}

// ListByProvider retrieves all of the provider's drafts, newest first
func (r *DraftsRepository) ListByProvider(ctx context.Context, providerID int64) ([]*types.NoteDraft, error) {
	query := `SELECT ` + draftColumns + `
		FROM note_drafts
		WHERE provider_id = $1
		ORDER BY saved_at DESC`

	rows, err := r.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to list note drafts", err)
	}
	defer rows.Close()

	var drafts []*types.NoteDraft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to scan note draft row", err)
		}
		drafts = append(drafts, draft)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "error iterating note draft rows", err)
	}

	return drafts, nil
}

// DeleteByNoteID removes drafts keyed to a note, used after the note signs
func (r *DraftsRepository) DeleteByNoteID(ctx context.Context, noteID int64) error {
	query := `DELETE FROM note_drafts WHERE note_id = $1`

	result, err := r.db.ExecContext(ctx, query, noteID)
	if err != nil {
		return types.NewStorageError(types.ErrCodeStorageFailure, "failed to delete note drafts", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		r.logger.WithFields(map[string]interface{}{
			"note_id":       noteID,
			"rows_affected": rowsAffected,
		}).Debug("Deleted drafts for signed note")
	}

	return nil
}

// scanDraft maps one note_drafts row onto a NoteDraft
func scanDraft(row rowScanner) (*types.NoteDraft, error) {
	var draft types.NoteDraft
	var noteID, appointmentID sql.NullInt64
	var serviceDate time.Time
	var content []byte

	err := row.Scan(
		&draft.ID,
		&noteID,
		&draft.ProviderID,
		&draft.PatientID,
		&appointmentID,
		&draft.NoteType,
		&serviceDate,
		&content,
		&draft.SavedAt,
	)
	if err != nil {
		return nil, err
	}

	draft.NoteID = nullableInt64(noteID)
	draft.AppointmentID = nullableInt64(appointmentID)
	draft.ServiceDate = serviceDate.Format("2006-01-02")
	draft.DraftContent = rawJSON(content)

	return &draft, nil
}
