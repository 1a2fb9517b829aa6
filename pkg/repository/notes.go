package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// NotesRepository handles clinical note persistence
type NotesRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewNotesRepository creates a new clinical notes repository
func NewNotesRepository(db *sql.DB, log *logger.Logger) *NotesRepository {
	return &NotesRepository{
		db:     db,
		logger: log,
	}
}

const noteColumns = `
	n.id, n.note_uuid, n.patient_id, n.provider_id, n.appointment_id, n.billing_id,
	n.note_type, n.template_type, n.service_date, n.service_duration, n.service_location,
	n.behavior_problem, n.intervention, n.response, n.plan, n.risk_assessment,
	n.presenting_concerns, n.clinical_observations, n.mental_status_exam, n.risk_present,
	n.goals_addressed, n.interventions_selected, n.client_presentation, n.diagnosis_codes,
	n.status, n.is_locked, n.signed_at, n.signed_by, n.signature_data, n.locked_at,
	n.supervisor_review_required, n.supervisor_review_status, n.supervisor_signed_at,
	n.supervisor_signed_by, n.supervisor_comments,
	n.parent_note_id, n.is_addendum, n.addendum_reason, n.created_at, n.updated_at`

// Create inserts a new clinical note and returns it with generated fields
func (r *NotesRepository) Create(ctx context.Context, note *types.ClinicalNote) (*types.ClinicalNote, error) {
	query := `
		INSERT INTO clinical_notes (
			note_uuid, patient_id, provider_id, appointment_id, billing_id,
			note_type, template_type, service_date, service_duration, service_location,
			behavior_problem, intervention, response, plan, risk_assessment,
			presenting_concerns, clinical_observations, mental_status_exam, risk_present,
			goals_addressed, interventions_selected, client_presentation, diagnosis_codes,
			status, is_locked, supervisor_review_required, supervisor_review_status,
			parent_note_id, is_addendum, addendum_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
		)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		note.UUID,
		note.PatientID,
		note.ProviderID,
		note.AppointmentID,
		note.BillingID,
		note.NoteType,
		note.TemplateType,
		note.ServiceDate,
		note.ServiceDuration,
		nullString(note.ServiceLocation),
		nullString(note.BehaviorProblem),
		nullString(note.Intervention),
		nullString(note.Response),
		nullString(note.Plan),
		nullString(note.RiskAssessment),
		nullString(note.PresentingConcerns),
		nullString(note.ClinicalObservations),
		nullString(note.MentalStatusExam),
		note.RiskPresent,
		nullJSON(note.GoalsAddressed),
		nullJSON(note.InterventionsSelected),
		nullJSON(note.ClientPresentation),
		nullJSON(note.DiagnosisCodes),
		note.Status,
		note.IsLocked,
		note.SupervisorReviewRequired,
		nullString(note.SupervisorReviewStatus),
		note.ParentNoteID,
		note.IsAddendum,
		nullString(note.AddendumReason),
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)

	if err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to create clinical note", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"note_id":    note.ID,
		"note_uuid":  note.UUID,
		"patient_id": note.PatientID,
	}).Info("Created clinical note")

	return note, nil
}

// GetByID retrieves a clinical note by its internal ID
func (r *NotesRepository) GetByID(ctx context.Context, noteID int64) (*types.ClinicalNote, error) {
	query := `SELECT ` + noteColumns + ` FROM clinical_notes n WHERE n.id = $1`

	note, err := scanNote(r.db.QueryRowContext(ctx, query, noteID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNoteNotFound,
				fmt.Sprintf("clinical note %d not found", noteID))
		}
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to get clinical note", err)
	}

	return note, nil
}

// MarkSigned performs the conditional sign-and-lock update. The WHERE clause
// re-checks the lock so exactly one of any concurrent signers can win; ok is
// false when the row was already locked.
func (r *NotesRepository) MarkSigned(ctx context.Context, noteID, signedBy int64, signatureData string) (time.Time, bool, error) {
	query := `
		UPDATE clinical_notes
		SET status = 'signed',
			is_locked = TRUE,
			signed_at = NOW(),
			signed_by = $1,
			signature_data = $2,
			locked_at = NOW(),
			updated_at = NOW()
		WHERE id = $3 AND is_locked = FALSE
		RETURNING signed_at`

	var signedAt time.Time
	err := r.db.QueryRowContext(ctx, query, signedBy, nullString(signatureData), noteID).Scan(&signedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, types.NewStorageError(types.ErrCodeStorageFailure, "failed to sign clinical note", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"note_id":   noteID,
		"signed_by": signedBy,
	}).Info("Signed and locked clinical note")

	return signedAt, true, nil
}

// ListByPatient assembles the patient note projection: notes joined with the
// user directory three ways for provider, signer and supervisor display names.
func (r *NotesRepository) ListByPatient(ctx context.Context, patientID int64, filters *types.NoteFilters) ([]*types.ClinicalNote, error) {
	query := `
		SELECT ` + noteColumns + `,
			COALESCE(p.fname || ' ' || p.lname, '') AS provider_name,
			COALESCE(sb.fname || ' ' || sb.lname, '') AS signed_by_name,
			COALESCE(ss.fname || ' ' || ss.lname, '') AS supervisor_name
		FROM clinical_notes n
		LEFT JOIN users p ON p.id = n.provider_id
		LEFT JOIN users sb ON sb.id = n.signed_by
		LEFT JOIN users ss ON ss.id = n.supervisor_signed_by
		WHERE n.patient_id = $1`

	args := []interface{}{patientID}
	argIndex := 2

	if filters != nil {
		if filters.NoteType != "" {
			query += fmt.Sprintf(" AND n.note_type = $%d", argIndex)
			args = append(args, filters.NoteType)
			argIndex++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND n.status = $%d", argIndex)
			args = append(args, filters.Status)
			argIndex++
		}
		if filters.StartDate != "" {
			query += fmt.Sprintf(" AND n.service_date >= $%d", argIndex)
			args = append(args, filters.StartDate)
			argIndex++
		}
		if filters.EndDate != "" {
			query += fmt.Sprintf(" AND n.service_date <= $%d", argIndex)
			args = append(args, filters.EndDate)
			argIndex++
		}
	}

	query += " ORDER BY n.service_date DESC, n.created_at DESC"

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.DatabaseOperation(ctx, "select", "clinical_notes", time.Since(start).Milliseconds(), 0, false, nil)
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to list patient notes", err)
	}
	defer rows.Close()

	var notes []*types.ClinicalNote
	for rows.Next() {
		note, err := scanNoteWithNames(rows)
		if err != nil {
			return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to scan clinical note row", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "error iterating clinical note rows", err)
	}

	r.logger.DatabaseOperation(ctx, "select", "clinical_notes", time.Since(start).Milliseconds(), int64(len(notes)), true, nil)
	return notes, nil
}
