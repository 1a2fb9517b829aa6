package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kjnelan/Mindline/pkg/types"
)

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// noteScanTargets binds a note's columns to scan destinations, routing
// nullable columns through sql.Null* intermediaries held in aux.
type noteAux struct {
	appointmentID      sql.NullInt64
	billingID          sql.NullInt64
	serviceDate        time.Time
	serviceDuration    sql.NullInt64
	serviceLocation    sql.NullString
	behaviorProblem    sql.NullString
	intervention       sql.NullString
	response           sql.NullString
	plan               sql.NullString
	riskAssessment     sql.NullString
	presentingConcerns sql.NullString
	clinicalObs        sql.NullString
	mentalStatusExam   sql.NullString
	goalsAddressed     []byte
	interventionsSel   []byte
	clientPresentation []byte
	diagnosisCodes     []byte
	signedAt           sql.NullTime
	signedBy           sql.NullInt64
	signatureData      sql.NullString
	lockedAt           sql.NullTime
	supReviewStatus    sql.NullString
	supSignedAt        sql.NullTime
	supSignedBy        sql.NullInt64
	supComments        sql.NullString
	parentNoteID       sql.NullInt64
	addendumReason     sql.NullString
}

func (a *noteAux) targets(note *types.ClinicalNote) []interface{} {
	return []interface{}{
		&note.ID, &note.UUID, &note.PatientID, &note.ProviderID, &a.appointmentID, &a.billingID,
		&note.NoteType, &note.TemplateType, &a.serviceDate, &a.serviceDuration, &a.serviceLocation,
		&a.behaviorProblem, &a.intervention, &a.response, &a.plan, &a.riskAssessment,
		&a.presentingConcerns, &a.clinicalObs, &a.mentalStatusExam, &note.RiskPresent,
		&a.goalsAddressed, &a.interventionsSel, &a.clientPresentation, &a.diagnosisCodes,
		&note.Status, &note.IsLocked, &a.signedAt, &a.signedBy, &a.signatureData, &a.lockedAt,
		&note.SupervisorReviewRequired, &a.supReviewStatus, &a.supSignedAt,
		&a.supSignedBy, &a.supComments,
		&a.parentNoteID, &note.IsAddendum, &a.addendumReason, &note.CreatedAt, &note.UpdatedAt,
	}
}

func (a *noteAux) apply(note *types.ClinicalNote) {
	note.AppointmentID = nullableInt64(a.appointmentID)
	note.BillingID = nullableInt64(a.billingID)
	note.ServiceDate = a.serviceDate.Format("2006-01-02")
	if a.serviceDuration.Valid {
		d := int(a.serviceDuration.Int64)
		note.ServiceDuration = &d
	}
	note.ServiceLocation = a.serviceLocation.String
	note.BehaviorProblem = a.behaviorProblem.String
	note.Intervention = a.intervention.String
	note.Response = a.response.String
	note.Plan = a.plan.String
	note.RiskAssessment = a.riskAssessment.String
	note.PresentingConcerns = a.presentingConcerns.String
	note.ClinicalObservations = a.clinicalObs.String
	note.MentalStatusExam = a.mentalStatusExam.String
	note.GoalsAddressed = rawJSON(a.goalsAddressed)
	note.InterventionsSelected = rawJSON(a.interventionsSel)
	note.ClientPresentation = rawJSON(a.clientPresentation)
	note.DiagnosisCodes = rawJSON(a.diagnosisCodes)
	note.SignedAt = nullableTime(a.signedAt)
	note.SignedBy = nullableInt64(a.signedBy)
	note.SignatureData = a.signatureData.String
	note.LockedAt = nullableTime(a.lockedAt)
	note.SupervisorReviewStatus = a.supReviewStatus.String
	note.SupervisorSignedAt = nullableTime(a.supSignedAt)
	note.SupervisorSignedBy = nullableInt64(a.supSignedBy)
	note.SupervisorComments = a.supComments.String
	note.ParentNoteID = nullableInt64(a.parentNoteID)
	note.AddendumReason = a.addendumReason.String
}

// scanNote maps one clinical_notes row onto a ClinicalNote
func scanNote(row rowScanner) (*types.ClinicalNote, error) {
	var note types.ClinicalNote
	var aux noteAux

	if err := row.Scan(aux.targets(&note)...); err != nil {
		return nil, err
	}

	aux.apply(&note)
	return &note, nil
}

// scanNoteWithNames maps a row carrying the three display-name join columns
func scanNoteWithNames(row rowScanner) (*types.ClinicalNote, error) {
	var note types.ClinicalNote
	var aux noteAux

	targets := append(aux.targets(&note),
		&note.ProviderName, &note.SignedByName, &note.SupervisorName)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	aux.apply(&note)
	return &note, nil
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(m json.RawMessage) interface{} {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
