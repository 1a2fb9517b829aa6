package types

import (
	"encoding/json"
	"time"
)

// Note lifecycle states
const (
	NoteStatusDraft  = "draft"
	NoteStatusSigned = "signed"
)

// Supervisor review states
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// TemplateTypeAddendum marks notes spawned as addenda to a locked parent
const TemplateTypeAddendum = "addendum"

// ClinicalNote represents a clinical documentation record for one encounter.
// Once signed the row is locked; corrections happen through child addendum
// notes chained via ParentNoteID, never by mutating the locked row.
type ClinicalNote struct {
	ID            int64  `json:"id" db:"id"`
	UUID          string `json:"note_uuid" db:"note_uuid"`
	PatientID     int64  `json:"patient_id" db:"patient_id"`
	ProviderID    int64  `json:"provider_id" db:"provider_id"`
	AppointmentID *int64 `json:"appointment_id,omitempty" db:"appointment_id"`
	BillingID     *int64 `json:"billing_id,omitempty" db:"billing_id"`

	NoteType        string `json:"note_type" db:"note_type"`
	TemplateType    string `json:"template_type" db:"template_type"`
	ServiceDate     string `json:"service_date" db:"service_date"`
	ServiceDuration *int   `json:"service_duration,omitempty" db:"service_duration"`
	ServiceLocation string `json:"service_location,omitempty" db:"service_location"`

	// Free-text clinical content
	BehaviorProblem      string `json:"behavior_problem,omitempty" db:"behavior_problem"`
	Intervention         string `json:"intervention,omitempty" db:"intervention"`
	Response             string `json:"response,omitempty" db:"response"`
	Plan                 string `json:"plan,omitempty" db:"plan"`
	RiskAssessment       string `json:"risk_assessment,omitempty" db:"risk_assessment"`
	PresentingConcerns   string `json:"presenting_concerns,omitempty" db:"presenting_concerns"`
	ClinicalObservations string `json:"clinical_observations,omitempty" db:"clinical_observations"`
	MentalStatusExam     string `json:"mental_status_exam,omitempty" db:"mental_status_exam"`
	RiskPresent          bool   `json:"risk_present" db:"risk_present"`

	// Structured clinical content, stored as JSON
	GoalsAddressed        json.RawMessage `json:"goals_addressed,omitempty" db:"goals_addressed"`
	InterventionsSelected json.RawMessage `json:"interventions_selected,omitempty" db:"interventions_selected"`
	ClientPresentation    json.RawMessage `json:"client_presentation,omitempty" db:"client_presentation"`
	DiagnosisCodes        json.RawMessage `json:"diagnosis_codes,omitempty" db:"diagnosis_codes"`

	Status        string     `json:"status" db:"status"`
	IsLocked      bool       `json:"is_locked" db:"is_locked"`
	SignedAt      *time.Time `json:"signed_at,omitempty" db:"signed_at"`
	SignedBy      *int64     `json:"signed_by,omitempty" db:"signed_by"`
	SignatureData string     `json:"signature_data,omitempty" db:"signature_data"`
	LockedAt      *time.Time `json:"locked_at,omitempty" db:"locked_at"`

	SupervisorReviewRequired bool       `json:"supervisor_review_required" db:"supervisor_review_required"`
	SupervisorReviewStatus   string     `json:"supervisor_review_status,omitempty" db:"supervisor_review_status"`
	SupervisorSignedAt       *time.Time `json:"supervisor_signed_at,omitempty" db:"supervisor_signed_at"`
	SupervisorSignedBy       *int64     `json:"supervisor_signed_by,omitempty" db:"supervisor_signed_by"`
	SupervisorComments       string     `json:"supervisor_comments,omitempty" db:"supervisor_comments"`

	ParentNoteID   *int64 `json:"parent_note_id,omitempty" db:"parent_note_id"`
	IsAddendum     bool   `json:"is_addendum" db:"is_addendum"`
	AddendumReason string `json:"addendum_reason,omitempty" db:"addendum_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Display names resolved by the read-side projection
	ProviderName   string `json:"provider_name,omitempty"`
	SignedByName   string `json:"signed_by_name,omitempty"`
	SupervisorName string `json:"supervisor_name,omitempty"`
}

// NoteFilters represents optional filters for patient note queries
type NoteFilters struct {
	NoteType  string `json:"note_type,omitempty"`
	Status    string `json:"status,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// NoteDraft is the recoverable scratch copy of in-progress note content.
// At most one draft exists per resolved identity key; see DraftKey.
type NoteDraft struct {
	ID            int64           `json:"id" db:"id"`
	NoteID        *int64          `json:"note_id,omitempty" db:"note_id"`
	ProviderID    int64           `json:"provider_id" db:"provider_id"`
	PatientID     int64           `json:"patient_id" db:"patient_id"`
	AppointmentID *int64          `json:"appointment_id,omitempty" db:"appointment_id"`
	NoteType      string          `json:"note_type" db:"note_type"`
	ServiceDate   string          `json:"service_date" db:"service_date"`
	DraftContent  json.RawMessage `json:"draft_content" db:"draft_content"`
	SavedAt       time.Time       `json:"saved_at" db:"saved_at"`
}

// DraftSaveInput carries the client-supplied autosave payload. ProviderID is
// always taken from the authenticated caller, never from the request body.
type DraftSaveInput struct {
	ProviderID    int64           `json:"-"`
	PatientID     int64           `json:"patient_id"`
	NoteID        *int64          `json:"note_id,omitempty"`
	AppointmentID *int64          `json:"appointment_id,omitempty"`
	NoteType      string          `json:"note_type"`
	ServiceDate   string          `json:"service_date"`
	DraftContent  json.RawMessage `json:"draft_content"`
}

// AddendumInput carries the content of a correction to a locked note
type AddendumInput struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// DraftLookup selects which draft(s) to fetch, in priority order:
// NoteID, then AppointmentID, then PatientID, else all of the provider's drafts.
type DraftLookup struct {
	ProviderID    int64
	NoteID        *int64
	AppointmentID *int64
	PatientID     *int64
}

// Setting value types
const (
	SettingTypeBoolean = "boolean"
	SettingTypeJSON    = "json"
	SettingTypeNumber  = "number"
	SettingTypeInteger = "integer"
	SettingTypeString  = "string"
)

// SettingKeyAllowPostSignatureEdits gates addendum creation
const SettingKeyAllowPostSignatureEdits = "allow_post_signature_edits"

// ClinicalSetting is a raw key/value configuration row; Value is always the
// stored string form, coerced by the settings gate according to Type.
type ClinicalSetting struct {
	Key           string    `json:"key" db:"setting_key"`
	Value         string    `json:"value" db:"setting_value"`
	Type          string    `json:"type" db:"setting_type"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
	UpdatedByName string    `json:"updated_by,omitempty"`
}

// SettingDetail is a coerced setting with its metadata, for the detailed list
type SettingDetail struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	Type      string      `json:"type"`
	UpdatedAt time.Time   `json:"updated_at"`
	UpdatedBy string      `json:"updated_by,omitempty"`
}

// Treatment goal states
const (
	GoalStatusActive       = "active"
	GoalStatusAchieved     = "achieved"
	GoalStatusDiscontinued = "discontinued"
)

// TreatmentGoal represents a patient's treatment goal
type TreatmentGoal struct {
	ID             int64      `json:"id" db:"id"`
	PatientID      int64      `json:"patient_id" db:"patient_id"`
	ProviderID     int64      `json:"provider_id" db:"provider_id"`
	GoalText       string     `json:"goal_text" db:"goal_text"`
	GoalCategory   string     `json:"goal_category,omitempty" db:"goal_category"`
	TargetDate     *string    `json:"target_date,omitempty" db:"target_date"`
	Status         string     `json:"status" db:"status"`
	ProgressLevel  int        `json:"progress_level" db:"progress_level"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	AchievedAt     *time.Time `json:"achieved_at,omitempty" db:"achieved_at"`
	DiscontinuedAt *time.Time `json:"discontinued_at,omitempty" db:"discontinued_at"`
	ProviderName   string     `json:"provider_name,omitempty"`
}

// GoalFilters represents filters for treatment goal queries
type GoalFilters struct {
	Status     string `json:"status,omitempty"`
	IncludeAll bool   `json:"include_all,omitempty"`
}
