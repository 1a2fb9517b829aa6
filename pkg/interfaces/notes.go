package interfaces

import (
	"context"
	"time"

	"github.com/kjnelan/Mindline/pkg/types"
)

// NotesService defines the interface for clinical note management
type NotesService interface {
	// Note lifecycle
	CreateNote(ctx context.Context, note *types.ClinicalNote, providerID int64) (*types.ClinicalNote, error)
	SignNote(ctx context.Context, noteID, userID int64, signatureData string) (time.Time, error)
	CreateAddendum(ctx context.Context, parentNoteID, providerID int64, input *types.AddendumInput) (*types.ClinicalNote, error)

	// Draft reconciliation
	SaveDraft(ctx context.Context, input *types.DraftSaveInput) (*types.NoteDraft, error)
	GetDrafts(ctx context.Context, lookup types.DraftLookup) ([]*types.NoteDraft, error)

	// Read-side projections
	GetPatientNotes(ctx context.Context, patientID int64, filters *types.NoteFilters) ([]*types.ClinicalNote, error)
	GetPatientGoals(ctx context.Context, patientID int64, filters *types.GoalFilters) ([]*types.TreatmentGoal, error)

	// Settings
	GetSettings(ctx context.Context) (map[string]interface{}, []*types.SettingDetail, error)
}

// NotesRepository defines the interface for clinical note persistence
type NotesRepository interface {
	Create(ctx context.Context, note *types.ClinicalNote) (*types.ClinicalNote, error)
	GetByID(ctx context.Context, noteID int64) (*types.ClinicalNote, error)

	// MarkSigned performs the conditional sign-and-lock update. ok is false
	// when the row was already locked by the time the update ran.
	MarkSigned(ctx context.Context, noteID, signedBy int64, signatureData string) (signedAt time.Time, ok bool, err error)

	ListByPatient(ctx context.Context, patientID int64, filters *types.NoteFilters) ([]*types.ClinicalNote, error)
}

// DraftsRepository defines the interface for note draft persistence
type DraftsRepository interface {
	// Upsert inserts or refreshes the single draft row for the resolved
	// identity (provider, patient, draftKey).
	Upsert(ctx context.Context, input *types.DraftSaveInput, draftKey string) (*types.NoteDraft, error)

	GetByNoteID(ctx context.Context, providerID, noteID int64) (*types.NoteDraft, error)
	GetByAppointmentID(ctx context.Context, providerID, appointmentID int64) (*types.NoteDraft, error)
	GetLatestByPatient(ctx context.Context, providerID, patientID int64) (*types.NoteDraft, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*types.NoteDraft, error)
	DeleteByNoteID(ctx context.Context, noteID int64) error
}

// SettingsRepository defines the interface for clinical settings persistence
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*types.ClinicalSetting, error)
	List(ctx context.Context) ([]*types.ClinicalSetting, error)
}

// GoalsRepository defines the interface for treatment goal persistence
type GoalsRepository interface {
	ListByPatient(ctx context.Context, patientID int64, filters *types.GoalFilters) ([]*types.TreatmentGoal, error)
}

// SettingsReader resolves typed clinical settings for policy decisions
type SettingsReader interface {
	Get(ctx context.Context, key string) (interface{}, error)
	GetBool(ctx context.Context, key string) (bool, error)
	All(ctx context.Context) (map[string]interface{}, []*types.SettingDetail, error)
}
