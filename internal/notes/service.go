package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kjnelan/Mindline/pkg/interfaces"
	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/monitoring"
	"github.com/kjnelan/Mindline/pkg/types"
)

// maxAddendumChainDepth bounds the parent walk when creating addenda, which
// also guards against cyclic parent references in corrupted data.
const maxAddendumChainDepth = 5

// Service implements the clinical documentation core: note lifecycle,
// draft reconciliation, settings-gated policy and read-side projections.
type Service struct {
	notes    interfaces.NotesRepository
	drafts   interfaces.DraftsRepository
	goals    interfaces.GoalsRepository
	settings interfaces.SettingsReader
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector
}

// NewService creates a new clinical documentation service
func NewService(
	notes interfaces.NotesRepository,
	drafts interfaces.DraftsRepository,
	goals interfaces.GoalsRepository,
	settings interfaces.SettingsReader,
	log *logger.Logger,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		notes:    notes,
		drafts:   drafts,
		goals:    goals,
		settings: settings,
		logger:   log,
		metrics:  metrics,
	}
}

// CreateNote creates a new unsigned clinical note owned by the caller
func (s *Service) CreateNote(ctx context.Context, note *types.ClinicalNote, providerID int64) (*types.ClinicalNote, error) {
	if note.PatientID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}
	if note.NoteType == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "note_type is required", nil)
	}
	if note.ServiceDate == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "service_date is required", nil)
	}
	if _, err := time.Parse("2006-01-02", note.ServiceDate); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "service_date must be YYYY-MM-DD", nil)
	}

	note.ProviderID = providerID
	note.UUID = uuid.New().String()
	note.Status = types.NoteStatusDraft
	note.IsLocked = false
	if note.TemplateType == "" {
		note.TemplateType = "standard"
	}
	if note.SupervisorReviewRequired && note.SupervisorReviewStatus == "" {
		note.SupervisorReviewStatus = types.ReviewStatusPending
	}

	created, err := s.notes.Create(ctx, note)
	if err != nil {
		return nil, err
	}

	s.logger.Audit(fmt.Sprintf("%d", providerID), "create_note", fmt.Sprintf("note:%d", created.ID), true,
		map[string]interface{}{"patient_id": created.PatientID, "note_type": created.NoteType})

	return created, nil
}

// SignNote signs and locks a note. The final lock check happens inside the
// conditional update, so of any concurrent signers exactly one wins and the
// rest see a conflict.
func (s *Service) SignNote(ctx context.Context, noteID, userID int64, signatureData string) (time.Time, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return time.Time{}, err
	}

	if note.IsLocked {
		s.recordSignConflict()
		return time.Time{}, types.NewConflictError(types.ErrCodeNoteLocked,
			"note is already signed and locked")
	}

	if note.SupervisorReviewRequired && note.SupervisorReviewStatus != types.ReviewStatusApproved {
		return time.Time{}, types.NewPreconditionError(types.ErrCodeSupervisorApproval,
			"note requires supervisor approval before signing")
	}

	signedAt, ok, err := s.notes.MarkSigned(ctx, noteID, userID, signatureData)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		// A concurrent signer locked the note between our read and the update.
		s.recordSignConflict()
		return time.Time{}, types.NewConflictError(types.ErrCodeNoteLocked,
			"note was signed by a concurrent request")
	}

	// Drafts keyed to the note are stale once it locks; cleanup is
	// best-effort and must not fail the sign.
	if err := s.drafts.DeleteByNoteID(ctx, noteID); err != nil {
		if s.metrics != nil {
			s.metrics.RecordSystemError("draft_cleanup", "notes")
		}
		s.logger.WithError(err).WithField("note_id", noteID).Warn("Failed to delete drafts for signed note")
	}

	if s.metrics != nil {
		s.metrics.RecordNoteSigned()
	}
	s.logger.Audit(fmt.Sprintf("%d", userID), "sign_note", fmt.Sprintf("note:%d", noteID), true, nil)

	return signedAt, nil
}

// CreateAddendum creates a correction note chained to a locked parent.
// The parent is never modified and the addendum starts unsigned.
func (s *Service) CreateAddendum(ctx context.Context, parentNoteID, providerID int64, input *types.AddendumInput) (*types.ClinicalNote, error) {
	if input == nil || input.Content == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "addendum content is required", nil)
	}

	parent, err := s.notes.GetByID(ctx, parentNoteID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.settings.GetBool(ctx, types.SettingKeyAllowPostSignatureEdits)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, types.NewPolicyError(types.ErrCodeAddendaDisabled,
			"post-signature edits are disabled by clinical policy")
	}

	if !parent.IsLocked {
		return nil, types.NewPreconditionError(types.ErrCodeParentNotLocked,
			"parent note must be signed and locked before an addendum can be created")
	}

	if err := s.checkChainDepth(ctx, parent); err != nil {
		return nil, err
	}

	addendum := &types.ClinicalNote{
		UUID:           uuid.New().String(),
		PatientID:      parent.PatientID,
		ProviderID:     providerID,
		NoteType:       parent.NoteType,
		TemplateType:   types.TemplateTypeAddendum,
		ServiceDate:    parent.ServiceDate,
		Plan:           input.Content,
		Status:         types.NoteStatusDraft,
		IsLocked:       false,
		ParentNoteID:   &parent.ID,
		IsAddendum:     true,
		AddendumReason: input.Reason,
	}

	created, err := s.notes.Create(ctx, addendum)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAddendumCreated()
	}
	s.logger.Audit(fmt.Sprintf("%d", providerID), "create_addendum", fmt.Sprintf("note:%d", created.ID), true,
		map[string]interface{}{"parent_note_id": parent.ID})

	return created, nil
}

// checkChainDepth walks the parent chain and rejects addenda past the limit
func (s *Service) checkChainDepth(ctx context.Context, parent *types.ClinicalNote) error {
	depth := 1
	current := parent
	for current.ParentNoteID != nil {
		depth++
		if depth >= maxAddendumChainDepth {
			return types.NewPreconditionError(types.ErrCodeAddendumChainTooDeep,
				fmt.Sprintf("addendum chain exceeds maximum depth of %d", maxAddendumChainDepth))
		}

		next, err := s.notes.GetByID(ctx, *current.ParentNoteID)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// SaveDraft reconciles a draft autosave against the store. The identity of
// the draft resolves in priority order noteID, appointmentID, then
// (noteType, serviceDate); the store keeps at most one row per identity.
func (s *Service) SaveDraft(ctx context.Context, input *types.DraftSaveInput) (*types.NoteDraft, error) {
	if input.ProviderID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "provider identity is required", nil)
	}
	if input.PatientID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}
	if len(input.DraftContent) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "draft_content is required", nil)
	}
	if input.NoteID != nil && input.AppointmentID != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"note_id and appointment_id are mutually exclusive", nil)
	}
	// note_type and service_date are stored on every draft row regardless of
	// how it is keyed; an empty date would only fail later at the DATE column.
	if input.NoteType == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "note_type is required", nil)
	}
	if input.ServiceDate == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "service_date is required", nil)
	}
	if _, err := time.Parse("2006-01-02", input.ServiceDate); err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "service_date must be YYYY-MM-DD", nil)
	}

	// A draft against a locked note would be unrecoverable; reject it here
	// rather than letting it accumulate.
	if input.NoteID != nil {
		note, err := s.notes.GetByID(ctx, *input.NoteID)
		if err != nil {
			s.recordDraftSaved("error")
			return nil, err
		}
		if note.IsLocked {
			s.recordDraftSaved("rejected")
			return nil, types.NewConflictError(types.ErrCodeNoteLocked, "note is locked")
		}
	}

	draft, err := s.drafts.Upsert(ctx, input, resolveDraftKey(input))
	if err != nil {
		s.recordDraftSaved("error")
		return nil, err
	}

	s.recordDraftSaved("ok")
	return draft, nil
}

// GetDrafts fetches drafts per the lookup priority: a note or appointment
// resolves to its single draft, a patient to the most recent one, and no
// filter to all of the caller's drafts.
func (s *Service) GetDrafts(ctx context.Context, lookup types.DraftLookup) ([]*types.NoteDraft, error) {
	if lookup.ProviderID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "provider identity is required", nil)
	}

	patientID := ""
	if lookup.PatientID != nil {
		patientID = fmt.Sprintf("%d", *lookup.PatientID)
	}

	drafts, err := s.lookupDrafts(ctx, lookup)
	s.recordPHIAccess(ctx, fmt.Sprintf("%d", lookup.ProviderID), patientID, "note_drafts", err == nil)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *Service) lookupDrafts(ctx context.Context, lookup types.DraftLookup) ([]*types.NoteDraft, error) {
	switch {
	case lookup.NoteID != nil:
		draft, err := s.drafts.GetByNoteID(ctx, lookup.ProviderID, *lookup.NoteID)
		if err != nil {
			return nil, err
		}
		return []*types.NoteDraft{draft}, nil

	case lookup.AppointmentID != nil:
		draft, err := s.drafts.GetByAppointmentID(ctx, lookup.ProviderID, *lookup.AppointmentID)
		if err != nil {
			return nil, err
		}
		return []*types.NoteDraft{draft}, nil

	case lookup.PatientID != nil:
		draft, err := s.drafts.GetLatestByPatient(ctx, lookup.ProviderID, *lookup.PatientID)
		if err != nil {
			return nil, err
		}
		return []*types.NoteDraft{draft}, nil

	default:
		return s.drafts.ListByProvider(ctx, lookup.ProviderID)
	}
}

// GetPatientNotes assembles the patient's note history with display names
func (s *Service) GetPatientNotes(ctx context.Context, patientID int64, filters *types.NoteFilters) ([]*types.ClinicalNote, error) {
	if patientID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}

	if filters != nil {
		for _, d := range []string{filters.StartDate, filters.EndDate} {
			if d == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return nil, types.NewValidationError(types.ErrCodeInvalidInput, "date filters must be YYYY-MM-DD", nil)
			}
		}
	}

	start := time.Now()
	notes, err := s.notes.ListByPatient(ctx, patientID, filters)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("list_patient_notes", time.Since(start))
	}
	s.recordPHIAccess(ctx, callerID(ctx), fmt.Sprintf("%d", patientID), "patient_notes", err == nil)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// GetPatientGoals lists a patient's treatment goals
func (s *Service) GetPatientGoals(ctx context.Context, patientID int64, filters *types.GoalFilters) ([]*types.TreatmentGoal, error) {
	if patientID <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}

	goals, err := s.goals.ListByPatient(ctx, patientID, filters)
	s.recordPHIAccess(ctx, callerID(ctx), fmt.Sprintf("%d", patientID), "treatment_goals", err == nil)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

// GetSettings returns all clinical settings, coerced to their declared types
func (s *Service) GetSettings(ctx context.Context) (map[string]interface{}, []*types.SettingDetail, error) {
	return s.settings.All(ctx)
}

// resolveDraftKey maps the autosave identity onto the store's draft key
func resolveDraftKey(input *types.DraftSaveInput) string {
	switch {
	case input.NoteID != nil:
		return fmt.Sprintf("note:%d", *input.NoteID)
	case input.AppointmentID != nil:
		return fmt.Sprintf("appt:%d", *input.AppointmentID)
	default:
		return fmt.Sprintf("adhoc:%s:%s", input.NoteType, input.ServiceDate)
	}
}

// recordPHIAccess writes the PHI audit log entry and counts the access
func (s *Service) recordPHIAccess(ctx context.Context, userID, patientID, resource string, success bool) {
	if s.metrics != nil {
		status := "ok"
		if !success {
			status = "error"
		}
		s.metrics.RecordPHIAccess(resource, status)
	}
	s.logger.PHIAccess(ctx, userID, patientID, "read", resource, success, nil)
}

// callerID renders the authenticated user ID from the request context
func callerID(ctx context.Context) string {
	if id, ok := UserIDFromContext(ctx); ok {
		return fmt.Sprintf("%d", id)
	}
	return "unknown"
}

func (s *Service) recordDraftSaved(status string) {
	if s.metrics != nil {
		s.metrics.RecordDraftSaved(status)
	}
}

func (s *Service) recordSignConflict() {
	if s.metrics != nil {
		s.metrics.RecordSignConflict()
	}
}
