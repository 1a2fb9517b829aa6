package notes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjnelan/Mindline/pkg/interfaces"
	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// Handlers handles HTTP requests for the clinical documentation service
type Handlers struct {
	service interfaces.NotesService
	logger  *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(service interfaces.NotesService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers HTTP routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Note lifecycle routes
	router.HandleFunc("/notes", h.CreateNote).Methods("POST")
	router.HandleFunc("/notes/{noteID}/sign", h.SignNote).Methods("POST")
	router.HandleFunc("/notes/{noteID}/addendum", h.CreateAddendum).Methods("POST")

	// Draft routes
	router.HandleFunc("/drafts", h.SaveDraft).Methods("POST")
	router.HandleFunc("/drafts", h.GetDrafts).Methods("GET")

	// Patient projections
	router.HandleFunc("/patients/{patientID}/notes", h.GetPatientNotes).Methods("GET")
	router.HandleFunc("/patients/{patientID}/goals", h.GetPatientGoals).Methods("GET")

	// Settings
	router.HandleFunc("/settings", h.GetSettings).Methods("GET")
}

// CreateNote handles clinical note creation
func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	var note types.ClinicalNote
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	created, err := h.service.CreateNote(r.Context(), &note, userID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to create note")
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// SignNote handles signing and locking a note
func (h *Handlers) SignNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	noteID, err := h.pathID(r, "noteID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid note ID")
		return
	}

	var body struct {
		SignatureData string `json:"signature_data"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
			return
		}
	}

	signedAt, err := h.service.SignNote(r.Context(), noteID, userID, body.SignatureData)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to sign note")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"note_id":   noteID,
		"signed_at": signedAt.Format(time.RFC3339),
		"is_locked": true,
	})
}

// CreateAddendum handles addendum creation against a locked note
func (h *Handlers) CreateAddendum(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	parentNoteID, err := h.pathID(r, "noteID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid note ID")
		return
	}

	var input types.AddendumInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	created, err := h.service.CreateAddendum(r.Context(), parentNoteID, userID, &input)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to create addendum")
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// SaveDraft handles draft autosave
func (h *Handlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	var input types.DraftSaveInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	input.ProviderID = userID

	draft, err := h.service.SaveDraft(r.Context(), &input)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to save draft")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"draft_id": draft.ID,
		"saved_at": draft.SavedAt.Format(time.RFC3339),
	})
}

// GetDrafts handles draft retrieval by note, appointment, patient or caller
func (h *Handlers) GetDrafts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	lookup := types.DraftLookup{ProviderID: userID}

	query := r.URL.Query()
	if raw := query.Get("note_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid note_id")
			return
		}
		lookup.NoteID = &parsed
	}
	if raw := query.Get("appointment_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid appointment_id")
			return
		}
		lookup.AppointmentID = &parsed
	}
	if raw := query.Get("patient_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid patient_id")
			return
		}
		lookup.PatientID = &parsed
	}

	drafts, err := h.service.GetDrafts(r.Context(), lookup)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get drafts")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"drafts": drafts,
		"count":  len(drafts),
	})
}

// GetPatientNotes handles the patient note history projection
func (h *Handlers) GetPatientNotes(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	patientID, err := h.pathID(r, "patientID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid patient ID")
		return
	}

	query := r.URL.Query()
	filters := &types.NoteFilters{
		NoteType:  query.Get("note_type"),
		Status:    query.Get("status"),
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
	}

	notes, err := h.service.GetPatientNotes(r.Context(), patientID, filters)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get patient notes")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
		"count": len(notes),
	})
}

// GetPatientGoals handles treatment goal retrieval
func (h *Handlers) GetPatientGoals(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	patientID, err := h.pathID(r, "patientID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid patient ID")
		return
	}

	query := r.URL.Query()
	filters := &types.GoalFilters{
		Status:     query.Get("status"),
		IncludeAll: query.Get("include_all") == "true",
	}

	goals, err := h.service.GetPatientGoals(r.Context(), patientID, filters)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get treatment goals")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"count": len(goals),
	})
}

// GetSettings handles clinical settings retrieval
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserIDFromContext(r.Context()); !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	values, details, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get clinical settings")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": values,
		"details":  details,
	})
}

// pathID parses an int64 path variable
func (h *Handlers) pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}

// writeServiceError maps an error's kind onto the HTTP status and writes it
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	kind := types.KindOf(err)
	status := statusForKind(kind)

	entry := h.logger.WithError(err).WithField("path", r.URL.Path)
	if status >= 500 {
		entry.Error(logMsg)
	} else {
		entry.Warn(logMsg)
	}

	code := "internal_error"
	message := "An internal error occurred"
	var me *types.MindlineError
	if errors.As(err, &me) {
		code = me.Code
		if status < 500 {
			message = me.Message
		}
	}

	h.writeError(w, status, code, message)
}

// statusForKind maps error kinds to HTTP status codes
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.ErrorKindValidation:
		return http.StatusBadRequest
	case types.ErrorKindNotFound:
		return http.StatusNotFound
	case types.ErrorKindConflict:
		return http.StatusConflict
	case types.ErrorKindPrecondition:
		return http.StatusPreconditionFailed
	case types.ErrorKindPolicy:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	errorResponse := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, status, errorResponse)
}
