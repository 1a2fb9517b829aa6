package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// MockNotesService is a mock implementation of NotesService
type MockNotesService struct {
	mock.Mock
}

func (m *MockNotesService) CreateNote(ctx context.Context, note *types.ClinicalNote, providerID int64) (*types.ClinicalNote, error) {
	args := m.Called(ctx, note, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ClinicalNote), args.Error(1)
}

func (m *MockNotesService) SignNote(ctx context.Context, noteID, userID int64, signatureData string) (time.Time, error) {
	args := m.Called(ctx, noteID, userID, signatureData)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockNotesService) CreateAddendum(ctx context.Context, parentNoteID, providerID int64, input *types.AddendumInput) (*types.ClinicalNote, error) {
	args := m.Called(ctx, parentNoteID, providerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ClinicalNote), args.Error(1)
}

func (m *MockNotesService) SaveDraft(ctx context.Context, input *types.DraftSaveInput) (*types.NoteDraft, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.NoteDraft), args.Error(1)
}

func (m *MockNotesService) GetDrafts(ctx context.Context, lookup types.DraftLookup) ([]*types.NoteDraft, error) {
	args := m.Called(ctx, lookup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.NoteDraft), args.Error(1)
}

func (m *MockNotesService) GetPatientNotes(ctx context.Context, patientID int64, filters *types.NoteFilters) ([]*types.ClinicalNote, error) {
	args := m.Called(ctx, patientID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.ClinicalNote), args.Error(1)
}

func (m *MockNotesService) GetPatientGoals(ctx context.Context, patientID int64, filters *types.GoalFilters) ([]*types.TreatmentGoal, error) {
	args := m.Called(ctx, patientID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.TreatmentGoal), args.Error(1)
}

func (m *MockNotesService) GetSettings(ctx context.Context) (map[string]interface{}, []*types.SettingDetail, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(map[string]interface{}), args.Get(1).([]*types.SettingDetail), args.Error(2)
}

func setupTestHandlers() (*mux.Router, *MockNotesService) {
	service := &MockNotesService{}
	handlers := NewHandlers(service, logger.New("debug"))

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return router, service
}

// doRequest executes a request carrying an authenticated user ID
func doRequest(router *mux.Router, method, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID > 0 {
		req = req.WithContext(context.WithValue(req.Context(), userIDContextKey, userID))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CreateNote(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("CreateNote", mock.Anything, mock.AnythingOfType("*types.ClinicalNote"), int64(42)).
		Return(&types.ClinicalNote{ID: 1, UUID: "abc"}, nil)

	rec := doRequest(router, "POST", "/notes", map[string]interface{}{
		"patient_id": 101, "note_type": "progress_note", "service_date": "2025-03-14",
	}, 42)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlers_CreateNote_Unauthorized(t *testing.T) {
	router, _ := setupTestHandlers()

	rec := doRequest(router, "POST", "/notes", map[string]interface{}{}, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_SignNote(t *testing.T) {
	router, service := setupTestHandlers()

	signedAt := time.Now()
	service.On("SignNote", mock.Anything, int64(7), int64(42), "").Return(signedAt, nil)

	rec := doRequest(router, "POST", "/notes/7/sign", nil, 42)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["is_locked"])
}

func TestHandlers_ErrorKindStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"conflict maps to 409", types.NewConflictError(types.ErrCodeNoteLocked, "locked"), http.StatusConflict},
		{"precondition maps to 412", types.NewPreconditionError(types.ErrCodeSupervisorApproval, "approval required"), http.StatusPreconditionFailed},
		{"not found maps to 404", types.NewNotFoundError(types.ErrCodeNoteNotFound, "missing"), http.StatusNotFound},
		{"validation maps to 400", types.NewValidationError(types.ErrCodeInvalidInput, "bad", nil), http.StatusBadRequest},
		{"policy maps to 403", types.NewPolicyError(types.ErrCodeAddendaDisabled, "disabled"), http.StatusForbidden},
		{"storage maps to 500", types.NewStorageError(types.ErrCodeStorageFailure, "broken", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := setupTestHandlers()
			service.On("SignNote", mock.Anything, int64(7), int64(42), "").Return(time.Time{}, tt.err)

			rec := doRequest(router, "POST", "/notes/7/sign", nil, 42)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandlers_InternalErrorsHideDetails(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("SignNote", mock.Anything, int64(7), int64(42), "").
		Return(time.Time{}, types.NewStorageError(types.ErrCodeStorageFailure, "pq: connection refused on db-host-3", nil))

	rec := doRequest(router, "POST", "/notes/7/sign", nil, 42)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db-host-3")
}

func TestHandlers_SignNote_InvalidID(t *testing.T) {
	router, _ := setupTestHandlers()

	rec := doRequest(router, "POST", "/notes/abc/sign", nil, 42)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_CreateAddendum(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("CreateAddendum", mock.Anything, int64(7), int64(42), mock.AnythingOfType("*types.AddendumInput")).
		Return(&types.ClinicalNote{ID: 8, IsAddendum: true}, nil)

	rec := doRequest(router, "POST", "/notes/7/addendum", map[string]string{
		"content": "corrected dosage", "reason": "transcription error",
	}, 42)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlers_SaveDraft_InjectsCallerIdentity(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("SaveDraft", mock.Anything, mock.MatchedBy(func(input *types.DraftSaveInput) bool {
		return input.ProviderID == 42 && input.PatientID == 101
	})).Return(&types.NoteDraft{ID: 3, SavedAt: time.Now()}, nil)

	// provider_id in the body must be ignored in favor of the caller
	rec := doRequest(router, "POST", "/drafts", map[string]interface{}{
		"provider_id": 999, "patient_id": 101, "note_type": "progress_note",
		"service_date": "2025-03-14", "draft_content": map[string]string{"plan": "wip"},
	}, 42)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestHandlers_GetDrafts_LookupFromQuery(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("GetDrafts", mock.Anything, mock.MatchedBy(func(lookup types.DraftLookup) bool {
		return lookup.ProviderID == 42 && lookup.NoteID != nil && *lookup.NoteID == 7
	})).Return([]*types.NoteDraft{{ID: 1}}, nil)

	rec := doRequest(router, "GET", "/drafts?note_id=7", nil, 42)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["count"])
}

func TestHandlers_GetDrafts_BadQuery(t *testing.T) {
	router, _ := setupTestHandlers()

	rec := doRequest(router, "GET", "/drafts?note_id=x", nil, 42)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetPatientNotes(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("GetPatientNotes", mock.Anything, int64(101), mock.MatchedBy(func(f *types.NoteFilters) bool {
		return f.Status == "signed" && f.StartDate == "2025-01-01"
	})).Return([]*types.ClinicalNote{{ID: 1}, {ID: 2}}, nil)

	rec := doRequest(router, "GET", "/patients/101/notes?status=signed&start_date=2025-01-01", nil, 42)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["count"])
}

func TestHandlers_GetPatientGoals(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("GetPatientGoals", mock.Anything, int64(101), mock.MatchedBy(func(f *types.GoalFilters) bool {
		return f.IncludeAll
	})).Return([]*types.TreatmentGoal{{ID: 1}}, nil)

	rec := doRequest(router, "GET", "/patients/101/goals?include_all=true", nil, 42)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_GetSettings(t *testing.T) {
	router, service := setupTestHandlers()

	service.On("GetSettings", mock.Anything).Return(
		map[string]interface{}{"allow_post_signature_edits": true},
		[]*types.SettingDetail{{Key: "allow_post_signature_edits", Value: true, Type: types.SettingTypeBoolean}},
		nil,
	)

	rec := doRequest(router, "GET", "/settings", nil, 42)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	settings := resp["settings"].(map[string]interface{})
	assert.Equal(t, true, settings["allow_post_signature_edits"])
}
