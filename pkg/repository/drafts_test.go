package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

func setupDraftsRepository(t *testing.T) (*DraftsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewDraftsRepository(db, logger.New("debug"))
	return repo, mock, func() { db.Close() }
}

var draftTestColumns = []string{
	"id", "note_id", "provider_id", "patient_id", "appointment_id",
	"note_type", "service_date", "draft_content", "saved_at",
}

func TestDraftsRepository_Upsert_NoteKeyed(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	noteID := int64(7)
	savedAt := time.Now()

	mock.ExpectQuery("INSERT INTO note_drafts (.+) ON CONFLICT \\(provider_id, patient_id, draft_key\\) DO UPDATE SET").
		WithArgs(noteID, int64(42), int64(101), nil, "progress_note", "2025-03-14",
			"note:7", []byte(`{"plan":"wip"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "saved_at"}).AddRow(int64(3), savedAt))

	draft, err := repo.Upsert(context.Background(), &types.DraftSaveInput{
		NoteID:       &noteID,
		ProviderID:   42,
		PatientID:    101,
		NoteType:     "progress_note",
		ServiceDate:  "2025-03-14",
		DraftContent: json.RawMessage(`{"plan":"wip"}`),
	}, "note:7")
	require.NoError(t, err)

	assert.Equal(t, int64(3), draft.ID)
	assert.Equal(t, savedAt, draft.SavedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftsRepository_Upsert_AdHocKeyed(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO note_drafts (.+) ON CONFLICT \\(provider_id, patient_id, draft_key\\) DO UPDATE SET").
		WithArgs(nil, int64(42), int64(101), nil, "progress_note", "2025-03-14",
			"adhoc:progress_note:2025-03-14", []byte(`{"plan":"wip"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "saved_at"}).AddRow(int64(4), time.Now()))

	_, err := repo.Upsert(context.Background(), &types.DraftSaveInput{
		ProviderID:   42,
		PatientID:    101,
		NoteType:     "progress_note",
		ServiceDate:  "2025-03-14",
		DraftContent: json.RawMessage(`{"plan":"wip"}`),
	}, "adhoc:progress_note:2025-03-14")
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftsRepository_Upsert_StorageFailure(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO note_drafts").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.Upsert(context.Background(), &types.DraftSaveInput{
		ProviderID:   42,
		PatientID:    101,
		NoteType:     "progress_note",
		ServiceDate:  "2025-03-14",
		DraftContent: json.RawMessage(`{}`),
	}, "adhoc:progress_note:2025-03-14")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindStorage))
}

func TestDraftsRepository_GetByNoteID(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	serviceDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	savedAt := time.Now()

	rows := sqlmock.NewRows(draftTestColumns).AddRow(
		int64(3), int64(7), int64(42), int64(101), nil,
		"progress_note", serviceDate, []byte(`{"plan":"wip"}`), savedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM note_drafts WHERE provider_id = \\$1 AND note_id = \\$2").
		WithArgs(int64(42), int64(7)).
		WillReturnRows(rows)

	draft, err := repo.GetByNoteID(context.Background(), 42, 7)
	require.NoError(t, err)

	require.NotNil(t, draft.NoteID)
	assert.Equal(t, int64(7), *draft.NoteID)
	assert.Nil(t, draft.AppointmentID)
	assert.Equal(t, "2025-03-14", draft.ServiceDate)
	assert.JSONEq(t, `{"plan":"wip"}`, string(draft.DraftContent))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftsRepository_GetByNoteID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM note_drafts WHERE provider_id = \\$1 AND note_id = \\$2").
		WithArgs(int64(42), int64(999)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByNoteID(context.Background(), 42, 999)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindNotFound))
}

func TestDraftsRepository_GetByAppointmentID_SkipsPromotedDrafts(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	// drafts already tied to a note are excluded from the appointment lookup
	mock.ExpectQuery("WHERE provider_id = \\$1 AND appointment_id = \\$2 AND note_id IS NULL").
		WithArgs(int64(42), int64(55)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByAppointmentID(context.Background(), 42, 55)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftsRepository_GetLatestByPatient(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	serviceDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(draftTestColumns).AddRow(
		int64(3), nil, int64(42), int64(101), int64(55),
		"progress_note", serviceDate, []byte(`{}`), time.Now(),
	)

	mock.ExpectQuery("WHERE provider_id = \\$1 AND patient_id = \\$2 ORDER BY saved_at DESC LIMIT 1").
		WithArgs(int64(42), int64(101)).
		WillReturnRows(rows)

	draft, err := repo.GetLatestByPatient(context.Background(), 42, 101)
	require.NoError(t, err)

	assert.Nil(t, draft.NoteID)
	require.NotNil(t, draft.AppointmentID)
	assert.Equal(t, int64(55), *draft.AppointmentID)
}

func TestDraftsRepository_ListByProvider(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	serviceDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(draftTestColumns).
		AddRow(int64(4), nil, int64(42), int64(102), nil,
			"intake", serviceDate, []byte(`{}`), time.Now()).
		AddRow(int64(3), int64(7), int64(42), int64(101), nil,
			"progress_note", serviceDate, []byte(`{}`), time.Now().Add(-time.Hour))

	mock.ExpectQuery("WHERE provider_id = \\$1 ORDER BY saved_at DESC").
		WithArgs(int64(42)).
		WillReturnRows(rows)

	drafts, err := repo.ListByProvider(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, int64(4), drafts[0].ID)
	assert.Equal(t, int64(3), drafts[1].ID)
}

func TestDraftsRepository_DeleteByNoteID(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM note_drafts WHERE note_id = \\$1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteByNoteID(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftsRepository_DeleteByNoteID_NoDraft(t *testing.T) {
	repo, mock, cleanup := setupDraftsRepository(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM note_drafts WHERE note_id = \\$1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByNoteID(context.Background(), 7)
	assert.NoError(t, err)
}
