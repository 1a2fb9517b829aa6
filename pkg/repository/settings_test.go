package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

func setupSettingsRepository(t *testing.T) (*SettingsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSettingsRepository(db, logger.New("debug"))
	return repo, mock, func() { db.Close() }
}

var settingTestColumns = []string{
	"setting_key", "setting_value", "setting_type", "updated_at", "updated_by",
}

func TestSettingsRepository_Get(t *testing.T) {
	repo, mock, cleanup := setupSettingsRepository(t)
	defer cleanup()

	updatedAt := time.Now()
	rows := sqlmock.NewRows(settingTestColumns).AddRow(
		"allow_post_signature_edits", "true", "boolean", updatedAt, "Dana Reyes",
	)

	mock.ExpectQuery("SELECT (.+) FROM clinical_settings s LEFT JOIN users u (.+) WHERE s.setting_key = \\$1").
		WithArgs("allow_post_signature_edits").
		WillReturnRows(rows)

	setting, err := repo.Get(context.Background(), "allow_post_signature_edits")
	require.NoError(t, err)

	assert.Equal(t, "allow_post_signature_edits", setting.Key)
	assert.Equal(t, "true", setting.Value)
	assert.Equal(t, types.SettingTypeBoolean, setting.Type)
	assert.Equal(t, "Dana Reyes", setting.UpdatedByName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepository_Get_NotConfigured(t *testing.T) {
	repo, mock, cleanup := setupSettingsRepository(t)
	defer cleanup()

	mock.ExpectQuery("WHERE s.setting_key = \\$1").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindNotFound))
}

func TestSettingsRepository_List(t *testing.T) {
	repo, mock, cleanup := setupSettingsRepository(t)
	defer cleanup()

	updatedAt := time.Now()
	rows := sqlmock.NewRows(settingTestColumns).
		AddRow("allow_post_signature_edits", "1", "boolean", updatedAt, "Dana Reyes").
		AddRow("session_duration", "50", "integer", updatedAt, "")

	mock.ExpectQuery("SELECT (.+) FROM clinical_settings s LEFT JOIN users u (.+) ORDER BY s.setting_key").
		WillReturnRows(rows)

	settings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 2)

	assert.Equal(t, "allow_post_signature_edits", settings[0].Key)
	assert.Equal(t, "session_duration", settings[1].Key)
	assert.Equal(t, "", settings[1].UpdatedByName)
}
