package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// SettingsRepository handles clinical settings persistence
type SettingsRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSettingsRepository creates a new clinical settings repository
func NewSettingsRepository(db *sql.DB, log *logger.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: log,
	}
}

// Get retrieves a single clinical setting by key
func (r *SettingsRepository) Get(ctx context.Context, key string) (*types.ClinicalSetting, error) {
	query := `
		SELECT s.setting_key, s.setting_value, s.setting_type, s.updated_at,
			COALESCE(u.fname || ' ' || u.lname, '') AS updated_by
		FROM clinical_settings s
		LEFT JOIN users u ON u.id = s.updated_by
		WHERE s.setting_key = $1`

	var setting types.ClinicalSetting
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&setting.Key,
		&setting.Value,
		&setting.Type,
		&setting.UpdatedAt,
		&setting.UpdatedByName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeSettingNotConfigured,
				fmt.Sprintf("setting %q is not configured", key))
		}
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to get clinical setting", err)
	}

	return &setting, nil
}

// List retrieves all clinical settings
func (r *SettingsRepository) List(ctx context.Context) ([]*types.ClinicalSetting, error) {
	query := `
		SELECT s.setting_key, s.setting_value, s.setting_type, s.updated_at,
			COALESCE(u.fname || ' ' || u.lname, '') AS updated_by
		FROM clinical_settings s
		LEFT JOIN users u ON u.id = s.updated_by
		ORDER BY s.setting_key`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to list clinical settings", err)
	}
	defer rows.Close()

	var settings []*types.ClinicalSetting
	for rows.Next() {
		var setting types.ClinicalSetting
		err := rows.Scan(
			&setting.Key,
			&setting.Value,
			&setting.Type,
			&setting.UpdatedAt,
			&setting.UpdatedByName,
		)
		if err != nil {
			return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to scan clinical setting row", err)
		}
		settings = append(settings, &setting)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "error iterating clinical setting rows", err)
	}

	return settings, nil
}
