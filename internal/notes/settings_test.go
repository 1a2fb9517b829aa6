package notes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (*types.ClinicalSetting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ClinicalSetting), args.Error(1)
}

func (m *MockSettingsRepository) List(ctx context.Context) ([]*types.ClinicalSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.ClinicalSetting), args.Error(1)
}

func setupTestGate(ttl time.Duration) (*SettingsGate, *MockSettingsRepository) {
	repo := &MockSettingsRepository{}
	gate := NewSettingsGate(repo, logger.New("debug"), ttl)
	return gate, repo
}

func TestCoerceSetting(t *testing.T) {
	tests := []struct {
		name     string
		setting  *types.ClinicalSetting
		expected interface{}
	}{
		{"boolean true", &types.ClinicalSetting{Key: "k", Value: "true", Type: types.SettingTypeBoolean}, true},
		{"boolean 1", &types.ClinicalSetting{Key: "k", Value: "1", Type: types.SettingTypeBoolean}, true},
		{"boolean false", &types.ClinicalSetting{Key: "k", Value: "false", Type: types.SettingTypeBoolean}, false},
		{"boolean junk reads false", &types.ClinicalSetting{Key: "k", Value: "yes", Type: types.SettingTypeBoolean}, false},
		{"integer", &types.ClinicalSetting{Key: "k", Value: "30", Type: types.SettingTypeInteger}, int64(30)},
		{"number", &types.ClinicalSetting{Key: "k", Value: "7", Type: types.SettingTypeNumber}, int64(7)},
		{"numeric junk reads zero", &types.ClinicalSetting{Key: "k", Value: "abc", Type: types.SettingTypeNumber}, int64(0)},
		{"string passthrough", &types.ClinicalSetting{Key: "k", Value: "weekly", Type: types.SettingTypeString}, "weekly"},
		{"unknown type passthrough", &types.ClinicalSetting{Key: "k", Value: "raw", Type: "mystery"}, "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := coerceSetting(tt.setting)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestCoerceSetting_JSON(t *testing.T) {
	value, err := coerceSetting(&types.ClinicalSetting{
		Key: "note_types", Value: `["progress_note","intake"]`, Type: types.SettingTypeJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"progress_note", "intake"}, value)
}

func TestCoerceSetting_MalformedJSON(t *testing.T) {
	_, err := coerceSetting(&types.ClinicalSetting{
		Key: "note_types", Value: `{"unclosed":`, Type: types.SettingTypeJSON,
	})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindConfig))
}

func TestSettingsGate_Get(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("Get", mock.Anything, "session_duration").Return(&types.ClinicalSetting{
		Key: "session_duration", Value: "50", Type: types.SettingTypeInteger,
	}, nil)

	value, err := gate.Get(context.Background(), "session_duration")
	require.NoError(t, err)
	assert.Equal(t, int64(50), value)
}

func TestSettingsGate_GetUnknownKey(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("Get", mock.Anything, "nope").
		Return(nil, types.NewNotFoundError(types.ErrCodeSettingNotConfigured, `setting "nope" is not configured`))

	_, err := gate.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindNotFound))
}

func TestSettingsGate_GetBool_MissingReadsFalse(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("Get", mock.Anything, types.SettingKeyAllowPostSignatureEdits).
		Return(nil, types.NewNotFoundError(types.ErrCodeSettingNotConfigured, "not configured"))

	allowed, err := gate.GetBool(context.Background(), types.SettingKeyAllowPostSignatureEdits)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSettingsGate_GetBool_NonBooleanReadsFalse(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("Get", mock.Anything, "session_duration").Return(&types.ClinicalSetting{
		Key: "session_duration", Value: "50", Type: types.SettingTypeInteger,
	}, nil)

	allowed, err := gate.GetBool(context.Background(), "session_duration")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSettingsGate_CacheHitSkipsStore(t *testing.T) {
	gate, repo := setupTestGate(time.Minute)

	repo.On("Get", mock.Anything, "k").Return(&types.ClinicalSetting{
		Key: "k", Value: "true", Type: types.SettingTypeBoolean,
	}, nil).Once()

	for i := 0; i < 3; i++ {
		value, err := gate.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, true, value)
	}

	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestSettingsGate_ZeroTTLAlwaysReads(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("Get", mock.Anything, "k").Return(&types.ClinicalSetting{
		Key: "k", Value: "true", Type: types.SettingTypeBoolean,
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := gate.Get(context.Background(), "k")
		require.NoError(t, err)
	}

	repo.AssertNumberOfCalls(t, "Get", 3)
}

func TestSettingsGate_All(t *testing.T) {
	gate, repo := setupTestGate(0)

	updatedAt := time.Now()
	repo.On("List", mock.Anything).Return([]*types.ClinicalSetting{
		{Key: "allow_post_signature_edits", Value: "1", Type: types.SettingTypeBoolean, UpdatedAt: updatedAt, UpdatedByName: "Dana Reyes"},
		{Key: "session_duration", Value: "50", Type: types.SettingTypeInteger, UpdatedAt: updatedAt},
		{Key: "note_types", Value: `["intake"]`, Type: types.SettingTypeJSON, UpdatedAt: updatedAt},
	}, nil)

	values, details, err := gate.All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, true, values["allow_post_signature_edits"])
	assert.Equal(t, int64(50), values["session_duration"])
	assert.Equal(t, []interface{}{"intake"}, values["note_types"])

	require.Len(t, details, 3)
	assert.Equal(t, "allow_post_signature_edits", details[0].Key)
	assert.Equal(t, "Dana Reyes", details[0].UpdatedBy)
}

func TestSettingsGate_All_MalformedJSONFails(t *testing.T) {
	gate, repo := setupTestGate(0)

	repo.On("List", mock.Anything).Return([]*types.ClinicalSetting{
		{Key: "bad", Value: "{", Type: types.SettingTypeJSON},
	}, nil)

	_, _, err := gate.All(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindConfig))
}
