package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kjnelan/Mindline/pkg/interfaces"
	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// SettingsGate resolves clinical settings into typed values for policy
// decisions. Reads go through a per-key TTL cache; a TTL of zero disables
// caching so every read hits the store.
type SettingsGate struct {
	repo   interfaces.SettingsRepository
	logger *logger.Logger
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSetting
}

type cachedSetting struct {
	value     interface{}
	expiresAt time.Time
}

// NewSettingsGate creates a new settings gate
func NewSettingsGate(repo interfaces.SettingsRepository, log *logger.Logger, ttl time.Duration) *SettingsGate {
	return &SettingsGate{
		repo:   repo,
		logger: log,
		ttl:    ttl,
		cache:  make(map[string]cachedSetting),
	}
}

// Get resolves a setting to its typed value
func (g *SettingsGate) Get(ctx context.Context, key string) (interface{}, error) {
	if value, ok := g.fromCache(key); ok {
		return value, nil
	}

	setting, err := g.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	value, err := coerceSetting(setting)
	if err != nil {
		return nil, err
	}

	g.store(key, value)
	return value, nil
}

// GetBool resolves a boolean setting. A setting that is not configured reads
// as false, so policy gates default to their restrictive side.
func (g *SettingsGate) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := g.Get(ctx, key)
	if err != nil {
		if types.IsKind(err, types.ErrorKindNotFound) {
			return false, nil
		}
		return false, err
	}

	b, ok := value.(bool)
	if !ok {
		return false, nil
	}
	return b, nil
}

// All resolves every configured setting, returning both the coerced key/value
// map and the detailed list with type and update metadata.
func (g *SettingsGate) All(ctx context.Context) (map[string]interface{}, []*types.SettingDetail, error) {
	settings, err := g.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	values := make(map[string]interface{}, len(settings))
	details := make([]*types.SettingDetail, 0, len(settings))

	for _, setting := range settings {
		value, err := coerceSetting(setting)
		if err != nil {
			return nil, nil, err
		}

		values[setting.Key] = value
		details = append(details, &types.SettingDetail{
			Key:       setting.Key,
			Value:     value,
			Type:      setting.Type,
			UpdatedAt: setting.UpdatedAt,
			UpdatedBy: setting.UpdatedByName,
		})

		g.store(setting.Key, value)
	}

	return values, details, nil
}

func (g *SettingsGate) fromCache(key string) (interface{}, bool) {
	if g.ttl <= 0 {
		return nil, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (g *SettingsGate) store(key string, value interface{}) {
	if g.ttl <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache[key] = cachedSetting{
		value:     value,
		expiresAt: time.Now().Add(g.ttl),
	}
}

// coerceSetting converts a stored string value to its declared type.
// Booleans accept "true" and "1"; malformed JSON is a config error; numeric
// values that fail to parse read as zero; everything else passes through.
func coerceSetting(setting *types.ClinicalSetting) (interface{}, error) {
	switch setting.Type {
	case types.SettingTypeBoolean:
		return setting.Value == "true" || setting.Value == "1", nil

	case types.SettingTypeJSON:
		var decoded interface{}
		if err := json.Unmarshal([]byte(setting.Value), &decoded); err != nil {
			return nil, types.NewConfigError(types.ErrCodeSettingMalformed,
				fmt.Sprintf("setting %q holds malformed JSON", setting.Key), err)
		}
		return decoded, nil

	case types.SettingTypeNumber, types.SettingTypeInteger:
		n, err := strconv.ParseInt(setting.Value, 10, 64)
		if err != nil {
			return int64(0), nil
		}
		return n, nil

	default:
		return setting.Value, nil
	}
}
