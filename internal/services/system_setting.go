package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSettingNotFound     = errors.New("setting not found")
	ErrInvalidSettingKey   = errors.New("invalid setting key")
	ErrInvalidSettingValue = errors.New("invalid setting value")
)

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,99}$`)

type SystemSettingService struct {
	db    *gorm.DB
	cache SettingsCache
}

func NewSystemSettingService(db *gorm.DB, cache SettingsCache) *SystemSettingService {
	if cache == nil {
		cache = NewMemorySettingsCache()
	}
	return &SystemSettingService{db: db, cache: cache}
}

func (s *SystemSettingService) CacheName() string { return s.cache.Name() }

// All returns every setting as its stored string, served from the cache when
// possible. A cache failure degrades to a database read.
func (s *SystemSettingService) All(ctx context.Context) (map[string]string, error) {
	values, found, err := s.cache.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("settings cache read failed")
	}
	if found {
		return values, nil
	}
	return s.loadFromDB(ctx)
}

// loadFromDB reads the table and caches it unless a write invalidated the
// cache while the read was in flight.
func (s *SystemSettingService) loadFromDB(ctx context.Context) (map[string]string, error) {
	gen, genErr := s.cache.Generation(ctx)
	var rows []models.SystemSetting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	if genErr != nil {
		logger.Warn().Err(genErr).Str("cache", s.cache.Name()).Msg("settings cache generation read failed")
		return values, nil
	}
	stored, err := s.cache.Store(ctx, gen, values)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("settings cache write failed")
	case !stored:
		logger.Debug().Str("cache", s.cache.Name()).Msg("settings changed during read, snapshot not cached")
	}
	return values, nil
}

func (s *SystemSettingService) Get(ctx context.Context, key string) (string, error) {
	values, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrSettingNotFound
	}
	return v, nil
}

func (s *SystemSettingService) GetWithDefault(ctx context.Context, key, defaultValue string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemSettingService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	v, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	return v == "true"
}

func (s *SystemSettingService) GetInt(ctx context.Context, key string, defaultValue int) int {
	n, err := strconv.Atoi(s.GetWithDefault(ctx, key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

// Set validates value against the key's type and upserts it. Booleans are
// normalized to "true"/"false" so readers can compare strings.
func (s *SystemSettingService) Set(ctx context.Context, key, value string) error {
	if !settingKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidSettingKey, key)
	}

	var existing models.SystemSetting
	typ := models.SettingType(key)
	err := s.db.WithContext(ctx).Where(&models.SystemSetting{Key: key}).First(&existing).Error
	switch {
	case err == nil:
		if existing.Type != "" {
			typ = existing.Type
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("read setting %s: %w", key, err)
	}

	normalized, err := validateSettingValue(key, typ, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSettingValue, key, err)
	}

	row := models.SystemSetting{Key: key, Value: normalized, Type: typ, Description: existing.Description}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("settings cache invalidation failed")
	}
	PublishAdminEvent(EventSettingUpdated, key, "Setting updated", nil)
	return nil
}

// Reload drops the cache and repopulates it from the database.
func (s *SystemSettingService) Reload(ctx context.Context) (int, error) {
	if err := s.cache.Invalidate(ctx); err != nil {
		return 0, fmt.Errorf("invalidate settings cache: %w", err)
	}
	values, err := s.loadFromDB(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info().Int("settings", len(values)).Str("cache", s.cache.Name()).Msg("settings cache reloaded")
	PublishAdminEvent(EventCacheReloaded, s.cache.Name(), fmt.Sprintf("%d settings reloaded", len(values)), nil)
	return len(values), nil
}

func validateSettingValue(key, valueType, value string) (string, error) {
	switch valueType {
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("not a valid integer")
		}
		switch key {
		case "smtp_port":
			if n < 1 || n > 65535 {
				return "", fmt.Errorf("smtp_port must be between 1 and 65535")
			}
		case "log_retention_days":
			if n < 0 || n > 365 {
				return "", fmt.Errorf("log_retention_days must be between 0 and 365")
			}
		}
		return strconv.Itoa(n), nil
	case "bool":
		switch strings.TrimSpace(value) {
		case "true", "1":
			return "true", nil
		case "false", "0":
			return "false", nil
		}
		return "", fmt.Errorf("must be true/false or 1/0")
	case "string", "":
		return value, nil
	default:
		return "", fmt.Errorf("unknown setting type %q", valueType)
	}
}

// LoginInfo is the public view of the login toggles.
type LoginInfo struct {
	RegistrationEnabled  bool `json:"registration_enabled"`
	ShowDefaultLoginInfo bool `json:"show_default_login_info"`
	LoginCaptchaEnabled  bool `json:"login_captcha_enabled"`
}

func (s *SystemSettingService) LoginInfo(ctx context.Context) LoginInfo {
	return LoginInfo{
		RegistrationEnabled:  s.GetBool(ctx, "registration_enabled", true),
		ShowDefaultLoginInfo: s.GetBool(ctx, "show_default_login_info", true),
		LoginCaptchaEnabled:  s.GetBool(ctx, "login_captcha_enabled", false),
	}
}
